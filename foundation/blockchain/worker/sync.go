package worker

// Sync updates the peer list and pulls any chain longer than the local one
// from the known peers.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	for _, pr := range w.state.RetrieveKnownPeers() {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: sync: queryPeerStatus: %s: ERROR: %s", pr.Host, err)
			continue
		}

		// Add new peers to this nodes list.
		w.addNewPeers(peerStatus.KnownPeers)

		// If this peer has blocks we don't have, we need to add them.
		if peerStatus.ChainLength > w.state.RetrieveChainLength() {
			w.evHandler("worker: sync: retrievePeerChain: %s: chainLength[%d]", pr.Host, peerStatus.ChainLength)

			chain, err := w.state.NetRequestPeerChain(pr)
			if err != nil {
				w.evHandler("worker: sync: retrievePeerChain: %s: ERROR %s", pr.Host, err)
				continue
			}

			if _, err := w.state.ImportChain(chain); err != nil {
				w.evHandler("worker: sync: ImportChain: %s: ERROR %s", pr.Host, err)
			}
		}
	}
}
