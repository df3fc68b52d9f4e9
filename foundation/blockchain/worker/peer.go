package worker

import (
	"errors"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
)

// peerOperations handles finding new peers and longer chains.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation updates the peer list and reconciles the chain with
// every peer.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	for _, pr := range w.state.RetrieveKnownPeers() {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: runPeersOperation: queryPeerStatus: %s: ERROR: %s", pr.Host, err)
			w.state.RemoveKnownPeer(pr)
			continue
		}

		// Add new peers to this nodes list.
		w.addNewPeers(peerStatus.KnownPeers)

		w.reconcile(pr, peerStatus)
	}

	// get the latest peers and let them know this node is available to chat
	for _, pr := range w.state.RetrieveKnownPeers() {
		if err := w.state.NetRequestAddPeer(pr); err != nil {
			w.evHandler("worker: runPeersOperation: addPeer: %s: ERROR: %s", pr.Host, err)
		}
	}
}

// reconcile pulls the peer's chain when it is longer than ours and proposes
// ours when it is longer than the peer's.
func (w *Worker) reconcile(pr peer.Peer, peerStatus peer.PeerStatus) {
	length := w.state.RetrieveChainLength()

	switch {
	case peerStatus.ChainLength > length || w.state.IsHalted():
		w.evHandler("worker: reconcile: %s: pulling chain: local[%d]: remote[%d]", pr.Host, length, peerStatus.ChainLength)

		chain, err := w.state.NetRequestPeerChain(pr)
		if err != nil {
			w.evHandler("worker: reconcile: %s: ERROR: %s", pr.Host, err)
			return
		}

		if _, err := w.state.ImportChain(chain); err != nil {
			w.evHandler("worker: reconcile: %s: ImportChain: ERROR: %s", pr.Host, err)
			if errors.Is(err, database.ErrForeignGenesis) {
				w.state.RemoveKnownPeer(pr)
			}
		}

	case peerStatus.ChainLength < length:
		w.evHandler("worker: reconcile: %s: proposing chain: local[%d]: remote[%d]", pr.Host, length, peerStatus.ChainLength)

		if err := w.state.NetSendChainToPeer(pr); err != nil {
			w.evHandler("worker: reconcile: %s: ERROR: %s", pr.Host, err)
		}
	}
}

// addNewPeers takes the list of known peers and makes sure they are included
// in the nodes list of know peers.
func (w *Worker) addNewPeers(knownPeers []peer.Peer) {
	w.evHandler("worker: runPeerUpdatesOperation: addNewPeers: started")
	defer w.evHandler("worker: runPeerUpdatesOperation: addNewPeers: completed")

	for _, pr := range knownPeers {

		// Don't add this running node to the known peer list.
		if pr.Match(w.state.RetrieveHost()) {
			continue
		}

		if w.state.AddKnownPeer(pr) {
			w.evHandler("worker: runPeerUpdatesOperation: addNewPeers: add peer nodes: adding peer-node %s", pr.Host)
		}
	}
}
