package worker

import "github.com/ardanlabs/ledger/foundation/blockchain/state"

// persistOperations writes ledger changes to storage in the order they
// happened. Pending changes are written before the G terminates.
func (w *Worker) persistOperations() {
	w.evHandler("worker: persistOperations: G started")
	defer w.evHandler("worker: persistOperations: G completed")

	for {
		select {
		case req := <-w.persisting:
			w.runPersistOperation(req)
		case <-w.shut:
			w.evHandler("worker: persistOperations: received shut signal: flushing")
			w.flush()
			return
		}
	}
}

// runPersistOperation writes the change to storage. A failed write marks
// storage as dirty so the next change rewrites the whole chain.
func (w *Worker) runPersistOperation(req state.PersistRequest) {
	if w.storageDirty.Swap(false) {
		w.evHandler("worker: runPersistOperation: storage dirty: rewriting chain")
		if err := w.state.PersistAll(); err != nil {
			w.storageDirty.Store(true)
			w.evHandler("worker: runPersistOperation: WARNING: rewrite: %s", err)
		}
		return
	}

	if err := w.state.Persist(req); err != nil {
		w.storageDirty.Store(true)
		w.evHandler("worker: runPersistOperation: WARNING: %s", err)
	}
}

// flush writes any changes still queued.
func (w *Worker) flush() {
	for {
		select {
		case req := <-w.persisting:
			w.runPersistOperation(req)
		default:
			if w.storageDirty.Swap(false) {
				if err := w.state.PersistAll(); err != nil {
					w.evHandler("worker: flush: WARNING: rewrite: %s", err)
				}
			}
			return
		}
	}
}
