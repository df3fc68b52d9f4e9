package state

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// PersistRequest describes a change to the ledger that needs to reach
// storage. A reset request rewrites storage with the blocks, otherwise the
// blocks are written starting at the From block number.
type PersistRequest struct {
	Reset  bool
	From   uint64
	Blocks []database.Block
}

// Persist writes the change described by the request to storage.
func (s *State) Persist(req PersistRequest) error {
	if req.Reset {
		if err := database.WriteAll(s.storage, req.Blocks); err != nil {
			return fmt.Errorf("rewrite: %w", err)
		}
		return nil
	}

	for i, block := range req.Blocks {
		number := req.From + uint64(i)
		if err := s.storage.Write(number, database.NewBlockData(block)); err != nil {
			return fmt.Errorf("write blk[%d]: %w", number, err)
		}
	}

	return nil
}

// PersistAll rewrites storage with a snapshot of the whole ledger. It is
// used to recover after a change could not be persisted.
func (s *State) PersistAll() error {
	s.mu.Lock()
	chain := s.db.Copy()
	s.mu.Unlock()

	return s.Persist(PersistRequest{Reset: true, Blocks: chain})
}

// =============================================================================

// persist hands the request to the worker. Without a worker the request is
// written synchronously. Callers hold s.mu so requests are queued in the
// order the ledger changed.
func (s *State) persist(req PersistRequest) {
	if s.Worker != nil {
		s.Worker.SignalPersist(req)
		return
	}

	if err := s.Persist(req); err != nil {
		s.evHandler("state: persist: WARNING: %s", err)
	}
}
