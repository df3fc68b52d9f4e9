package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// maxReplaceAttempts bounds how many times a fork choice is repeated when
// the ledger keeps moving underneath the decision.
const maxReplaceAttempts = 10

// =============================================================================

// ImportBlock takes a block received from a peer, validates it against the
// latest block and if that passes, adds the block to the ledger. Any mining
// in progress is stale once the block is accepted and is cancelled.
func (s *State) ImportBlock(blockData database.BlockData) error {
	block := database.ToBlock(blockData)

	s.evHandler("state: ImportBlock: started: prevBlk[%s]: newBlk[%s]", block.PrevHash, block.Hash)
	defer s.evHandler("state: ImportBlock: completed: newBlk[%s]", block.Hash)

	if s.IsHalted() {
		return ErrHalted
	}

	// Reject the block before touching the miner.
	if err := database.ValidateBlock(block, s.db.LatestBlock(), s.db.Difficulty()); err != nil {
		s.evHandler("state: ImportBlock: REJECTED: reason[%v]: %s", database.Reason(err), err)
		return err
	}

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from the
	// function until done is called. That allows this function to complete
	// its state changes before a new mining operation takes place.
	if s.Worker != nil {
		done := s.Worker.SignalCancelMining()
		defer func() {
			s.evHandler("state: ImportBlock: signal runMiningOperation to terminate")
			done()
		}()
	}

	// The latest block may have moved since the check above.
	if err := s.appendBlock(block); err != nil {
		s.evHandler("state: ImportBlock: REJECTED: reason[%v]: %s", database.Reason(err), err)
		return err
	}

	return nil
}

// ImportChain runs fork choice between the local chain and the chain
// received from a peer and keeps the winner. It reports whether the local
// chain was replaced. If both chains are invalid the node is halted and the
// error wraps database.ErrUnrecoverableFork. A remote chain that does not
// start with the genesis block is rejected with database.ErrForeignGenesis.
// A halted node leaves halted mode when it adopts a valid chain.
func (s *State) ImportChain(chainData []database.BlockData) (bool, error) {
	remote := database.ToBlocks(chainData)

	s.evHandler("state: ImportChain: started: blocks[%d]", len(remote))
	defer s.evHandler("state: ImportChain: completed")

	if len(remote) == 0 {
		return false, errors.New("remote chain is empty")
	}

	// A chain rooted anywhere else is never a candidate. If the local chain
	// is invalid as well there is nothing left to choose.
	if err := s.db.ValidateRoot(remote); err != nil {
		s.evHandler("state: ImportChain: REJECTED: %s", err)

		if localErr := database.ValidateChain(s.db.Copy(), s.db.Difficulty()); localErr != nil {
			err = fmt.Errorf("%w: local: %w: remote: %w", database.ErrUnrecoverableFork, localErr, err)
			s.halt(err)
		}

		return false, err
	}

	for attempt := 1; attempt <= maxReplaceAttempts; attempt++ {
		local := s.db.Copy()
		latest := local[len(local)-1]

		chain, choice, err := database.ChooseChain(local, remote, s.db.Difficulty())
		if err != nil {
			s.halt(err)
			return false, err
		}

		if choice == database.ChoseLocal {
			s.evHandler("state: ImportChain: kept local chain: local[%d]: remote[%d]", len(local), len(remote))
			return false, nil
		}

		if s.replaceChain(latest.Hash, len(local), chain) {
			s.evHandler("state: ImportChain: adopted remote chain: local[%d]: remote[%d]", len(local), len(chain))
			s.resume()
			return true, nil
		}

		s.evHandler("state: ImportChain: ledger moved during fork choice: attempt[%d]", attempt)
	}

	return false, fmt.Errorf("ledger kept changing: gave up after %d attempts", maxReplaceAttempts)
}

// Resync asks every known peer for its chain and imports each one. It is
// the way out of halted mode. It reports whether the local chain was
// replaced.
func (s *State) Resync() (bool, error) {
	s.evHandler("state: Resync: started")
	defer s.evHandler("state: Resync: completed")

	var replaced bool
	for _, pr := range s.RetrieveKnownPeers() {
		chain, err := s.NetRequestPeerChain(pr)
		if err != nil {
			s.evHandler("state: Resync: NetRequestPeerChain: %s: ERROR: %s", pr.Host, err)
			continue
		}

		ok, err := s.ImportChain(chain)
		if err != nil {
			if errors.Is(err, database.ErrForeignGenesis) {
				s.evHandler("state: Resync: ImportChain: %s: foreign genesis: removing peer", pr.Host)
				s.RemoveKnownPeer(pr)
				continue
			}
			s.evHandler("state: Resync: ImportChain: %s: ERROR: %s", pr.Host, err)
			continue
		}

		replaced = replaced || ok
	}

	if s.IsHalted() {
		return replaced, ErrHalted
	}

	if s.Worker != nil && s.mempool.Count() > 0 {
		s.Worker.SignalStartMining()
	}

	return replaced, nil
}

// =============================================================================

// replaceChain swaps the ledger for the chain when the ledger still ends at
// the expected block. Mining is cancelled for the duration of the swap.
func (s *State) replaceChain(expectLatest string, expectLength int, chain []database.Block) bool {
	if s.Worker != nil {
		done := s.Worker.SignalCancelMining()
		defer func() {
			s.evHandler("state: replaceChain: signal runMiningOperation to terminate")
			done()
		}()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.db.ReplaceIf(expectLatest, expectLength, chain) {
		return false
	}

	s.persist(PersistRequest{Reset: true, Blocks: chain})

	latest := chain[len(chain)-1]
	s.blockEvent(uint64(len(chain)-1), latest)

	return true
}
