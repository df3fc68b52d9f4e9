package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// ErrNoPayloads is returned when a block is requested to be created
// and there are no payloads waiting in the mempool.
var ErrNoPayloads = errors.New("no payloads in mempool")

// =============================================================================

// SubmitPayload queues data to be sealed into a future block and signals the
// mining operation. It returns the id the payload was queued under.
func (s *State) SubmitPayload(data []byte) (string, error) {
	if s.IsHalted() {
		return "", ErrHalted
	}

	id := s.mempool.Add(data)
	s.evHandler("state: SubmitPayload: queued: id[%s]: bytes[%d]: pending[%d]", id, len(data), s.mempool.Count())

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return id, nil
}

// MineNewBlock attempts to seal the oldest pending payload into a new block
// on top of the latest block. The payload is removed from the mempool only
// when the block is accepted. If mining is cancelled, or the ledger moved on
// while mining, the payload stays queued for the next attempt.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	if s.IsHalted() {
		return database.Block{}, ErrHalted
	}

	s.evHandler("state: MineNewBlock: MINING: check mempool")

	entry, ok := s.mempool.Oldest()
	if !ok {
		return database.Block{}, ErrNoPayloads
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: payload[%s]", entry.ID)

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, s.db.LatestBlock(), entry.Data, s.db.Difficulty(), s.evHandler)
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, fmt.Errorf("%w: %w", database.ErrMiningCancelled, ctx.Err())
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update ledger")

	if err := s.appendBlock(block); err != nil {
		return database.Block{}, err
	}

	s.mempool.Delete(entry.ID)

	return block, nil
}

// =============================================================================

// appendBlock adds the block on top of the latest block and queues it for
// persistence. The ledger is unchanged when the block is rejected.
func (s *State) appendBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsHalted() {
		return ErrHalted
	}

	index, err := s.db.TryAddBlock(block)
	if err != nil {
		return err
	}

	s.persist(PersistRequest{From: index, Blocks: []database.Block{block}})
	s.blockEvent(index, block)

	return nil
}
