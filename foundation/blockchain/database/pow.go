package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/digest"
)

// ErrMiningCancelled is returned when a mining operation is abandoned
// before a solution is found.
var ErrMiningCancelled = errors.New("mining cancelled")

const (
	// progressInterval is the number of attempts between progress events.
	progressInterval = 100_000

	// cancelInterval is the number of attempts between checks of the
	// context for cancellation.
	cancelInterval = 1_000
)

// =============================================================================

// POW constructs a new Block on top of the previous block and performs the
// work to find a nonce that solves the cryptographic POW puzzle.
func POW(ctx context.Context, prevBlock Block, data []byte, difficulty string, evHandler func(v string, args ...any)) (Block, error) {

	// The timestamp is captured once before the search starts.
	timestamp := time.Now().UTC().Unix()

	nonce, hash, err := Mine(ctx, prevBlock.Hash, data, timestamp, difficulty, evHandler)
	if err != nil {
		return Block{}, err
	}

	nb := Block{
		Hash:      hash,
		PrevHash:  prevBlock.Hash,
		TimeStamp: timestamp,
		Data:      append([]byte{}, data...),
		Nonce:     nonce,
	}

	return nb, nil
}

// Mine searches for the first nonce, starting at zero, whose digest has a
// binary string beginning with the difficulty prefix. There is no upper
// bound on the search. The context is checked every cancelInterval attempts.
func Mine(ctx context.Context, prevHash string, data []byte, timestamp int64, difficulty string, evHandler func(v string, args ...any)) (uint64, string, error) {
	evHandler("database: Mine: MINING: started: prevBlk[%s]", prevHash)
	defer evHandler("database: Mine: MINING: completed")

	for nonce := uint64(0); ; nonce++ {
		if nonce%progressInterval == 0 {
			evHandler("database: Mine: MINING: nonce[%d]", nonce)
		}

		if nonce%cancelInterval == 0 {
			select {
			case <-ctx.Done():
				evHandler("database: Mine: MINING: CANCELLED: nonce[%d]", nonce)
				return 0, "", fmt.Errorf("%w: %w", ErrMiningCancelled, ctx.Err())
			default:
			}
		}

		raw, err := sum(prevHash, data, timestamp, nonce)
		if err != nil {
			return 0, "", err
		}

		if !digest.HasPrefix(raw[:], difficulty) {
			continue
		}

		hash := digest.ToHex(raw[:])
		evHandler("database: Mine: MINING: SOLVED: nonce[%d]: hash[%s]: binary[%s]", nonce, hash, digest.ToBinaryString(raw[:]))

		return nonce, hash, nil
	}
}
