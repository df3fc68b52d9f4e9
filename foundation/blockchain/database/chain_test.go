package database_test

import (
	"context"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// noEvents discards mining progress events.
func noEvents(v string, args ...any) {}

// mineChain returns a valid chain of the specified length starting at the
// genesis block. The tag is mixed into every payload so chains mined with
// different tags diverge after the genesis block.
func mineChain(t *testing.T, length int, tag string) []database.Block {
	t.Helper()

	gen := genesis.Default()
	chain := []database.Block{database.GenesisBlock(gen)}

	for i := 1; i < length; i++ {
		prev := chain[len(chain)-1]
		data := []byte(tag + string(rune('a'+i)))
		timestamp := gen.TimeStamp + int64(i)

		nonce, hash, err := database.Mine(context.Background(), prev.Hash, data, timestamp, gen.Difficulty, noEvents)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine block %d: %v", failed, i, err)
		}

		chain = append(chain, database.Block{
			Hash:      hash,
			PrevHash:  prev.Hash,
			TimeStamp: timestamp,
			Data:      data,
			Nonce:     nonce,
		})
	}

	return chain
}

// clone copies a chain so a test can tamper with it.
func clone(chain []database.Block) []database.Block {
	return append([]database.Block(nil), chain...)
}
