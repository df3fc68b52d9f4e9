package worker_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/ledger/foundation/blockchain/worker"
	"github.com/ardanlabs/ledger/foundation/identity"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// flaky is a storage that fails the next write when told to.
type flaky struct {
	*memory.Memory
	failNext atomic.Bool
}

func (f *flaky) Write(number uint64, blockData database.BlockData) error {
	if f.failNext.Swap(false) {
		return errors.New("disk full")
	}
	return f.Memory.Write(number, blockData)
}

// waitForLength polls until the ledger reaches the length.
func waitForLength(t *testing.T, st *state.State, length int) {
	t.Helper()

	deadline := time.Now().Add(time.Minute)
	for st.RetrieveChainLength() < length {
		if time.Now().After(deadline) {
			t.Fatalf("\t%s\tShould reach %d blocks, got %d.", failed, length, st.RetrieveChainLength())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMiningAndPersistence(t *testing.T) {
	t.Log("Given the need to mine payloads in the background.")
	{
		mem, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct storage: %v", failed, err)
		}
		strg := flaky{Memory: mem}

		id, err := identity.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct an identity: %v", failed, err)
		}

		st, err := state.New(state.Config{
			Identity: id,
			Host:     "localhost:9080",
			Genesis:  genesis.Default(),
			Storage:  &strg,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
		}

		worker.Run(st, func(v string, args ...any) {})

		t.Log("\tTest 0:\tWhen a write to storage fails.")
		{
			strg.failNext.Store(true)

			if _, err := st.SubmitPayload([]byte("first")); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit: %v", failed, err)
			}
			waitForLength(t, st, 2)
			t.Logf("\t%s\tTest 0:\tShould still mine the block.", success)
		}

		t.Log("\tTest 1:\tWhen the next block is mined.")
		{
			if _, err := st.SubmitPayload([]byte("second")); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to submit: %v", failed, err)
			}
			waitForLength(t, st, 3)
			t.Logf("\t%s\tTest 1:\tShould mine the block.", success)
		}

		t.Log("\tTest 2:\tWhen the node shuts down.")
		{
			if err := st.Shutdown(); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould shut down: %v", failed, err)
			}

			chain := st.ExportChain()
			blocks, err := database.ReadAll(mem)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to read storage: %v", failed, err)
			}

			if len(blocks) != len(chain) {
				t.Fatalf("\t%s\tTest 2:\tShould have %d blocks in storage, got %d.", failed, len(chain), len(blocks))
			}
			for i := range chain {
				if blocks[i].Hash != chain[i].Hash {
					t.Fatalf("\t%s\tTest 2:\tShould match the ledger at block %d.", failed, i)
				}
			}
			t.Logf("\t%s\tTest 2:\tShould recover storage after the failed write.", success)

			if string(chain[1].Data) != "first" || string(chain[2].Data) != "second" {
				t.Fatalf("\t%s\tTest 2:\tShould mine payloads in the order received.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould mine payloads in the order received.", success)
		}
	}
}
