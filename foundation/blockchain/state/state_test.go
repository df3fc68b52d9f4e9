package state_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/ledger/foundation/identity"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func ifErrFailNow(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("\t%s\tShould not get an error: %v", failed, err)
	}
}

// newState constructs a node state over the storage with no worker, so
// persistence happens synchronously.
func newState(t *testing.T, strg database.Storage) *state.State {
	t.Helper()

	id, err := identity.New()
	ifErrFailNow(t, err)

	st, err := state.New(state.Config{
		Identity:  id,
		Host:      "localhost:9080",
		Genesis:   genesis.Default(),
		Storage:   strg,
		EvHandler: func(v string, args ...any) { t.Logf(v, args...) },
	})
	ifErrFailNow(t, err)

	return st
}

// extend mines blocks carrying the payloads on top of the chain.
func extend(t *testing.T, chain []database.Block, payloads ...string) []database.Block {
	t.Helper()

	chain = append([]database.Block(nil), chain...)
	for _, p := range payloads {
		block, err := database.POW(context.Background(), chain[len(chain)-1], []byte(p), genesis.Difficulty, func(string, ...any) {})
		ifErrFailNow(t, err)
		chain = append(chain, block)
	}

	return chain
}

// genesisChain returns the chain holding only the genesis block.
func genesisChain() []database.Block {
	return []database.Block{database.GenesisBlock(genesis.Default())}
}

// stored returns the hashes of the blocks held in storage.
func stored(t *testing.T, strg database.Storage) []string {
	t.Helper()

	blocks, err := database.ReadAll(strg)
	ifErrFailNow(t, err)

	hashes := make([]string, len(blocks))
	for i, b := range blocks {
		hashes[i] = b.Hash
	}
	return hashes
}

func sameHashes(chain []database.Block, hashes []string) bool {
	if len(chain) != len(hashes) {
		return false
	}
	for i := range chain {
		if chain[i].Hash != hashes[i] {
			return false
		}
	}
	return true
}

// =============================================================================

func TestMineNewBlock(t *testing.T) {
	t.Log("Given the need to mine submitted payloads.")
	{
		strg, err := memory.New()
		ifErrFailNow(t, err)
		st := newState(t, strg)

		t.Log("\tTest 0:\tWhen there is nothing to mine.")
		{
			_, err := st.MineNewBlock(context.Background())
			if !errors.Is(err, state.ErrNoPayloads) {
				t.Fatalf("\t%s\tTest 0:\tShould get back no payloads, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get back no payloads.", success)
		}

		t.Log("\tTest 1:\tWhen mining is cancelled.")
		{
			_, err := st.SubmitPayload([]byte("hello"))
			ifErrFailNow(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := st.MineNewBlock(ctx); !errors.Is(err, database.ErrMiningCancelled) {
				t.Fatalf("\t%s\tTest 1:\tShould get back a cancelled error, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get back a cancelled error.", success)

			if st.RetrieveMempoolLength() != 1 || st.RetrieveChainLength() != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould leave the payload queued and the ledger unchanged.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould leave the payload queued and the ledger unchanged.", success)
		}

		t.Log("\tTest 2:\tWhen mining the queued payload.")
		{
			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to mine the payload: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould be able to mine the payload.", success)

			if string(block.Data) != "hello" || block.PrevHash != genesis.Hash {
				t.Fatalf("\t%s\tTest 2:\tShould seal the payload on the genesis block, got %+v.", failed, block)
			}
			t.Logf("\t%s\tTest 2:\tShould seal the payload on the genesis block.", success)

			if st.RetrieveMempoolLength() != 0 || st.RetrieveLatestBlock().Hash != block.Hash {
				t.Fatalf("\t%s\tTest 2:\tShould append the block and remove the payload.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould append the block and remove the payload.", success)

			if got := stored(t, strg); len(got) != 2 || got[1] != block.Hash {
				t.Fatalf("\t%s\tTest 2:\tShould persist the block, got %v.", failed, got)
			}
			t.Logf("\t%s\tTest 2:\tShould persist the block.", success)
		}
	}
}

func TestImportBlock(t *testing.T) {
	t.Log("Given the need to accept blocks from peers.")
	{
		strg, err := memory.New()
		ifErrFailNow(t, err)
		st := newState(t, strg)

		chain := extend(t, genesisChain(), "a", "b")

		t.Log("\tTest 0:\tWhen the block extends the latest block.")
		{
			if err := st.ImportBlock(database.NewBlockData(chain[1])); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the block: %v", failed, err)
			}
			if st.RetrieveLatestBlock().Hash != chain[1].Hash {
				t.Fatalf("\t%s\tTest 0:\tShould make it the latest block.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the block.", success)
		}

		t.Log("\tTest 1:\tWhen the block does not extend the latest block.")
		{
			err := st.ImportBlock(database.NewBlockData(chain[1]))
			if !errors.Is(err, database.ErrLinkage) {
				t.Fatalf("\t%s\tTest 1:\tShould reject with a linkage error, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject with a linkage error.", success)
		}

		t.Log("\tTest 2:\tWhen the block has been tampered with.")
		{
			bd := database.NewBlockData(chain[2])
			bd.Data = database.Payload("tampered")

			if err := st.ImportBlock(bd); !errors.Is(err, database.ErrDigest) {
				t.Fatalf("\t%s\tTest 2:\tShould reject with a digest error, got %v.", failed, err)
			}
			if st.RetrieveChainLength() != 2 {
				t.Fatalf("\t%s\tTest 2:\tShould leave the ledger unchanged.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould reject with a digest error.", success)
		}

		t.Log("\tTest 3:\tWhen checking storage.")
		{
			if !sameHashes(chain[:2], stored(t, strg)) {
				t.Fatalf("\t%s\tTest 3:\tShould persist the accepted blocks only.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould persist the accepted blocks only.", success)
		}
	}
}

func TestImportChain(t *testing.T) {
	t.Log("Given the need to resolve forks with peers.")
	{
		strg, err := memory.New()
		ifErrFailNow(t, err)
		st := newState(t, strg)

		local := extend(t, genesisChain(), "local")
		ifErrFailNow(t, st.ImportBlock(database.NewBlockData(local[1])))

		t.Log("\tTest 0:\tWhen the remote chain is not longer.")
		{
			remote := extend(t, genesisChain(), "remote")

			replaced, err := st.ImportChain(database.NewChainData(remote))
			if err != nil || replaced {
				t.Fatalf("\t%s\tTest 0:\tShould keep the local chain on a tie: %v", failed, err)
			}
			if st.RetrieveLatestBlock().Hash != local[1].Hash {
				t.Fatalf("\t%s\tTest 0:\tShould still end at the local block.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould keep the local chain on a tie.", success)
		}

		t.Log("\tTest 1:\tWhen the remote chain is longer.")
		{
			remote := extend(t, genesisChain(), "r1", "r2")

			replaced, err := st.ImportChain(database.NewChainData(remote))
			if err != nil || !replaced {
				t.Fatalf("\t%s\tTest 1:\tShould adopt the remote chain: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould adopt the remote chain.", success)

			if !sameHashes(remote, stored(t, strg)) {
				t.Fatalf("\t%s\tTest 1:\tShould rewrite storage with the remote chain.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould rewrite storage with the remote chain.", success)

			exported := st.ExportChain()
			if len(exported) != 3 || exported[2].Hash != remote[2].Hash {
				t.Fatalf("\t%s\tTest 1:\tShould export the remote chain.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould export the remote chain.", success)
		}

		t.Log("\tTest 2:\tWhen the remote chain is longer but invalid.")
		{
			remote := extend(t, database.ToBlocks(st.ExportChain()), "x")
			remote[3].Data = []byte("tampered")

			replaced, err := st.ImportChain(database.NewChainData(remote))
			if err != nil || replaced {
				t.Fatalf("\t%s\tTest 2:\tShould keep the local chain: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould keep the local chain.", success)
		}

		t.Log("\tTest 3:\tWhen the remote chain is empty.")
		{
			if _, err := st.ImportChain(nil); err == nil {
				t.Fatalf("\t%s\tTest 3:\tShould reject an empty chain.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould reject an empty chain.", success)
		}

		t.Log("\tTest 4:\tWhen the remote chain is longer but rooted at another genesis block.")
		{
			before := st.ExportChain()

			root := database.Block{Hash: "attacker", PrevHash: genesis.PrevHash, Data: []byte{}}
			remote := extend(t, []database.Block{root}, "f1", "f2", "f3", "f4")

			replaced, err := st.ImportChain(database.NewChainData(remote))
			if !errors.Is(err, database.ErrForeignGenesis) || replaced {
				t.Fatalf("\t%s\tTest 4:\tShould reject the chain with a foreign genesis error, got replaced[%v] %v.", failed, replaced, err)
			}
			t.Logf("\t%s\tTest 4:\tShould reject the chain with a foreign genesis error.", success)

			if st.IsHalted() {
				t.Fatalf("\t%s\tTest 4:\tShould not halt while the local chain is valid.", failed)
			}
			after := st.ExportChain()
			if len(after) != len(before) || after[0].Hash != genesis.Hash || after[len(after)-1].Hash != before[len(before)-1].Hash {
				t.Fatalf("\t%s\tTest 4:\tShould leave the ledger unchanged.", failed)
			}
			t.Logf("\t%s\tTest 4:\tShould leave the ledger unchanged.", success)

			if got := stored(t, strg); len(got) != len(before) || got[0] != genesis.Hash {
				t.Fatalf("\t%s\tTest 4:\tShould leave storage unchanged.", failed)
			}
			t.Logf("\t%s\tTest 4:\tShould leave storage unchanged.", success)

			restarted := newState(t, strg)
			if restarted.RetrieveChainLength() != len(before) {
				t.Fatalf("\t%s\tTest 4:\tShould restart from the same storage.", failed)
			}
			t.Logf("\t%s\tTest 4:\tShould restart from the same storage.", success)
		}

		t.Log("\tTest 5:\tWhen the genesis block is forged with the real hash.")
		{
			remote := extend(t, database.ToBlocks(st.ExportChain()), "g1", "g2")
			remote[0].Nonce++

			if _, err := st.ImportChain(database.NewChainData(remote)); !errors.Is(err, database.ErrForeignGenesis) {
				t.Fatalf("\t%s\tTest 5:\tShould reject the forged genesis block, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 5:\tShould reject the forged genesis block.", success)
		}
	}
}

func TestImportForeignChainWhileInvalid(t *testing.T) {
	t.Log("Given the need to reject chains rooted at another genesis block.")
	{
		strg, err := memory.New()
		ifErrFailNow(t, err)
		st := newState(t, strg)

		broken := extend(t, genesisChain(), "a")
		broken[1].Data = []byte("tampered")
		ifErrFailNow(t, state.SetLedger(st, broken))

		t.Log("\tTest 0:\tWhen the local chain is invalid and the remote chain is foreign.")
		{
			root := database.Block{Hash: "attacker", PrevHash: genesis.PrevHash, Data: []byte{}}
			remote := extend(t, []database.Block{root}, "b", "c")

			_, err := st.ImportChain(database.NewChainData(remote))
			if !errors.Is(err, database.ErrUnrecoverableFork) || !errors.Is(err, database.ErrForeignGenesis) {
				t.Fatalf("\t%s\tTest 0:\tShould get an unrecoverable fork error naming the foreign genesis, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get an unrecoverable fork error naming the foreign genesis.", success)

			if !st.IsHalted() {
				t.Fatalf("\t%s\tTest 0:\tShould halt the node.", failed)
			}
			if st.ExportChain()[0].Hash != genesis.Hash {
				t.Fatalf("\t%s\tTest 0:\tShould keep the genesis block at index 0.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould halt the node and keep the genesis block.", success)
		}
	}
}

func TestHalt(t *testing.T) {
	t.Log("Given the need to stop after an unrecoverable fork.")
	{
		strg, err := memory.New()
		ifErrFailNow(t, err)
		st := newState(t, strg)

		broken := extend(t, genesisChain(), "a")
		broken[1].Data = []byte("tampered")
		ifErrFailNow(t, state.SetLedger(st, broken))

		t.Log("\tTest 0:\tWhen both chains are invalid.")
		{
			remote := extend(t, genesisChain(), "b", "c")
			remote[2].PrevHash = "abc"

			_, err := st.ImportChain(database.NewChainData(remote))
			if !errors.Is(err, database.ErrUnrecoverableFork) {
				t.Fatalf("\t%s\tTest 0:\tShould get an unrecoverable fork error, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get an unrecoverable fork error.", success)

			if !st.IsHalted() {
				t.Fatalf("\t%s\tTest 0:\tShould halt the node.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould halt the node.", success)
		}

		t.Log("\tTest 1:\tWhen changes are attempted while halted.")
		{
			if _, err := st.SubmitPayload([]byte("x")); !errors.Is(err, state.ErrHalted) {
				t.Fatalf("\t%s\tTest 1:\tShould refuse payloads, got %v.", failed, err)
			}
			if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, state.ErrHalted) {
				t.Fatalf("\t%s\tTest 1:\tShould refuse to mine, got %v.", failed, err)
			}
			block := extend(t, genesisChain(), "d")[1]
			if err := st.ImportBlock(database.NewBlockData(block)); !errors.Is(err, state.ErrHalted) {
				t.Fatalf("\t%s\tTest 1:\tShould refuse blocks, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould refuse every change.", success)

			if len(st.ExportChain()) != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould still export the chain.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould still export the chain.", success)
		}

		t.Log("\tTest 2:\tWhen a valid chain arrives.")
		{
			remote := extend(t, genesisChain(), "e")

			replaced, err := st.ImportChain(database.NewChainData(remote))
			if err != nil || !replaced {
				t.Fatalf("\t%s\tTest 2:\tShould adopt the valid chain: %v", failed, err)
			}
			if st.IsHalted() {
				t.Fatalf("\t%s\tTest 2:\tShould leave halted mode.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould adopt the valid chain and leave halted mode.", success)

			if _, err := st.SubmitPayload([]byte("x")); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould accept payloads again: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould accept payloads again.", success)
		}
	}
}

func TestReplay(t *testing.T) {
	t.Log("Given the need to restart from storage.")
	{
		chain := extend(t, genesisChain(), "a", "b")

		t.Log("\tTest 0:\tWhen storage holds a valid chain.")
		{
			strg, err := memory.New()
			ifErrFailNow(t, err)
			ifErrFailNow(t, database.WriteAll(strg, chain))

			st := newState(t, strg)
			if st.RetrieveChainLength() != 3 || st.RetrieveLatestBlock().Hash != chain[2].Hash {
				t.Fatalf("\t%s\tTest 0:\tShould adopt the stored chain.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould adopt the stored chain.", success)
		}

		t.Log("\tTest 1:\tWhen storage holds an invalid chain.")
		{
			bad := append([]database.Block(nil), chain...)
			bad[2].Nonce++

			strg, err := memory.New()
			ifErrFailNow(t, err)
			ifErrFailNow(t, database.WriteAll(strg, bad))

			st := newState(t, strg)
			if st.RetrieveChainLength() != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould start from the genesis block.", failed)
			}
			if got := stored(t, strg); len(got) != 1 || got[0] != genesis.Hash {
				t.Fatalf("\t%s\tTest 1:\tShould reset storage, got %v.", failed, got)
			}
			t.Logf("\t%s\tTest 1:\tShould start from the genesis block and reset storage.", success)
		}

		t.Log("\tTest 2:\tWhen storage holds a chain with a different genesis.")
		{
			other := append([]database.Block(nil), chain...)
			other[0].Hash = "00ff"

			strg, err := memory.New()
			ifErrFailNow(t, err)
			ifErrFailNow(t, database.WriteAll(strg, other))

			id, err := identity.New()
			ifErrFailNow(t, err)

			_, err = state.New(state.Config{Identity: id, Genesis: genesis.Default(), Storage: strg})
			if err == nil {
				t.Fatalf("\t%s\tTest 2:\tShould refuse to start.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould refuse to start.", success)
		}
	}
}

// =============================================================================

// recorder is a state.Worker that records the signals it receives.
type recorder struct {
	st       *state.State
	cancels  int
	released int
	mining   int
	shared   []database.Block
}

func (r *recorder) Shutdown()                             {}
func (r *recorder) Sync()                                 {}
func (r *recorder) SignalStartMining()                    { r.mining++ }
func (r *recorder) SignalShareBlock(block database.Block) { r.shared = append(r.shared, block) }

func (r *recorder) SignalCancelMining() (done func()) {
	r.cancels++
	return func() { r.released++ }
}

func (r *recorder) SignalPersist(req state.PersistRequest) {
	if err := r.st.Persist(req); err != nil {
		panic(fmt.Sprintf("persist: %s", err))
	}
}

func TestWorkerSignals(t *testing.T) {
	t.Log("Given the need to coordinate with the worker.")
	{
		strg, err := memory.New()
		ifErrFailNow(t, err)
		st := newState(t, strg)

		rec := recorder{st: st}
		st.Worker = &rec

		chain := extend(t, genesisChain(), "a", "b")

		t.Log("\tTest 0:\tWhen a payload is submitted.")
		{
			_, err := st.SubmitPayload([]byte("x"))
			ifErrFailNow(t, err)

			if rec.mining != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould signal mining, got %d.", failed, rec.mining)
			}
			t.Logf("\t%s\tTest 0:\tShould signal mining.", success)
		}

		t.Log("\tTest 1:\tWhen a block is rejected.")
		{
			if err := st.ImportBlock(database.NewBlockData(chain[2])); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould reject the block.", failed)
			}
			if rec.cancels != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould not cancel mining.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not cancel mining.", success)
		}

		t.Log("\tTest 2:\tWhen a block is accepted.")
		{
			ifErrFailNow(t, st.ImportBlock(database.NewBlockData(chain[1])))

			if rec.cancels != 1 || rec.released != 1 {
				t.Fatalf("\t%s\tTest 2:\tShould cancel and release mining, got %d/%d.", failed, rec.cancels, rec.released)
			}
			t.Logf("\t%s\tTest 2:\tShould cancel and release mining.", success)

			if !sameHashes(chain[:2], stored(t, strg)) {
				t.Fatalf("\t%s\tTest 2:\tShould persist through the worker.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould persist through the worker.", success)
		}

		t.Log("\tTest 3:\tWhen a longer chain is imported.")
		{
			remote := extend(t, genesisChain(), "c", "d", "e")

			replaced, err := st.ImportChain(database.NewChainData(remote))
			if err != nil || !replaced {
				t.Fatalf("\t%s\tTest 3:\tShould adopt the chain: %v", failed, err)
			}
			if rec.cancels != 2 || rec.released != 2 {
				t.Fatalf("\t%s\tTest 3:\tShould cancel and release mining around the swap, got %d/%d.", failed, rec.cancels, rec.released)
			}
			t.Logf("\t%s\tTest 3:\tShould cancel and release mining around the swap.", success)

			if !sameHashes(remote, stored(t, strg)) {
				t.Fatalf("\t%s\tTest 3:\tShould rewrite storage.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould rewrite storage.", success)
		}
	}
}
