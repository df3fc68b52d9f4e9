// Package worker implements mining, peer updates, block sharing and
// persistence for the ledger.
package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
)

// peerUpdateInterval represents the interval of finding new peer nodes
// and pulling longer chains from them.
const peerUpdateInterval = time.Minute

// maxBlockShareRequests represents the max number of pending block share
// requests that can be outstanding before share requests are dropped.
const maxBlockShareRequests = 100

// maxPersistRequests represents the max number of pending writes to
// storage. When the queue is full the request is dropped and the next
// write rewrites the whole chain.
const maxPersistRequests = 100

// =============================================================================

// Worker manages the POW workflows for the ledger.
type Worker struct {
	state        *state.State
	wg           sync.WaitGroup
	ticker       *time.Ticker
	shut         chan struct{}
	startMining  chan bool
	cancelMining chan chan struct{}
	blockSharing chan database.Block
	persisting   chan state.PersistRequest
	storageDirty atomic.Bool
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, evHandler state.EventHandler) *Worker {
	return run(st, evHandler, peerUpdateInterval)
}

func run(st *state.State, evHandler state.EventHandler, interval time.Duration) *Worker {
	w := Worker{
		state:        st,
		ticker:       time.NewTicker(interval),
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan chan struct{}, 1),
		blockSharing: make(chan database.Block, maxBlockShareRequests),
		persisting:   make(chan state.PersistRequest, maxPersistRequests),
		evHandler:    evHandler,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.peerOperations,
		w.miningOperations,
		w.shareBlockOperations,
		w.persistOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	// Update this node now that blocks pulled from peers can be persisted.
	w.Sync()

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: signal cancel mining")
	done := w.SignalCancelMining()
	done()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	if w.state.IsHalted() {
		w.evHandler("worker: SignalStartMining: node halted: mining turned off")
		return
	}

	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately. That G will not return until the done function is
// called, so the caller can finish changing the ledger first.
func (w *Worker) SignalCancelMining() (done func()) {
	wait := make(chan struct{})

	select {
	case w.cancelMining <- wait:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")

	return func() { close(wait) }
}

// SignalShareBlock queues a mined block to be sent to the known peers. If
// maxBlockShareRequests signals exist in the channel, the block is dropped.
func (w *Worker) SignalShareBlock(block database.Block) {
	select {
	case w.blockSharing <- block:
		w.evHandler("worker: SignalShareBlock: share block signaled")
	default:
		w.evHandler("worker: SignalShareBlock: queue full, block won't be shared")
	}
}

// SignalPersist queues a ledger change to be written to storage. If the
// queue is full the change is dropped and storage is marked for a full
// rewrite.
func (w *Worker) SignalPersist(req state.PersistRequest) {
	select {
	case w.persisting <- req:
	default:
		w.storageDirty.Store(true)
		w.evHandler("worker: SignalPersist: queue full, storage will be rewritten")
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
