// Package state is the core API for the ledger and implements all the
// business rules and processing.
package state

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
	"github.com/ardanlabs/ledger/foundation/identity"
)

// ErrHalted is returned by every operation that changes the ledger while
// the node is halted after an unrecoverable fork.
var ErrHalted = errors.New("node halted: unrecoverable fork, resync required")

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, block sharing and
// persistence.
type Worker interface {
	Shutdown()
	Sync()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareBlock(block database.Block)
	SignalPersist(req PersistRequest)
}

// =============================================================================

// Config represents the configuration required to start
// the ledger node.
type Config struct {
	Identity   identity.Identity
	Host       string
	Genesis    genesis.Genesis
	Storage    database.Storage
	KnownPeers *peer.PeerSet
	EvHandler  EventHandler
}

// State manages the ledger and the collaborators around it.
type State struct {
	mu        sync.Mutex
	nodeID    string
	host      string
	evHandler EventHandler
	halted    atomic.Bool

	knownPeers *peer.PeerSet
	genesis    genesis.Genesis
	mempool    *mempool.Mempool
	storage    database.Storage
	db         *database.Database

	Worker Worker
}

// New constructs a new node state. The genesis literal is verified and any
// chain found in storage is adopted when it is a valid extension of the
// genesis block.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db, err := database.New(cfg.Genesis)
	if err != nil {
		return nil, err
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	state := State{
		nodeID:    cfg.Identity.NodeID(),
		host:      cfg.Host,
		evHandler: ev,

		knownPeers: knownPeers,
		genesis:    cfg.Genesis,
		mempool:    mempool.New(),
		storage:    cfg.Storage,
		db:         db,
	}

	if err := state.replay(); err != nil {
		return nil, err
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Make sure the storage is properly closed.
	defer func() {
		s.storage.Close()
	}()

	// Stop all ledger writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// IsHalted reports whether the node stopped accepting changes after an
// unrecoverable fork.
func (s *State) IsHalted() bool {
	return s.halted.Load()
}

// =============================================================================

// replay loads the chain held in storage and adopts it through fork choice.
// A stored chain that is not rooted at this node's genesis block is an
// error. A stored chain that fails validation is replaced on storage by the
// genesis block.
func (s *State) replay() error {
	stored, err := database.ReadAll(s.storage)
	if err != nil {
		return fmt.Errorf("reading stored chain: %w", err)
	}

	if len(stored) == 0 {
		s.evHandler("state: replay: storage empty: writing genesis")
		return database.WriteAll(s.storage, s.db.Copy())
	}

	if stored[0].Hash != s.db.Genesis().Hash {
		return fmt.Errorf("stored chain genesis %s does not match %s", stored[0].Hash, s.db.Genesis().Hash)
	}

	// The genesis block always comes from the verified literal.
	stored[0] = s.db.Genesis()

	if err := database.ValidateChain(stored, s.db.Difficulty()); err != nil {
		s.evHandler("state: replay: WARNING: stored chain invalid: %s: resetting storage", err)
		return database.WriteAll(s.storage, s.db.Copy())
	}

	if err := s.db.Replace(stored); err != nil {
		return err
	}

	s.evHandler("state: replay: adopted stored chain: blocks[%d]: latest[%s]", len(stored), stored[len(stored)-1].Hash)

	return nil
}

// halt switches the node into halted mode.
func (s *State) halt(err error) {
	if s.halted.CompareAndSwap(false, true) {
		s.evHandler("state: HALTED: %s", err)
		s.evHandler(`viewer: halted: {"error":%q}`, err.Error())
	}
}

// resume clears halted mode.
func (s *State) resume() {
	if s.halted.CompareAndSwap(true, false) {
		s.evHandler("state: RESUMED")
		s.evHandler(`viewer: resumed: {}`)
	}
}
