// Package database handles all the lower level support for maintaining the
// ledger: sealing blocks, validating them and holding the accepted chain.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/digest"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// ErrGenesisDrift is returned when the genesis literal does not match a
// fresh recomputation of its own fields.
var ErrGenesisDrift = errors.New("genesis block does not match recomputation")

// ErrForeignGenesis is returned when a chain does not start with this
// ledger's genesis block.
var ErrForeignGenesis = errors.New("chain is not rooted at the genesis block")

// Database manages the ordered sequence of accepted blocks. Index 0 is always
// the genesis block. Blocks are only appended, or the whole sequence is
// replaced at once.
type Database struct {
	mu         sync.RWMutex
	genesis    Block
	difficulty string
	blocks     []Block
}

// New constructs a ledger holding only the genesis block. The genesis
// literal is checked against recomputation before it is accepted.
func New(gen genesis.Genesis) (*Database, error) {
	block := GenesisBlock(gen)

	if err := VerifyGenesis(block, gen.Difficulty); err != nil {
		return nil, err
	}

	db := Database{
		genesis:    block,
		difficulty: gen.Difficulty,
		blocks:     []Block{block},
	}

	return &db, nil
}

// VerifyGenesis recomputes the genesis block's digest and checks it matches
// the stored hash and satisfies the difficulty prefix.
func VerifyGenesis(block Block, difficulty string) error {
	hash, err := block.ComputeHash()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGenesisDrift, err)
	}

	if hash != block.Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrGenesisDrift, block.Hash, hash)
	}

	raw, err := digest.FromHex(block.Hash)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGenesisDrift, err)
	}

	if !digest.HasPrefix(raw, difficulty) {
		return fmt.Errorf("%w: hash %s, prefix %q", ErrGenesisDrift, block.Hash, difficulty)
	}

	return nil
}

// Difficulty returns the difficulty prefix blocks must satisfy.
func (db *Database) Difficulty() string {
	return db.difficulty
}

// Genesis returns the genesis block.
func (db *Database) Genesis() Block {
	return db.genesis
}

// ValidateRoot checks the first block of the chain is this ledger's genesis
// block. Every field is compared since the genesis block is never validated
// against a predecessor.
func (db *Database) ValidateRoot(chain []Block) error {
	if len(chain) == 0 {
		return errors.New("chain must contain at least one block")
	}

	root := chain[0]
	if root.Hash != db.genesis.Hash ||
		root.PrevHash != db.genesis.PrevHash ||
		root.TimeStamp != db.genesis.TimeStamp ||
		root.Nonce != db.genesis.Nonce ||
		len(root.Data) != 0 {
		return fmt.Errorf("%w: got %s, exp %s", ErrForeignGenesis, root.Hash, db.genesis.Hash)
	}

	return nil
}

// TryAddBlock validates the block against the current latest block and
// appends it on success, returning the block's index in the ledger. On
// failure the ledger is unchanged and the validation error is returned.
func (db *Database) TryAddBlock(block Block) (uint64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	latest := db.blocks[len(db.blocks)-1]
	if err := ValidateBlock(block, latest, db.difficulty); err != nil {
		return 0, err
	}

	db.blocks = append(db.blocks, block)

	return uint64(len(db.blocks) - 1), nil
}

// ReplaceIf swaps the whole chain for the specified one, but only if the
// ledger still has the expected length and latest hash. This lets a caller
// decide on a replacement without holding the lock and retry when the
// ledger advanced underneath the decision. A chain not rooted at the genesis
// block is never accepted.
func (db *Database) ReplaceIf(expectLatest string, expectLength int, chain []Block) bool {
	if db.ValidateRoot(chain) != nil {
		return false
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if len(db.blocks) != expectLength || db.blocks[len(db.blocks)-1].Hash != expectLatest {
		return false
	}

	db.blocks = append([]Block(nil), chain...)

	return true
}

// Replace swaps the whole chain for the specified one without comparing it
// to the current chain. The chain must still be rooted at the genesis block.
func (db *Database) Replace(chain []Block) error {
	if err := db.ValidateRoot(chain); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.blocks = append([]Block(nil), chain...)

	return nil
}

// LatestBlock returns the latest block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1]
}

// Length returns the number of blocks in the ledger.
func (db *Database) Length() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// Copy returns a snapshot of the chain.
func (db *Database) Copy() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return append([]Block(nil), db.blocks...)
}
