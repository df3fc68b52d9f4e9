// Package pebble implements the ability to read and write blocks to a
// Pebble key/value store.
package pebble

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/cockroachdb/pebble"
)

// prefixBlocks simulates a column family for the blocks keyed by number.
const prefixBlocks = "blk:"

// ErrNotFound is returned when a block number is not in the store.
var ErrNotFound = errors.New("block not found")

// Pebble represents the serialization implementation for reading and storing
// blocks in Pebble. This implements the database.Storage interface.
type Pebble struct {
	db *pebble.DB
}

// New opens or creates the Pebble database at the specified path.
func New(path string) (*Pebble, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MaxOpenFiles: 500,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Pebble{db: db}, nil
}

// Close closes the database.
func (p *Pebble) Close() error {
	return p.db.Close()
}

// Write stores the block under its number.
func (p *Pebble) Write(number uint64, blockData database.BlockData) error {
	data, err := json.Marshal(blockData)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}

	return p.db.Set(blockKey(number), data, pebble.Sync)
}

// GetBlock returns the contents of the specified block by number.
func (p *Pebble) GetBlock(number uint64) (database.BlockData, error) {
	value, closer, err := p.db.Get(blockKey(number))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return database.BlockData{}, fmt.Errorf("%w: %d", ErrNotFound, number)
		}
		return database.BlockData{}, err
	}
	defer closer.Close()

	// The value is only valid until closer.Close() and Unmarshal copies
	// everything it keeps.
	var blockData database.BlockData
	if err := json.Unmarshal(value, &blockData); err != nil {
		return database.BlockData{}, fmt.Errorf("failed to unmarshal block %d: %w", number, err)
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 0.
func (p *Pebble) ForEach() database.Iterator {
	return &pebbleIterator{store: p}
}

// Reset deletes every stored block.
func (p *Pebble) Reset() error {
	start := []byte(prefixBlocks)
	end := []byte(prefixBlocks)
	end[len(end)-1]++

	return p.db.DeleteRange(start, end, pebble.Sync)
}

// blockKey creates the key for a block number. Big endian keeps the keys
// sorted by number.
func blockKey(number uint64) []byte {
	key := make([]byte, len(prefixBlocks)+8)
	copy(key, prefixBlocks)
	binary.BigEndian.PutUint64(key[len(prefixBlocks):], number)
	return key
}

// =============================================================================

// pebbleIterator walks the stored blocks by number until the first
// missing one.
type pebbleIterator struct {
	store   *Pebble
	current uint64
	eoc     bool
}

// Next retrieves the next block.
func (pi *pebbleIterator) Next() (database.BlockData, error) {
	if pi.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	blockData, err := pi.store.GetBlock(pi.current)
	if errors.Is(err, ErrNotFound) {
		pi.eoc = true
	}
	pi.current++

	return blockData, err
}

// Done returns the end of chain value.
func (pi *pebbleIterator) Done() bool {
	return pi.eoc
}
