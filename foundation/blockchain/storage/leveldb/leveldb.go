// Package leveldb implements the ability to read and write blocks to a
// LevelDB key/value store.
package leveldb

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/syndtr/goleveldb/leveldb"
	ldbErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// prefixBlocks namespaces the block keys.
const prefixBlocks = "blk:"

// ErrNotFound is returned when a block number is not in the store.
var ErrNotFound = errors.New("block not found")

// LevelDB represents the serialization implementation for reading and storing
// blocks in LevelDB. This implements the database.Storage interface.
type LevelDB struct {
	ldb *leveldb.DB
}

// New opens a leveldb instance defined by the given path. If it doesn't
// exist, it is created. A corrupted database is recovered.
func New(path string) (*LevelDB, error) {
	options := opt.Options{
		Compression: opt.NoCompression,
	}

	ldb, err := leveldb.OpenFile(path, &options)

	var corrupted *ldbErrors.ErrCorrupted
	if errors.As(err, &corrupted) {
		ldb, err = leveldb.RecoverFile(path, &options)
	}

	if err != nil {
		return nil, err
	}

	return &LevelDB{ldb: ldb}, nil
}

// Close closes the leveldb instance.
func (db *LevelDB) Close() error {
	return db.ldb.Close()
}

// Write stores the block under its number.
func (db *LevelDB) Write(number uint64, blockData database.BlockData) error {
	data, err := json.Marshal(blockData)
	if err != nil {
		return err
	}

	return db.ldb.Put(blockKey(number), data, &opt.WriteOptions{Sync: true})
}

// GetBlock returns the contents of the specified block by number.
func (db *LevelDB) GetBlock(number uint64) (database.BlockData, error) {
	data, err := db.ldb.Get(blockKey(number), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return database.BlockData{}, fmt.Errorf("%w: %d", ErrNotFound, number)
		}
		return database.BlockData{}, err
	}

	var blockData database.BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		return database.BlockData{}, err
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 0.
func (db *LevelDB) ForEach() database.Iterator {
	return &levelIterator{store: db}
}

// Reset deletes every stored block in a single batch.
func (db *LevelDB) Reset() error {
	iter := db.ldb.NewIterator(util.BytesPrefix([]byte(prefixBlocks)), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {

		// The key is only valid until the next call to Next.
		key := append([]byte{}, iter.Key()...)
		batch.Delete(key)
	}
	if err := iter.Error(); err != nil {
		return err
	}

	return db.ldb.Write(batch, &opt.WriteOptions{Sync: true})
}

// blockKey creates the key for a block number.
func blockKey(number uint64) []byte {
	key := make([]byte, len(prefixBlocks)+8)
	copy(key, prefixBlocks)
	binary.BigEndian.PutUint64(key[len(prefixBlocks):], number)
	return key
}

// =============================================================================

// levelIterator walks the stored blocks by number until the first
// missing one.
type levelIterator struct {
	store   *LevelDB
	current uint64
	eoc     bool
}

// Next retrieves the next block.
func (li *levelIterator) Next() (database.BlockData, error) {
	if li.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	blockData, err := li.store.GetBlock(li.current)
	if errors.Is(err, ErrNotFound) {
		li.eoc = true
	}
	li.current++

	return blockData, err
}

// Done returns the end of chain value.
func (li *levelIterator) Done() bool {
	return li.eoc
}
