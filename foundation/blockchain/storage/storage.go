// Package storage selects one of the block storage implementations by name.
package storage

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/leveldb"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/pebble"
)

// Set of storage kinds that can be opened.
const (
	KindDisk    = "disk"
	KindPebble  = "pebble"
	KindLevelDB = "leveldb"
	KindMemory  = "memory"
)

// Open constructs the storage identified by kind rooted at path. The path
// is ignored for memory storage.
func Open(kind string, path string) (database.Storage, error) {
	switch kind {
	case KindDisk:
		return disk.New(path)
	case KindPebble:
		return pebble.New(path)
	case KindLevelDB:
		return leveldb.New(path)
	case KindMemory:
		return memory.New()
	}

	return nil, fmt.Errorf("unknown storage %q: expecting %s, %s, %s or %s", kind, KindDisk, KindPebble, KindLevelDB, KindMemory)
}
