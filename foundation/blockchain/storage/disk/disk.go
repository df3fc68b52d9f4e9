// Package disk implements the ability to read and write blocks to disk
// writing each block to a separate file.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the
// database.Storage interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use. A rewrite interrupted after the old
// chain was moved aside is rolled back.
func New(dbPath string) (*Disk, error) {
	d := Disk{dbPath: dbPath}

	if err := d.recover(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &d, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each new block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write takes the specified database block and stores it on disk in a
// file labeled with the block number.
func (d *Disk) Write(number uint64, blockData database.BlockData) error {
	return writeBlock(d.dbPath, number, blockData)
}

// Rewrite replaces the whole chain on disk. The blocks are written to a
// staging directory which is then swapped with the current one, so a crash
// leaves either the old chain or the new chain and never a part of one.
func (d *Disk) Rewrite(blocks []database.BlockData) error {
	staging := d.dbPath + ".tmp"
	old := d.dbPath + ".old"

	if err := os.RemoveAll(staging); err != nil {
		return err
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return err
	}

	for i, blockData := range blocks {
		if err := writeBlock(staging, uint64(i), blockData); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(old); err != nil {
		return err
	}
	if err := os.Rename(d.dbPath, old); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(staging, d.dbPath); err != nil {
		return err
	}

	return os.RemoveAll(old)
}

// recover puts back the chain moved aside by an interrupted Rewrite and
// removes any staging directory left behind.
func (d *Disk) recover() error {
	old := d.dbPath + ".old"

	if _, err := os.Stat(d.dbPath); errors.Is(err, fs.ErrNotExist) {
		if _, err := os.Stat(old); err == nil {
			if err := os.Rename(old, d.dbPath); err != nil {
				return err
			}
		}
	}

	if err := os.RemoveAll(old); err != nil {
		return err
	}

	return os.RemoveAll(d.dbPath + ".tmp")
}

// GetBlock searches the blockchain on disk to locate and return the
// contents of the specified block by number.
func (d *Disk) GetBlock(number uint64) (database.BlockData, error) {

	// Open the block file for the specified number.
	f, err := os.OpenFile(d.getPath(number), os.O_RDONLY, 0600)
	if err != nil {
		return database.BlockData{}, err
	}
	defer f.Close()

	// Decode the contents of the block.
	var blockData database.BlockData
	if err := json.NewDecoder(f).Decode(&blockData); err != nil {
		return database.BlockData{}, err
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 0.
func (d *Disk) ForEach() database.Iterator {
	return &diskIterator{disk: d}
}

// Reset will clear out the blockchain on disk.
func (d *Disk) Reset() error {
	if err := os.RemoveAll(d.dbPath); err != nil {
		return err
	}

	return os.MkdirAll(d.dbPath, 0755)
}

// getPath forms the path to the specified block.
func (d *Disk) getPath(number uint64) string {
	return blockPath(d.dbPath, number)
}

// blockPath forms the path to the specified block inside the directory.
func blockPath(dir string, number uint64) string {
	name := strconv.FormatUint(number, 10)
	return path.Join(dir, fmt.Sprintf("%s.json", name))
}

// writeBlock stores the block in the directory. The file is written under a
// temporary name and renamed into place so a reader never sees half a block.
func writeBlock(dir string, number uint64, blockData database.BlockData) error {

	// Marshal the block for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(blockData, "", "  ")
	if err != nil {
		return err
	}

	final := blockPath(dir, number)
	tmp := final + ".tmp"

	// Create a new file for this block and name it based on the block number.
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return err
	}

	// Write the new block to disk.
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, final)
}

// =============================================================================

// diskIterator represents the iteration implementation for walking
// through and reading blocks on disk. This implements the database
// Iterator interface.
type diskIterator struct {
	disk    *Disk  // Access to the storage API.
	current uint64 // Current block number being iterated over.
	eoc     bool   // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from disk.
func (di *diskIterator) Next() (database.BlockData, error) {
	if di.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	blockData, err := di.disk.GetBlock(di.current)
	if errors.Is(err, fs.ErrNotExist) {
		di.eoc = true
	}
	di.current++

	return blockData, err
}

// Done returns the end of chain value.
func (di *diskIterator) Done() bool {
	return di.eoc
}
