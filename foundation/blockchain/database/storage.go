package database

import "errors"

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(number uint64, blockData BlockData) error
	GetBlock(number uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// Rewriter is implemented by storage that can replace its whole content in
// a single step that survives a crash part way through.
type Rewriter interface {
	Rewrite(blocks []BlockData) error
}

// =============================================================================

// ReadAll walks the storage from block number 0 and returns every block
// found in order.
func ReadAll(storage Storage) ([]Block, error) {
	if storage == nil {
		return nil, errors.New("no storage provided")
	}

	var blocks []Block

	iter := storage.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, ToBlock(blockData))
	}

	return blocks, nil
}

// WriteAll resets the storage and writes the chain starting at block
// number 0. Storage implementing Rewriter replaces the chain in one step.
func WriteAll(storage Storage, chain []Block) error {
	if rw, ok := storage.(Rewriter); ok {
		return rw.Rewrite(NewChainData(chain))
	}

	if err := storage.Reset(); err != nil {
		return err
	}

	for i, block := range chain {
		if err := storage.Write(uint64(i), NewBlockData(block)); err != nil {
			return err
		}
	}

	return nil
}
