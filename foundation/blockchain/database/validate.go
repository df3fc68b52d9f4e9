package database

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/digest"
)

// Set of reasons a block can be rejected. Every validation error wraps
// exactly one of these.
var (
	ErrLinkage    = errors.New("previous hash does not match parent block")
	ErrDifficulty = errors.New("block hash does not satisfy the difficulty prefix")
	ErrDigest     = errors.New("block hash does not match recomputed digest")
)

// ValidateBlock checks a block against its claimed predecessor. The checks
// run in order and the first failure is returned: linkage, difficulty of the
// stored hash, then recomputation of the digest. A nil error means the block
// is valid. The function has no side effects.
func ValidateBlock(block Block, previousBlock Block, difficulty string) error {
	if block.PrevHash != previousBlock.Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrLinkage, block.PrevHash, previousBlock.Hash)
	}

	raw, err := digest.FromHex(block.Hash)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDifficulty, err)
	}

	if !digest.HasPrefix(raw, difficulty) {
		return fmt.Errorf("%w: hash %s, prefix %q", ErrDifficulty, block.Hash, difficulty)
	}

	hash, err := block.ComputeHash()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDigest, err)
	}

	if hash != block.Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrDigest, block.Hash, hash)
	}

	return nil
}

// IsBlockValid is the boolean form of ValidateBlock.
func IsBlockValid(block Block, previousBlock Block, difficulty string) bool {
	return ValidateBlock(block, previousBlock, difficulty) == nil
}

// ValidateChain checks every adjacent pair of blocks in the chain. Chains of
// zero or one block are valid. The error names the index of the first
// block that failed.
func ValidateChain(chain []Block, difficulty string) error {
	for i := 1; i < len(chain); i++ {
		if err := ValidateBlock(chain[i], chain[i-1], difficulty); err != nil {
			return fmt.Errorf("blk[%d]: %w", i, err)
		}
	}

	return nil
}

// IsChainValid is the boolean form of ValidateChain.
func IsChainValid(chain []Block, difficulty string) bool {
	return ValidateChain(chain, difficulty) == nil
}

// Reason returns which of ErrLinkage, ErrDifficulty or ErrDigest caused the
// error, or nil if the error is not a validation failure.
func Reason(err error) error {
	for _, reason := range []error{ErrLinkage, ErrDifficulty, ErrDigest} {
		if errors.Is(err, reason) {
			return reason
		}
	}

	return nil
}
