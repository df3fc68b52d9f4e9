package database

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/digest"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// Block represents a sealed record in the ledger. A block is never changed
// once it has been constructed.
type Block struct {
	Hash      string // Hex encoded digest of the canonical encoding.
	PrevHash  string // Hash of the previous block, or the genesis sentinel.
	TimeStamp int64  // Seconds since epoch captured when mining started.
	Data      []byte // Caller supplied payload with no meaning to the ledger.
	Nonce     uint64 // Value identified to solve the hash solution.
}

// ComputeHash recomputes the hex digest of the block's hashable fields. The
// stored Hash field is not part of the input.
func (b Block) ComputeHash() (string, error) {
	return computeHash(b.PrevHash, b.Data, b.TimeStamp, b.Nonce)
}

// computeHash returns the hex digest of the canonical encoding.
func computeHash(prevHash string, data []byte, timestamp int64, nonce uint64) (string, error) {
	raw, err := sum(prevHash, data, timestamp, nonce)
	if err != nil {
		return "", err
	}

	return digest.ToHex(raw[:]), nil
}

// sum returns the raw digest of the canonical encoding.
func sum(prevHash string, data []byte, timestamp int64, nonce uint64) ([digest.Size]byte, error) {
	enc, err := Encode(prevHash, data, timestamp, nonce)
	if err != nil {
		return [digest.Size]byte{}, err
	}

	return digest.Sum(enc), nil
}

// =============================================================================

// GenesisBlock constructs the first block of every ledger from the
// genesis information.
func GenesisBlock(gen genesis.Genesis) Block {
	return Block{
		Hash:      gen.Hash,
		PrevHash:  genesis.PrevHash,
		TimeStamp: gen.TimeStamp,
		Data:      []byte{},
		Nonce:     gen.Nonce,
	}
}

// =============================================================================

// BlockData represents what is written to storage and sent between nodes.
type BlockData struct {
	Hash      string  `json:"hash"`
	PrevHash  string  `json:"previous_hash"`
	TimeStamp int64   `json:"timestamp"`
	Data      Payload `json:"data"`
	Nonce     uint64  `json:"nonce"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Hash:      block.Hash,
		PrevHash:  block.PrevHash,
		TimeStamp: block.TimeStamp,
		Data:      append(Payload{}, block.Data...),
		Nonce:     block.Nonce,
	}
}

// ToBlock converts a BlockData into a Block.
func ToBlock(blockData BlockData) Block {
	return Block{
		Hash:      blockData.Hash,
		PrevHash:  blockData.PrevHash,
		TimeStamp: blockData.TimeStamp,
		Data:      append([]byte{}, blockData.Data...),
		Nonce:     blockData.Nonce,
	}
}

// ToBlocks converts a sequence of BlockData into blocks.
func ToBlocks(blockData []BlockData) []Block {
	blocks := make([]Block, len(blockData))
	for i, bd := range blockData {
		blocks[i] = ToBlock(bd)
	}
	return blocks
}

// NewChainData converts a sequence of blocks into their serialized form.
func NewChainData(blocks []Block) []BlockData {
	blockData := make([]BlockData, len(blocks))
	for i, block := range blocks {
		blockData[i] = NewBlockData(block)
	}
	return blockData
}
