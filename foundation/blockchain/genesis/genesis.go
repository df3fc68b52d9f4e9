// Package genesis maintains access to the genesis block literal.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PrevHash is the sentinel stored as the previous hash of the first block.
const PrevHash = "genesis"

// These values describe the genesis block every ledger starts from. The hash
// is checked against a fresh recomputation at startup.
const (
	Hash       = "00008350fa0b44d2c18269c3807fe1e104b27c6f463833ca932068b4398f2f0d"
	TimeStamp  = 1640995200
	Nonce      = 86014
	Difficulty = "00"
)

// Genesis represents the genesis block and the difficulty of the chain.
type Genesis struct {
	Hash       string `json:"hash" yaml:"hash"`             // Hex digest of the genesis block.
	TimeStamp  int64  `json:"timestamp" yaml:"timestamp"`   // Seconds since epoch the genesis block was sealed.
	Nonce      uint64 `json:"nonce" yaml:"nonce"`           // Value that solved the genesis hash.
	Difficulty string `json:"difficulty" yaml:"difficulty"` // Required prefix of every block's binary hash string.
}

// =============================================================================

// Default returns the built in genesis information.
func Default() Genesis {
	return Genesis{
		Hash:       Hash,
		TimeStamp:  TimeStamp,
		Nonce:      Nonce,
		Difficulty: Difficulty,
	}
}

// Load opens and consumes a genesis file. Files ending in .yaml or .yml are
// read as YAML, everything else as JSON. Fields missing from the file keep
// their built in defaults.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &genesis); err != nil {
			return Genesis{}, fmt.Errorf("unmarshal yaml genesis: %w", err)
		}

	default:
		if err := json.Unmarshal(content, &genesis); err != nil {
			return Genesis{}, fmt.Errorf("unmarshal json genesis: %w", err)
		}
	}

	return genesis, nil
}
