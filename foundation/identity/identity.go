// Package identity manages the key pair a node uses to identify itself to
// its peers.
package identity

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
)

// Identity represents the node's key pair and the id derived from it.
type Identity struct {
	privateKey *ecdsa.PrivateKey
	nodeID     string
}

// New constructs an identity from a new random key. The key only lives as
// long as the process.
func New() (Identity, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return Identity{}, fmt.Errorf("generating key: %w", err)
	}

	return fromKey(privateKey), nil
}

// Load reads the key stored in the specified file. If the file does not
// exist a new key is generated and saved there so the node keeps the same
// id across restarts.
func Load(path string) (Identity, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err == nil {
		return fromKey(privateKey), nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return Identity{}, fmt.Errorf("loading key %q: %w", path, err)
	}

	id, err := New()
	if err != nil {
		return Identity{}, err
	}

	if err := Save(path, id); err != nil {
		return Identity{}, err
	}

	return id, nil
}

// Save writes the identity's key to the specified file.
func Save(path string, id Identity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	if err := crypto.SaveECDSA(path, id.privateKey); err != nil {
		return fmt.Errorf("saving key %q: %w", path, err)
	}

	return nil
}

// NodeID returns the id the node is known by on the network.
func (id Identity) NodeID() string {
	return id.nodeID
}

// =============================================================================

func fromKey(privateKey *ecdsa.PrivateKey) Identity {
	return Identity{
		privateKey: privateKey,
		nodeID:     crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
	}
}
