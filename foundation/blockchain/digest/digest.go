// Package digest provides the hashing helpers the blockchain uses to seal
// and verify blocks.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Size is the number of raw bytes in a digest.
const Size = sha256.Size

// ErrDecode is returned when a hex string can't be turned back into bytes.
var ErrDecode = errors.New("hex decode failure")

// =============================================================================

// Sum returns the SHA-256 digest of the data.
func Sum(data []byte) [Size]byte {
	return sha256.Sum256(data)
}

// ToHex returns the lower case hex encoding of the raw bytes.
func ToHex(raw []byte) string {
	return hex.EncodeToString(raw)
}

// FromHex decodes a hex string. Non-hex characters or an odd length
// produce an error that wraps ErrDecode.
func FromHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return raw, nil
}

// ToBinaryString concatenates the base-2 digits of every byte with no
// padding. A byte of 2 contributes "10" and a byte of 0 contributes "0".
func ToBinaryString(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw) * 8)

	for _, c := range raw {
		b.WriteString(strconv.FormatUint(uint64(c), 2))
	}

	return b.String()
}

// HasPrefix reports whether the binary string of the raw bytes starts with
// the prefix. Only as many bytes as needed to cover the prefix are rendered.
func HasPrefix(raw []byte, prefix string) bool {
	if prefix == "" {
		return true
	}

	var b strings.Builder
	for _, c := range raw {
		b.WriteString(strconv.FormatUint(uint64(c), 2))
		if b.Len() >= len(prefix) {
			break
		}
	}

	return strings.HasPrefix(b.String(), prefix)
}
