package database

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Payload is the caller supplied data carried by a block. It is encoded in
// JSON as an array of byte values so the hashed form is plain text.
type Payload []byte

// MarshalJSON implements the json.Marshaler interface. An empty or nil
// payload is encoded as [] and never as null.
func (p Payload) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 2+len(p)*4)
	b = append(b, '[')
	for i, c := range p {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendUint(b, uint64(c), 10)
	}
	b = append(b, ']')

	return b, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("payload must be an array of byte values: %w", err)
	}

	out := make(Payload, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return fmt.Errorf("payload value out of range at index %d: %d", i, v)
		}
		out[i] = byte(v)
	}
	*p = out

	return nil
}

// =============================================================================

// sealed represents the fields of a block that get hashed. The field order
// defines the key order of the encoding and must not change.
type sealed struct {
	PrevHash  string  `json:"previous_hash"`
	Data      Payload `json:"data"`
	TimeStamp int64   `json:"timestamp"`
	Nonce     uint64  `json:"nonce"`
}

// ErrEncoding is returned when the hashable fields can't be encoded without
// losing information.
var ErrEncoding = errors.New("fields can not be encoded")

// Encode produces the canonical encoding of the hashable fields of a block.
// The output is a compact JSON object with the keys previous_hash, data,
// timestamp and nonce in that order. Identical values always produce
// identical bytes.
//
// The previous hash must be valid UTF-8, otherwise distinct values would
// collapse onto the same replacement characters. U+2028 and U+2029 are
// written as \u2028 and \u2029 escapes.
func Encode(prevHash string, data []byte, timestamp int64, nonce uint64) ([]byte, error) {
	if !utf8.ValidString(prevHash) {
		return nil, fmt.Errorf("%w: previous hash %q is not valid UTF-8", ErrEncoding, prevHash)
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	s := sealed{
		PrevHash:  prevHash,
		Data:      data,
		TimeStamp: timestamp,
		Nonce:     nonce,
	}
	if err := enc.Encode(s); err != nil {
		return nil, err
	}

	// The encoder terminates every value with a newline.
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
