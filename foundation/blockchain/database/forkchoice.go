package database

import (
	"errors"
	"fmt"
)

// ErrUnrecoverableFork is returned when neither candidate chain is valid.
var ErrUnrecoverableFork = errors.New("local and remote chains are both invalid")

// Choice identifies which candidate chain was selected.
type Choice int

// Set of possible choices.
const (
	ChoseLocal Choice = iota
	ChoseRemote
)

// String implements the fmt.Stringer interface.
func (c Choice) String() string {
	if c == ChoseRemote {
		return "remote"
	}
	return "local"
}

// ChooseChain selects the chain this node should hold. The longest valid
// chain wins and a tie in length keeps the local chain. When both chains
// fail validation no chain is returned and the error wraps
// ErrUnrecoverableFork along with both validation errors.
func ChooseChain(local []Block, remote []Block, difficulty string) ([]Block, Choice, error) {
	localErr := ValidateChain(local, difficulty)
	remoteErr := ValidateChain(remote, difficulty)

	switch {
	case localErr == nil && remoteErr == nil:
		if len(local) >= len(remote) {
			return local, ChoseLocal, nil
		}
		return remote, ChoseRemote, nil

	case localErr == nil:
		return local, ChoseLocal, nil

	case remoteErr == nil:
		return remote, ChoseRemote, nil
	}

	return nil, ChoseLocal, fmt.Errorf("%w: local: %w: remote: %w", ErrUnrecoverableFork, localErr, remoteErr)
}
