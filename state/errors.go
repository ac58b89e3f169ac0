package state

import (
	"errors"
	"fmt"
)

// ErrUnsupportedChain matches every UnsupportedChainError via errors.Is.
var ErrUnsupportedChain = errors.New("unsupported chain")

// UnsupportedChainError is returned by Get for a name that is not registered.
// The message is user facing.
type UnsupportedChainError struct {
	Name string
}

func (e *UnsupportedChainError) Error() string {
	return fmt.Sprintf("%s is not a supported chain.", e.Name)
}

func (e *UnsupportedChainError) Is(target error) bool {
	return target == ErrUnsupportedChain
}
