package multichain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the multichain package.
var (
	ErrPoolClosed       = errors.New("provider pool is closed")
	ErrNoEndpoint       = errors.New("no RPC endpoint configured")
	ErrDialFailed       = errors.New("failed to dial RPC endpoint")
	ErrChainIDMismatch  = errors.New("endpoint serves a different chain id")
	ErrConnectionAbsent = errors.New("no connection for chain")
	ErrConnectionClosed = errors.New("connection is closed")
	ErrRPCFailed        = errors.New("rpc call failed")
)

// ChainError wraps an error with chain context.
type ChainError struct {
	ChainID uint64
	Op      error
	Err     error
}

// NewChainError creates a new chain error.
func NewChainError(chainID uint64, op error, err error) *ChainError {
	return &ChainError{
		ChainID: chainID,
		Op:      op,
		Err:     err,
	}
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chain %d: %v: %v", e.ChainID, e.Op, e.Err)
	}
	return fmt.Sprintf("chain %d: %v", e.ChainID, e.Op)
}

// Unwrap returns the underlying error.
func (e *ChainError) Unwrap() error {
	return e.Err
}

// Is checks if the target error matches.
func (e *ChainError) Is(target error) bool {
	return errors.Is(e.Op, target) || errors.Is(e.Err, target)
}
