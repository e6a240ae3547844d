package contract

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrConfigNotFound is returned when no usable contract configuration
	// exists for a chain: no live row, or a row whose address or ABI is
	// missing or malformed.
	ErrConfigNotFound = errors.New("contract config not found")

	// ErrReverted marks a mined transaction with a failed receipt status.
	ErrReverted = errors.New("transaction reverted")

	// ErrInvalidated is returned when a chain keeps being invalidated while
	// its handle is resolved.
	ErrInvalidated = errors.New("contract handle invalidated during resolution")

	ErrNoSigner      = errors.New("no signing key configured")
	ErrUnknownMethod = errors.New("method not in contract abi")
)

const maxResolveAttempts = 3

// TxError is the typed failure of a contract call. Hash is zero when the
// transaction never left the node (estimate or nonce failure).
type TxError struct {
	Method string
	Hash   common.Hash
	Err    error
}

func (e *TxError) Error() string {
	if e.Hash == (common.Hash{}) {
		return fmt.Sprintf("%s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("%s (tx %s): %v", e.Method, e.Hash.Hex(), e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}
