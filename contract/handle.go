package contract

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/stomatrade-go/pkg/multichain"
)

// Handle is a contract bound to one chain's connection and the platform
// signer. Handles are created and cached by Registry only.
type Handle struct {
	ChainID   uint64
	Address   common.Address
	ABI       *abi.ABI
	ConfigID  string
	CreatedAt time.Time

	conn   *multichain.Connection
	bound  *bind.BoundContract
	signer *bind.TransactOpts

	// sendMu orders submissions so pending nonces are not reused
	sendMu sync.Mutex
}

// Connection returns the chain connection the handle is bound to.
func (h *Handle) Connection() *multichain.Connection {
	return h.conn
}

// From returns the signer address, or the zero address for a read-only
// handle.
func (h *Handle) From() common.Address {
	if h.signer == nil {
		return common.Address{}
	}
	return h.signer.From
}

// CanSign reports whether the handle can submit transactions.
func (h *Handle) CanSign() bool {
	return h.signer != nil
}
