package multichain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"github.com/0xmhha/stomatrade-go/client"
)

// Connection is the pooled link to a single chain. Every RPC issued through
// its methods first waits on the chain's rate limiter.
//
// A connection dropped from the pool is retired: it stays open until the
// last operation holding it through Acquire releases it.
type Connection struct {
	ChainID   uint64
	Endpoint  string
	CreatedAt time.Time

	backend client.Backend
	limiter *rate.Limiter

	mu       sync.Mutex
	inflight int
	retired  bool
	closed   bool
}

// Acquire marks one operation in flight. The returned release must be
// called when the operation is done; calling it more than once is safe.
func (c *Connection) Acquire() (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, NewChainError(c.ChainID, ErrConnectionClosed, nil)
	}
	c.inflight++

	var once sync.Once
	return func() { once.Do(c.release) }, nil
}

func (c *Connection) release() {
	c.mu.Lock()
	c.inflight--
	drained := c.retired && c.inflight == 0 && !c.closed
	if drained {
		c.closed = true
	}
	c.mu.Unlock()

	if drained {
		closeBackend(c.backend)
	}
}

// InFlight returns the number of operations holding the connection.
func (c *Connection) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// Retired reports whether the pool has dropped the connection.
func (c *Connection) Retired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retired
}

// retire closes the connection now if idle, otherwise when the last
// in-flight operation releases it.
func (c *Connection) retire() {
	c.mu.Lock()
	c.retired = true
	idle := c.inflight == 0 && !c.closed
	if idle {
		c.closed = true
	}
	c.mu.Unlock()

	if idle {
		closeBackend(c.backend)
	}
}

// Backend exposes the raw backend for contract binding.
func (c *Connection) Backend() client.Backend {
	return c.backend
}

// Wait blocks until the rate limiter admits one more request.
func (c *Connection) Wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// BlockNumber returns the current head.
func (c *Connection) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.Wait(ctx); err != nil {
		return 0, err
	}
	return c.backend.BlockNumber(ctx)
}

// GasPrice returns the node's suggested gas price.
func (c *Connection) GasPrice(ctx context.Context) (*big.Int, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}
	return c.backend.SuggestGasPrice(ctx)
}

// Balance returns the latest balance of addr in wei.
func (c *Connection) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}
	return c.backend.BalanceAt(ctx, addr, nil)
}

// TransactionByHash looks up a transaction and whether it is still pending.
func (c *Connection) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, false, err
	}
	return c.backend.TransactionByHash(ctx, hash)
}

// TransactionReceipt returns the receipt or ethereum.NotFound.
func (c *Connection) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}
	return c.backend.TransactionReceipt(ctx, hash)
}

// FilterLogs runs an eth_getLogs query.
func (c *Connection) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}
	return c.backend.FilterLogs(ctx, q)
}

// BlockTime returns the timestamp of block number.
func (c *Connection) BlockTime(ctx context.Context, number uint64) (time.Time, error) {
	if err := c.Wait(ctx); err != nil {
		return time.Time{}, err
	}
	return client.HeaderTime(ctx, c.backend, number)
}

// WaitForTransaction waits for hash to reach the given confirmation depth,
// giving up after timeout.
func (c *Connection) WaitForTransaction(ctx context.Context, hash common.Hash, confirmations uint64, timeout, poll time.Duration) (*types.Receipt, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return client.WaitForReceipt(ctx, c, hash, confirmations, poll)
}

// close shuts the backend regardless of in-flight operations.
func (c *Connection) close() {
	c.mu.Lock()
	c.retired = true
	already := c.closed
	c.closed = true
	c.mu.Unlock()

	if !already {
		closeBackend(c.backend)
	}
}
