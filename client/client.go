package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// ErrConfirmationTimeout is returned when a receipt does not reach the
// requested depth before the deadline.
var ErrConfirmationTimeout = errors.New("timed out waiting for transaction confirmation")

// Backend is the JSON-RPC surface the orchestrator depends on.
// *ethclient.Client and the simulated backend client both satisfy it.
type Backend interface {
	bind.ContractBackend
	ethereum.TransactionReader
	ethereum.ChainStateReader
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// ReceiptReader is the subset of Backend needed to await confirmations.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Client wraps an ethclient connection to one RPC endpoint.
type Client struct {
	*ethclient.Client
	rpcClient *rpc.Client
	endpoint  string
	logger    *zap.Logger
}

// Config holds client configuration
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewClient dials the endpoint and verifies it answers eth_chainId.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	c := &Client{
		Client:    ethclient.NewClient(rpcClient),
		rpcClient: rpcClient,
		endpoint:  cfg.Endpoint,
		logger:    logger,
	}

	chainID, err := c.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to ping RPC endpoint: %w", err)
	}

	logger.Info("connected to RPC endpoint",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("remoteChainId", chainID.String()))

	return c, nil
}

// Endpoint returns the URL the client is connected to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close closes the client connection
func (c *Client) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

// WaitForReceipt polls until the transaction is included and buried under
// the requested number of confirmations (1 = included in the head block).
// The wait is bounded by ctx; on expiry ErrConfirmationTimeout is returned.
func WaitForReceipt(ctx context.Context, r ReceiptReader, hash common.Hash, confirmations uint64, poll time.Duration) (*types.Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}
	if poll <= 0 {
		poll = time.Second
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		receipt, err := r.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			head, herr := r.BlockNumber(ctx)
			if herr != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("failed to get head block: %w", herr)
			}
			if herr == nil && receipt.BlockNumber != nil && head+1 >= receipt.BlockNumber.Uint64()+confirmations {
				return receipt, nil
			}
		case err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil:
			return nil, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrConfirmationTimeout, hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// HeaderReader fetches block headers by number.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// HeaderTime returns the timestamp of the block at number.
func HeaderTime(ctx context.Context, b HeaderReader, number uint64) (time.Time, error) {
	header, err := b.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get header %d: %w", number, err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}
