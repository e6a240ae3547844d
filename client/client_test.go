package client

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config", config: nil},
		{name: "empty endpoint", config: &Config{Endpoint: ""}},
		{name: "invalid endpoint", config: &Config{Endpoint: "invalid://endpoint", Timeout: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(context.Background(), tt.config)
			assert.Error(t, err)
			assert.Nil(t, c)
		})
	}
}

// fakeChain mines the receipt after a few polls and advances the head on
// every BlockNumber call.
type fakeChain struct {
	mu          sync.Mutex
	pendingFor  int
	receiptErr  error
	receiptAt   uint64
	head        uint64
	receiptHits int
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptHits++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.receiptHits <= f.pendingFor {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{
		TxHash:      hash,
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: new(big.Int).SetUint64(f.receiptAt),
	}, nil
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head++
	return f.head, nil
}

func TestWaitForReceiptConfirmations(t *testing.T) {
	chain := &fakeChain{pendingFor: 2, receiptAt: 5, head: 4}
	hash := common.HexToHash("0x01")

	receipt, err := WaitForReceipt(context.Background(), chain, hash, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, hash, receipt.TxHash)
	// block 5 with 3 confirmations requires head >= 7
	assert.GreaterOrEqual(t, chain.head, uint64(7))
}

func TestWaitForReceiptTimeout(t *testing.T) {
	chain := &fakeChain{pendingFor: 1 << 30}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := WaitForReceipt(ctx, chain, common.HexToHash("0x02"), 1, time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfirmationTimeout))
}

func TestWaitForReceiptRPCError(t *testing.T) {
	chain := &fakeChain{receiptErr: errors.New("connection refused")}

	_, err := WaitForReceipt(context.Background(), chain, common.HexToHash("0x03"), 1, time.Millisecond)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfirmationTimeout))
	assert.Contains(t, err.Error(), "connection refused")
}

type headerStub struct{ ts uint64 }

func (h headerStub) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: number, Time: h.ts}, nil
}

func TestHeaderTime(t *testing.T) {
	ts, err := HeaderTime(context.Background(), headerStub{ts: 1700000000}, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts.Unix())
}
