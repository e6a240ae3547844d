package contract

import (
	"context"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/stomatrade-go/client"
	"github.com/0xmhha/stomatrade-go/internal/testutil"
	"github.com/0xmhha/stomatrade-go/pkg/multichain"
	"github.com/0xmhha/stomatrade-go/records"
)

var (
	emitterAddr  = common.HexToAddress("0x00000000000000000000000000000000000e0001")
	revertAddr   = common.HexToAddress("0x00000000000000000000000000000000000e0002")
	returnerAddr = common.HexToAddress("0x00000000000000000000000000000000000e0003")
	otherAddr    = common.HexToAddress("0x00000000000000000000000000000000000e0004")
)

const testContractName = "StomaTrade"

// returns the uint256 42 for any call
var returnerCode = []byte{0x60, 0x2a, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xf3}

func bigInt(n int64) *big.Int {
	return big.NewInt(n)
}

func stomaABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(StomaTradeABI))
	require.NoError(t, err)
	return parsed
}

// countingSource counts config lookups.
type countingSource struct {
	ConfigSource
	latest atomic.Int32
}

func (c *countingSource) LatestContractConfig(ctx context.Context, name string, chainID uint64) (*records.ChainContractConfig, error) {
	c.latest.Add(1)
	return c.ConfigSource.LatestContractConfig(ctx, name, chainID)
}

// noClose hides the backend's Close so invalidating a connection does not
// shut the shared simulated client.
type noClose struct {
	client.Backend
}

type fixture struct {
	chain    *testutil.SimulatedChain
	db       *records.DB
	source   *countingSource
	pool     *multichain.Pool
	registry *Registry
	abi      abi.ABI
}

func newFixture(t *testing.T, signed bool) *fixture {
	t.Helper()
	parsed := stomaABI(t)

	emitted := []*types.Log{
		testutil.EncodeEventLog(t, parsed, "Transfer", emitterAddr,
			[]interface{}{common.Address{}, common.HexToAddress("0xfeed"), big.NewInt(7)}, nil),
		testutil.EncodeEventLog(t, parsed, EventProjectStatusChanged, emitterAddr,
			[]interface{}{big.NewInt(3)}, []interface{}{uint8(0), uint8(1)}),
		testutil.EncodeEventLog(t, parsed, EventFarmerAdded, emitterAddr,
			[]interface{}{big.NewInt(7)}, []interface{}{"COL-1", "Siti", big.NewInt(41)}),
	}
	chain := testutil.NewSimulatedChain(t, map[common.Address][]byte{
		emitterAddr:  testutil.EmitterCode(emitted...),
		revertAddr:   testutil.RevertCode,
		returnerAddr: returnerCode,
	})

	db, err := records.Open(context.Background(), ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pool := multichain.NewPool(&multichain.Config{
		DefaultURL:   "http://sim",
		PollInterval: 5 * time.Millisecond,
		Dial: func(ctx context.Context, endpoint string) (client.Backend, error) {
			return noClose{chain.Backend.Client()}, nil
		},
	}, zap.NewNop())
	t.Cleanup(pool.Close)

	source := &countingSource{ConfigSource: db}
	cfg := RegistryConfig{Name: testContractName}
	if signed {
		cfg.PrivateKey = chain.KeyHex()
	}
	registry, err := NewRegistry(cfg, source, pool, testutil.NewTestLogger(t))
	require.NoError(t, err)

	return &fixture{chain: chain, db: db, source: source, pool: pool, registry: registry, abi: parsed}
}

func (f *fixture) addConfig(t *testing.T, chainID uint64, address common.Address, abiJSON string) {
	t.Helper()
	require.NoError(t, f.db.CreateChainContractConfig(context.Background(), &records.ChainContractConfig{
		Name:    testContractName,
		ChainID: chainID,
		Address: address.Hex(),
		ABI:     abiJSON,
	}))
}
