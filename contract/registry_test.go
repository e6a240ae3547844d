package contract

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/0xmhha/stomatrade-go/internal/testutil"
	"github.com/0xmhha/stomatrade-go/pkg/multichain"
	"github.com/0xmhha/stomatrade-go/records"
)

func TestNewRegistryValidation(t *testing.T) {
	pool := multichain.NewPool(nil, nil)

	_, err := NewRegistry(RegistryConfig{}, nil, pool, nil)
	assert.Error(t, err)

	_, err = NewRegistry(RegistryConfig{PrivateKey: "zz"}, &countingSource{}, pool, nil)
	assert.Error(t, err)

	r, err := NewRegistry(RegistryConfig{}, &countingSource{}, pool, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "StomaTrade", r.Name())
}

func TestRegistryCachesHandle(t *testing.T) {
	f := newFixture(t, true)
	f.addConfig(t, testutil.SimulatedChainID, emitterAddr, StomaTradeABI)
	ctx := context.Background()

	var wg sync.WaitGroup
	handles := make([]*Handle, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := f.registry.Get(ctx, testutil.SimulatedChainID)
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	again, err := f.registry.Get(ctx, testutil.SimulatedChainID)
	require.NoError(t, err)
	for _, h := range handles {
		assert.Same(t, again, h)
	}
	assert.Same(t, again.Connection(), handles[0].Connection())
	assert.Equal(t, int32(1), f.source.latest.Load())
	assert.Equal(t, emitterAddr, again.Address)
	assert.Equal(t, f.chain.Auth.From, again.From())
	assert.True(t, again.CanSign())
	assert.Equal(t, []uint64{testutil.SimulatedChainID}, f.registry.Chains())
}

func TestRegistryConfigNotFound(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.registry.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrConfigNotFound)
	assert.Empty(t, f.registry.Chains())
	_, ok := f.pool.Lookup(999)
	assert.False(t, ok)
}

func TestRegistryRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		abi      string
		mismatch bool
	}{
		{name: "malformed address", address: "0x1234", abi: StomaTradeABI},
		{name: "zero address", address: common.Address{}.Hex(), abi: StomaTradeABI},
		{name: "empty abi", address: emitterAddr.Hex(), abi: ""},
		{name: "broken abi", address: emitterAddr.Hex(), abi: "[{"},
		{name: "foreign abi", address: emitterAddr.Hex(), mismatch: true,
			abi: `[{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"}],"outputs":[]}]`},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			chainID := uint64(100 + i)
			require.NoError(t, f.db.CreateChainContractConfig(context.Background(), &records.ChainContractConfig{
				Name: testContractName, ChainID: chainID, Address: tt.address, ABI: tt.abi,
			}))

			h, err := f.registry.Get(context.Background(), chainID)
			assert.Nil(t, h)
			assert.ErrorIs(t, err, ErrConfigNotFound)
			if tt.mismatch {
				assert.ErrorIs(t, err, ErrABIMismatch)
			}
			assert.Empty(t, f.registry.Chains())
		})
	}
}

func TestRegistryNormalisesStoredABI(t *testing.T) {
	f := newFixture(t, true)
	escaped := strings.ReplaceAll(StomaTradeABI, `"`, `\"`)
	f.addConfig(t, testutil.SimulatedChainID, emitterAddr, escaped)

	h, err := f.registry.Get(context.Background(), testutil.SimulatedChainID)
	require.NoError(t, err)
	assert.Contains(t, h.ABI.Methods, MethodAddFarmer)
}

func TestRegistryInvalidate(t *testing.T) {
	f := newFixture(t, true)
	f.addConfig(t, testutil.SimulatedChainID, emitterAddr, StomaTradeABI)
	ctx := context.Background()

	first, err := f.registry.Get(ctx, testutil.SimulatedChainID)
	require.NoError(t, err)

	// a newer config is not visible until the handle is invalidated
	f.addConfig(t, testutil.SimulatedChainID, returnerAddr, StomaTradeABI)
	cached, err := f.registry.Get(ctx, testutil.SimulatedChainID)
	require.NoError(t, err)
	assert.Same(t, first, cached)

	assert.True(t, f.registry.Invalidate(testutil.SimulatedChainID))
	assert.False(t, f.registry.Invalidate(testutil.SimulatedChainID))
	_, ok := f.pool.Lookup(testutil.SimulatedChainID)
	assert.False(t, ok)

	fresh, err := f.registry.Get(ctx, testutil.SimulatedChainID)
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	assert.Equal(t, returnerAddr, fresh.Address)
	assert.Equal(t, int32(2), f.source.latest.Load())
}

func TestRegistryReadOnlyHandle(t *testing.T) {
	f := newFixture(t, false)
	f.addConfig(t, testutil.SimulatedChainID, emitterAddr, StomaTradeABI)

	h, err := f.registry.Get(context.Background(), testutil.SimulatedChainID)
	require.NoError(t, err)
	assert.False(t, h.CanSign())
	assert.Equal(t, common.Address{}, h.From())
}

func TestEncodeFunctionData(t *testing.T) {
	f := newFixture(t, true)
	f.addConfig(t, testutil.SimulatedChainID, emitterAddr, StomaTradeABI)
	ctx := context.Background()

	data, err := f.registry.EncodeFunctionData(ctx, testutil.SimulatedChainID, MethodInvest, bigInt(1), bigInt(2))
	require.NoError(t, err)
	selector := crypto.Keccak256([]byte("invest(uint256,uint256)"))[:4]
	assert.True(t, strings.HasPrefix(data, "0x"+common.Bytes2Hex(selector)))
	assert.Len(t, data, 2+2*(4+64))

	_, err = f.registry.EncodeFunctionData(ctx, testutil.SimulatedChainID, "mint", bigInt(1))
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = f.registry.EncodeFunctionData(ctx, testutil.SimulatedChainID, MethodInvest, "not a number")
	assert.Error(t, err)

	_, err = f.registry.EncodeFunctionData(ctx, 5, MethodInvest, bigInt(1), bigInt(2))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestListActive(t *testing.T) {
	f := newFixture(t, true)
	f.addConfig(t, testutil.SimulatedChainID, emitterAddr, StomaTradeABI)
	f.addConfig(t, 4202, revertAddr, StomaTradeABI)

	active, err := f.registry.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, testutil.SimulatedChainID, active[0].ChainID)
	assert.Equal(t, uint64(4202), active[1].ChainID)
}

func TestRegistryWarnsUnfundedSigner(t *testing.T) {
	f := newFixture(t, false)
	f.addConfig(t, testutil.SimulatedChainID, emitterAddr, StomaTradeABI)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	core, logs := observer.New(zap.WarnLevel)
	registry, err := NewRegistry(RegistryConfig{
		Name:       testContractName,
		PrivateKey: common.Bytes2Hex(crypto.FromECDSA(key)),
	}, f.db, f.pool, zap.New(core))
	require.NoError(t, err)

	h, err := registry.Get(context.Background(), testutil.SimulatedChainID)
	require.NoError(t, err)
	assert.True(t, h.CanSign())

	unfunded := logs.FilterMessage("signer has no funds for gas").All()
	require.Len(t, unfunded, 1)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), unfunded[0].ContextMap()["address"])

	// the funded fixture signer does not warn
	funded := newFixture(t, false)
	funded.addConfig(t, testutil.SimulatedChainID, emitterAddr, StomaTradeABI)
	core, logs = observer.New(zap.WarnLevel)
	registry, err = NewRegistry(RegistryConfig{Name: testContractName, PrivateKey: funded.chain.KeyHex()}, funded.db, funded.pool, zap.New(core))
	require.NoError(t, err)
	_, err = registry.Get(context.Background(), testutil.SimulatedChainID)
	require.NoError(t, err)
	assert.Zero(t, logs.FilterMessage("signer has no funds for gas").Len())
}
