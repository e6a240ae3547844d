package workflow

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/stomatrade-go/contract"
)

func TestProjectOnChain(t *testing.T) {
	f := newFixture(t)
	f.mintProject(t, "12")
	f.contract.uri = "ipfs://bafy/12"
	f.contract.reads[contract.MethodGetProfitPool] = big.NewInt(5_000)
	f.contract.reads[contract.MethodGetContribution] = big.NewInt(1_000)
	f.contract.reads[contract.MethodGetClaimedProfit] = big.NewInt(250)

	state, err := f.svc.ProjectOnChain(context.Background(), f.project.ID, f.user.WalletAddress, testChainID)
	require.NoError(t, err)
	assert.Equal(t, f.project.ID, state.ProjectID)
	assert.Equal(t, testChainID, state.ChainID)
	assert.Equal(t, "12", state.TokenID)
	assert.Equal(t, "ipfs://bafy/12", state.TokenURI)
	assert.Equal(t, "5000", state.ProfitPool)
	assert.Equal(t, "1000", state.Contribution)
	assert.Equal(t, "250", state.ClaimedProfit)
	assert.Equal(t, common.HexToAddress(f.user.WalletAddress).Hex(), state.Investor)

	calls := f.contract.callsOf(contract.MethodGetContribution)
	require.Len(t, calls, 1)
	assert.Equal(t, big.NewInt(12), calls[0].Args[0])
	assert.Equal(t, common.HexToAddress(f.user.WalletAddress), calls[0].Args[1])
}

func TestProjectOnChainWithoutInvestor(t *testing.T) {
	f := newFixture(t)
	f.mintProject(t, "3")

	state, err := f.svc.ProjectOnChain(context.Background(), f.project.ID, "", testChainID)
	require.NoError(t, err)
	assert.Equal(t, "0", state.ProfitPool)
	assert.Empty(t, state.Investor)
	assert.Empty(t, state.Contribution)
	assert.Empty(t, f.contract.callsOf(contract.MethodGetContribution))
	assert.Empty(t, f.contract.callsOf(contract.MethodGetClaimedProfit))
}

func TestProjectOnChainErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unminted project", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ProjectOnChain(ctx, f.project.ID, "", testChainID)
		assert.Equal(t, KindBadRequest, KindOf(err))
		assert.Zero(t, f.gateway.binds.Load())
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ProjectOnChain(ctx, "missing", "", testChainID)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("bad investor", func(t *testing.T) {
		f := newFixture(t)
		f.mintProject(t, "3")
		_, err := f.svc.ProjectOnChain(ctx, f.project.ID, "alice", testChainID)
		assert.Equal(t, KindBadRequest, KindOf(err))
		assert.Contains(t, err.Error(), `"alice"`)
	})

	t.Run("no contract config", func(t *testing.T) {
		f := newFixture(t)
		f.mintProject(t, "3")
		f.gateway.err = contract.ErrConfigNotFound
		_, err := f.svc.ProjectOnChain(ctx, f.project.ID, "", testChainID)
		assert.Equal(t, KindConfigNotFound, KindOf(err))
	})

	t.Run("read failure", func(t *testing.T) {
		f := newFixture(t)
		f.mintProject(t, "3")
		f.contract.readErr = errors.New("execution reverted")
		_, err := f.svc.ProjectOnChain(ctx, f.project.ID, "", testChainID)
		assert.Equal(t, KindBadRequest, KindOf(err))
		assert.Contains(t, err.Error(), "execution reverted")
	})
}
