package workflow

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProjectChainState is what the contract reports about a project. Amounts
// are wei strings; they are never converted back to token units.
type ProjectChainState struct {
	ProjectID     string `json:"projectId"`
	ChainID       uint64 `json:"chainId"`
	TokenID       string `json:"tokenId"`
	TokenURI      string `json:"tokenUri"`
	ProfitPool    string `json:"profitPool"`
	Investor      string `json:"investor,omitempty"`
	Contribution  string `json:"contribution,omitempty"`
	ClaimedProfit string `json:"claimedProfit,omitempty"`
}

// ProjectOnChain reads a minted project's token URI and profit pool from
// chainID and, when investor is set, that address's contribution and
// claimed profit. Nothing is persisted.
func (s *Service) ProjectOnChain(ctx context.Context, projectID, investor string, chainID uint64) (*ProjectChainState, error) {
	b := s.base
	investor = strings.TrimSpace(investor)
	var addr common.Address
	if investor != "" {
		if !common.IsHexAddress(investor) {
			return nil, badRequest(nil, "Invalid investor address %q", investor)
		}
		addr = common.HexToAddress(investor)
	}

	project, token, err := b.mintedProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	c, err := b.gateway.Bind(ctx, chainID)
	if err != nil {
		return nil, stepError(err, "resolve contract")
	}

	state := &ProjectChainState{ProjectID: project.ID, ChainID: chainID, TokenID: project.TokenID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		uri, err := c.TokenURI(gctx, token)
		state.TokenURI = uri
		return err
	})
	g.Go(func() error {
		return readInto(&state.ProfitPool, func() (*big.Int, error) { return c.GetProfitPool(gctx, token) })
	})
	if investor != "" {
		state.Investor = addr.Hex()
		g.Go(func() error {
			return readInto(&state.Contribution, func() (*big.Int, error) { return c.GetContribution(gctx, token, addr) })
		})
		g.Go(func() error {
			return readInto(&state.ClaimedProfit, func() (*big.Int, error) { return c.GetClaimedProfit(gctx, token, addr) })
		})
	}
	if err := g.Wait(); err != nil {
		b.logger.Warn("project chain read failed",
			zap.String("projectId", projectID),
			zap.Uint64("chainId", chainID),
			zap.Error(err))
		return nil, badRequest(err, "failed to read project from blockchain: %v", err)
	}
	return state, nil
}

func readInto(dst *string, read func() (*big.Int, error)) error {
	n, err := read()
	if err != nil {
		return err
	}
	*dst = n.String()
	return nil
}
