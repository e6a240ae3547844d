package workflow

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xmhha/stomatrade-go/amount"
	"github.com/0xmhha/stomatrade-go/contract"
	"github.com/0xmhha/stomatrade-go/internal/logger"
	"github.com/0xmhha/stomatrade-go/records"
)

// Profits deposits project profit and pays investors their share.
type Profits struct {
	*base
}

// Deposit sends profit (decimal, token units) for a minted project via
// finishProject and adds it to the project's profit pool.
func (p *Profits) Deposit(ctx context.Context, projectID, profit string, chainID uint64) (*records.ProfitPool, error) {
	normalized, err := amount.Normalize(profit)
	if err != nil {
		return nil, badRequest(err, "invalid amount: %v", err)
	}
	wei, _ := amount.ToWei(normalized)
	if wei.Sign() == 0 {
		return nil, badRequest(nil, "amount must be greater than zero")
	}
	_, token, err := p.mintedProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	log := logger.WithChain(logger.WithWorkflow(p.logger, KindProfitDeposit, projectID), chainID)
	var (
		c    Contract
		pool *records.ProfitPool
	)
	saga := &Saga{Kind: KindProfitDeposit, Steps: []Step{
		p.bindStep(chainID, &c),
		{
			Name: "finish project",
			Do: func(ctx context.Context) error {
				_, err := p.transact(ctx, c, records.TxDepositProfit, "", func(ctx context.Context) *contract.TransactionResult {
					return c.FinishProject(ctx, token, wei)
				})
				return err
			},
			Compensate: NoCompensation,
		},
		{
			Name: "update profit pool",
			Do: func(ctx context.Context) error {
				var err error
				pool, err = p.store.AddProfitDeposit(ctx, projectID, normalized)
				return err
			},
			Compensate: NoCompensation,
		},
	}}
	if out := p.run(ctx, saga, log); !out.Succeeded() {
		return nil, stepError(out.Err, "deposit profit")
	}
	return pool, nil
}

// Claim pays the user's profit share of a project via claimWithdraw. The
// claimed amount comes from the ProfitClaimed event; a failed call
// deletes the pending claim.
func (p *Profits) Claim(ctx context.Context, userID, projectID string, chainID uint64) (*records.Claim, error) {
	if _, err := p.store.GetUser(ctx, userID); err != nil {
		return nil, lookupError(err, "User", userID)
	}
	_, token, err := p.mintedProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	investments, err := p.store.ListActiveInvestments(ctx, userID, projectID)
	if err != nil {
		return nil, badRequest(err, "failed to load investments: %v", err)
	}
	if len(investments) == 0 {
		return nil, badRequest(nil, "User has not invested in this project")
	}

	claim := &records.Claim{
		ID:        uuid.NewString(),
		Kind:      records.ClaimProfit,
		UserID:    userID,
		ProjectID: projectID,
		ChainID:   chainID,
	}
	log := logger.WithChain(logger.WithWorkflow(p.logger, KindProfitClaim, claim.ID), chainID)

	var (
		c       Contract
		call    *chainCall
		claimed string
	)
	saga := &Saga{Kind: KindProfitClaim, Steps: []Step{
		{
			Name: "create claim",
			Do: func(ctx context.Context) error {
				return p.store.CreateClaim(ctx, claim)
			},
			Compensate: DeleteClaim(p.store, claim.ID),
		},
		p.bindStep(chainID, &c),
		{
			Name: "claim withdraw",
			Do: func(ctx context.Context) error {
				var err error
				call, err = p.transact(ctx, c, records.TxClaimProfit, contract.EventProfitClaimed, func(ctx context.Context) *contract.TransactionResult {
					return c.ClaimWithdraw(ctx, token)
				})
				return err
			},
			Compensate: NoCompensation,
		},
		{
			Name: "confirm claim",
			Do: func(ctx context.Context) error {
				if wei, ok := contract.BigIntArg(call.Event, contract.ArgAmount); ok {
					claimed = amount.FromWei(wei)
				} else {
					log.Warn("ProfitClaimed event not found in receipt", zap.String("txHash", call.Result.Hash.Hex()))
				}
				return p.store.ConfirmClaim(ctx, claim.ID, claimed, call.Result.Hash.Hex(), call.Result.BlockNumber)
			},
			Compensate: NoCompensation,
		},
	}}
	if out := p.run(ctx, saga, log); !out.Succeeded() {
		return nil, stepError(out.Err, "claim profit")
	}

	if claimed != "" {
		if _, err := p.store.AddProfitClaimed(ctx, projectID, claimed); err != nil {
			log.Warn("failed to update profit pool", zap.Error(err))
		}
	}

	confirmed, err := p.store.GetClaim(ctx, claim.ID)
	if err != nil {
		return nil, lookupError(err, "Claim", claim.ID)
	}
	return confirmed, nil
}
