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

// Investments records investments on chain. A failed invest call deletes
// the local row instead of marking it.
type Investments struct {
	*base
}

// CreateInvestment is the input of Investments.Create. Amount is a
// decimal string in token units.
type CreateInvestment struct {
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
	Amount    string `json:"amount"`
}

// Create invests in a minted project on chainID and stores the receipt
// token id of the Invested event.
func (i *Investments) Create(ctx context.Context, in CreateInvestment, chainID uint64) (*records.Investment, error) {
	normalized, err := amount.Normalize(in.Amount)
	if err != nil {
		return nil, badRequest(err, "invalid amount: %v", err)
	}
	wei, _ := amount.ToWei(normalized)
	if wei.Sign() == 0 {
		return nil, badRequest(nil, "amount must be greater than zero")
	}

	if _, err := i.store.GetUser(ctx, in.UserID); err != nil {
		return nil, lookupError(err, "User", in.UserID)
	}
	project, token, err := i.mintedProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.Refundable || project.Closed {
		return nil, invalidState("Project %s is not accepting investments", project.ID)
	}

	inv := &records.Investment{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		ProjectID: project.ID,
		ChainID:   chainID,
		Amount:    normalized,
	}

	log := logger.WithChain(logger.WithWorkflow(i.logger, KindInvestment, inv.ID), chainID)
	var (
		c    Contract
		call *chainCall
	)
	saga := &Saga{Kind: KindInvestment, Steps: []Step{
		{
			Name: "create investment",
			Do: func(ctx context.Context) error {
				return i.store.CreateInvestment(ctx, inv)
			},
			Compensate: DeleteInvestment(i.store, inv.ID),
		},
		i.bindStep(chainID, &c),
		{
			Name: "invest",
			Do: func(ctx context.Context) error {
				var err error
				call, err = i.transact(ctx, c, records.TxInvest, contract.EventInvested, func(ctx context.Context) *contract.TransactionResult {
					return c.Invest(ctx, token, wei)
				})
				return err
			},
			Compensate: NoCompensation,
		},
		{
			Name: "confirm investment",
			Do: func(ctx context.Context) error {
				return i.store.ConfirmInvestment(ctx, inv.ID,
					eventInt(call.Event, contract.ArgReceiptTokenID),
					call.Result.Hash.Hex(), call.Result.BlockNumber)
			},
			Compensate: NoCompensation,
		},
	}}

	if out := i.run(ctx, saga, log); !out.Succeeded() {
		return nil, stepError(out.Err, "invest")
	}

	if _, err := i.store.RecalculatePortfolio(ctx, in.UserID); err != nil {
		log.Warn("failed to update portfolio", zap.String("userId", in.UserID), zap.Error(err))
	}

	confirmed, err := i.store.GetInvestment(ctx, inv.ID)
	if err != nil {
		return nil, lookupError(err, "Investment", inv.ID)
	}
	return confirmed, nil
}
