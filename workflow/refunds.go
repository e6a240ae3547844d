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

// Refunds opens failed projects for refund and pays investors back.
type Refunds struct {
	*base
}

// MarkRefundable calls refundProject for a minted project and flags it
// refundable.
func (r *Refunds) MarkRefundable(ctx context.Context, projectID string, chainID uint64) (*records.Project, error) {
	project, token, err := r.mintedProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Refundable {
		return nil, invalidState("Project %s is already refundable", projectID)
	}

	log := logger.WithChain(logger.WithWorkflow(r.logger, KindMarkRefundable, projectID), chainID)
	var c Contract
	saga := &Saga{Kind: KindMarkRefundable, Steps: []Step{
		r.bindStep(chainID, &c),
		{
			Name: "refund project",
			Do: func(ctx context.Context) error {
				_, err := r.transact(ctx, c, records.TxRefund, contract.EventProjectStatusChanged, func(ctx context.Context) *contract.TransactionResult {
					return c.RefundProject(ctx, token)
				})
				return err
			},
			Compensate: NoCompensation,
		},
		{
			Name: "mark refundable",
			Do: func(ctx context.Context) error {
				return r.store.SetProjectRefundable(ctx, projectID)
			},
			Compensate: NoCompensation,
		},
	}}
	if out := r.run(ctx, saga, log); !out.Succeeded() {
		return nil, stepError(out.Err, "mark project refundable")
	}

	project, err = r.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, lookupError(err, "Project", projectID)
	}
	return project, nil
}

// Claim pays back the user's investments in a refundable project via
// claimRefund. The refunded amount comes from the Refunded event and
// defaults to the sum of the user's investments. On success the
// investments are soft-deleted.
func (r *Refunds) Claim(ctx context.Context, userID, projectID string, chainID uint64) (*records.Claim, error) {
	if _, err := r.store.GetUser(ctx, userID); err != nil {
		return nil, lookupError(err, "User", userID)
	}
	project, token, err := r.mintedProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.Refundable {
		return nil, invalidState("Project %s is not refundable", projectID)
	}
	investments, err := r.store.ListActiveInvestments(ctx, userID, projectID)
	if err != nil {
		return nil, badRequest(err, "failed to load investments: %v", err)
	}
	if len(investments) == 0 {
		return nil, badRequest(nil, "User has not invested in this project")
	}
	invested := "0"
	for _, inv := range investments {
		if invested, err = amount.Add(invested, inv.Amount); err != nil {
			return nil, badRequest(err, "investment %s has invalid amount: %v", inv.ID, err)
		}
	}

	claim := &records.Claim{
		ID:        uuid.NewString(),
		Kind:      records.ClaimRefund,
		UserID:    userID,
		ProjectID: projectID,
		ChainID:   chainID,
	}
	log := logger.WithChain(logger.WithWorkflow(r.logger, KindRefundClaim, claim.ID), chainID)

	var (
		c    Contract
		call *chainCall
	)
	saga := &Saga{Kind: KindRefundClaim, Steps: []Step{
		{
			Name: "create claim",
			Do: func(ctx context.Context) error {
				return r.store.CreateClaim(ctx, claim)
			},
			Compensate: DeleteClaim(r.store, claim.ID),
		},
		r.bindStep(chainID, &c),
		{
			Name: "claim refund",
			Do: func(ctx context.Context) error {
				var err error
				call, err = r.transact(ctx, c, records.TxClaimRefund, contract.EventRefunded, func(ctx context.Context) *contract.TransactionResult {
					return c.ClaimRefund(ctx, token)
				})
				return err
			},
			Compensate: NoCompensation,
		},
		{
			Name: "confirm claim",
			Do: func(ctx context.Context) error {
				refunded := invested
				if wei, ok := contract.BigIntArg(call.Event, contract.ArgAmount); ok {
					refunded = amount.FromWei(wei)
				}
				return r.store.ConfirmClaim(ctx, claim.ID, refunded, call.Result.Hash.Hex(), call.Result.BlockNumber)
			},
			Compensate: NoCompensation,
		},
	}}
	if out := r.run(ctx, saga, log); !out.Succeeded() {
		return nil, stepError(out.Err, "claim refund")
	}

	// the refund is paid; bookkeeping failures below are logged only
	for _, inv := range investments {
		if err := r.store.SoftDeleteInvestment(ctx, inv.ID); err != nil {
			log.Warn("failed to mark investment refunded", zap.String("investmentId", inv.ID), zap.Error(err))
		}
	}
	if _, err := r.store.RecalculatePortfolio(ctx, userID); err != nil {
		log.Warn("failed to update portfolio", zap.String("userId", userID), zap.Error(err))
	}

	confirmed, err := r.store.GetClaim(ctx, claim.ID)
	if err != nil {
		return nil, lookupError(err, "Claim", claim.ID)
	}
	return confirmed, nil
}
