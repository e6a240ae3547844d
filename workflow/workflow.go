// Package workflow composes record writes and contract calls into
// approval sagas: farmer and project submissions, investments, profit
// deposits and claims, refunds and project closing. Every operation
// returns *Error on failure.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	abiDecoder "github.com/0xmhha/stomatrade-go/abi"
	"github.com/0xmhha/stomatrade-go/contract"
	"github.com/0xmhha/stomatrade-go/internal/logger"
	"github.com/0xmhha/stomatrade-go/records"
)

// Saga kinds, used as metric labels and log fields
const (
	KindFarmerSubmission  = "farmer_submission"
	KindProjectSubmission = "project_submission"
	KindInvestment        = "investment"
	KindProfitDeposit     = "profit_deposit"
	KindProfitClaim       = "profit_claim"
	KindMarkRefundable    = "mark_refundable"
	KindRefundClaim       = "refund_claim"
	KindCloseProject      = "close_project"
)

// Config holds workflow configuration
type Config struct {
	// Registerer receives workflow metrics; nil disables them
	Registerer prometheus.Registerer
}

// Service groups the workflows over one store and gateway.
type Service struct {
	Farmers     *FarmerSubmissions
	Projects    *ProjectSubmissions
	Investments *Investments
	Profits     *Profits
	Refunds     *Refunds

	base *base
}

// New creates the workflow service.
func New(cfg Config, store Store, gateway Gateway, log *zap.Logger) *Service {
	b := &base{
		store:   store,
		gateway: gateway,
		metrics: newMetrics(cfg.Registerer),
		logger:  logger.OrNop(log).Named("workflow"),
	}
	return &Service{
		Farmers:     &FarmerSubmissions{submissions: newSubmissions(b, records.KindFarmer)},
		Projects:    &ProjectSubmissions{submissions: newSubmissions(b, records.KindProject)},
		Investments: &Investments{base: b},
		Profits:     &Profits{base: b},
		Refunds:     &Refunds{base: b},
		base:        b,
	}
}

type base struct {
	store   Store
	gateway Gateway
	metrics *metrics
	logger  *zap.Logger
}

// run executes saga and records its outcome.
func (b *base) run(ctx context.Context, saga *Saga, log *zap.Logger) *Outcome {
	start := time.Now()
	out := saga.Run(ctx)
	b.metrics.observe(saga.Kind, outcomeLabel(out), start)

	if out.Succeeded() {
		log.Info("workflow completed", zap.Duration("elapsed", time.Since(start)))
		return out
	}

	compensated := make([]string, len(out.Compensated))
	for i, c := range out.Compensated {
		compensated[i] = string(c)
	}
	fields := []zap.Field{
		zap.String("failedStep", out.FailedStep),
		zap.Strings("compensations", compensated),
		zap.Error(out.Err),
	}
	if out.CompensationErr != nil {
		log.Error("workflow compensation failed, manual reconciliation required",
			append(fields, zap.NamedError("compensationError", out.CompensationErr))...)
		return out
	}
	log.Warn("workflow rolled back", fields...)
	return out
}

// bindStep resolves the contract of chainID into *c.
func (b *base) bindStep(chainID uint64, c *Contract) Step {
	return Step{
		Name: "resolve contract",
		Do: func(ctx context.Context) error {
			bound, err := b.gateway.Bind(ctx, chainID)
			if err != nil {
				return err
			}
			*c = bound
			return nil
		},
		Compensate: NoCompensation,
	}
}

// chainCall is the audited outcome of one contract write.
type chainCall struct {
	Result *contract.TransactionResult
	Record *records.BlockchainTransaction

	// Event holds the decoded args of the expected event, nil when the
	// receipt carried none
	Event map[string]interface{}
}

// transact runs call, appends the audit record whatever the outcome, and
// fails unless the transaction was confirmed successfully.
func (b *base) transact(ctx context.Context, c Contract, kind records.TxKind, event string,
	call func(ctx context.Context) *contract.TransactionResult) (*chainCall, error) {
	result := call(ctx)
	out := &chainCall{Result: result}

	if result.Success && result.Receipt != nil && event != "" {
		if args, ok := c.ExtractEvent(result.Receipt, event); ok {
			out.Event = args
		}
	}

	rec := &records.BlockchainTransaction{
		ChainID:      c.ChainID(),
		Kind:         kind,
		Status:       records.TxFailed,
		From:         result.From.Hex(),
		To:           c.Address().Hex(),
		BlockNumber:  result.BlockNumber,
		GasUsed:      result.GasUsed,
		ErrorMessage: result.ErrorMessage(),
	}
	if result.Success {
		rec.Status = records.TxConfirmed
	}
	if result.Submitted() {
		rec.Hash = result.Hash.Hex()
	}
	if result.EffectiveGasPrice != nil {
		rec.GasPrice = result.EffectiveGasPrice.String()
	}
	if out.Event != nil {
		data, err := json.Marshal(abiDecoder.SerializeArgs(out.Event))
		if err == nil {
			rec.EventData = string(data)
		}
	}
	if err := b.store.InsertTransaction(ctx, rec); err != nil {
		return out, fmt.Errorf("failed to record transaction: %w", err)
	}
	out.Record = rec

	if !result.Success {
		if result.Err != nil {
			return out, result.Err
		}
		return out, contract.ErrReverted
	}
	return out, nil
}

// eventInt returns the decimal form of a uint event argument, or "".
func eventInt(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	n, ok := contract.BigIntArg(args, key)
	if !ok {
		return ""
	}
	return n.String()
}

// tokenInt parses a stored token id for a contract call.
func tokenInt(tokenID string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(tokenID, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// mintedProject loads a project that has an on-chain token.
func (b *base) mintedProject(ctx context.Context, projectID string) (*records.Project, *big.Int, error) {
	project, err := b.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, lookupError(err, "Project", projectID)
	}
	if project.TokenID == "" {
		return nil, nil, badRequest(nil, "Project has not been minted on blockchain yet")
	}
	token, ok := tokenInt(project.TokenID)
	if !ok {
		return nil, nil, badRequest(nil, "Project %s has malformed token id %q", projectID, project.TokenID)
	}
	return project, token, nil
}

// CloseProject closes crowdfunding of a minted project on chainID.
func (s *Service) CloseProject(ctx context.Context, projectID string, chainID uint64) (*records.Project, error) {
	b := s.base
	project, token, err := b.mintedProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Closed {
		return nil, invalidState("Project %s is already closed", projectID)
	}

	log := logger.WithChain(logger.WithWorkflow(b.logger, KindCloseProject, projectID), chainID)
	var c Contract
	saga := &Saga{Kind: KindCloseProject, Steps: []Step{
		b.bindStep(chainID, &c),
		{
			Name: "close project",
			Do: func(ctx context.Context) error {
				_, err := b.transact(ctx, c, records.TxCloseProject, "", func(ctx context.Context) *contract.TransactionResult {
					return c.CloseProject(ctx, token)
				})
				return err
			},
			Compensate: NoCompensation,
		},
		{
			Name: "mark closed",
			Do: func(ctx context.Context) error {
				return b.store.SetProjectClosed(ctx, projectID)
			},
			Compensate: NoCompensation,
		},
	}}
	if out := b.run(ctx, saga, log); !out.Succeeded() {
		return nil, stepError(out.Err, "close project")
	}

	project, err = b.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, lookupError(err, "Project", projectID)
	}
	return project, nil
}
