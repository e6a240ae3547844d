package workflow

import (
	"context"
	"errors"
	"fmt"
)

// CompensationKind enumerates the rollback actions a step may register.
type CompensationKind string

const (
	CompensateNone              CompensationKind = "NONE"
	CompensateRevertToSubmitted CompensationKind = "REVERT_TO_SUBMITTED"
	CompensateDeleteInvestment  CompensationKind = "DELETE_INVESTMENT"
	CompensateDeleteClaim       CompensationKind = "DELETE_CLAIM"
)

// Compensation undoes the local effect of a completed step.
type Compensation struct {
	Kind CompensationKind
	Run  func(ctx context.Context) error
}

// NoCompensation is for steps without local side effects.
var NoCompensation = Compensation{Kind: CompensateNone}

// RevertToSubmitted moves an APPROVED submission back to SUBMITTED and
// clears its approver.
func RevertToSubmitted(store Store, submissionID string) Compensation {
	return Compensation{
		Kind: CompensateRevertToSubmitted,
		Run: func(ctx context.Context) error {
			return store.RevertSubmissionToSubmitted(ctx, submissionID)
		},
	}
}

// DeleteInvestment removes an investment row created by the saga.
func DeleteInvestment(store Store, investmentID string) Compensation {
	return Compensation{
		Kind: CompensateDeleteInvestment,
		Run: func(ctx context.Context) error {
			return store.DeleteInvestment(ctx, investmentID)
		},
	}
}

// DeleteClaim removes a claim row created by the saga.
func DeleteClaim(store Store, claimID string) Compensation {
	return Compensation{
		Kind: CompensateDeleteClaim,
		Run: func(ctx context.Context) error {
			return store.DeleteClaim(ctx, claimID)
		},
	}
}

// Step is one stage of a saga.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate Compensation
}

// Saga runs local writes and one remote call as ordered steps. When a
// step fails the compensations of the steps already completed run in
// reverse order.
type Saga struct {
	Kind  string
	Steps []Step
}

// Outcome is the auditable result of a saga run.
type Outcome struct {
	Kind       string
	Completed  []string
	FailedStep string
	Err        error

	// Compensated lists the compensations that ran, in order
	Compensated     []CompensationKind
	CompensationErr error
}

// Succeeded reports whether every step completed.
func (o *Outcome) Succeeded() bool {
	return o.Err == nil
}

// Run executes the saga. Compensations run on a context detached from
// ctx cancellation so a cancelled request still rolls back.
func (s *Saga) Run(ctx context.Context) *Outcome {
	out := &Outcome{Kind: s.Kind}

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			out.FailedStep = step.Name
			out.Err = err
			s.compensate(ctx, i, out)
			return out
		}
		if err := step.Do(ctx); err != nil {
			out.FailedStep = step.Name
			out.Err = fmt.Errorf("%s: %w", step.Name, err)
			s.compensate(ctx, i, out)
			return out
		}
		out.Completed = append(out.Completed, step.Name)
	}
	return out
}

func (s *Saga) compensate(ctx context.Context, failed int, out *Outcome) {
	cctx := context.WithoutCancel(ctx)
	var errs []error
	for i := failed - 1; i >= 0; i-- {
		c := s.Steps[i].Compensate
		if c.Kind == CompensateNone || c.Run == nil {
			continue
		}
		out.Compensated = append(out.Compensated, c.Kind)
		if err := c.Run(cctx); err != nil {
			errs = append(errs, fmt.Errorf("compensation %s: %w", c.Kind, err))
		}
	}
	out.CompensationErr = errors.Join(errs...)
}
