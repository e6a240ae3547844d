package workflow

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/0xmhha/stomatrade-go/contract"
	"github.com/0xmhha/stomatrade-go/internal/logger"
	"github.com/0xmhha/stomatrade-go/records"
)

// submissions holds the state machine shared by farmer and project
// submissions: SUBMITTED -> APPROVED -> MINTED, APPROVED -> SUBMITTED on
// a failed mint, SUBMITTED -> REJECTED.
type submissions struct {
	*base
	kind     records.SubmissionKind
	sagaKind string
	label    string
	action   string
	txKind   records.TxKind
	event    string
	tokenArg string
}

func newSubmissions(b *base, kind records.SubmissionKind) *submissions {
	s := &submissions{base: b, kind: kind}
	switch kind {
	case records.KindFarmer:
		s.sagaKind = KindFarmerSubmission
		s.label = "Farmer submission"
		s.action = "mint Farmer NFT"
		s.txKind = records.TxMintFarmerNFT
		s.event = contract.EventFarmerAdded
		s.tokenArg = contract.ArgIDToken
	case records.KindProject:
		s.sagaKind = KindProjectSubmission
		s.label = "Project submission"
		s.action = "mint Project NFT"
		s.txKind = records.TxCreateProject
		s.event = contract.EventProjectCreated
		s.tokenArg = contract.ArgIDProject
	}
	return s
}

// Get loads a submission by id.
func (s *submissions) Get(ctx context.Context, id string) (*records.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, s.kind, id)
	if err != nil {
		return nil, lookupError(err, s.label, id)
	}
	return sub, nil
}

// List returns submissions, newest first. An empty status matches all.
func (s *submissions) List(ctx context.Context, status records.SubmissionStatus) ([]*records.Submission, error) {
	subs, err := s.store.ListSubmissions(ctx, s.kind, status)
	if err != nil {
		return nil, badRequest(err, "failed to list %ss: %v", strings.ToLower(s.label), err)
	}
	return subs, nil
}

// Reject moves a SUBMITTED submission to REJECTED. No chain call is made.
func (s *submissions) Reject(ctx context.Context, id, rejectedBy, reason string) (*records.Submission, error) {
	if rejectedBy == "" {
		return nil, badRequest(nil, "rejectedBy is required")
	}
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != records.StatusSubmitted {
		return nil, invalidState("Cannot reject submission with status: %s", sub.Status)
	}
	if err := s.store.MarkSubmissionRejected(ctx, id, rejectedBy, reason); err != nil {
		return nil, stepError(err, "reject submission")
	}

	logger.WithWorkflow(s.logger, s.sagaKind, id).Info("submission rejected",
		zap.String("rejectedBy", rejectedBy))
	return s.Get(ctx, id)
}

// create inserts a SUBMITTED submission after checking that the subject
// has none yet.
func (s *submissions) create(ctx context.Context, sub *records.Submission) error {
	existing, err := s.store.FindSubmissionBySubject(ctx, s.kind, sub.SubjectID)
	switch {
	case err == nil:
		return badRequest(nil, "%s already has a submission with status: %s",
			strings.TrimSuffix(s.label, " submission"), existing.Status)
	case !errors.Is(err, records.ErrNotFound):
		return lookupError(err, s.label, sub.SubjectID)
	}

	sub.Kind = s.kind
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		if errors.Is(err, records.ErrConflict) {
			return badRequest(err, "%s already has a submission", strings.TrimSuffix(s.label, " submission"))
		}
		return badRequest(err, "failed to create %s: %v", strings.ToLower(s.label), err)
	}

	logger.WithWorkflow(s.logger, s.sagaKind, sub.ID).Info("submission created",
		zap.String("subjectId", sub.SubjectID),
		zap.String("submittedBy", sub.SubmittedBy))
	return nil
}

// approve runs the mint saga for sub. mint submits the contract write;
// backfill stores the minted token id on the subject.
func (s *submissions) approve(ctx context.Context, sub *records.Submission, approvedBy string, chainID uint64,
	mint func(ctx context.Context, c Contract) *contract.TransactionResult,
	backfill func(ctx context.Context, tokenID string) error) (*records.Submission, error) {

	if sub.Status != records.StatusSubmitted {
		return nil, invalidState("Cannot approve submission with status: %s", sub.Status)
	}

	id := sub.ID
	log := logger.WithChain(logger.WithWorkflow(s.logger, s.sagaKind, id), chainID)

	var (
		c       Contract
		call    *chainCall
		tokenID string
	)
	saga := &Saga{Kind: s.sagaKind, Steps: []Step{
		{
			Name: "approve",
			Do: func(ctx context.Context) error {
				return s.store.MarkSubmissionApproved(ctx, id, approvedBy)
			},
			Compensate: RevertToSubmitted(s.store, id),
		},
		s.bindStep(chainID, &c),
		{
			Name: "mint",
			Do: func(ctx context.Context) error {
				var err error
				call, err = s.transact(ctx, c, s.txKind, s.event, func(ctx context.Context) *contract.TransactionResult {
					return mint(ctx, c)
				})
				return err
			},
			Compensate: NoCompensation,
		},
		{
			Name: "backfill token",
			Do: func(ctx context.Context) error {
				tokenID = eventInt(call.Event, s.tokenArg)
				if tokenID == "" {
					log.Warn("mint event not found in receipt",
						zap.String("event", s.event),
						zap.String("txHash", call.Result.Hash.Hex()))
					return nil
				}
				return backfill(ctx, tokenID)
			},
			Compensate: NoCompensation,
		},
		{
			Name: "mark minted",
			Do: func(ctx context.Context) error {
				return s.store.MarkSubmissionMinted(ctx, id, call.Record.ID, tokenID)
			},
			Compensate: NoCompensation,
		},
	}}

	if out := s.run(ctx, saga, log); !out.Succeeded() {
		return nil, stepError(out.Err, s.action)
	}
	return s.Get(ctx, id)
}
