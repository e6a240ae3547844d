package workflow

import (
	"context"

	"github.com/0xmhha/stomatrade-go/amount"
	"github.com/0xmhha/stomatrade-go/contract"
	"github.com/0xmhha/stomatrade-go/records"
)

// ProjectSubmissions mints project NFTs after admin approval.
type ProjectSubmissions struct {
	*submissions
}

// CreateProjectSubmission is the input of ProjectSubmissions.Create.
// Amounts are decimal strings in token units.
type CreateProjectSubmission struct {
	ProjectID       string `json:"projectId"`
	ValueProject    string `json:"valueProject"`
	MaxCrowdFunding string `json:"maxCrowdFunding"`
	MetadataCID     string `json:"metadataCid,omitempty"`
	SubmittedBy     string `json:"submittedBy"`
}

// Create records a project submission.
func (p *ProjectSubmissions) Create(ctx context.Context, in CreateProjectSubmission) (*records.Submission, error) {
	if in.ProjectID == "" {
		return nil, badRequest(nil, "projectId is required")
	}
	if in.SubmittedBy == "" {
		return nil, badRequest(nil, "submittedBy is required")
	}
	value, err := amount.Normalize(in.ValueProject)
	if err != nil {
		return nil, badRequest(err, "invalid valueProject: %v", err)
	}
	maxFunding, err := amount.Normalize(in.MaxCrowdFunding)
	if err != nil {
		return nil, badRequest(err, "invalid maxCrowdFunding: %v", err)
	}

	project, err := p.store.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, lookupError(err, "Project", in.ProjectID)
	}

	sub := &records.Submission{
		SubjectID:       project.ID,
		Commodity:       project.Commodity,
		ValueProject:    value,
		MaxCrowdFunding: maxFunding,
		MetadataCID:     in.MetadataCID,
		SubmittedBy:     in.SubmittedBy,
	}
	if err := p.create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Approve creates the project on chainID and back-fills the project's
// token id from the ProjectCreated event.
func (p *ProjectSubmissions) Approve(ctx context.Context, id, approvedBy string, chainID uint64) (*records.Submission, error) {
	if approvedBy == "" {
		return nil, badRequest(nil, "approvedBy is required")
	}
	sub, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	value, err := amount.ToWei(sub.ValueProject)
	if err != nil {
		return nil, badRequest(err, "invalid valueProject: %v", err)
	}
	maxFunding, err := amount.ToWei(sub.MaxCrowdFunding)
	if err != nil {
		return nil, badRequest(err, "invalid maxCrowdFunding: %v", err)
	}

	return p.approve(ctx, sub, approvedBy, chainID,
		func(ctx context.Context, c Contract) *contract.TransactionResult {
			return c.CreateProject(ctx, value, maxFunding, sub.MetadataCID)
		},
		func(ctx context.Context, tokenID string) error {
			return p.store.SetProjectTokenID(ctx, sub.SubjectID, tokenID)
		})
}
