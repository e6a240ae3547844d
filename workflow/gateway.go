package workflow

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/0xmhha/stomatrade-go/contract"
	"github.com/0xmhha/stomatrade-go/records"
)

// Store is the record persistence the workflows use.
type Store interface {
	GetUser(ctx context.Context, id string) (*records.User, error)
	GetFarmer(ctx context.Context, id string) (*records.Farmer, error)
	SetFarmerTokenID(ctx context.Context, id, tokenID string) error
	GetProject(ctx context.Context, id string) (*records.Project, error)
	SetProjectTokenID(ctx context.Context, id, tokenID string) error
	SetProjectRefundable(ctx context.Context, id string) error
	SetProjectClosed(ctx context.Context, id string) error

	CreateSubmission(ctx context.Context, s *records.Submission) error
	GetSubmission(ctx context.Context, kind records.SubmissionKind, id string) (*records.Submission, error)
	FindSubmissionBySubject(ctx context.Context, kind records.SubmissionKind, subjectID string) (*records.Submission, error)
	ListSubmissions(ctx context.Context, kind records.SubmissionKind, status records.SubmissionStatus) ([]*records.Submission, error)
	MarkSubmissionApproved(ctx context.Context, id, approvedBy string) error
	RevertSubmissionToSubmitted(ctx context.Context, id string) error
	MarkSubmissionMinted(ctx context.Context, id, txID, tokenID string) error
	MarkSubmissionRejected(ctx context.Context, id, rejectedBy, reason string) error

	InsertTransaction(ctx context.Context, tx *records.BlockchainTransaction) error

	CreateInvestment(ctx context.Context, inv *records.Investment) error
	GetInvestment(ctx context.Context, id string) (*records.Investment, error)
	ConfirmInvestment(ctx context.Context, id, receiptTokenID, txHash string, block uint64) error
	DeleteInvestment(ctx context.Context, id string) error
	SoftDeleteInvestment(ctx context.Context, id string) error
	ListActiveInvestments(ctx context.Context, userID, projectID string) ([]*records.Investment, error)

	CreateClaim(ctx context.Context, c *records.Claim) error
	GetClaim(ctx context.Context, id string) (*records.Claim, error)
	ConfirmClaim(ctx context.Context, id, amount, txHash string, block uint64) error
	DeleteClaim(ctx context.Context, id string) error

	AddProfitDeposit(ctx context.Context, projectID, delta string) (*records.ProfitPool, error)
	AddProfitClaimed(ctx context.Context, projectID, delta string) (*records.ProfitPool, error)
	RecalculatePortfolio(ctx context.Context, userID string) (*records.Portfolio, error)
}

var _ Store = (*records.DB)(nil)

// Contract is the chain-bound contract a workflow drives.
// *contract.StomaTrade satisfies it.
type Contract interface {
	ChainID() uint64
	Address() common.Address

	AddFarmer(ctx context.Context, cid, collectorID, name string, age *big.Int, domicile string) *contract.TransactionResult
	EncodeAddFarmer(cid, collectorID, name string, age *big.Int, domicile string) (string, error)
	CreateProject(ctx context.Context, valueProject, maxCrowdFunding *big.Int, cid string) *contract.TransactionResult
	Invest(ctx context.Context, projectID, amount *big.Int) *contract.TransactionResult
	FinishProject(ctx context.Context, projectID, profit *big.Int) *contract.TransactionResult
	ClaimWithdraw(ctx context.Context, projectID *big.Int) *contract.TransactionResult
	RefundProject(ctx context.Context, projectID *big.Int) *contract.TransactionResult
	ClaimRefund(ctx context.Context, projectID *big.Int) *contract.TransactionResult
	CloseProject(ctx context.Context, projectID *big.Int) *contract.TransactionResult

	GetContribution(ctx context.Context, projectID *big.Int, investor common.Address) (*big.Int, error)
	GetProfitPool(ctx context.Context, projectID *big.Int) (*big.Int, error)
	GetClaimedProfit(ctx context.Context, projectID *big.Int, investor common.Address) (*big.Int, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)

	ExtractEvent(receipt *types.Receipt, name string) (map[string]interface{}, bool)
}

var _ Contract = (*contract.StomaTrade)(nil)

// Gateway resolves the contract of a chain.
type Gateway interface {
	Bind(ctx context.Context, chainID uint64) (Contract, error)
}

// ServiceGateway adapts contract.Service to Gateway.
type ServiceGateway struct {
	Service *contract.Service
}

// Bind resolves chainID through the contract registry.
func (g *ServiceGateway) Bind(ctx context.Context, chainID uint64) (Contract, error) {
	c, err := g.Service.Bind(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return c, nil
}
