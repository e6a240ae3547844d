package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// StomaTrade is the typed surface of the StomaTrade contract on one chain.
// Method names and argument types are fixed here; the deployed ABI is only
// checked against them when the handle is created.
type StomaTrade struct {
	handle     *Handle
	executor   *Executor
	correlator *Correlator
}

// NewStomaTrade binds the typed surface to a resolved handle.
func NewStomaTrade(h *Handle, executor *Executor, correlator *Correlator) *StomaTrade {
	return &StomaTrade{handle: h, executor: executor, correlator: correlator}
}

// ChainID returns the chain the contract lives on.
func (s *StomaTrade) ChainID() uint64 {
	return s.handle.ChainID
}

// Address returns the contract address.
func (s *StomaTrade) Address() common.Address {
	return s.handle.Address
}

// AddFarmer mints a farmer NFT. Emits FarmerAdded.
func (s *StomaTrade) AddFarmer(ctx context.Context, cid, collectorID, name string, age *big.Int, domicile string) *TransactionResult {
	return s.executor.Execute(ctx, s.handle, MethodAddFarmer, cid, collectorID, name, age, domicile)
}

// EncodeAddFarmer returns addFarmer calldata for an external signer.
func (s *StomaTrade) EncodeAddFarmer(cid, collectorID, name string, age *big.Int, domicile string) (string, error) {
	return encodeCall(s.handle, MethodAddFarmer, cid, collectorID, name, age, domicile)
}

// CreateProject mints a project NFT. Emits ProjectCreated.
func (s *StomaTrade) CreateProject(ctx context.Context, valueProject, maxCrowdFunding *big.Int, cid string) *TransactionResult {
	return s.executor.Execute(ctx, s.handle, MethodCreateProject, valueProject, maxCrowdFunding, cid)
}

// Invest records an investment of amount (wei) into projectID. Emits Invested.
func (s *StomaTrade) Invest(ctx context.Context, projectID, amount *big.Int) *TransactionResult {
	return s.executor.Execute(ctx, s.handle, MethodInvest, projectID, amount)
}

// FinishProject deposits profit (wei) for projectID.
func (s *StomaTrade) FinishProject(ctx context.Context, projectID, profit *big.Int) *TransactionResult {
	return s.executor.Execute(ctx, s.handle, MethodFinishProject, projectID, profit)
}

// ClaimWithdraw claims the signer's profit share. Emits ProfitClaimed.
func (s *StomaTrade) ClaimWithdraw(ctx context.Context, projectID *big.Int) *TransactionResult {
	return s.executor.Execute(ctx, s.handle, MethodClaimWithdraw, projectID)
}

// RefundProject marks projectID refundable. Emits ProjectStatusChanged.
func (s *StomaTrade) RefundProject(ctx context.Context, projectID *big.Int) *TransactionResult {
	return s.executor.Execute(ctx, s.handle, MethodRefundProject, projectID)
}

// ClaimRefund claims the signer's refund. Emits Refunded.
func (s *StomaTrade) ClaimRefund(ctx context.Context, projectID *big.Int) *TransactionResult {
	return s.executor.Execute(ctx, s.handle, MethodClaimRefund, projectID)
}

// CloseProject closes crowdfunding for projectID.
func (s *StomaTrade) CloseProject(ctx context.Context, projectID *big.Int) *TransactionResult {
	return s.executor.Execute(ctx, s.handle, MethodCloseProject, projectID)
}

// GetContribution returns investor's contribution to projectID in wei.
func (s *StomaTrade) GetContribution(ctx context.Context, projectID *big.Int, investor common.Address) (*big.Int, error) {
	return s.callBigInt(ctx, MethodGetContribution, projectID, investor)
}

// GetProfitPool returns the deposited profit of projectID in wei.
func (s *StomaTrade) GetProfitPool(ctx context.Context, projectID *big.Int) (*big.Int, error) {
	return s.callBigInt(ctx, MethodGetProfitPool, projectID)
}

// GetClaimedProfit returns the profit investor already claimed in wei.
func (s *StomaTrade) GetClaimedProfit(ctx context.Context, projectID *big.Int, investor common.Address) (*big.Int, error) {
	return s.callBigInt(ctx, MethodGetClaimedProfit, projectID, investor)
}

// TokenURI returns the metadata URI of tokenID.
func (s *StomaTrade) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	out, err := s.executor.Call(ctx, s.handle, MethodTokenURI, tokenID)
	if err != nil {
		return "", err
	}
	if len(out) != 1 {
		return "", fmt.Errorf("%s: expected 1 output, got %d", MethodTokenURI, len(out))
	}
	uri, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: unexpected output type %T", MethodTokenURI, out[0])
	}
	return uri, nil
}

func (s *StomaTrade) callBigInt(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := s.executor.Call(ctx, s.handle, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: expected 1 output, got %d", method, len(out))
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type %T", method, out[0])
	}
	return n, nil
}

// ExtractEvent returns the decoded args of event name in receipt.
func (s *StomaTrade) ExtractEvent(receipt *types.Receipt, name string) (map[string]interface{}, bool) {
	return s.correlator.ExtractEvent(s.handle, receipt, name)
}

// Service resolves typed contracts per chain.
type Service struct {
	Registry   *Registry
	Executor   *Executor
	Correlator *Correlator
}

// Bind returns the StomaTrade contract on chainID.
func (s *Service) Bind(ctx context.Context, chainID uint64) (*StomaTrade, error) {
	h, err := s.Registry.Get(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return NewStomaTrade(h, s.Executor, s.Correlator), nil
}
