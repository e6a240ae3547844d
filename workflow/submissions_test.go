package workflow

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/stomatrade-go/amount"
	"github.com/0xmhha/stomatrade-go/contract"
	"github.com/0xmhha/stomatrade-go/records"
)

func (f *fixture) submitFarmer(t *testing.T) *FarmerSubmission {
	t.Helper()
	sub, err := f.svc.Farmers.Create(context.Background(), CreateFarmerSubmission{
		FarmerID:    f.farmer.ID,
		Commodity:   "coffee",
		SubmittedBy: "0xsubmitter",
		MetadataCID: "bafyfarmer",
	}, testChainID)
	require.NoError(t, err)
	return sub
}

func TestFarmerSubmissionCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.submitFarmer(t)
	assert.Equal(t, records.StatusSubmitted, sub.Status)
	assert.Equal(t, records.KindFarmer, sub.Kind)
	assert.Equal(t, f.farmer.ID, sub.SubjectID)
	assert.True(t, strings.HasPrefix(sub.EncodedCalldata, "0xcafe"))

	// one live submission per farmer
	_, err := f.svc.Farmers.Create(ctx, CreateFarmerSubmission{FarmerID: f.farmer.ID, SubmittedBy: "0xother"}, 0)
	assert.Equal(t, KindBadRequest, KindOf(err))
	assert.Contains(t, err.Error(), "already has a submission with status: SUBMITTED")

	_, err = f.svc.Farmers.Create(ctx, CreateFarmerSubmission{FarmerID: "missing", SubmittedBy: "0xother"}, 0)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.Farmers.Create(ctx, CreateFarmerSubmission{FarmerID: f.farmer.ID}, 0)
	assert.Equal(t, KindBadRequest, KindOf(err))
}

func TestFarmerSubmissionCreateWithoutContract(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = fmt.Errorf("%w: chain %d", contract.ErrConfigNotFound, testChainID)

	sub := f.submitFarmer(t)
	assert.Empty(t, sub.EncodedCalldata)
	assert.Equal(t, records.StatusSubmitted, sub.Status)
}

func TestFarmerApproveMints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.contract.emit(contract.EventFarmerAdded, map[string]interface{}{
		contract.ArgIDToken: big.NewInt(7),
		"name":              "Siti",
	})

	sub := f.submitFarmer(t)
	minted, err := f.svc.Farmers.Approve(ctx, sub.ID, "0xadmin", testChainID)
	require.NoError(t, err)

	assert.Equal(t, records.StatusMinted, minted.Status)
	assert.Equal(t, "7", minted.MintedTokenID)
	assert.Equal(t, "0xadmin", minted.ApprovedBy)
	require.NotEmpty(t, minted.BlockchainTxID)

	farmer, err := f.db.GetFarmer(ctx, f.farmer.ID)
	require.NoError(t, err)
	assert.Equal(t, "7", farmer.TokenID)

	calls := f.contract.callsOf(contract.MethodAddFarmer)
	require.Len(t, calls, 1)
	assert.Equal(t, []interface{}{"bafyfarmer", "COL-1", "Siti", big.NewInt(41), "Bogor"}, calls[0].Args)

	tx, err := f.db.GetTransaction(ctx, minted.BlockchainTxID)
	require.NoError(t, err)
	assert.Equal(t, records.TxMintFarmerNFT, tx.Kind)
	assert.Equal(t, records.TxConfirmed, tx.Status)
	assert.Equal(t, testSigner.Hex(), tx.From)
	assert.Equal(t, testContractAddr.Hex(), tx.To)
	assert.Equal(t, "1000000000", tx.GasPrice)
	assert.JSONEq(t, `{"idToken":"7","name":"Siti"}`, tx.EventData)

	assert.Equal(t, 1.0, f.outcomes(KindFarmerSubmission, outcomeSucceeded))
}

func TestFarmerApproveRevertCompensates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.contract.revert(contract.MethodAddFarmer)

	sub := f.submitFarmer(t)
	_, err := f.svc.Farmers.Approve(ctx, sub.ID, "0xadmin", testChainID)
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))
	assert.Contains(t, err.Error(), "failed to mint Farmer NFT")
	assert.ErrorIs(t, err, contract.ErrReverted)

	back, err := f.svc.Farmers.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, records.StatusSubmitted, back.Status)
	assert.Empty(t, back.ApprovedBy)
	assert.Empty(t, back.MintedTokenID)

	txs := f.transactions(t, records.TxMintFarmerNFT)
	require.Len(t, txs, 1)
	assert.Equal(t, records.TxFailed, txs[0].Status)
	assert.NotEmpty(t, txs[0].Hash)
	assert.Contains(t, txs[0].ErrorMessage, "reverted")

	farmer, err := f.db.GetFarmer(ctx, f.farmer.ID)
	require.NoError(t, err)
	assert.Empty(t, farmer.TokenID)

	assert.Equal(t, 1.0, f.outcomes(KindFarmerSubmission, outcomeCompensated))

	// the submission can be approved again once the chain accepts it
	delete(f.contract.results, contract.MethodAddFarmer)
	minted, err := f.svc.Farmers.Approve(ctx, sub.ID, "0xadmin2", testChainID)
	require.NoError(t, err)
	assert.Equal(t, records.StatusMinted, minted.Status)
}

func TestFarmerApproveConfigNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.submitFarmer(t)
	f.gateway.err = fmt.Errorf("%w: chain %d", contract.ErrConfigNotFound, uint64(99))

	_, err := f.svc.Farmers.Approve(ctx, sub.ID, "0xadmin", 99)
	assert.Equal(t, KindConfigNotFound, KindOf(err))

	back, err := f.svc.Farmers.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, records.StatusSubmitted, back.Status)
	assert.Empty(t, back.ApprovedBy)
	assert.Empty(t, f.transactions(t, ""))
	assert.Empty(t, f.contract.callsOf(contract.MethodAddFarmer))
}

func TestFarmerApproveWithoutEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.submitFarmer(t)

	minted, err := f.svc.Farmers.Approve(ctx, sub.ID, "0xadmin", testChainID)
	require.NoError(t, err)
	assert.Equal(t, records.StatusMinted, minted.Status)
	assert.Empty(t, minted.MintedTokenID)

	farmer, err := f.db.GetFarmer(ctx, f.farmer.ID)
	require.NoError(t, err)
	assert.Empty(t, farmer.TokenID)
}

func TestFarmerApproveConcurrentOnlyOneMints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.contract.emit(contract.EventFarmerAdded, map[string]interface{}{contract.ArgIDToken: big.NewInt(7)})
	sub := f.submitFarmer(t)

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Farmers.Approve(ctx, sub.ID, fmt.Sprintf("0xadmin%d", i), testChainID)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, KindInvalidState, KindOf(err), err.Error())
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.contract.callsOf(contract.MethodAddFarmer), 1)
	assert.Len(t, f.transactions(t, records.TxMintFarmerNFT), 1)
}

func TestFarmerReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.submitFarmer(t)
	binds := f.gateway.binds.Load()

	rejected, err := f.svc.Farmers.Reject(ctx, sub.ID, "0xadmin", "incomplete documents")
	require.NoError(t, err)
	assert.Equal(t, records.StatusRejected, rejected.Status)
	assert.Equal(t, "incomplete documents", rejected.RejectionReason)
	assert.Equal(t, "0xadmin", rejected.ApprovedBy)

	_, err = f.svc.Farmers.Reject(ctx, sub.ID, "0xadmin", "again")
	assert.Equal(t, KindInvalidState, KindOf(err))

	_, err = f.svc.Farmers.Approve(ctx, sub.ID, "0xadmin", testChainID)
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.Contains(t, err.Error(), "Cannot approve submission with status: REJECTED")
	assert.Equal(t, binds, f.gateway.binds.Load())

	_, err = f.svc.Farmers.Reject(ctx, "missing", "0xadmin", "x")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestFarmerList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.submitFarmer(t)

	all, err := f.svc.Farmers.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, sub.ID, all[0].ID)

	minted, err := f.svc.Farmers.List(ctx, records.StatusMinted)
	require.NoError(t, err)
	assert.Empty(t, minted)

	// farmer and project submissions are listed apart
	projects, err := f.svc.Projects.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestProjectSubmissionApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.contract.emit(contract.EventProjectCreated, map[string]interface{}{contract.ArgIDProject: big.NewInt(3)})

	sub, err := f.svc.Projects.Create(ctx, CreateProjectSubmission{
		ProjectID:       f.project.ID,
		ValueProject:    "10000.50",
		MaxCrowdFunding: "8000",
		MetadataCID:     "bafyproject",
		SubmittedBy:     "0xsubmitter",
	})
	require.NoError(t, err)
	assert.Equal(t, "10000.5", sub.ValueProject)
	assert.Equal(t, "coffee", sub.Commodity)

	minted, err := f.svc.Projects.Approve(ctx, sub.ID, "0xadmin", testChainID)
	require.NoError(t, err)
	assert.Equal(t, records.StatusMinted, minted.Status)
	assert.Equal(t, "3", minted.MintedTokenID)

	project, err := f.db.GetProject(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "3", project.TokenID)

	value, _ := amount.ToWei("10000.5")
	maxFunding, _ := amount.ToWei("8000")
	calls := f.contract.callsOf(contract.MethodCreateProject)
	require.Len(t, calls, 1)
	assert.Equal(t, []interface{}{value, maxFunding, "bafyproject"}, calls[0].Args)

	txs := f.transactions(t, records.TxCreateProject)
	require.Len(t, txs, 1)
	assert.Equal(t, records.TxConfirmed, txs[0].Status)
}

func TestProjectSubmissionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateProjectSubmission
		kind Kind
	}{
		{"negative value", CreateProjectSubmission{ProjectID: f.project.ID, ValueProject: "-1", MaxCrowdFunding: "1", SubmittedBy: "0xs"}, KindBadRequest},
		{"non numeric cap", CreateProjectSubmission{ProjectID: f.project.ID, ValueProject: "1", MaxCrowdFunding: "lots", SubmittedBy: "0xs"}, KindBadRequest},
		{"missing project", CreateProjectSubmission{ProjectID: "missing", ValueProject: "1", MaxCrowdFunding: "1", SubmittedBy: "0xs"}, KindNotFound},
		{"missing submitter", CreateProjectSubmission{ProjectID: f.project.ID, ValueProject: "1", MaxCrowdFunding: "1"}, KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Projects.Create(ctx, tt.in)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestProjectSubmissionRevertCompensates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.contract.revert(contract.MethodCreateProject)

	sub, err := f.svc.Projects.Create(ctx, CreateProjectSubmission{
		ProjectID: f.project.ID, ValueProject: "1", MaxCrowdFunding: "1", SubmittedBy: "0xs",
	})
	require.NoError(t, err)

	_, err = f.svc.Projects.Approve(ctx, sub.ID, "0xadmin", testChainID)
	assert.Equal(t, KindBadRequest, KindOf(err))
	assert.Contains(t, err.Error(), "failed to mint Project NFT")

	back, err := f.svc.Projects.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, records.StatusSubmitted, back.Status)
	assert.Empty(t, back.ApprovedBy)

	txs := f.transactions(t, records.TxCreateProject)
	require.Len(t, txs, 1)
	assert.Equal(t, records.TxFailed, txs[0].Status)
}
