package workflow

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"github.com/0xmhha/stomatrade-go/contract"
	"github.com/0xmhha/stomatrade-go/records"
)

// FarmerSubmissions mints farmer NFTs after admin approval.
type FarmerSubmissions struct {
	*submissions
}

// CreateFarmerSubmission is the input of FarmerSubmissions.Create.
type CreateFarmerSubmission struct {
	FarmerID    string `json:"farmerId"`
	Commodity   string `json:"commodity"`
	SubmittedBy string `json:"submittedBy"`
	MetadataCID string `json:"metadataCid,omitempty"`
}

// FarmerSubmission is a created submission with the addFarmer calldata an
// external wallet can sign. EncodedCalldata is empty when no chain was
// given or the chain has no usable contract.
type FarmerSubmission struct {
	*records.Submission
	EncodedCalldata string `json:"encodedCalldata,omitempty"`
}

// Create records a farmer submission. A non-zero chainID also returns the
// addFarmer calldata for that chain's contract.
func (f *FarmerSubmissions) Create(ctx context.Context, in CreateFarmerSubmission, chainID uint64) (*FarmerSubmission, error) {
	if in.FarmerID == "" {
		return nil, badRequest(nil, "farmerId is required")
	}
	if in.SubmittedBy == "" {
		return nil, badRequest(nil, "submittedBy is required")
	}

	farmer, err := f.store.GetFarmer(ctx, in.FarmerID)
	if err != nil {
		return nil, lookupError(err, "Farmer", in.FarmerID)
	}

	sub := &records.Submission{
		SubjectID:   farmer.ID,
		Commodity:   in.Commodity,
		SubmittedBy: in.SubmittedBy,
		MetadataCID: in.MetadataCID,
	}
	if err := f.create(ctx, sub); err != nil {
		return nil, err
	}

	out := &FarmerSubmission{Submission: sub}
	if chainID == 0 {
		return out, nil
	}

	c, err := f.gateway.Bind(ctx, chainID)
	if err == nil {
		out.EncodedCalldata, err = c.EncodeAddFarmer(sub.MetadataCID, farmer.CollectorID, farmer.Name,
			big.NewInt(int64(farmer.Age)), farmer.Domicile)
	}
	if err != nil {
		f.logger.Warn("failed to encode addFarmer calldata",
			zap.String("submissionId", sub.ID),
			zap.Uint64("chainId", chainID),
			zap.Error(err))
	}
	return out, nil
}

// Approve mints the farmer NFT on chainID and back-fills the farmer's
// token id from the FarmerAdded event.
func (f *FarmerSubmissions) Approve(ctx context.Context, id, approvedBy string, chainID uint64) (*records.Submission, error) {
	if approvedBy == "" {
		return nil, badRequest(nil, "approvedBy is required")
	}
	sub, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	farmer, err := f.store.GetFarmer(ctx, sub.SubjectID)
	if err != nil {
		return nil, lookupError(err, "Farmer", sub.SubjectID)
	}

	return f.approve(ctx, sub, approvedBy, chainID,
		func(ctx context.Context, c Contract) *contract.TransactionResult {
			return c.AddFarmer(ctx, sub.MetadataCID, farmer.CollectorID, farmer.Name,
				big.NewInt(int64(farmer.Age)), farmer.Domicile)
		},
		func(ctx context.Context, tokenID string) error {
			return f.store.SetFarmerTokenID(ctx, farmer.ID, tokenID)
		})
}
