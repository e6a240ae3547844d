// Package records is the relational store for off-chain business records:
// submissions, subjects, investments, claims and the append-only audit
// trail of chain transactions.
package records

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrConflict   = errors.New("record already exists")
	ErrStaleState = errors.New("record is not in the expected state")
	ErrClosed     = errors.New("records database is closed")
)

// SubmissionKind distinguishes farmer and project submissions.
type SubmissionKind string

const (
	KindFarmer  SubmissionKind = "FARMER"
	KindProject SubmissionKind = "PROJECT"
)

// SubmissionStatus is the approval state of a submission.
type SubmissionStatus string

const (
	StatusSubmitted SubmissionStatus = "SUBMITTED"
	StatusApproved  SubmissionStatus = "APPROVED"
	StatusMinted    SubmissionStatus = "MINTED"
	StatusRejected  SubmissionStatus = "REJECTED"
)

// RecordStatus is the state of investment-style records. A rolled back
// record is deleted rather than marked.
type RecordStatus string

const (
	RecordCreated   RecordStatus = "CREATED"
	RecordConfirmed RecordStatus = "CONFIRMED"
)

// TxKind classifies the action a chain transaction performed.
type TxKind string

const (
	TxMintFarmerNFT TxKind = "MINT_FARMER_NFT"
	TxCreateProject TxKind = "CREATE_PROJECT"
	TxInvest        TxKind = "INVEST"
	TxDepositProfit TxKind = "DEPOSIT_PROFIT"
	TxClaimProfit   TxKind = "CLAIM_PROFIT"
	TxRefund        TxKind = "REFUND"
	TxClaimRefund   TxKind = "CLAIM_REFUND"
	TxCloseProject  TxKind = "CLOSE_PROJECT"
)

// TxStatus is the outcome of a chain transaction.
type TxStatus string

const (
	TxConfirmed TxStatus = "CONFIRMED"
	TxFailed    TxStatus = "FAILED"
)

// User is a platform account holding a wallet.
type User struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Farmer is the subject of a farmer submission.
type Farmer struct {
	ID          string    `json:"id"`
	CollectorID string    `json:"collectorId"`
	Name        string    `json:"name"`
	Age         int       `json:"age"`
	Domicile    string    `json:"domicile"`
	TokenID     string    `json:"tokenId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Project is the subject of a project submission and investments.
type Project struct {
	ID         string    `json:"id"`
	FarmerID   string    `json:"farmerId"`
	Name       string    `json:"name"`
	Commodity  string    `json:"commodity"`
	TokenID    string    `json:"tokenId,omitempty"`
	Refundable bool      `json:"refundable"`
	Closed     bool      `json:"closed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Submission is a pending request to mint a farmer or project NFT.
type Submission struct {
	ID              string           `json:"id"`
	Kind            SubmissionKind   `json:"kind"`
	SubjectID       string           `json:"subjectId"`
	Status          SubmissionStatus `json:"status"`
	Commodity       string           `json:"commodity,omitempty"`
	ValueProject    string           `json:"valueProject,omitempty"`
	MaxCrowdFunding string           `json:"maxCrowdFunding,omitempty"`
	MetadataCID     string           `json:"metadataCid,omitempty"`
	SubmittedBy     string           `json:"submittedBy"`
	ApprovedBy      string           `json:"approvedBy,omitempty"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	BlockchainTxID  string           `json:"blockchainTxId,omitempty"`
	MintedTokenID   string           `json:"mintedTokenId,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// BlockchainTransaction is an append-only audit entry for one chain call.
type BlockchainTransaction struct {
	ID           string    `json:"id"`
	ChainID      uint64    `json:"chainId"`
	Hash         string    `json:"hash,omitempty"`
	Kind         TxKind    `json:"kind"`
	Status       TxStatus  `json:"status"`
	From         string    `json:"from"`
	To           string    `json:"to,omitempty"`
	BlockNumber  uint64    `json:"blockNumber"`
	GasUsed      uint64    `json:"gasUsed"`
	GasPrice     string    `json:"gasPrice,omitempty"`
	EventData    string    `json:"eventData,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Investment links a user, a project and an amount.
type Investment struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	ProjectID      string       `json:"projectId"`
	ChainID        uint64       `json:"chainId"`
	Amount         string       `json:"amount"`
	Status         RecordStatus `json:"status"`
	ReceiptTokenID string       `json:"receiptTokenId,omitempty"`
	TxHash         string       `json:"transactionHash,omitempty"`
	BlockNumber    uint64       `json:"blockNumber,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// ClaimKind distinguishes profit and refund claims.
type ClaimKind string

const (
	ClaimProfit ClaimKind = "PROFIT"
	ClaimRefund ClaimKind = "REFUND"
)

// Claim is a profit or refund claim by an investor.
type Claim struct {
	ID          string       `json:"id"`
	Kind        ClaimKind    `json:"kind"`
	UserID      string       `json:"userId"`
	ProjectID   string       `json:"projectId"`
	ChainID     uint64       `json:"chainId"`
	Amount      string       `json:"amount,omitempty"`
	Status      RecordStatus `json:"status"`
	TxHash      string       `json:"transactionHash,omitempty"`
	BlockNumber uint64       `json:"blockNumber,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ProfitPool aggregates deposited and claimed profit of a project.
type ProfitPool struct {
	ProjectID    string    `json:"projectId"`
	TotalProfit  string    `json:"totalProfit"`
	ClaimedTotal string    `json:"claimedProfit"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Portfolio summarises a user's active investments.
type Portfolio struct {
	UserID            string    `json:"userId"`
	TotalInvested     string    `json:"totalInvested"`
	ActiveInvestments int       `json:"activeInvestments"`
	ProjectCount      int       `json:"projectCount"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ChainContractConfig locates a deployed contract on one chain.
type ChainContractConfig struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ChainID   uint64    `json:"chainId"`
	Address   string    `json:"address"`
	ABI       string    `json:"abi"`
	RPCURL    string    `json:"rpcUrl,omitempty"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"createdAt"`
}
