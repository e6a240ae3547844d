package workflow

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/stomatrade-go/contract"
	"github.com/0xmhha/stomatrade-go/internal/testutil"
	"github.com/0xmhha/stomatrade-go/records"
)

const testChainID uint64 = 1337

var (
	testContractAddr = common.HexToAddress("0x00000000000000000000000000000000000c0001")
	testSigner       = common.HexToAddress("0x00000000000000000000000000000000000a0001")
)

type fakeCall struct {
	Method string
	Args   []interface{}
}

// fakeContract answers contract writes from canned results. Methods
// without a canned result succeed.
type fakeContract struct {
	mu      sync.Mutex
	results map[string]*contract.TransactionResult
	events  map[string]map[string]interface{}
	calls   []fakeCall
	nonce   int64

	// reads answers contract reads by method; readErr fails them all
	reads   map[string]*big.Int
	uri     string
	readErr error
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		results: make(map[string]*contract.TransactionResult),
		events:  make(map[string]map[string]interface{}),
		reads:   make(map[string]*big.Int),
	}
}

func (f *fakeContract) ChainID() uint64          { return testChainID }
func (f *fakeContract) Address() common.Address { return testContractAddr }

func (f *fakeContract) record(method string, args ...interface{}) *contract.TransactionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{Method: method, Args: args})
	f.nonce++
	if r, ok := f.results[method]; ok {
		cp := *r
		return &cp
	}
	return &contract.TransactionResult{
		Method:            method,
		Hash:              common.BigToHash(big.NewInt(f.nonce)),
		Success:           true,
		Receipt:           &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10 + f.nonce)},
		BlockNumber:       uint64(10 + f.nonce),
		GasUsed:           50000,
		EffectiveGasPrice: big.NewInt(1_000_000_000),
		From:              testSigner,
		To:                testContractAddr,
	}
}

func (f *fakeContract) callsOf(method string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// revert makes method mine with a failed status.
func (f *fakeContract) revert(method string) {
	hash := common.HexToHash("0xdead")
	f.results[method] = &contract.TransactionResult{
		Method:      method,
		Hash:        hash,
		Receipt:     &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(20)},
		BlockNumber: 20,
		GasUsed:     30000,
		From:        testSigner,
		To:          testContractAddr,
		Err:         &contract.TxError{Method: method, Hash: hash, Err: contract.ErrReverted},
	}
}

// emit makes successful receipts carry event with args.
func (f *fakeContract) emit(event string, args map[string]interface{}) {
	f.events[event] = args
}

func (f *fakeContract) AddFarmer(ctx context.Context, cid, collectorID, name string, age *big.Int, domicile string) *contract.TransactionResult {
	return f.record(contract.MethodAddFarmer, cid, collectorID, name, age, domicile)
}

func (f *fakeContract) EncodeAddFarmer(cid, collectorID, name string, age *big.Int, domicile string) (string, error) {
	return fmt.Sprintf("0xcafe%x", []byte(collectorID)), nil
}

func (f *fakeContract) CreateProject(ctx context.Context, valueProject, maxCrowdFunding *big.Int, cid string) *contract.TransactionResult {
	return f.record(contract.MethodCreateProject, valueProject, maxCrowdFunding, cid)
}

func (f *fakeContract) Invest(ctx context.Context, projectID, amount *big.Int) *contract.TransactionResult {
	return f.record(contract.MethodInvest, projectID, amount)
}

func (f *fakeContract) FinishProject(ctx context.Context, projectID, profit *big.Int) *contract.TransactionResult {
	return f.record(contract.MethodFinishProject, projectID, profit)
}

func (f *fakeContract) ClaimWithdraw(ctx context.Context, projectID *big.Int) *contract.TransactionResult {
	return f.record(contract.MethodClaimWithdraw, projectID)
}

func (f *fakeContract) RefundProject(ctx context.Context, projectID *big.Int) *contract.TransactionResult {
	return f.record(contract.MethodRefundProject, projectID)
}

func (f *fakeContract) ClaimRefund(ctx context.Context, projectID *big.Int) *contract.TransactionResult {
	return f.record(contract.MethodClaimRefund, projectID)
}

func (f *fakeContract) CloseProject(ctx context.Context, projectID *big.Int) *contract.TransactionResult {
	return f.record(contract.MethodCloseProject, projectID)
}

func (f *fakeContract) read(method string, args ...interface{}) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{Method: method, Args: args})
	if f.readErr != nil {
		return nil, f.readErr
	}
	n, ok := f.reads[method]
	if !ok {
		return big.NewInt(0), nil
	}
	return n, nil
}

func (f *fakeContract) GetContribution(ctx context.Context, projectID *big.Int, investor common.Address) (*big.Int, error) {
	return f.read(contract.MethodGetContribution, projectID, investor)
}

func (f *fakeContract) GetProfitPool(ctx context.Context, projectID *big.Int) (*big.Int, error) {
	return f.read(contract.MethodGetProfitPool, projectID)
}

func (f *fakeContract) GetClaimedProfit(ctx context.Context, projectID *big.Int, investor common.Address) (*big.Int, error) {
	return f.read(contract.MethodGetClaimedProfit, projectID, investor)
}

func (f *fakeContract) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	if _, err := f.read(contract.MethodTokenURI, tokenID); err != nil {
		return "", err
	}
	return f.uri, nil
}

func (f *fakeContract) ExtractEvent(receipt *types.Receipt, name string) (map[string]interface{}, bool) {
	args, ok := f.events[name]
	return args, ok
}

type fakeGateway struct {
	contract *fakeContract
	err      error
	binds    atomic.Int32
}

func (g *fakeGateway) Bind(ctx context.Context, chainID uint64) (Contract, error) {
	g.binds.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	return g.contract, nil
}

// claimSpy remembers the ids of created claims.
type claimSpy struct {
	Store
	mu  sync.Mutex
	ids []string
}

func (s *claimSpy) CreateClaim(ctx context.Context, c *records.Claim) error {
	s.mu.Lock()
	s.ids = append(s.ids, c.ID)
	s.mu.Unlock()
	return s.Store.CreateClaim(ctx, c)
}

type fixture struct {
	db       *records.DB
	store    Store
	contract *fakeContract
	gateway  *fakeGateway
	svc      *Service
	reg      *prometheus.Registry

	user    *records.User
	farmer  *records.Farmer
	project *records.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := records.Open(ctx, ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{db: db, store: db, contract: newFakeContract()}
	f.gateway = &fakeGateway{contract: f.contract}

	f.user = &records.User{WalletAddress: "0x00000000000000000000000000000000000b0001", Name: "Ayu"}
	require.NoError(t, db.CreateUser(ctx, f.user))
	f.farmer = &records.Farmer{CollectorID: "COL-1", Name: "Siti", Age: 41, Domicile: "Bogor"}
	require.NoError(t, db.CreateFarmer(ctx, f.farmer))
	f.project = &records.Project{FarmerID: f.farmer.ID, Name: "Kopi Gayo", Commodity: "coffee"}
	require.NoError(t, db.CreateProject(ctx, f.project))

	f.build(t)
	return f
}

// build (re)creates the service over f.store with fresh metrics.
func (f *fixture) build(t *testing.T) {
	f.reg = prometheus.NewRegistry()
	f.svc = New(Config{Registerer: f.reg}, f.store, f.gateway, testutil.NewTestLogger(t))
}

// mintProject gives the fixture project an on-chain token id.
func (f *fixture) mintProject(t *testing.T, tokenID string) {
	t.Helper()
	require.NoError(t, f.db.SetProjectTokenID(context.Background(), f.project.ID, tokenID))
}

func (f *fixture) transactions(t *testing.T, kind records.TxKind) []*records.BlockchainTransaction {
	t.Helper()
	txs, err := f.db.ListTransactions(context.Background(), kind)
	require.NoError(t, err)
	return txs
}

func (f *fixture) outcomes(kind, outcome string) float64 {
	return counterValue(f.svc.base.metrics.outcomes.WithLabelValues(kind, outcome))
}
