package contract

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/0xmhha/stomatrade-go/internal/constants"
)

// TransactionResult is the uniform outcome of a contract write. Err is
// set whenever Success is false.
type TransactionResult struct {
	Method            string
	Hash              common.Hash
	Success           bool
	Receipt           *types.Receipt
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	From              common.Address
	To                common.Address
	Err               error
}

// Submitted reports whether the transaction reached the node.
func (r *TransactionResult) Submitted() bool {
	return r.Hash != (common.Hash{})
}

// ErrorMessage returns the failure text, or "" on success.
func (r *TransactionResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ExecutorConfig holds executor configuration
type ExecutorConfig struct {
	// Confirmations is the block depth to wait for (minimum 1)
	Confirmations uint64

	// Timeout bounds the confirmation wait
	Timeout time.Duration

	// PollInterval is the receipt polling cadence
	PollInterval time.Duration

	// GasLimit skips estimation when non-zero
	GasLimit uint64

	// Registerer receives executor metrics; nil disables them
	Registerer prometheus.Registerer
}

// Executor submits contract writes and waits for their confirmation.
type Executor struct {
	cfg     ExecutorConfig
	metrics *executorMetrics
	logger  *zap.Logger
}

// NewExecutor creates a transaction executor.
func NewExecutor(cfg ExecutorConfig, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Confirmations == 0 {
		cfg.Confirmations = constants.DefaultConfirmations
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = constants.DefaultConfirmationTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	return &Executor{
		cfg:     cfg,
		metrics: newExecutorMetrics(cfg.Registerer),
		logger:  logger.Named("executor"),
	}
}

// Execute submits method with args through h's signer and waits for the
// configured confirmations. It never returns nil and never panics on chain
// failures: submission errors, timeouts and reverts all come back as a
// result with Success false and Err set.
func (e *Executor) Execute(ctx context.Context, h *Handle, method string, args ...interface{}) *TransactionResult {
	start := time.Now()
	result := &TransactionResult{Method: method, From: h.From(), To: h.Address}

	log := e.logger.With(
		zap.Uint64("chainId", h.ChainID),
		zap.String("method", method))

	if !h.CanSign() {
		result.Err = &TxError{Method: method, Err: ErrNoSigner}
		e.metrics.observe(method, "rejected", start)
		return result
	}

	// held until confirmation so an invalidated chain drains instead of
	// closing under a pending transaction
	release, err := h.conn.Acquire()
	if err != nil {
		result.Err = &TxError{Method: method, Err: err}
		e.metrics.observe(method, "rejected", start)
		return result
	}
	defer release()

	tx, err := e.submit(ctx, h, method, args...)
	if err != nil {
		log.Warn("transaction submission failed", zap.Error(err))
		result.Err = &TxError{Method: method, Err: err}
		e.metrics.observe(method, "rejected", start)
		return result
	}
	result.Hash = tx.Hash()
	log = log.With(zap.String("txHash", result.Hash.Hex()))
	log.Debug("transaction submitted")

	receipt, err := h.conn.WaitForTransaction(ctx, result.Hash, e.cfg.Confirmations, e.cfg.Timeout, e.cfg.PollInterval)
	if err != nil {
		log.Warn("transaction confirmation failed", append(e.pendingState(ctx, h, result.Hash), zap.Error(err))...)
		result.Err = &TxError{Method: method, Hash: result.Hash, Err: err}
		e.metrics.observe(method, "timeout", start)
		return result
	}

	result.Receipt = receipt
	result.GasUsed = receipt.GasUsed
	result.EffectiveGasPrice = receipt.EffectiveGasPrice
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Warn("transaction reverted", zap.Uint64("block", result.BlockNumber))
		result.Err = &TxError{Method: method, Hash: result.Hash, Err: ErrReverted}
		e.metrics.observe(method, "reverted", start)
		return result
	}

	result.Success = true
	log.Info("transaction confirmed",
		zap.Uint64("block", result.BlockNumber),
		zap.Uint64("gasUsed", result.GasUsed))
	e.metrics.observe(method, "confirmed", start)
	return result
}

// pendingState reports whether an unconfirmed transaction is still known
// to the node, for diagnosing timeouts.
func (e *Executor) pendingState(ctx context.Context, h *Handle, hash common.Hash) []zap.Field {
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultRPCTimeout)
	defer cancel()

	_, pending, err := h.conn.TransactionByHash(lookupCtx, hash)
	if err != nil {
		return []zap.Field{zap.NamedError("lookupError", err)}
	}
	return []zap.Field{zap.Bool("pending", pending)}
}

func (e *Executor) submit(ctx context.Context, h *Handle, method string, args ...interface{}) (*types.Transaction, error) {
	if _, ok := h.ABI.Methods[method]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	if err := h.conn.Wait(ctx); err != nil {
		return nil, err
	}

	opts := *h.signer
	opts.Context = ctx
	if e.cfg.GasLimit > 0 {
		opts.GasLimit = e.cfg.GasLimit
	}

	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	return h.bound.Transact(&opts, method, args...)
}

// Call performs a read-only invocation and returns the decoded outputs.
func (e *Executor) Call(ctx context.Context, h *Handle, method string, args ...interface{}) ([]interface{}, error) {
	if _, ok := h.ABI.Methods[method]; !ok {
		return nil, &TxError{Method: method, Err: ErrUnknownMethod}
	}
	release, err := h.conn.Acquire()
	if err != nil {
		return nil, &TxError{Method: method, Err: err}
	}
	defer release()
	if err := h.conn.Wait(ctx); err != nil {
		return nil, &TxError{Method: method, Err: err}
	}

	var out []interface{}
	opts := &bind.CallOpts{Context: ctx, From: h.From()}
	if err := h.bound.Call(opts, &out, method, args...); err != nil {
		return nil, &TxError{Method: method, Err: err}
	}
	return out, nil
}
