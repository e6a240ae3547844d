package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	abiDecoder "github.com/0xmhha/stomatrade-go/abi"
	"github.com/0xmhha/stomatrade-go/internal/constants"
	"github.com/0xmhha/stomatrade-go/pkg/multichain"
	"github.com/0xmhha/stomatrade-go/records"
)

// ConfigSource is the read side of the contract configuration store.
// *records.DB satisfies it.
type ConfigSource interface {
	LatestContractConfig(ctx context.Context, name string, chainID uint64) (*records.ChainContractConfig, error)
	ActiveContractConfigs(ctx context.Context, name string) ([]*records.ChainContractConfig, error)
}

// RegistryConfig holds registry configuration
type RegistryConfig struct {
	// Name is the logical contract name configs are stored under
	Name string

	// PrivateKey is the hex platform key; empty yields read-only handles
	PrivateKey string
}

// Registry resolves and caches one contract handle per chain id.
type Registry struct {
	name   string
	source ConfigSource
	pool   *multichain.Pool
	key    *ecdsa.PrivateKey

	handles map[uint64]*Handle
	gens    map[uint64]uint64
	mu      sync.RWMutex
	group   singleflight.Group

	logger *zap.Logger
}

// NewRegistry creates a registry over source, dialing chains through pool.
func NewRegistry(cfg RegistryConfig, source ConfigSource, pool *multichain.Pool, logger *zap.Logger) (*Registry, error) {
	if source == nil {
		return nil, fmt.Errorf("config source cannot be nil")
	}
	if pool == nil {
		return nil, fmt.Errorf("provider pool cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = constants.DefaultContractName
	}

	r := &Registry{
		name:    cfg.Name,
		source:  source,
		pool:    pool,
		handles: make(map[uint64]*Handle),
		gens:    make(map[uint64]uint64),
		logger:  logger.Named("registry"),
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid signer key: %w", err)
		}
		r.key = key
		r.logger.Info("signer configured",
			zap.String("address", crypto.PubkeyToAddress(key.PublicKey).Hex()))
	} else {
		r.logger.Warn("no signer configured, contract handles are read-only")
	}

	return r, nil
}

// Name returns the logical contract name.
func (r *Registry) Name() string {
	return r.name
}

// Get returns the handle for chainID, resolving and caching it on first
// use. A failed resolution is not cached.
func (r *Registry) Get(ctx context.Context, chainID uint64) (*Handle, error) {
	if h, ok := r.cached(chainID); ok {
		return h, nil
	}

	v, err, _ := r.group.Do(strconv.FormatUint(chainID, 10), func() (interface{}, error) {
		if h, ok := r.cached(chainID); ok {
			return h, nil
		}
		return r.resolveLatest(context.WithoutCancel(ctx), chainID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

func (r *Registry) cached(chainID uint64) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[chainID]
	return h, ok
}

// resolveLatest builds a handle and caches it unless the chain was
// invalidated meanwhile, in which case it builds again from the newer
// configuration.
func (r *Registry) resolveLatest(ctx context.Context, chainID uint64) (*Handle, error) {
	for attempt := 1; ; attempt++ {
		gen := r.generation(chainID)
		h, err := r.resolve(ctx, chainID)
		if err != nil {
			return nil, err
		}
		if r.store(chainID, gen, h) {
			r.logger.Info("contract handle created",
				zap.Uint64("chainId", chainID),
				zap.String("address", h.Address.Hex()),
				zap.String("configId", h.ConfigID))
			return h, nil
		}
		if attempt == maxResolveAttempts {
			return nil, fmt.Errorf("%w: chain %d", ErrInvalidated, chainID)
		}
		r.logger.Debug("chain invalidated during resolution, retrying",
			zap.Uint64("chainId", chainID), zap.Int("attempt", attempt))
	}
}

func (r *Registry) generation(chainID uint64) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gens[chainID]
}

// store caches h if no invalidation happened since gen was read.
func (r *Registry) store(chainID, gen uint64, h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gens[chainID] != gen {
		return false
	}
	r.handles[chainID] = h
	return true
}

func (r *Registry) resolve(ctx context.Context, chainID uint64) (*Handle, error) {
	cfg, err := r.source.LatestContractConfig(ctx, r.name, chainID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s on chain %d", ErrConfigNotFound, r.name, chainID)
		}
		return nil, fmt.Errorf("failed to load contract config for chain %d: %w", chainID, err)
	}

	if !common.IsHexAddress(cfg.Address) {
		return nil, fmt.Errorf("%w: chain %d has malformed address %q", ErrConfigNotFound, chainID, cfg.Address)
	}
	address := common.HexToAddress(cfg.Address)
	if address == (common.Address{}) {
		return nil, fmt.Errorf("%w: chain %d has zero address", ErrConfigNotFound, chainID)
	}

	parsed, err := abiDecoder.Parse(cfg.ABI)
	if err != nil {
		return nil, fmt.Errorf("%w: chain %d: %v", ErrConfigNotFound, chainID, err)
	}
	if err := ValidateSurface(parsed); err != nil {
		return nil, fmt.Errorf("%w: chain %d: %w", ErrConfigNotFound, chainID, err)
	}

	conn, err := r.pool.Get(ctx, chainID, cfg.RPCURL)
	if err != nil {
		return nil, err
	}

	backend := conn.Backend()
	h := &Handle{
		ChainID:   chainID,
		Address:   address,
		ABI:       parsed,
		ConfigID:  cfg.ID,
		CreatedAt: time.Now(),
		conn:      conn,
		bound:     bind.NewBoundContract(address, *parsed, backend, backend, backend),
	}
	if r.key != nil {
		signer, err := bind.NewKeyedTransactorWithChainID(r.key, new(big.Int).SetUint64(chainID))
		if err != nil {
			return nil, fmt.Errorf("failed to create signer for chain %d: %w", chainID, err)
		}
		h.signer = signer
		r.checkFunds(ctx, conn, signer.From)
	}

	return h, nil
}

// checkFunds warns when the signer cannot pay for gas on the chain.
func (r *Registry) checkFunds(ctx context.Context, conn *multichain.Connection, from common.Address) {
	balance, err := conn.Balance(ctx, from)
	if err != nil {
		r.logger.Warn("failed to read signer balance",
			zap.Uint64("chainId", conn.ChainID), zap.Error(err))
		return
	}
	if balance.Sign() == 0 {
		r.logger.Warn("signer has no funds for gas",
			zap.Uint64("chainId", conn.ChainID),
			zap.String("address", from.Hex()))
	}
}

// Invalidate drops the cached handle and the chain connection so the next
// Get reloads configuration. Handles already returned keep working: their
// connection is closed once the operations using it finish.
func (r *Registry) Invalidate(chainID uint64) bool {
	r.mu.Lock()
	_, ok := r.handles[chainID]
	delete(r.handles, chainID)
	r.gens[chainID]++
	r.mu.Unlock()
	r.group.Forget(strconv.FormatUint(chainID, 10))

	r.pool.Invalidate(chainID)
	if ok {
		r.logger.Info("contract handle invalidated", zap.Uint64("chainId", chainID))
	}
	return ok
}

// Chains returns the chain ids with a cached handle.
func (r *Registry) Chains() []uint64 {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ListActive returns the latest live config of every chain.
func (r *Registry) ListActive(ctx context.Context) ([]*records.ChainContractConfig, error) {
	return r.source.ActiveContractConfigs(ctx, r.name)
}

// EncodeFunctionData returns hex calldata for method without submitting a
// transaction, for callers that sign with their own wallet.
func (r *Registry) EncodeFunctionData(ctx context.Context, chainID uint64, method string, args ...interface{}) (string, error) {
	h, err := r.Get(ctx, chainID)
	if err != nil {
		return "", err
	}
	return encodeCall(h, method, args...)
}

func encodeCall(h *Handle, method string, args ...interface{}) (string, error) {
	if _, ok := h.ABI.Methods[method]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	data, err := h.ABI.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", method, err)
	}
	return hexutil.Encode(data), nil
}
