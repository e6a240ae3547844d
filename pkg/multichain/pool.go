package multichain

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/0xmhha/stomatrade-go/client"
	"github.com/0xmhha/stomatrade-go/internal/constants"
)

// Dialer opens a backend for endpoint.
type Dialer func(ctx context.Context, endpoint string) (client.Backend, error)

// Config holds pool configuration
type Config struct {
	// DefaultURL is used when a chain has no dedicated RPC URL
	DefaultURL string

	// DialTimeout bounds connection establishment
	DialTimeout time.Duration

	// RateLimit is requests per second per chain; zero disables limiting
	RateLimit float64
	RateBurst int

	// PollInterval is the receipt polling cadence for WaitForTransaction
	PollInterval time.Duration

	// Dial overrides how backends are created (tests use the simulated chain)
	Dial Dialer
}

// Pool holds one connection per chain id, created lazily on first use.
type Pool struct {
	cfg    Config
	conns  map[uint64]*Connection
	mu     sync.RWMutex
	group  singleflight.Group
	closed atomic.Bool
	logger *zap.Logger
}

// NewPool creates an empty provider pool.
func NewPool(cfg *Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = constants.DefaultRPCTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = constants.DefaultPollInterval
	}
	if c.RateBurst == 0 && c.RateLimit > 0 {
		c.RateBurst = int(c.RateLimit) + 1
	}

	p := &Pool{
		cfg:    c,
		conns:  make(map[uint64]*Connection),
		logger: logger.Named("pool"),
	}
	if p.cfg.Dial == nil {
		p.cfg.Dial = p.dialRPC
	}
	return p
}

func (p *Pool) dialRPC(ctx context.Context, endpoint string) (client.Backend, error) {
	return client.NewClient(ctx, &client.Config{
		Endpoint: endpoint,
		Timeout:  p.cfg.DialTimeout,
		Logger:   p.logger,
	})
}

// Get returns the connection for chainID, creating it from overrideURL (or
// the default URL) when none exists. Concurrent first calls for the same
// chain share one dial; a failed dial is not cached.
func (p *Pool) Get(ctx context.Context, chainID uint64, overrideURL string) (*Connection, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	if conn, ok := p.Lookup(chainID); ok {
		if overrideURL != "" && overrideURL != conn.Endpoint {
			p.logger.Warn("ignoring endpoint override for existing connection; invalidate the chain to redial",
				zap.Uint64("chainId", chainID),
				zap.String("endpoint", conn.Endpoint),
				zap.String("override", overrideURL))
		}
		return conn, nil
	}

	endpoint := overrideURL
	if endpoint == "" {
		endpoint = p.cfg.DefaultURL
	}
	if endpoint == "" {
		return nil, NewChainError(chainID, ErrNoEndpoint, nil)
	}

	v, err, _ := p.group.Do(strconv.FormatUint(chainID, 10), func() (interface{}, error) {
		if conn, ok := p.Lookup(chainID); ok {
			return conn, nil
		}
		return p.connect(context.WithoutCancel(ctx), chainID, endpoint)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Connection), nil
}

func (p *Pool) connect(ctx context.Context, chainID uint64, endpoint string) (*Connection, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()

	backend, err := p.cfg.Dial(dialCtx, endpoint)
	if err != nil {
		p.logger.Warn("failed to dial chain",
			zap.Uint64("chainId", chainID),
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return nil, NewChainError(chainID, ErrDialFailed, err)
	}

	remote, err := backend.ChainID(dialCtx)
	if err != nil {
		closeBackend(backend)
		return nil, NewChainError(chainID, ErrDialFailed, err)
	}
	if !remote.IsUint64() || remote.Uint64() != chainID {
		closeBackend(backend)
		return nil, NewChainError(chainID, ErrChainIDMismatch, fmt.Errorf("endpoint reports %s", remote))
	}

	conn := &Connection{
		ChainID:   chainID,
		Endpoint:  endpoint,
		CreatedAt: time.Now(),
		backend:   backend,
	}
	if p.cfg.RateLimit > 0 {
		conn.limiter = rate.NewLimiter(rate.Limit(p.cfg.RateLimit), p.cfg.RateBurst)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		conn.close()
		return nil, ErrPoolClosed
	}
	p.conns[chainID] = conn

	p.logger.Info("chain connection created",
		zap.Uint64("chainId", chainID),
		zap.String("endpoint", endpoint))

	return conn, nil
}

// Lookup returns an existing connection without dialing.
func (p *Pool) Lookup(chainID uint64) (*Connection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.conns[chainID]
	return conn, ok
}

// Invalidate forgets the connection for chainID so the next Get dials
// again. The old connection is retired: operations already holding it
// finish before it is closed.
func (p *Pool) Invalidate(chainID uint64) bool {
	p.mu.Lock()
	conn, ok := p.conns[chainID]
	delete(p.conns, chainID)
	p.mu.Unlock()
	p.group.Forget(strconv.FormatUint(chainID, 10))

	if ok {
		conn.retire()
		p.logger.Info("chain connection invalidated",
			zap.Uint64("chainId", chainID),
			zap.Int("inFlight", conn.InFlight()))
	}
	return ok
}

// Chains returns the ids of all connected chains in ascending order.
func (p *Pool) Chains() []uint64 {
	p.mu.RLock()
	ids := make([]uint64, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BlockNumber returns the head of chainID using the default endpoint when
// the chain has no connection yet.
func (p *Pool) BlockNumber(ctx context.Context, chainID uint64) (uint64, error) {
	conn, err := p.Get(ctx, chainID, "")
	if err != nil {
		return 0, err
	}
	n, err := conn.BlockNumber(ctx)
	if err != nil {
		return 0, NewChainError(chainID, ErrRPCFailed, err)
	}
	return n, nil
}

// WaitForTransaction waits for hash on chainID to reach the given depth.
func (p *Pool) WaitForTransaction(ctx context.Context, chainID uint64, hash common.Hash, confirmations uint64, timeout time.Duration) (*types.Receipt, error) {
	conn, ok := p.Lookup(chainID)
	if !ok {
		return nil, NewChainError(chainID, ErrConnectionAbsent, nil)
	}
	return conn.WaitForTransaction(ctx, hash, confirmations, timeout, p.cfg.PollInterval)
}

// Close closes every connection. The pool rejects further Get calls.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[uint64]*Connection)
	p.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
	p.logger.Info("provider pool closed", zap.Int("connections", len(conns)))
}

func closeBackend(b client.Backend) {
	if closer, ok := b.(interface{ Close() }); ok {
		closer.Close()
	}
}
