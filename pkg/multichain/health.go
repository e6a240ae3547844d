package multichain

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthStatus is the result of probing one chain connection.
type HealthStatus struct {
	ChainID     uint64        `json:"chainId"`
	Endpoint    string        `json:"endpoint"`
	IsHealthy   bool          `json:"isHealthy"`
	LatestBlock uint64        `json:"latestBlock"`
	GasPrice    string        `json:"gasPrice,omitempty"`
	Latency     time.Duration `json:"latency"`
	LastError   string        `json:"lastError,omitempty"`
	CheckedAt   time.Time     `json:"checkedAt"`
}

// HealthCheck checks every open connection concurrently.
func (p *Pool) HealthCheck(ctx context.Context) map[uint64]*HealthStatus {
	p.mu.RLock()
	conns := make([]*Connection, 0, len(p.conns))
	for _, conn := range p.conns {
		conns = append(conns, conn)
	}
	p.mu.RUnlock()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		statuses = make(map[uint64]*HealthStatus, len(conns))
	)
	for _, conn := range conns {
		wg.Add(1)
		go func(conn *Connection) {
			defer wg.Done()
			status := checkConnection(ctx, conn)
			mu.Lock()
			statuses[conn.ChainID] = status
			mu.Unlock()
		}(conn)
	}
	wg.Wait()

	return statuses
}

func checkConnection(ctx context.Context, conn *Connection) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{
		ChainID:  conn.ChainID,
		Endpoint: conn.Endpoint,
	}
	head, err := conn.backend.BlockNumber(ctx)
	status.Latency = time.Since(start)
	status.CheckedAt = time.Now()
	if err != nil {
		status.LastError = err.Error()
		return status
	}
	status.IsHealthy = true
	status.LatestBlock = head

	// a node that serves blocks but not fee data is still healthy
	if price, err := conn.GasPrice(ctx); err == nil {
		status.GasPrice = price.String()
	}
	return status
}

// HealthChecker performs periodic health checks on pooled connections.
type HealthChecker struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{
		pool:     pool,
		interval: interval,
		logger:   logger.Named("health"),
	}
}

// Start begins periodic health checking.
func (hc *HealthChecker) Start(ctx context.Context) {
	ctx, hc.cancel = context.WithCancel(ctx)

	hc.wg.Add(1)
	go hc.run(ctx)

	hc.logger.Info("health checker started", zap.Duration("interval", hc.interval))
}

// Stop stops the health checker.
func (hc *HealthChecker) Stop() {
	if hc.cancel != nil {
		hc.cancel()
	}
	hc.wg.Wait()
	hc.logger.Info("health checker stopped")
}

func (hc *HealthChecker) run(ctx context.Context) {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hc.checkAll(ctx)
		}
	}
}

func (hc *HealthChecker) checkAll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, hc.interval)
	defer cancel()

	var healthy, unhealthy int
	for chainID, status := range hc.pool.HealthCheck(ctx) {
		if status.IsHealthy {
			healthy++
			continue
		}
		unhealthy++
		hc.logger.Warn("chain unhealthy",
			zap.Uint64("chainId", chainID),
			zap.String("endpoint", status.Endpoint),
			zap.String("error", status.LastError),
		)
	}

	hc.logger.Debug("health check complete",
		zap.Int("healthy", healthy),
		zap.Int("unhealthy", unhealthy),
	)
}
