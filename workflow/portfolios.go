package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/0xmhha/stomatrade-go/internal/logger"
	"github.com/0xmhha/stomatrade-go/records"
)

// PortfolioStore is the slice of the records store the portfolio job needs.
type PortfolioStore interface {
	ListInvestorIDs(ctx context.Context) ([]string, error)
	RecalculatePortfolio(ctx context.Context, userID string) (*records.Portfolio, error)
}

var _ PortfolioStore = (*records.DB)(nil)

// PortfolioJobConfig holds portfolio job configuration
type PortfolioJobConfig struct {
	Interval time.Duration
	// Timeout bounds one user's recalculation; zero means no bound
	Timeout time.Duration
	// Registerer receives job metrics; nil disables them
	Registerer prometheus.Registerer
}

// PortfolioJob periodically rebuilds every investor's portfolio from
// confirmed investments, repairing drift left by failed workflow steps.
type PortfolioJob struct {
	cfg    PortfolioJobConfig
	store  PortfolioStore
	logger *zap.Logger

	recalculated prometheus.Counter
	failed       prometheus.Counter
}

// PortfolioPass summarizes one recalculation pass.
type PortfolioPass struct {
	Users  int
	Failed []string
}

// NewPortfolioJob creates the job.
func NewPortfolioJob(cfg PortfolioJobConfig, store PortfolioStore, log *zap.Logger) *PortfolioJob {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	j := &PortfolioJob{
		cfg:    cfg,
		store:  store,
		logger: logger.OrNop(log).Named("portfolio"),
	}
	if cfg.Registerer != nil {
		factory := promauto.With(cfg.Registerer)
		j.recalculated = factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stomatrade",
			Subsystem: "portfolio",
			Name:      "recalculated_total",
			Help:      "Portfolios rebuilt by the periodic job",
		})
		j.failed = factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stomatrade",
			Subsystem: "portfolio",
			Name:      "recalculation_failures_total",
			Help:      "Portfolio recalculations that failed",
		})
	}
	return j
}

// Run recalculates immediately and then on every tick until ctx is done.
func (j *PortfolioJob) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	j.logger.Info("portfolio job started", zap.Duration("interval", j.cfg.Interval))
	for {
		pass, err := j.RecalculateAll(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			j.logger.Error("portfolio pass failed", zap.Error(err))
		case err == nil:
			j.logger.Info("portfolio pass completed",
				zap.Int("users", pass.Users),
				zap.Int("failures", len(pass.Failed)))
		}

		select {
		case <-ctx.Done():
			j.logger.Info("portfolio job stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RecalculateAll rebuilds the portfolio of every investor once. A failing
// user is logged and skipped; only listing the investors fails the pass.
func (j *PortfolioJob) RecalculateAll(ctx context.Context) (*PortfolioPass, error) {
	ids, err := j.store.ListInvestorIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list investors: %w", err)
	}

	pass := &PortfolioPass{Users: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return pass, err
		}
		if err := j.recalculate(ctx, id); err != nil {
			j.logger.Warn("portfolio recalculation failed", zap.String("userId", id), zap.Error(err))
			pass.Failed = append(pass.Failed, id)
			inc(j.failed)
			continue
		}
		inc(j.recalculated)
	}
	return pass, nil
}

func (j *PortfolioJob) recalculate(ctx context.Context, userID string) error {
	if j.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.cfg.Timeout)
		defer cancel()
	}
	_, err := j.store.RecalculatePortfolio(ctx, userID)
	return err
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}
