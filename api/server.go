package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apimiddleware "github.com/0xmhha/stomatrade-go/api/middleware"
	"github.com/0xmhha/stomatrade-go/internal/logger"
	"github.com/0xmhha/stomatrade-go/pkg/multichain"
	"github.com/0xmhha/stomatrade-go/workflow"
)

// ContractCache evicts cached contract handles. *contract.Registry
// satisfies it.
type ContractCache interface {
	Invalidate(chainID uint64) bool
}

// HealthReporter checks chain connections. *multichain.Pool satisfies it.
type HealthReporter interface {
	HealthCheck(ctx context.Context) map[uint64]*multichain.HealthStatus
}

// Deps are the components the server exposes.
type Deps struct {
	Workflows *workflow.Service
	Contracts ContractCache

	// Health is optional; without it /health reports no chains
	Health HealthReporter

	// Gatherer backs /metrics; nil falls back to the default registry
	Gatherer prometheus.Gatherer
}

// Server represents the API server
type Server struct {
	config    *Config
	logger    *zap.Logger
	workflows *workflow.Service
	contracts ContractCache
	health    HealthReporter
	gatherer  prometheus.Gatherer
	limiter   *apimiddleware.RateLimiter
	router    *chi.Mux
	server    *http.Server
	done      chan struct{}
}

// NewServer creates a new API server
func NewServer(config *Config, log *zap.Logger, deps Deps) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Workflows == nil {
		return nil, errors.New("workflow service is required")
	}
	if deps.Contracts == nil {
		return nil, errors.New("contract cache is required")
	}

	s := &Server{
		config:    config,
		logger:    logger.OrNop(log).Named("api"),
		workflows: deps.Workflows,
		contracts: deps.Contracts,
		health:    deps.Health,
		gatherer:  deps.Gatherer,
		router:    chi.NewRouter(),
		done:      make(chan struct{}),
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:           config.Address(),
		Handler:        s.router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s, nil
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware() {
	// Recovery middleware (must be first)
	s.router.Use(apimiddleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(apimiddleware.RequestLogger(s.logger))

	if s.config.EnableRateLimit {
		s.limiter = apimiddleware.NewRateLimiter(s.config.RateLimitPerSecond, s.config.RateLimitBurst)
		s.router.Use(apimiddleware.RateLimit(s.limiter, s.logger))
		s.logger.Info("rate limiting enabled",
			zap.Float64("rate_per_second", s.config.RateLimitPerSecond),
			zap.Int("burst", s.config.RateLimitBurst),
		)
	}

	if s.config.EnableCORS {
		s.router.Use(s.cors)
	}
}

// cors adds CORS headers for allowed origins and answers preflight requests
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		for _, allowed := range s.config.AllowedOrigins {
			if allowed == "*" || allowed == origin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, Chain-Id, X-Chain-Id")
				w.Header().Set("Access-Control-Max-Age", "300")
				break
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/farmer-submissions", func(r chi.Router) {
		r.Post("/", s.createFarmerSubmission)
		r.Get("/", s.listFarmerSubmissions)
		r.Get("/{id}", s.getFarmerSubmission)
		r.Post("/{id}/approve", s.chained(s.approveFarmerSubmission))
		r.Post("/{id}/reject", s.rejectFarmerSubmission)
	})

	s.router.Route("/project-submissions", func(r chi.Router) {
		r.Post("/", s.createProjectSubmission)
		r.Get("/", s.listProjectSubmissions)
		r.Get("/{id}", s.getProjectSubmission)
		r.Post("/{id}/approve", s.chained(s.approveProjectSubmission))
		r.Post("/{id}/reject", s.rejectProjectSubmission)
	})

	s.router.Post("/investments", s.chained(s.createInvestment))
	s.router.Post("/profits/deposit", s.chained(s.depositProfit))
	s.router.Post("/profits/claim", s.chained(s.claimProfit))
	s.router.Post("/refunds/mark-refundable", s.chained(s.markRefundable))
	s.router.Post("/refunds/claim", s.chained(s.claimRefund))
	s.router.Post("/projects/{id}/close", s.chained(s.closeProject))
	s.router.Get("/projects/{id}/onchain", s.chained(s.projectOnChain))

	s.router.Post("/admin/contracts/{chainId}/invalidate", s.invalidateContract)
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		zap.String("address", s.config.Address()),
		zap.Bool("rate_limit", s.config.EnableRateLimit),
		zap.Bool("metrics", s.config.EnableMetrics),
	)

	if s.limiter != nil {
		go s.limiter.Run(s.done)
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")

	select {
	case <-s.done:
	default:
		close(s.done)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped gracefully")
	return nil
}

// Router returns the underlying chi router (for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
