package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/0xmhha/stomatrade-go/api"
	"github.com/0xmhha/stomatrade-go/contract"
	"github.com/0xmhha/stomatrade-go/eventsync"
	"github.com/0xmhha/stomatrade-go/internal/config"
	"github.com/0xmhha/stomatrade-go/internal/logger"
	"github.com/0xmhha/stomatrade-go/pkg/multichain"
	"github.com/0xmhha/stomatrade-go/records"
	"github.com/0xmhha/stomatrade-go/storage"
	"github.com/0xmhha/stomatrade-go/workflow"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion = flag.Bool("version", false, "Show version information and exit")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat   = flag.String("log-format", "", "Log format (json, console)")
		rpcURL      = flag.String("rpc", "", "Default JSON-RPC endpoint for chains without a dedicated URL")
		enableAPI   = flag.Bool("api", false, "Enable API server")
		apiPort     = flag.Int("api-port", 0, "API server port")
		enableSync  = flag.Bool("sync", false, "Enable historical event sync")
		enableJob   = flag.Bool("portfolio", false, "Enable periodic portfolio recalculation")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("stomatrade version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	if err := loadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *logLevel, *logFormat, *rpcURL, *enableAPI, *apiPort, *enableSync, *enableJob)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := initLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting stomatrade",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_time", buildTime),
		zap.String("contract", cfg.Contract.Name),
		zap.Bool("api", cfg.API.Enabled),
		zap.Bool("sync", cfg.Sync.Enabled),
		zap.Bool("portfolio", cfg.Portfolio.Enabled),
	)

	if err := run(cfg, log); err != nil {
		log.Error("stomatrade stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("stomatrade stopped")
}

// run wires every component and blocks until a signal arrives or a
// long-running component fails.
func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	db, err := records.Open(ctx, cfg.Database.DSN, log)
	if err != nil {
		return fmt.Errorf("failed to open records database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close records database", zap.Error(err))
		}
	}()

	pool := multichain.NewPool(&multichain.Config{
		DefaultURL:   cfg.RPC.DefaultURL,
		DialTimeout:  cfg.RPC.Timeout,
		RateLimit:    cfg.RPC.RateLimit,
		RateBurst:    cfg.RPC.RateBurst,
		PollInterval: cfg.Contract.PollInterval,
	}, log)
	defer pool.Close()

	health := multichain.NewHealthChecker(pool, cfg.RPC.HealthInterval, log)
	health.Start(ctx)
	defer health.Stop()

	registry, err := contract.NewRegistry(contract.RegistryConfig{
		Name:       cfg.Contract.Name,
		PrivateKey: cfg.Signer.PrivateKey,
	}, db, pool, log)
	if err != nil {
		return fmt.Errorf("failed to create contract registry: %w", err)
	}

	contracts := &contract.Service{
		Registry: registry,
		Executor: contract.NewExecutor(contract.ExecutorConfig{
			Confirmations: cfg.Contract.Confirmations,
			Timeout:       cfg.Contract.ConfirmationTimeout,
			PollInterval:  cfg.Contract.PollInterval,
			GasLimit:      cfg.Contract.GasLimit,
			Registerer:    reg,
		}, log),
		Correlator: contract.NewCorrelator(log),
	}

	workflows := workflow.New(workflow.Config{Registerer: reg}, db, &workflow.ServiceGateway{Service: contracts}, log)

	errCh := make(chan error, 3)
	var background sync.WaitGroup

	if cfg.Sync.Enabled {
		events, err := storage.NewPebbleStorage(storage.DefaultConfig(cfg.Storage.Path))
		if err != nil {
			return fmt.Errorf("failed to open event storage: %w", err)
		}
		events.SetLogger(log)
		defer func() {
			if err := events.Close(); err != nil {
				log.Error("Failed to close event storage", zap.Error(err))
			}
		}()

		worker := eventsync.NewWorker(eventsync.Config{
			StartBlock:    cfg.Sync.StartBlock,
			MaxBlockRange: cfg.Sync.MaxBlockRange,
			Interval:      cfg.Sync.Interval,
			Registerer:    reg,
		}, &eventsync.RegistryContracts{Registry: registry}, eventsync.NewStoreProcessor(events, log), events, log)

		background.Add(1)
		go func() {
			defer background.Done()
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("event sync: %w", err)
			}
		}()
	}

	if cfg.Portfolio.Enabled {
		job := workflow.NewPortfolioJob(workflow.PortfolioJobConfig{
			Interval:   cfg.Portfolio.Interval,
			Timeout:    cfg.RPC.Timeout,
			Registerer: reg,
		}, db, log)

		background.Add(1)
		go func() {
			defer background.Done()
			if err := job.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("portfolio job: %w", err)
			}
		}()
	}

	var server *api.Server
	if cfg.API.Enabled {
		server, err = api.NewServer(apiConfig(cfg), log, api.Deps{
			Workflows: workflows,
			Contracts: registry,
			Health:    pool,
			Gatherer:  reg,
		})
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		go func() {
			if err := server.Start(); err != nil {
				errCh <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case runErr = <-errCh:
		stop()
	}

	log.Info("Shutting down gracefully...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop API server gracefully", zap.Error(err))
		}
	}
	stop()
	background.Wait()
	return runErr
}

// apiConfig maps the api section onto the server configuration
func apiConfig(cfg *config.Config) *api.Config {
	c := api.DefaultConfig()
	c.Host = cfg.API.Host
	c.Port = cfg.API.Port
	c.ReadTimeout = cfg.API.ReadTimeout
	c.WriteTimeout = cfg.API.WriteTimeout
	c.EnableCORS = cfg.API.EnableCORS
	c.AllowedOrigins = cfg.API.AllowedOrigins
	c.EnableRateLimit = cfg.API.EnableRateLimit
	c.RateLimitPerSecond = cfg.API.RateLimit
	c.RateLimitBurst = cfg.API.RateBurst
	c.EnableMetrics = cfg.API.EnableMetrics
	return c
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// applyFlags applies command-line flags to configuration
func applyFlags(cfg *config.Config, logLevel, logFormat, rpcURL string, enableAPI bool, apiPort int, enableSync, enablePortfolio bool) {
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if rpcURL != "" {
		cfg.RPC.DefaultURL = rpcURL
	}
	if enableAPI {
		cfg.API.Enabled = true
	}
	if apiPort > 0 {
		cfg.API.Port = apiPort
	}
	if enableSync {
		cfg.Sync.Enabled = true
	}
	if enablePortfolio {
		cfg.Portfolio.Enabled = true
	}
}

// initLogger initializes the logger based on configuration
func initLogger(level, format string) (*zap.Logger, error) {
	cfg := &logger.Config{
		Level:         level,
		Encoding:      format,
		InitialFields: map[string]interface{}{"service": "stomatrade", "version": version},
	}
	if format != "json" {
		cfg.Encoding = "console"
		cfg.Development = true
	}
	return logger.NewWithConfig(cfg)
}
