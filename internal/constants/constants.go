package constants

import "time"

// Token precision
const (
	// TokenDecimals is the fixed-point scale used by the platform contract.
	TokenDecimals = 18
)

// Contract defaults
const (
	// DefaultContractName is the logical name under which contract configs are stored
	DefaultContractName = "StomaTrade"

	// DefaultConfirmations is the block depth awaited after submission
	DefaultConfirmations = 1

	// DefaultConfirmationTimeout bounds the receipt wait
	DefaultConfirmationTimeout = 60 * time.Second

	// DefaultPollInterval is the receipt polling cadence
	DefaultPollInterval = 2 * time.Second
)

// RPC defaults
const (
	// DefaultRPCTimeout bounds connection establishment
	DefaultRPCTimeout = 30 * time.Second

	// DefaultRPCRateLimit is requests per second issued per chain
	DefaultRPCRateLimit = 20

	// DefaultRPCRateBurst is the per-chain burst size
	DefaultRPCRateBurst = 40

	// DefaultHealthInterval is the chain health check cadence
	DefaultHealthInterval = 30 * time.Second
)

// Event sync defaults
const (
	// DefaultSyncInterval is the period between historical sync passes
	DefaultSyncInterval = time.Minute

	// DefaultMaxBlockRange caps a single log query window (0 = unbounded)
	DefaultMaxBlockRange = 5000

	// DefaultPortfolioInterval is the period between portfolio recalculations
	DefaultPortfolioInterval = time.Hour
)

// API Server Constants
const (
	DefaultAPIHost         = "localhost"
	DefaultAPIPort         = 8080
	MinPort                = 1
	MaxPort                = 65535
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 90 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20 // 1 MB

	DefaultRateLimitPerSecond = 100
	DefaultRateLimitBurst     = 200
)

// Chain id request headers. The first one present wins.
const (
	HeaderChainID  = "chain-id"
	HeaderXChainID = "x-chain-id"

	// CAIP2Prefix is accepted in front of the numeric chain id
	CAIP2Prefix = "eip155:"
)

// Storage defaults
const (
	DefaultDatabaseDSN = "file:stomatrade.db?_foreign_keys=on&_busy_timeout=5000"
	DefaultStoragePath = "./data/events"
)
