package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/stomatrade-go/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the orchestrator
type Config struct {
	RPC       RPCConfig       `yaml:"rpc"`
	Signer    SignerConfig    `yaml:"signer"`
	Contract  ContractConfig  `yaml:"contract"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Sync      SyncConfig      `yaml:"sync"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
}

// RPCConfig holds the shared JSON-RPC settings. Per-chain URLs come from
// contract configurations and override DefaultURL.
type RPCConfig struct {
	DefaultURL     string        `yaml:"default_url"`
	Timeout        time.Duration `yaml:"timeout"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	HealthInterval time.Duration `yaml:"health_interval"`
}

// SignerConfig holds the platform signing identity
type SignerConfig struct {
	// PrivateKey is hex encoded, with or without 0x prefix
	PrivateKey string `yaml:"private_key"`
}

// ContractConfig controls how contract writes are confirmed
type ContractConfig struct {
	Name                string        `yaml:"name"`
	Confirmations       uint64        `yaml:"confirmations"`
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	// GasLimit skips estimation when non-zero
	GasLimit uint64 `yaml:"gas_limit"`
}

// DatabaseConfig holds the relational store settings
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// StorageConfig holds the event store settings
type StorageConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig holds historical event sync settings
type SyncConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	StartBlock    uint64        `yaml:"start_block"`
	MaxBlockRange uint64        `yaml:"max_block_range"`
}

// PortfolioConfig holds the periodic portfolio recalculation settings
type PortfolioConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// APIConfig holds HTTP server configuration
type APIConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	EnableCORS      bool          `yaml:"enable_cors"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	EnableRateLimit bool          `yaml:"enable_rate_limit"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	EnableMetrics   bool          `yaml:"enable_metrics"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewConfig returns a configuration populated with defaults
func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = constants.DefaultRPCTimeout
	}
	if c.RPC.RateLimit == 0 {
		c.RPC.RateLimit = constants.DefaultRPCRateLimit
	}
	if c.RPC.RateBurst == 0 {
		c.RPC.RateBurst = constants.DefaultRPCRateBurst
	}
	if c.RPC.HealthInterval == 0 {
		c.RPC.HealthInterval = constants.DefaultHealthInterval
	}

	if c.Contract.Name == "" {
		c.Contract.Name = constants.DefaultContractName
	}
	if c.Contract.Confirmations == 0 {
		c.Contract.Confirmations = constants.DefaultConfirmations
	}
	if c.Contract.ConfirmationTimeout == 0 {
		c.Contract.ConfirmationTimeout = constants.DefaultConfirmationTimeout
	}
	if c.Contract.PollInterval == 0 {
		c.Contract.PollInterval = constants.DefaultPollInterval
	}

	if c.Database.DSN == "" {
		c.Database.DSN = constants.DefaultDatabaseDSN
	}
	if c.Storage.Path == "" {
		c.Storage.Path = constants.DefaultStoragePath
	}

	if c.Sync.Interval == 0 {
		c.Sync.Interval = constants.DefaultSyncInterval
	}
	if c.Sync.MaxBlockRange == 0 {
		c.Sync.MaxBlockRange = constants.DefaultMaxBlockRange
	}
	if c.Portfolio.Interval == 0 {
		c.Portfolio.Interval = constants.DefaultPortfolioInterval
	}

	if c.API.Host == "" {
		c.API.Host = constants.DefaultAPIHost
	}
	if c.API.Port == 0 {
		c.API.Port = constants.DefaultAPIPort
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = constants.DefaultReadTimeout
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = constants.DefaultWriteTimeout
	}
	if c.API.AllowedOrigins == nil {
		c.API.AllowedOrigins = []string{"*"}
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = constants.DefaultRateLimitPerSecond
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = constants.DefaultRateLimitBurst
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// LoadFromEnv overrides configuration from STOMATRADE_* environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("STOMATRADE_RPC_URL"); v != "" {
		c.RPC.DefaultURL = v
	}
	if v := os.Getenv("STOMATRADE_RPC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_RPC_TIMEOUT: %w", err)
		}
		c.RPC.Timeout = d
	}
	if v := os.Getenv("STOMATRADE_RPC_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_RPC_RATE_LIMIT: %w", err)
		}
		c.RPC.RateLimit = f
	}

	if v := os.Getenv("STOMATRADE_PRIVATE_KEY"); v != "" {
		c.Signer.PrivateKey = v
	}

	if v := os.Getenv("STOMATRADE_CONTRACT_NAME"); v != "" {
		c.Contract.Name = v
	}
	if v := os.Getenv("STOMATRADE_CONFIRMATIONS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_CONFIRMATIONS: %w", err)
		}
		c.Contract.Confirmations = n
	}
	if v := os.Getenv("STOMATRADE_CONFIRMATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_CONFIRMATION_TIMEOUT: %w", err)
		}
		c.Contract.ConfirmationTimeout = d
	}
	if v := os.Getenv("STOMATRADE_GAS_LIMIT"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_GAS_LIMIT: %w", err)
		}
		c.Contract.GasLimit = n
	}

	if v := os.Getenv("STOMATRADE_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("STOMATRADE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}

	if v := os.Getenv("STOMATRADE_SYNC_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_SYNC_ENABLED: %w", err)
		}
		c.Sync.Enabled = b
	}
	if v := os.Getenv("STOMATRADE_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_SYNC_INTERVAL: %w", err)
		}
		c.Sync.Interval = d
	}
	if v := os.Getenv("STOMATRADE_SYNC_START_BLOCK"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_SYNC_START_BLOCK: %w", err)
		}
		c.Sync.StartBlock = n
	}

	if v := os.Getenv("STOMATRADE_PORTFOLIO_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_PORTFOLIO_ENABLED: %w", err)
		}
		c.Portfolio.Enabled = b
	}
	if v := os.Getenv("STOMATRADE_PORTFOLIO_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_PORTFOLIO_INTERVAL: %w", err)
		}
		c.Portfolio.Interval = d
	}

	if v := os.Getenv("STOMATRADE_API_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_API_ENABLED: %w", err)
		}
		c.API.Enabled = b
	}
	if v := os.Getenv("STOMATRADE_API_HOST"); v != "" {
		c.API.Host = v
	}
	if v := os.Getenv("STOMATRADE_API_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid STOMATRADE_API_PORT: %w", err)
		}
		c.API.Port = n
	}
	if v := os.Getenv("STOMATRADE_API_ALLOWED_ORIGINS"); v != "" {
		c.API.AllowedOrigins = strings.Split(v, ",")
	}

	if v := os.Getenv("STOMATRADE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("STOMATRADE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.RPC.Timeout <= 0 {
		return fmt.Errorf("RPC timeout must be positive")
	}
	if c.RPC.RateLimit < 0 {
		return fmt.Errorf("RPC rate limit cannot be negative")
	}

	if c.Signer.PrivateKey == "" {
		return fmt.Errorf("signer private key is required")
	}
	key := strings.TrimPrefix(c.Signer.PrivateKey, "0x")
	if len(key) != 64 {
		return fmt.Errorf("signer private key must be 32 bytes hex encoded")
	}

	if c.Contract.Name == "" {
		return fmt.Errorf("contract name is required")
	}
	if c.Contract.ConfirmationTimeout <= 0 {
		return fmt.Errorf("confirmation timeout must be positive")
	}
	if c.Contract.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Sync.Enabled {
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required when sync is enabled")
		}
		if c.Sync.Interval <= 0 {
			return fmt.Errorf("sync interval must be positive")
		}
	}
	if c.Portfolio.Enabled && c.Portfolio.Interval <= 0 {
		return fmt.Errorf("portfolio interval must be positive")
	}

	if c.API.Enabled {
		if c.API.Port < constants.MinPort || c.API.Port > constants.MaxPort {
			return fmt.Errorf("invalid API port %d, must be between %d and %d", c.API.Port, constants.MinPort, constants.MaxPort)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, console", c.Log.Format)
	}

	return nil
}

// Load reads configuration from file (optional) and environment, then
// applies defaults and validates.
func Load(configFile string) (*Config, error) {
	cfg := NewConfig()

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
