package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Common errors
var (
	// ErrNotFound is returned when a key is not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidData is returned when data cannot be decoded
	ErrInvalidData = errors.New("invalid data")

	// ErrClosed is returned when operating on a closed storage
	ErrClosed = errors.New("storage closed")

	// ErrReadOnly is returned when attempting to write to a read-only storage
	ErrReadOnly = errors.New("storage is read-only")
)

// Event is a normalized contract event replayed from chain history.
// Args hold JSON-safe values (integers as decimal strings, addresses and
// hashes as hex).
type Event struct {
	ChainID     uint64                 `json:"chainId"`
	Contract    common.Address         `json:"contract"`
	Name        string                 `json:"name"`
	BlockNumber uint64                 `json:"blockNumber"`
	BlockHash   common.Hash            `json:"blockHash"`
	TxHash      common.Hash            `json:"transactionHash"`
	LogIndex    uint                   `json:"logIndex"`
	Timestamp   time.Time              `json:"timestamp"`
	Args        map[string]interface{} `json:"args"`
}

// EventFilter selects stored events of one chain.
type EventFilter struct {
	ChainID uint64

	// Name restricts to one event name; empty matches all
	Name string

	// FromBlock and ToBlock bound the range, inclusive. ToBlock 0 is open.
	FromBlock uint64
	ToBlock   uint64

	// Limit caps the result size; 0 is unlimited
	Limit int
}

// EventReader provides read access to historical events
type EventReader interface {
	// GetEvent returns the event at a log position
	GetEvent(ctx context.Context, chainID, blockNumber uint64, logIndex uint) (*Event, error)

	// ListEvents returns events matching filter in block/log order
	ListEvents(ctx context.Context, filter *EventFilter) ([]*Event, error)
}

// EventWriter provides write access to historical events
type EventWriter interface {
	// SaveEvents stores events atomically; re-saving a position overwrites it
	SaveEvents(ctx context.Context, events []*Event) error
}

// CheckpointStore tracks the highest synced block per chain
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, chainID uint64) (uint64, error)
	SetCheckpoint(ctx context.Context, chainID, block uint64) error
}

// Config holds storage configuration
type Config struct {
	// Path to the database directory
	Path string

	// Cache size in MB (default: 32)
	Cache int

	// MaxOpenFiles is the maximum number of open files (default: 500)
	MaxOpenFiles int

	// WriteBuffer size in MB (default: 16)
	WriteBuffer int

	// DisableWAL disables write-ahead log (not recommended)
	DisableWAL bool

	// ReadOnly opens the database in read-only mode
	ReadOnly bool

	// CompactionConcurrency for background compaction (default: 1)
	CompactionConcurrency int
}

// DefaultConfig returns a default configuration
func DefaultConfig(path string) *Config {
	return &Config{
		Path:                  path,
		Cache:                 32,
		MaxOpenFiles:          500,
		WriteBuffer:           16,
		CompactionConcurrency: 1,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("path cannot be empty")
	}
	if c.Cache < 0 {
		return errors.New("cache size cannot be negative")
	}
	if c.MaxOpenFiles < 0 {
		return errors.New("max open files cannot be negative")
	}
	if c.WriteBuffer < 0 {
		return errors.New("write buffer size cannot be negative")
	}
	if c.CompactionConcurrency < 1 {
		return errors.New("compaction concurrency must be at least 1")
	}
	return nil
}
