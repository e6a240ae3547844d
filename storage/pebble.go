package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

var (
	_ EventReader     = (*PebbleStorage)(nil)
	_ EventWriter     = (*PebbleStorage)(nil)
	_ CheckpointStore = (*PebbleStorage)(nil)
)

// PebbleStorage stores historical events and sync checkpoints in PebbleDB
type PebbleStorage struct {
	db     *pebble.DB
	config *Config
	logger *zap.Logger
	closed atomic.Bool
}

// NewPebbleStorage creates a new PebbleDB storage
func NewPebbleStorage(cfg *Config) (*PebbleStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := &pebble.Options{
		Cache:                    pebble.NewCache(int64(cfg.Cache) << 20),
		MaxOpenFiles:             cfg.MaxOpenFiles,
		MemTableSize:             uint64(cfg.WriteBuffer) << 20,
		DisableWAL:               cfg.DisableWAL,
		MaxConcurrentCompactions: func() int { return cfg.CompactionConcurrency },
		ReadOnly:                 cfg.ReadOnly,
	}

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &PebbleStorage{
		db:     db,
		config: cfg,
		logger: zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for the storage
func (s *PebbleStorage) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s.logger = logger.Named("storage")
}

func (s *PebbleStorage) ensureNotClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (s *PebbleStorage) ensureWritable() error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if s.config.ReadOnly {
		return ErrReadOnly
	}
	return nil
}

// Close closes the storage and releases resources
func (s *PebbleStorage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// SaveEvents writes events and their name index in one batch.
func (s *PebbleStorage) SaveEvents(ctx context.Context, events []*Event) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := EncodeEvent(ev)
		if err != nil {
			return err
		}
		primary := EventKey(ev.ChainID, ev.BlockNumber, ev.LogIndex)
		if err := batch.Set(primary, value, nil); err != nil {
			return fmt.Errorf("failed to stage event: %w", err)
		}
		if err := batch.Set(EventNameIndexKey(ev.ChainID, ev.Name, ev.BlockNumber, ev.LogIndex), primary, nil); err != nil {
			return fmt.Errorf("failed to stage event index: %w", err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}

	s.logger.Debug("events saved", zap.Int("count", len(events)))
	return nil
}

// GetEvent returns the event stored at a log position
func (s *PebbleStorage) GetEvent(ctx context.Context, chainID, blockNumber uint64, logIndex uint) (*Event, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	return s.getEvent(EventKey(chainID, blockNumber, logIndex))
}

func (s *PebbleStorage) getEvent(key []byte) (*Event, error) {
	value, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	defer closer.Close()

	return DecodeEvent(value)
}

// ListEvents returns events of filter.ChainID in block/log order. With a
// name the by-name index is scanned, otherwise the chain's events.
func (s *PebbleStorage) ListEvents(ctx context.Context, filter *EventFilter) ([]*Event, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	if filter == nil {
		return nil, fmt.Errorf("filter cannot be nil")
	}
	if filter.ToBlock > 0 && filter.FromBlock > filter.ToBlock {
		return nil, fmt.Errorf("fromBlock (%d) cannot be greater than toBlock (%d)", filter.FromBlock, filter.ToBlock)
	}

	indexed := filter.Name != ""
	prefix := EventChainPrefix(filter.ChainID)
	if indexed {
		prefix = EventNamePrefix(filter.ChainID, filter.Name)
	}
	lower, upper := blockBounds(prefix, filter.FromBlock, filter.ToBlock)

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var events []*Event
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if filter.Limit > 0 && len(events) >= filter.Limit {
			break
		}

		var ev *Event
		if indexed {
			ev, err = s.getEvent(iter.Value())
		} else {
			ev, err = DecodeEvent(iter.Value())
		}
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}

	return events, nil
}

// GetCheckpoint returns the highest fully synced block of a chain
func (s *PebbleStorage) GetCheckpoint(ctx context.Context, chainID uint64) (uint64, error) {
	if err := s.ensureNotClosed(); err != nil {
		return 0, err
	}

	value, closer, err := s.db.Get(CheckpointKey(chainID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	defer closer.Close()

	block, err := DecodeUint64(value)
	if err != nil {
		return 0, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return block, nil
}

// SetCheckpoint records the highest fully synced block of a chain
func (s *PebbleStorage) SetCheckpoint(ctx context.Context, chainID, block uint64) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	return s.db.Set(CheckpointKey(chainID), EncodeUint64(block), pebble.Sync)
}
