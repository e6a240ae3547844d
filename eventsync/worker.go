// Package eventsync replays contract events from chain history into a
// processor, one pass per chain with failures isolated per event type.
package eventsync

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	abiDecoder "github.com/0xmhha/stomatrade-go/abi"
	"github.com/0xmhha/stomatrade-go/contract"
	"github.com/0xmhha/stomatrade-go/internal/constants"
	"github.com/0xmhha/stomatrade-go/storage"
)

// LogSource is the chain access the worker needs.
// *multichain.Connection satisfies it.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockTime(ctx context.Context, number uint64) (time.Time, error)
}

// Target is one chain's contract as seen by the worker.
type Target struct {
	ChainID uint64
	Address common.Address
	ABI     *abi.ABI
	Logs    LogSource
}

// Contracts enumerates the chains to sync and resolves their targets.
type Contracts interface {
	ChainIDs(ctx context.Context) ([]uint64, error)
	Target(ctx context.Context, chainID uint64) (*Target, error)
}

// Config holds worker configuration
type Config struct {
	// Events is the set of event names replayed per chain
	Events []string

	// StartBlock is where a chain without a checkpoint starts
	StartBlock uint64

	// MaxBlockRange splits a query into windows of at most this many blocks
	MaxBlockRange uint64

	// Concurrency bounds how many chains sync at once
	Concurrency int

	// Interval is the period of Run
	Interval time.Duration

	// Registerer receives sync metrics; nil disables them
	Registerer prometheus.Registerer
}

// Worker replays historical events.
type Worker struct {
	cfg         Config
	contracts   Contracts
	processor   Processor
	checkpoints storage.CheckpointStore
	metrics     *syncMetrics
	logger      *zap.Logger
}

// NewWorker creates a sync worker. checkpoints may be nil, in which case
// no high-water marks are persisted.
func NewWorker(cfg Config, contracts Contracts, processor Processor, checkpoints storage.CheckpointStore, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Events) == 0 {
		cfg.Events = contract.SyncedEvents
	}
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = constants.DefaultMaxBlockRange
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Interval == 0 {
		cfg.Interval = constants.DefaultSyncInterval
	}
	if processor == nil {
		processor = ProcessorFunc(func(context.Context, []*storage.Event) error { return nil })
	}
	return &Worker{
		cfg:         cfg,
		contracts:   contracts,
		processor:   processor,
		checkpoints: checkpoints,
		metrics:     newSyncMetrics(cfg.Registerer),
		logger:      logger.Named("sync"),
	}
}

// SyncEventsFromBlock replays [fromBlock, head] on every chain. Failures
// of one (chain, event) pair are recorded in the report and do not stop
// the pass; each chain's high-water mark advances to its head.
func (w *Worker) SyncEventsFromBlock(ctx context.Context, fromBlock uint64) (*Report, error) {
	return w.pass(ctx, func(uint64) uint64 { return fromBlock })
}

// Sync replays from each chain's checkpoint + 1, or StartBlock for chains
// never synced.
func (w *Worker) Sync(ctx context.Context) (*Report, error) {
	return w.pass(ctx, func(chainID uint64) uint64 {
		if w.checkpoints == nil {
			return w.cfg.StartBlock
		}
		block, err := w.checkpoints.GetCheckpoint(ctx, chainID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				w.logger.Warn("failed to read checkpoint, starting from configured block",
					zap.Uint64("chainId", chainID), zap.Error(err))
			}
			return w.cfg.StartBlock
		}
		return block + 1
	})
}

// Run syncs every Interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("event sync started", zap.Duration("interval", w.cfg.Interval))
	for {
		report, err := w.Sync(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			w.logger.Error("event sync pass failed", zap.Error(err))
		case err == nil:
			w.logger.Info("event sync pass completed",
				zap.Int("chains", len(report.Chains)),
				zap.Int("events", report.TotalEvents()),
				zap.Int("failures", len(report.Failures())))
		}

		select {
		case <-ctx.Done():
			w.logger.Info("event sync stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) pass(ctx context.Context, startFor func(chainID uint64) uint64) (*Report, error) {
	ids, err := w.contracts.ChainIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}

	report := &Report{StartedAt: time.Now()}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, id := range ids {
		chainID := id
		g.Go(func() error {
			cr := w.syncChain(gctx, chainID, startFor(chainID))
			mu.Lock()
			report.Chains = append(report.Chains, cr)
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Chains, func(i, j int) bool { return report.Chains[i].ChainID < report.Chains[j].ChainID })
	report.Duration = time.Since(report.StartedAt)
	return report, nil
}

func (w *Worker) syncChain(ctx context.Context, chainID, from uint64) *ChainReport {
	cr := &ChainReport{ChainID: chainID, FromBlock: from, Events: make(map[string]int)}
	log := w.logger.With(zap.Uint64("chainId", chainID))

	target, err := w.contracts.Target(ctx, chainID)
	if err != nil {
		log.Warn("failed to resolve sync target", zap.Error(err))
		cr.fail("", err)
		w.metrics.failure("")
		return cr
	}

	head, err := target.Logs.BlockNumber(ctx)
	if err != nil {
		log.Warn("failed to get head block", zap.Error(err))
		cr.fail("", err)
		w.metrics.failure("")
		return cr
	}
	cr.ToBlock = head

	if from <= head {
		times := make(map[uint64]time.Time)
		for _, name := range w.cfg.Events {
			if ctx.Err() != nil {
				return cr
			}
			n, err := w.syncEvent(ctx, target, name, from, head, times)
			cr.Events[name] = n
			w.metrics.events(name, n)
			if err != nil {
				log.Warn("failed to sync event",
					zap.String("event", name),
					zap.Uint64("fromBlock", from),
					zap.Uint64("toBlock", head),
					zap.Error(err))
				cr.fail(name, err)
				w.metrics.failure(name)
			}
		}
	}

	if w.checkpoints != nil && ctx.Err() == nil {
		if err := w.checkpoints.SetCheckpoint(ctx, chainID, head); err != nil {
			log.Warn("failed to store checkpoint", zap.Uint64("block", head), zap.Error(err))
			cr.fail("", err)
		}
	}
	cr.Advanced = true
	return cr
}

func (w *Worker) syncEvent(ctx context.Context, target *Target, name string, from, to uint64, times map[uint64]time.Time) (int, error) {
	ev, ok := target.ABI.Events[name]
	if !ok {
		return 0, fmt.Errorf("event %s not in contract abi", name)
	}

	total := 0
	for start := from; start <= to; start += w.cfg.MaxBlockRange {
		end := start + w.cfg.MaxBlockRange - 1
		if end > to || end < start {
			end = to
		}

		logs, err := target.Logs.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{target.Address},
			Topics:    [][]common.Hash{{ev.ID}},
		})
		if err != nil {
			return total, fmt.Errorf("failed to query logs [%d, %d]: %w", start, end, err)
		}

		events := make([]*storage.Event, 0, len(logs))
		for i := range logs {
			decoded, err := abiDecoder.DecodeLog(target.ABI, &logs[i])
			if err != nil {
				w.logger.Debug("skipping undecodable log",
					zap.Uint64("chainId", target.ChainID),
					zap.String("txHash", logs[i].TxHash.Hex()),
					zap.Error(err))
				continue
			}
			ts, err := w.blockTime(ctx, target, logs[i].BlockNumber, times)
			if err != nil {
				return total, err
			}
			events = append(events, normalize(target.ChainID, &logs[i], decoded, ts))
		}

		if len(events) > 0 {
			if err := w.processor.Process(ctx, events); err != nil {
				return total, fmt.Errorf("failed to process %d %s events: %w", len(events), name, err)
			}
		}
		total += len(events)

		if end == to {
			break
		}
	}
	return total, nil
}

// blockTime resolves the timestamp of number once per pass.
func (w *Worker) blockTime(ctx context.Context, target *Target, number uint64, times map[uint64]time.Time) (time.Time, error) {
	if ts, ok := times[number]; ok {
		return ts, nil
	}
	ts, err := target.Logs.BlockTime(ctx, number)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get time of block %d: %w", number, err)
	}
	times[number] = ts
	return ts, nil
}

func normalize(chainID uint64, log *types.Log, decoded *abiDecoder.DecodedLog, ts time.Time) *storage.Event {
	return &storage.Event{
		ChainID:     chainID,
		Contract:    log.Address,
		Name:        decoded.EventName,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
		Timestamp:   ts,
		Args:        abiDecoder.SerializeArgs(decoded.Args),
	}
}
