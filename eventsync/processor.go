package eventsync

import (
	"context"

	"go.uber.org/zap"

	"github.com/0xmhha/stomatrade-go/storage"
)

// Processor consumes normalized historical events.
type Processor interface {
	Process(ctx context.Context, events []*storage.Event) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, events []*storage.Event) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, events []*storage.Event) error {
	return f(ctx, events)
}

// StoreProcessor persists events in the event store.
type StoreProcessor struct {
	store  storage.EventWriter
	logger *zap.Logger
}

// NewStoreProcessor creates a processor writing to store.
func NewStoreProcessor(store storage.EventWriter, logger *zap.Logger) *StoreProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreProcessor{store: store, logger: logger.Named("processor")}
}

// Process saves events in one batch.
func (p *StoreProcessor) Process(ctx context.Context, events []*storage.Event) error {
	if err := p.store.SaveEvents(ctx, events); err != nil {
		return err
	}
	p.logger.Debug("historical events stored",
		zap.Uint64("chainId", events[0].ChainID),
		zap.String("event", events[0].Name),
		zap.Int("count", len(events)))
	return nil
}
