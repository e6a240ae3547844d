package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWithConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:   "development console",
			config: &Config{Level: "debug", Development: true, Encoding: "console"},
		},
		{
			name:   "production json",
			config: &Config{Level: "info", Encoding: "json"},
		},
		{
			name:    "invalid level",
			config:  &Config{Level: "loud"},
			wantErr: true,
		},
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:   "empty encoding defaults to json",
			config: &Config{Level: "warn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewWithConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewWithConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("NewWithConfig() returned nil logger")
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() without logger returned nil")
	}

	core, logs := observer.New(zap.InfoLevel)
	l := zap.New(core)
	ctx := WithLogger(context.Background(), l)

	FromContext(ctx).Info("hello")
	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
}

func TestWithChainAndWorkflow(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := zap.New(core)

	WithWorkflow(WithChain(l, 1337), "farmer_submission", "abc").Info("approve")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["chainId"] != uint64(1337) {
		t.Errorf("chainId = %v", fields["chainId"])
	}
	if fields["workflow"] != "farmer_submission" || fields["recordId"] != "abc" {
		t.Errorf("unexpected workflow fields: %v", fields)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Fatal("OrNop() should return the given logger")
	}
}
