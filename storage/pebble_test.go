package storage

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestStorage(t *testing.T) *PebbleStorage {
	t.Helper()
	s, err := NewPebbleStorage(DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	s.SetLogger(zap.NewNop())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEvent(chainID, block uint64, logIndex uint, name string) *Event {
	return &Event{
		ChainID:     chainID,
		Contract:    common.HexToAddress("0xc0ffee"),
		Name:        name,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block*100) + int64(logIndex))),
		LogIndex:    logIndex,
		Timestamp:   time.Unix(1700000000+int64(block), 0).UTC(),
		Args:        map[string]interface{}{"idProject": fmt.Sprintf("%d", block)},
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig("/tmp/x").Validate())
	assert.Error(t, DefaultConfig("").Validate())

	cfg := DefaultConfig("/tmp/x")
	cfg.CompactionConcurrency = 0
	assert.Error(t, cfg.Validate())

	_, err := NewPebbleStorage(nil)
	assert.Error(t, err)
}

func TestSaveAndGetEvent(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	ev := testEvent(1337, 10, 2, "Invested")
	require.NoError(t, s.SaveEvents(ctx, []*Event{ev}))

	got, err := s.GetEvent(ctx, 1337, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, ev.Name, got.Name)
	assert.Equal(t, ev.TxHash, got.TxHash)
	assert.Equal(t, ev.Contract, got.Contract)
	assert.True(t, ev.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, "10", got.Args["idProject"])

	_, err = s.GetEvent(ctx, 1337, 10, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.SaveEvents(ctx, nil))
}

func TestListEvents(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEvents(ctx, []*Event{
		testEvent(1, 5, 0, "Invested"),
		testEvent(1, 5, 1, "ProfitClaimed"),
		testEvent(1, 9, 0, "Invested"),
		testEvent(1, 100, 0, "Invested"),
		testEvent(2, 5, 0, "Invested"),
	}))

	all, err := s.ListEvents(ctx, &EventFilter{ChainID: 1})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, uint64(5), all[0].BlockNumber)
	assert.Equal(t, uint(1), all[1].LogIndex)
	assert.Equal(t, uint64(100), all[3].BlockNumber)

	invested, err := s.ListEvents(ctx, &EventFilter{ChainID: 1, Name: "Invested", FromBlock: 6})
	require.NoError(t, err)
	require.Len(t, invested, 2)
	assert.Equal(t, uint64(9), invested[0].BlockNumber)

	bounded, err := s.ListEvents(ctx, &EventFilter{ChainID: 1, FromBlock: 5, ToBlock: 9})
	require.NoError(t, err)
	assert.Len(t, bounded, 3)

	limited, err := s.ListEvents(ctx, &EventFilter{ChainID: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	other, err := s.ListEvents(ctx, &EventFilter{ChainID: 2})
	require.NoError(t, err)
	assert.Len(t, other, 1)

	_, err = s.ListEvents(ctx, &EventFilter{ChainID: 1, FromBlock: 9, ToBlock: 5})
	assert.Error(t, err)
	_, err = s.ListEvents(ctx, nil)
	assert.Error(t, err)
}

func TestResavingOverwrites(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	first := testEvent(1, 5, 0, "Invested")
	require.NoError(t, s.SaveEvents(ctx, []*Event{first}))
	again := testEvent(1, 5, 0, "Invested")
	again.Args["idProject"] = "replayed"
	require.NoError(t, s.SaveEvents(ctx, []*Event{again}))

	events, err := s.ListEvents(ctx, &EventFilter{ChainID: 1, Name: "Invested"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "replayed", events[0].Args["idProject"])
}

func TestCheckpoint(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	_, err := s.GetCheckpoint(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetCheckpoint(ctx, 1, 42))
	require.NoError(t, s.SetCheckpoint(ctx, 2, 7))

	got, err := s.GetCheckpoint(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got)
}

func TestClosedStorage(t *testing.T) {
	s := setupTestStorage(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.ErrorIs(t, s.SaveEvents(ctx, []*Event{testEvent(1, 1, 0, "x")}), ErrClosed)
	_, err := s.ListEvents(ctx, &EventFilter{ChainID: 1})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.SetCheckpoint(ctx, 1, 1), ErrClosed)
}

func TestEventKeyRoundTrip(t *testing.T) {
	chainID, block, idx, err := ParseEventKey(EventKey(1337, 99, 4))
	require.NoError(t, err)
	assert.Equal(t, uint64(1337), chainID)
	assert.Equal(t, uint64(99), block)
	assert.Equal(t, uint(4), idx)

	_, _, _, err = ParseEventKey([]byte("/data/blocks/1"))
	assert.Error(t, err)
	_, _, _, err = ParseEventKey([]byte("/data/events/1/2"))
	assert.Error(t, err)

	_, err = DecodeUint64([]byte{1})
	assert.Error(t, err)
	n, err := DecodeUint64(EncodeUint64(77))
	require.NoError(t, err)
	assert.Equal(t, uint64(77), n)
}
