package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPortfolioStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	storage := NewPortfolioStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	_, err := storage.GetState(ctx)
	require.True(t, errors.Is(err, common.ErrNotFound), "missing state must map to ErrNotFound, got %v", err)

	state := &models.PortfolioState{Cash: 10000, UpdatedAt: time.Now().UTC()}
	require.NoError(t, storage.SaveState(ctx, state))

	got, err := storage.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, got.Cash)
}

func TestPositionLifecycle(t *testing.T) {
	store := newTestStore(t)
	storage := NewPortfolioStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	pos := &models.Position{Symbol: "NVDA", Qty: 10, AvgEntryPrice: 120, CurrentPrice: 125}
	require.NoError(t, storage.SavePosition(ctx, pos))

	got, err := storage.GetPosition(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Qty)

	require.NoError(t, storage.SavePosition(ctx, &models.Position{Symbol: "AAPL", Qty: 5, CurrentPrice: 200}))
	list, err := storage.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "AAPL", list[0].Symbol, "positions list sorted by symbol")

	require.NoError(t, storage.DeletePosition(ctx, "NVDA"))
	_, err = storage.GetPosition(ctx, "NVDA")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestOrderQueries(t *testing.T) {
	store := newTestStore(t)
	storage := NewPortfolioStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	now := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	orders := []*models.Order{
		{ID: "o1", Symbol: "NVDA", Side: models.OrderSideBuy, Status: models.OrderStatusFilled,
			CreatedAt: now.Add(-48 * time.Hour), FilledAt: now.Add(-48 * time.Hour)},
		{ID: "o2", Symbol: "NVDA", Side: models.OrderSideSell, Status: models.OrderStatusFilled,
			CreatedAt: now.Add(-2 * time.Hour), FilledAt: now.Add(-2 * time.Hour)},
		{ID: "o3", Symbol: "NVDA", Side: models.OrderSideBuy, Status: models.OrderStatusFailed,
			CreatedAt: now.Add(-1 * time.Hour)},
	}
	for _, o := range orders {
		require.NoError(t, storage.SaveOrder(ctx, o))
	}

	list, err := storage.ListOrders(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o3", list[0].ID, "orders listed newest first")

	// Failed orders never count against the daily cap.
	count, err := storage.CountOrdersSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	last, err := storage.LastSellAt(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, now.Add(-2*time.Hour), last)

	none, err := storage.LastSellAt(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, none.IsZero(), "no sells yet must return the zero time")
}

func TestTriggerCancellation(t *testing.T) {
	store := newTestStore(t)
	storage := NewPortfolioStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	triggers := []*models.PriceTrigger{
		{ID: "t1", Symbol: "NVDA", TriggerType: models.TriggerStopLoss, Status: models.TriggerStatusActive, CreatedAt: time.Now()},
		{ID: "t2", Symbol: "NVDA", TriggerType: models.TriggerTakeProfit, Status: models.TriggerStatusActive, CreatedAt: time.Now()},
		{ID: "t3", Symbol: "NVDA", TriggerType: models.TriggerStopLoss, Status: models.TriggerStatusTriggered, CreatedAt: time.Now()},
		{ID: "t4", Symbol: "AAPL", TriggerType: models.TriggerStopLoss, Status: models.TriggerStatusActive, CreatedAt: time.Now()},
	}
	for _, tr := range triggers {
		require.NoError(t, storage.SaveTrigger(ctx, tr))
	}

	cancelled, err := storage.CancelTriggersForSymbol(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 2, cancelled, "only active NVDA triggers cancel")

	active, err := storage.ListTriggers(ctx, models.TriggerStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "AAPL", active[0].Symbol)

	// Already-triggered rows are untouched.
	t3, err := storage.GetTrigger(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, models.TriggerStatusTriggered, t3.Status)
}

func TestCancelTriggersNoneActive(t *testing.T) {
	store := newTestStore(t)
	storage := NewPortfolioStorage(store, common.NewSilentLogger())

	cancelled, err := storage.CancelTriggersForSymbol(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 0, cancelled)
}

func TestSnapshotsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	storage := NewPortfolioStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 16, 30, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, storage.SaveSnapshot(ctx, &models.PortfolioSnapshot{
			Timestamp:  base.AddDate(0, 0, i),
			TotalValue: 10000 + float64(i)*100,
		}))
	}

	snaps, err := storage.ListSnapshots(ctx, 3)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, 10400.0, snaps[0].TotalValue, "newest snapshot first")
	assert.True(t, snaps[0].Timestamp.After(snaps[1].Timestamp))
}

func TestWatchlistRoundTrip(t *testing.T) {
	store := newTestStore(t)
	storage := NewWatchlistStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	entry := &models.WatchlistEntry{
		Symbol:  "NVDA",
		Source:  models.WatchSourceManual,
		Status:  models.WatchStatusPendingAnalysis,
		AddedAt: time.Now().UTC(),
	}
	require.NoError(t, storage.Upsert(ctx, entry))

	got, err := storage.Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, models.WatchStatusPendingAnalysis, got.Status)

	entry.Status = models.WatchStatusActive
	entry.ConvictionScore = 0.82
	require.NoError(t, storage.Upsert(ctx, entry))

	got, err = storage.Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, models.WatchStatusActive, got.Status)
	assert.Equal(t, 0.82, got.ConvictionScore)

	_, err = storage.Get(ctx, "MISSING")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestPriceHistoryWindow(t *testing.T) {
	store := newTestStore(t)
	storage := NewMarketStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var candles []models.Candle
	for i := 0; i < 20; i++ {
		candles = append(candles, models.Candle{
			Date:  base.AddDate(0, 0, i),
			Close: 100 + float64(i),
		})
	}
	require.NoError(t, storage.SavePriceHistory(ctx, "NVDA", candles))

	got, err := storage.GetPriceHistory(ctx, "NVDA", base.AddDate(0, 0, 5), base.AddDate(0, 0, 9))
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 109.0, got[0].Close, "newest candle first")
	assert.Equal(t, 105.0, got[4].Close)

	// Re-saving the same dates upserts instead of duplicating.
	require.NoError(t, storage.SavePriceHistory(ctx, "NVDA", candles))
	all, err := storage.GetPriceHistory(ctx, "NVDA", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestJobRunDedupeKey(t *testing.T) {
	store := newTestStore(t)
	storage := NewJobRunStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	_, err := storage.Get(ctx, "premarket", "2026-08-25")
	require.True(t, errors.Is(err, common.ErrNotFound))

	run := &models.JobRun{
		Job:       "premarket",
		Date:      "2026-08-25",
		StartedAt: time.Now().UTC(),
		Status:    "completed",
	}
	require.NoError(t, storage.Save(ctx, run))

	got, err := storage.Get(ctx, "premarket", "2026-08-25")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)

	// A different date is a different key.
	_, err = storage.Get(ctx, "premarket", "2026-08-26")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestEventQueryFilters(t *testing.T) {
	store := newTestStore(t)
	storage := NewEventStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	events := []*models.PipelineEvent{
		{Timestamp: base, RunID: "r1", Phase: models.PhaseCollection, Symbol: "NVDA", EventType: "collected", Status: "success"},
		{Timestamp: base.Add(time.Minute), RunID: "r1", Phase: models.PhaseAnalysis, Symbol: "NVDA", EventType: "analyzed", Status: "success"},
		{Timestamp: base.Add(2 * time.Minute), RunID: "r2", Phase: models.PhaseAnalysis, Symbol: "AAPL", EventType: "analyzed", Status: "error"},
	}
	for _, e := range events {
		require.NoError(t, storage.Append(ctx, e))
	}

	byRun, err := storage.Query(ctx, interfaces.EventQuery{RunID: "r1"})
	require.NoError(t, err)
	assert.Len(t, byRun, 2)

	byPhase, err := storage.Query(ctx, interfaces.EventQuery{Phase: models.PhaseAnalysis})
	require.NoError(t, err)
	require.Len(t, byPhase, 2)
	assert.Equal(t, "AAPL", byPhase[0].Symbol, "events returned newest first")

	bySymbol, err := storage.Query(ctx, interfaces.EventQuery{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Len(t, bySymbol, 1)

	limited, err := storage.Query(ctx, interfaces.EventQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestEventAppendAssignsID(t *testing.T) {
	store := newTestStore(t)
	storage := NewEventStorage(store, common.NewSilentLogger())

	e := &models.PipelineEvent{Timestamp: time.Now(), Phase: models.PhaseRun, EventType: "pipeline_started", Status: "success"}
	require.NoError(t, storage.Append(context.Background(), e))
	assert.NotEmpty(t, e.ID)
}
