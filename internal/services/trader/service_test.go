package trader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
	"github.com/bobmcallan/argus/internal/storage"
)

// fakeEventLog records logged events in memory.
type fakeEventLog struct {
	mu     sync.Mutex
	events []*models.PipelineEvent
}

func (f *fakeEventLog) BeginRun() string { return "test-run" }

func (f *fakeEventLog) Log(_ context.Context, event *models.PipelineEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeEventLog) Query(_ context.Context, _ interfaces.EventQuery) ([]*models.PipelineEvent, error) {
	return nil, nil
}

func (f *fakeEventLog) byType(eventType string) []*models.PipelineEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PipelineEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeWatchlist records SetPositionHeld calls.
type fakeWatchlist struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeWatchlist() *fakeWatchlist {
	return &fakeWatchlist{held: make(map[string]bool)}
}

func (f *fakeWatchlist) ActiveSymbols(_ context.Context) ([]string, error)        { return nil, nil }
func (f *fakeWatchlist) List(_ context.Context) ([]*models.WatchlistEntry, error) { return nil, nil }
func (f *fakeWatchlist) AddManual(_ context.Context, _ string) (*models.WatchlistEntry, error) {
	return nil, nil
}
func (f *fakeWatchlist) RemoveManual(_ context.Context, _ string) error { return nil }
func (f *fakeWatchlist) ImportFromDiscovery(_ context.Context, _ string, _ []*models.ScoredTicker) ([]string, error) {
	return nil, nil
}
func (f *fakeWatchlist) ApplyDossier(_ context.Context, _ string, _ *models.TickerDossier) error {
	return nil
}
func (f *fakeWatchlist) SetPositionHeld(_ context.Context, symbol string, held bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held[symbol] = held
	return nil
}
func (f *fakeWatchlist) RemoveStale(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (f *fakeWatchlist) isHeld(symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held[symbol]
}

// fakeMarketData serves canned quotes.
type fakeMarketData struct {
	quotes   map[string]float64
	quoteErr error
}

func (f *fakeMarketData) Probe(_ context.Context, _ string) (bool, error) { return true, nil }
func (f *fakeMarketData) GetCandles(_ context.Context, _ string, _, _ time.Time) ([]models.Candle, error) {
	return nil, nil
}
func (f *fakeMarketData) GetFundamentals(_ context.Context, _ string) (*models.Fundamentals, error) {
	return nil, common.ErrNotFound
}
func (f *fakeMarketData) GetFinancials(_ context.Context, _ string) ([]models.FinancialRow, error) {
	return nil, nil
}
func (f *fakeMarketData) GetBalanceSheet(_ context.Context, _ string) ([]models.BalanceRow, error) {
	return nil, nil
}
func (f *fakeMarketData) GetCashFlows(_ context.Context, _ string) ([]models.CashFlowRow, error) {
	return nil, nil
}
func (f *fakeMarketData) GetAnalyst(_ context.Context, _ string) (*models.AnalystSnapshot, error) {
	return nil, common.ErrNotFound
}
func (f *fakeMarketData) GetInsider(_ context.Context, _ string) (*models.InsiderSummary, error) {
	return nil, common.ErrNotFound
}
func (f *fakeMarketData) GetEarnings(_ context.Context, _ string) ([]models.EarningsEvent, error) {
	return nil, nil
}
func (f *fakeMarketData) GetNews(_ context.Context, _ string, _ int) ([]models.NewsArticle, error) {
	return nil, nil
}
func (f *fakeMarketData) GetQuotes(_ context.Context, symbols []string) ([]models.RealTimeQuote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	var out []models.RealTimeQuote
	for _, s := range symbols {
		if price, ok := f.quotes[s]; ok {
			out = append(out, models.RealTimeQuote{Symbol: s, Price: price, Timestamp: time.Now()})
		}
	}
	return out, nil
}

type harness struct {
	service   *Service
	storage   *storage.Manager
	events    *fakeEventLog
	watchlist *fakeWatchlist
	market    *fakeMarketData
	risk      *common.RiskConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := common.NewSilentLogger()

	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	mgr, err := storage.NewManager(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	events := &fakeEventLog{}
	watchlist := newFakeWatchlist()
	market := &fakeMarketData{quotes: make(map[string]float64)}
	risk := cfg.Risk

	service, err := NewService(mgr, events, watchlist, market,
		common.NewMarketClock(time.UTC), &risk, logger)
	require.NoError(t, err)

	return &harness{
		service:   service,
		storage:   mgr,
		events:    events,
		watchlist: watchlist,
		market:    market,
		risk:      &risk,
	}
}

func TestNewServiceSeedsCash(t *testing.T) {
	h := newHarness(t)

	state, err := h.storage.PortfolioStore().GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10000.0, state.Cash)
}

func TestBuyDebitsCashAndOpensPosition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.service.Buy(ctx, "nvda", 10, 100)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", order.Symbol)
	assert.Equal(t, models.OrderStatusFilled, order.Status)
	assert.False(t, order.FilledAt.IsZero())

	state, err := h.storage.PortfolioStore().GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, state.Cash)

	pos, err := h.storage.PortfolioStore().GetPosition(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 10, pos.Qty)
	assert.Equal(t, 100.0, pos.AvgEntryPrice)

	assert.True(t, h.watchlist.isHeld("NVDA"))
}

func TestBuyWeightedAverageEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Buy(ctx, "NVDA", 10, 100)
	require.NoError(t, err)
	_, err = h.service.Buy(ctx, "NVDA", 10, 120)
	require.NoError(t, err)

	pos, err := h.storage.PortfolioStore().GetPosition(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 20, pos.Qty)
	assert.InDelta(t, 110.0, pos.AvgEntryPrice, 1e-9)
}

func TestBuyInsufficientCash(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Buy(ctx, "NVDA", 200, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInsufficientCash))

	// Cash stays untouched and the attempt leaves a failed order.
	state, err := h.storage.PortfolioStore().GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, state.Cash)

	orders, err := h.storage.PortfolioStore().ListOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusFailed, orders[0].Status)
}

func TestBuyRejectsBadArguments(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Buy(context.Background(), "NVDA", 0, 100)
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = h.service.Buy(context.Background(), "NVDA", 10, -5)
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestSellRealizesPnL(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Buy(ctx, "NVDA", 10, 100)
	require.NoError(t, err)

	order, err := h.service.Sell(ctx, "NVDA", 4, 120)
	require.NoError(t, err)
	assert.Equal(t, 4, order.Qty)

	state, err := h.storage.PortfolioStore().GetState(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 9000.0+480.0, state.Cash, 1e-9)
	assert.InDelta(t, 80.0, state.RealizedPnL, 1e-9)

	pos, err := h.storage.PortfolioStore().GetPosition(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 6, pos.Qty)
}

func TestSellCloseCancelsTriggersAndClearsHeld(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Buy(ctx, "NVDA", 10, 100)
	require.NoError(t, err)

	require.NoError(t, h.storage.PortfolioStore().SaveTrigger(ctx, &models.PriceTrigger{
		ID: "t1", Symbol: "NVDA", TriggerType: models.TriggerStopLoss,
		TriggerPrice: 92, Qty: 10, Status: models.TriggerStatusActive, CreatedAt: time.Now(),
	}))

	// Oversized qty clamps to the position.
	_, err = h.service.Sell(ctx, "NVDA", 50, 110)
	require.NoError(t, err)

	_, err = h.storage.PortfolioStore().GetPosition(ctx, "NVDA")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	trigger, err := h.storage.PortfolioStore().GetTrigger(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TriggerStatusCancelled, trigger.Status)

	assert.False(t, h.watchlist.isHeld("NVDA"))
}

func TestSellWithoutPosition(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Sell(context.Background(), "NVDA", 10, 100)
	assert.True(t, errors.Is(err, common.ErrPositionNotFound))
}

func TestSnapshotTotals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Buy(ctx, "NVDA", 10, 100)
	require.NoError(t, err)

	snap, err := h.service.Snapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 9000.0, snap.Cash, 1e-9)
	assert.InDelta(t, 1000.0, snap.PositionsValue, 1e-9)
	assert.InDelta(t, 10000.0, snap.TotalValue, 1e-9)

	// Snapshot persists; Portfolio does not.
	snaps, err := h.storage.PortfolioStore().ListSnapshots(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	_, err = h.service.Portfolio(ctx)
	require.NoError(t, err)
	snaps, err = h.storage.PortfolioStore().ListSnapshots(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestUpdatePrices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Buy(ctx, "NVDA", 10, 100)
	require.NoError(t, err)

	err = h.service.UpdatePrices(ctx, []models.RealTimeQuote{
		{Symbol: "NVDA", Price: 130},
		{Symbol: "AAPL", Price: 200}, // no position, ignored
	})
	require.NoError(t, err)

	pos, err := h.storage.PortfolioStore().GetPosition(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 130.0, pos.CurrentPrice)
	assert.InDelta(t, 300.0, pos.UnrealizedPnL, 1e-9)
}

func TestUpdatePricesIgnoresZeroQuotes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Buy(ctx, "NVDA", 10, 100)
	require.NoError(t, err)

	err = h.service.UpdatePrices(ctx, []models.RealTimeQuote{{Symbol: "NVDA", Price: 0}})
	require.NoError(t, err)

	pos, err := h.storage.PortfolioStore().GetPosition(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 100.0, pos.CurrentPrice, "zero quotes never clobber marks")
}
