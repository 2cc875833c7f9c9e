package watchlist

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

func newTestService(t *testing.T) (*Service, *storage.Manager, *common.WatchlistConfig) {
	t.Helper()
	logger := common.NewSilentLogger()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	mgr, err := storage.NewManager(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	wcfg := cfg.Watchlist
	return NewService(mgr, &fakeEventLog{}, &wcfg, logger), mgr, &wcfg
}

func scored(symbol string, score float64) *models.ScoredTicker {
	return &models.ScoredTicker{Symbol: symbol, TotalScore: score, Mentions: 5}
}

func TestAddManual(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	entry, err := svc.AddManual(ctx, " nvda ")
	require.NoError(t, err)
	assert.Equal(t, "NVDA", entry.Symbol)
	assert.Equal(t, models.WatchSourceManual, entry.Source)
	assert.Equal(t, models.WatchStatusPendingAnalysis, entry.Status)

	symbols, err := svc.ActiveSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA"}, symbols)
}

func TestAddManualEmptySymbol(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AddManual(context.Background(), "  ")
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestAddManualIdempotentWhileActive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddManual(ctx, "NVDA")
	require.NoError(t, err)
	_, err = svc.AddManual(ctx, "NVDA")
	require.NoError(t, err)

	symbols, err := svc.ActiveSymbols(ctx)
	require.NoError(t, err)
	assert.Len(t, symbols, 1)
}

func TestAddManualEnforcesCap(t *testing.T) {
	svc, _, wcfg := newTestService(t)
	wcfg.MaxActive = 2
	ctx := context.Background()

	_, err := svc.AddManual(ctx, "AAA")
	require.NoError(t, err)
	_, err = svc.AddManual(ctx, "BBB")
	require.NoError(t, err)

	_, err = svc.AddManual(ctx, "CCC")
	assert.True(t, errors.Is(err, common.ErrValidation), "cap must reject the third add")
}

func TestAddManualOverridesCooldown(t *testing.T) {
	svc, mgr, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, mgr.WatchlistStore().Upsert(ctx, &models.WatchlistEntry{
		Symbol:    "NVDA",
		Source:    models.WatchSourceAutoDiscovery,
		Status:    models.WatchStatusRemoved,
		RemovedAt: time.Now().UTC().Add(-24 * time.Hour),
	}))

	entry, err := svc.AddManual(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, models.WatchStatusPendingAnalysis, entry.Status)
	assert.Equal(t, models.WatchSourceManual, entry.Source)
	assert.True(t, entry.RemovedAt.IsZero())
}

func TestRemoveManual(t *testing.T) {
	svc, mgr, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddManual(ctx, "NVDA")
	require.NoError(t, err)
	require.NoError(t, svc.RemoveManual(ctx, "NVDA"))

	entry, err := mgr.WatchlistStore().Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, models.WatchStatusRemoved, entry.Status)
	assert.False(t, entry.RemovedAt.IsZero())
}

func TestRemoveManualMissing(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.RemoveManual(context.Background(), "GHOST")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestImportFromDiscoveryBestFirst(t *testing.T) {
	svc, _, wcfg := newTestService(t)
	wcfg.MaxActive = 2
	ctx := context.Background()

	imported, err := svc.ImportFromDiscovery(ctx, "run-1", []*models.ScoredTicker{
		scored("LOW", 4.0),
		scored("HIGH", 9.0),
		scored("MID", 6.0),
	})
	require.NoError(t, err)

	// Cap of 2 takes the two best scores.
	assert.Equal(t, []string{"HIGH", "MID"}, imported)
}

func TestImportFromDiscoverySkipsLowScores(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// MinDiscoveryScore default is 3.0.
	imported, err := svc.ImportFromDiscovery(ctx, "run-1", []*models.ScoredTicker{
		scored("GOOD", 5.0),
		scored("NOISE", 1.0),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"GOOD"}, imported)
}

func TestImportFromDiscoveryRespectsCooldown(t *testing.T) {
	svc, mgr, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, mgr.WatchlistStore().Upsert(ctx, &models.WatchlistEntry{
		Symbol:    "NVDA",
		Source:    models.WatchSourceAutoDiscovery,
		Status:    models.WatchStatusRemoved,
		RemovedAt: time.Now().UTC().Add(-24 * time.Hour),
	}))

	imported, err := svc.ImportFromDiscovery(ctx, "run-1", []*models.ScoredTicker{scored("NVDA", 8.0)})
	require.NoError(t, err)
	assert.Empty(t, imported, "cooldown-bound candidates are skipped")
}

func TestImportFromDiscoveryReimportsAfterCooldown(t *testing.T) {
	svc, mgr, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, mgr.WatchlistStore().Upsert(ctx, &models.WatchlistEntry{
		Symbol:    "NVDA",
		Source:    models.WatchSourceAutoDiscovery,
		Status:    models.WatchStatusRemoved,
		RemovedAt: time.Now().UTC().AddDate(0, 0, -10),
	}))

	imported, err := svc.ImportFromDiscovery(ctx, "run-1", []*models.ScoredTicker{scored("NVDA", 8.0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA"}, imported)

	entry, err := mgr.WatchlistStore().Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, models.WatchStatusPendingAnalysis, entry.Status)
	assert.Equal(t, 0, entry.ConsecutiveLow)
}

func TestApplyDossierPromotesAndUpdates(t *testing.T) {
	svc, mgr, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddManual(ctx, "NVDA")
	require.NoError(t, err)

	err = svc.ApplyDossier(ctx, "run-1", &models.TickerDossier{Symbol: "NVDA", ConvictionScore: 0.82})
	require.NoError(t, err)

	entry, err := mgr.WatchlistStore().Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, models.WatchStatusActive, entry.Status, "first analysis promotes pending_analysis")
	assert.Equal(t, 0.82, entry.ConvictionScore)
	assert.Equal(t, models.SignalBuy, entry.LastSignal)
	assert.Equal(t, 1, entry.TimesAnalyzed)
	assert.False(t, entry.LastAnalyzed.IsZero())
}

func TestApplyDossierOffWatchlistIsLegal(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.ApplyDossier(context.Background(), "run-1", &models.TickerDossier{Symbol: "GHOST", ConvictionScore: 0.5})
	assert.NoError(t, err)
}

func TestApplyDossierConsecutiveLowAutoRemoval(t *testing.T) {
	svc, mgr, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportFromDiscovery(ctx, "run-1", []*models.ScoredTicker{scored("NVDA", 8.0)})
	require.NoError(t, err)

	// Default limit is 2 consecutive sub-0.3 analyses.
	require.NoError(t, svc.ApplyDossier(ctx, "run-1", &models.TickerDossier{Symbol: "NVDA", ConvictionScore: 0.2}))
	entry, err := mgr.WatchlistStore().Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.ConsecutiveLow)
	assert.NotEqual(t, models.WatchStatusRemoved, entry.Status)

	require.NoError(t, svc.ApplyDossier(ctx, "run-2", &models.TickerDossier{Symbol: "NVDA", ConvictionScore: 0.25}))
	entry, err = mgr.WatchlistStore().Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, models.WatchStatusRemoved, entry.Status)
	assert.False(t, entry.RemovedAt.IsZero())
}

func TestApplyDossierGoodScoreResetsCounter(t *testing.T) {
	svc, mgr, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportFromDiscovery(ctx, "run-1", []*models.ScoredTicker{scored("NVDA", 8.0)})
	require.NoError(t, err)

	require.NoError(t, svc.ApplyDossier(ctx, "run-1", &models.TickerDossier{Symbol: "NVDA", ConvictionScore: 0.2}))
	require.NoError(t, svc.ApplyDossier(ctx, "run-2", &models.TickerDossier{Symbol: "NVDA", ConvictionScore: 0.7}))
	require.NoError(t, svc.ApplyDossier(ctx, "run-3", &models.TickerDossier{Symbol: "NVDA", ConvictionScore: 0.2}))

	entry, err := mgr.WatchlistStore().Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.ConsecutiveLow, "a good analysis resets the streak")
	assert.NotEqual(t, models.WatchStatusRemoved, entry.Status)
}

func TestApplyDossierPositionHeldShieldsRemoval(t *testing.T) {
	svc, mgr, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportFromDiscovery(ctx, "run-1", []*models.ScoredTicker{scored("NVDA", 8.0)})
	require.NoError(t, err)
	require.NoError(t, svc.SetPositionHeld(ctx, "NVDA", true))

	require.NoError(t, svc.ApplyDossier(ctx, "run-1", &models.TickerDossier{Symbol: "NVDA", ConvictionScore: 0.1}))
	require.NoError(t, svc.ApplyDossier(ctx, "run-2", &models.TickerDossier{Symbol: "NVDA", ConvictionScore: 0.1}))

	entry, err := mgr.WatchlistStore().Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.NotEqual(t, models.WatchStatusRemoved, entry.Status, "open positions shield auto-removal")
}

func TestApplyDossierManualEntriesNeverAutoRemoved(t *testing.T) {
	svc, mgr, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddManual(ctx, "NVDA")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, svc.ApplyDossier(ctx, "run", &models.TickerDossier{Symbol: "NVDA", ConvictionScore: 0.1}))
	}

	entry, err := mgr.WatchlistStore().Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.NotEqual(t, models.WatchStatusRemoved, entry.Status)
}

func TestSetPositionHeldMissingEntryIsNoOp(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.NoError(t, svc.SetPositionHeld(context.Background(), "GHOST", true))
}

func TestRemoveStale(t *testing.T) {
	svc, mgr, _ := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	entries := []*models.WatchlistEntry{
		{Symbol: "STALE", Source: models.WatchSourceAutoDiscovery, Status: models.WatchStatusActive,
			AddedAt: now.AddDate(0, 0, -20), LastAnalyzed: now.AddDate(0, 0, -10)},
		{Symbol: "FRESH", Source: models.WatchSourceAutoDiscovery, Status: models.WatchStatusActive,
			AddedAt: now.AddDate(0, 0, -20), LastAnalyzed: now.AddDate(0, 0, -1)},
		{Symbol: "MANUAL", Source: models.WatchSourceManual, Status: models.WatchStatusActive,
			AddedAt: now.AddDate(0, 0, -20), LastAnalyzed: now.AddDate(0, 0, -10)},
		{Symbol: "HELD", Source: models.WatchSourceAutoDiscovery, Status: models.WatchStatusActive,
			AddedAt: now.AddDate(0, 0, -20), LastAnalyzed: now.AddDate(0, 0, -10), PositionHeld: true},
		{Symbol: "NEVER", Source: models.WatchSourceAutoDiscovery, Status: models.WatchStatusPendingAnalysis,
			AddedAt: now.AddDate(0, 0, -8)},
	}
	for _, e := range entries {
		require.NoError(t, mgr.WatchlistStore().Upsert(ctx, e))
	}

	removed, err := svc.RemoveStale(ctx, "run-1")
	require.NoError(t, err)

	// STALE (analyzed 10 days ago) and NEVER (added 8 days ago, never
	// analyzed) go; manual, held, and fresh entries stay.
	assert.ElementsMatch(t, []string{"STALE", "NEVER"}, removed)

	fresh, err := mgr.WatchlistStore().Get(ctx, "FRESH")
	require.NoError(t, err)
	assert.Equal(t, models.WatchStatusActive, fresh.Status)
}
