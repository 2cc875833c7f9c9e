package app

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
	"github.com/bobmcallan/argus/internal/services/pipeline"
	"github.com/bobmcallan/argus/internal/storage"
)

type fakeEventLog struct {
	mu     sync.Mutex
	events []*models.PipelineEvent
}

func (f *fakeEventLog) BeginRun() string { return "test-run" }

func (f *fakeEventLog) Log(ctx context.Context, event *models.PipelineEvent) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
}

func (f *fakeEventLog) Query(ctx context.Context, q interfaces.EventQuery) ([]*models.PipelineEvent, error) {
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

type fakeWatchlist struct {
	entries  []*models.WatchlistEntry
	active   []string
	imported [][]*models.ScoredTicker
	removed  []string
}

func (f *fakeWatchlist) ActiveSymbols(ctx context.Context) ([]string, error) { return f.active, nil }
func (f *fakeWatchlist) List(ctx context.Context) ([]*models.WatchlistEntry, error) {
	return f.entries, nil
}
func (f *fakeWatchlist) AddManual(ctx context.Context, symbol string) (*models.WatchlistEntry, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeWatchlist) RemoveManual(ctx context.Context, symbol string) error { return nil }
func (f *fakeWatchlist) ImportFromDiscovery(ctx context.Context, runID string, scored []*models.ScoredTicker) ([]string, error) {
	f.imported = append(f.imported, scored)
	return nil, nil
}
func (f *fakeWatchlist) ApplyDossier(ctx context.Context, runID string, dossier *models.TickerDossier) error {
	return nil
}
func (f *fakeWatchlist) SetPositionHeld(ctx context.Context, symbol string, held bool) error {
	return nil
}
func (f *fakeWatchlist) RemoveStale(ctx context.Context, runID string) ([]string, error) {
	return f.removed, nil
}

type fakeDiscovery struct {
	scored []*models.ScoredTicker
	err    error
}

func (f *fakeDiscovery) Run(ctx context.Context, runID string) ([]*models.ScoredTicker, error) {
	return f.scored, f.err
}
func (f *fakeDiscovery) Status(ctx context.Context) (*models.DiscoveryRun, error) { return nil, nil }
func (f *fakeDiscovery) History(ctx context.Context, limit int) ([]*models.DiscoveryRun, error) {
	return nil, nil
}
func (f *fakeDiscovery) Clear(ctx context.Context) (int, error) { return 0, nil }

type fakeReport struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeReport) GenerateEOD(ctx context.Context, runID string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return "report", f.err
}

func (f *fakeReport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// pipeCollector records which symbols reach the pipeline.
type pipeCollector struct {
	mu      sync.Mutex
	symbols []string
}

func (c *pipeCollector) ValidateTicker(ctx context.Context, symbol string) (bool, error) {
	return true, nil
}

func (c *pipeCollector) CollectData(ctx context.Context, runID, symbol string) (interfaces.StepReport, error) {
	c.mu.Lock()
	c.symbols = append(c.symbols, symbol)
	c.mu.Unlock()
	return interfaces.StepReport{
		"price_history": {Status: interfaces.StepOK, Rows: 1},
		"fundamentals":  {Status: interfaces.StepOK, Rows: 1},
	}, nil
}

func (c *pipeCollector) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.symbols...)
}

type pipeAnalysis struct{}

func (pipeAnalysis) Analyze(ctx context.Context, runID, symbol string) (*models.TickerDossier, error) {
	return &models.TickerDossier{Symbol: symbol, ConvictionScore: 0.5}, nil
}
func (pipeAnalysis) BuildScorecard(ctx context.Context, runID, symbol string) (*models.QuantScorecard, error) {
	return nil, errors.New("not implemented")
}
func (pipeAnalysis) GenerateQuestions(ctx context.Context, card *models.QuantScorecard) ([]models.Question, error) {
	return nil, errors.New("not implemented")
}
func (pipeAnalysis) AnswerQuestions(ctx context.Context, symbol string, questions []models.Question) ([]models.QAPair, error) {
	return nil, errors.New("not implemented")
}
func (pipeAnalysis) SynthesizeDossier(ctx context.Context, runID string, card *models.QuantScorecard, pairs []models.QAPair) (*models.TickerDossier, error) {
	return nil, errors.New("not implemented")
}

type pipeTrader struct{}

func (pipeTrader) Route(ctx context.Context, runID string, dossier *models.TickerDossier) (*models.Decision, error) {
	return &models.Decision{Symbol: dossier.Symbol, Action: models.SignalHold}, nil
}
func (pipeTrader) Buy(ctx context.Context, symbol string, qty int, price float64) (*models.Order, error) {
	return nil, errors.New("not implemented")
}
func (pipeTrader) Sell(ctx context.Context, symbol string, qty int, price float64) (*models.Order, error) {
	return nil, errors.New("not implemented")
}
func (pipeTrader) Positions(ctx context.Context) ([]*models.Position, error) { return nil, nil }
func (pipeTrader) Portfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	return nil, errors.New("not implemented")
}
func (pipeTrader) Snapshot(ctx context.Context) (*models.PortfolioSnapshot, error) {
	return nil, errors.New("not implemented")
}
func (pipeTrader) UpdatePrices(ctx context.Context, quotes []models.RealTimeQuote) error { return nil }

type harness struct {
	scheduler *Scheduler
	app       *App
	storage   *storage.Manager
	events    *fakeEventLog
	watchlist *fakeWatchlist
	discovery *fakeDiscovery
	report    *fakeReport
	collector *pipeCollector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	logger := common.NewSilentLogger()

	mgr, err := storage.NewManager(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	h := &harness{
		storage:   mgr,
		events:    &fakeEventLog{},
		watchlist: &fakeWatchlist{},
		discovery: &fakeDiscovery{},
		report:    &fakeReport{},
		collector: &pipeCollector{},
	}
	pipe := pipeline.NewService(h.collector, pipeAnalysis{}, pipeTrader{}, h.watchlist, h.events, &cfg.Pipeline, logger)

	h.app = &App{
		Config:    cfg,
		Logger:    logger,
		Storage:   mgr,
		Clock:     common.NewMarketClock(cfg.Scheduler.Location()),
		Events:    h.events,
		Discovery: h.discovery,
		Watchlist: h.watchlist,
		Report:    h.report,
		Pipeline:  pipe,
	}
	h.scheduler = NewScheduler(h.app)
	return h
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	h := newHarness(t)

	err := h.scheduler.Trigger("nonsense")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestRunJobRecordsCompletion(t *testing.T) {
	h := newHarness(t)

	h.scheduler.runJob(JobEOD, false)

	date := h.app.Clock.TradingDate(time.Now())
	record, err := h.storage.JobRunStore().Get(context.Background(), JobEOD, date)
	require.NoError(t, err)
	assert.Equal(t, "completed", record.Status)
	assert.Equal(t, 1, h.report.callCount())
	require.Len(t, h.events.byType("job_completed"), 1)
}

func TestRunJobDedupesSameDay(t *testing.T) {
	h := newHarness(t)

	h.scheduler.runJob(JobEOD, false)
	h.scheduler.runJob(JobEOD, false)

	assert.Equal(t, 1, h.report.callCount())
	require.Len(t, h.events.byType("job_deduped"), 1)
}

func TestRunJobForceBypassesDedupe(t *testing.T) {
	h := newHarness(t)

	h.scheduler.runJob(JobEOD, false)
	h.scheduler.runJob(JobEOD, true)

	assert.Equal(t, 2, h.report.callCount())
	assert.Empty(t, h.events.byType("job_deduped"))
}

func TestRunJobRecordsFailure(t *testing.T) {
	h := newHarness(t)
	h.report.err = errors.New("chart renderer exploded")

	h.scheduler.runJob(JobEOD, false)

	date := h.app.Clock.TradingDate(time.Now())
	record, err := h.storage.JobRunStore().Get(context.Background(), JobEOD, date)
	require.NoError(t, err)
	assert.Equal(t, "failed", record.Status)
	assert.Contains(t, record.Detail, "chart renderer exploded")
	require.Len(t, h.events.byType("job_failed"), 1)

	// A failed run does not dedupe the retry.
	h.report.err = nil
	h.scheduler.runJob(JobEOD, false)
	assert.Equal(t, 2, h.report.callCount())
}

func TestPremarketRunsPipelineForActiveSymbols(t *testing.T) {
	h := newHarness(t)
	h.discovery.scored = []*models.ScoredTicker{{Symbol: "NVDA", TotalScore: 5}}
	h.watchlist.active = []string{"NVDA", "AAPL"}

	require.NoError(t, h.scheduler.runPremarket(context.Background()))

	require.Len(t, h.watchlist.imported, 1)
	assert.ElementsMatch(t, []string{"NVDA", "AAPL"}, h.collector.seen())
}

func TestPremarketContinuesWhenDiscoveryFails(t *testing.T) {
	h := newHarness(t)
	h.discovery.err = errors.New("all sources down")
	h.watchlist.active = []string{"NVDA"}

	require.NoError(t, h.scheduler.runPremarket(context.Background()))

	assert.Empty(t, h.watchlist.imported)
	assert.Equal(t, []string{"NVDA"}, h.collector.seen())
}

func TestPremarketSkipsEmptyWatchlist(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.scheduler.runPremarket(context.Background()))
	assert.Empty(t, h.collector.seen())
}

func TestIntradaySelectsBuySignalsAndHeldPositions(t *testing.T) {
	h := newHarness(t)
	h.watchlist.entries = []*models.WatchlistEntry{
		{Symbol: "BUYS", Status: models.WatchStatusActive, LastSignal: models.SignalBuy},
		{Symbol: "HELD", Status: models.WatchStatusActive, LastSignal: models.SignalHold, PositionHeld: true},
		{Symbol: "COLD", Status: models.WatchStatusActive, LastSignal: models.SignalHold},
		{Symbol: "GONE", Status: models.WatchStatusRemoved, LastSignal: models.SignalBuy},
	}

	require.NoError(t, h.scheduler.runIntraday(context.Background()))
	assert.ElementsMatch(t, []string{"BUYS", "HELD"}, h.collector.seen())
}

func TestIntradaySkipsWhenNothingActionable(t *testing.T) {
	h := newHarness(t)
	h.watchlist.entries = []*models.WatchlistEntry{
		{Symbol: "COLD", Status: models.WatchStatusActive, LastSignal: models.SignalHold},
	}

	require.NoError(t, h.scheduler.runIntraday(context.Background()))
	assert.Empty(t, h.collector.seen())
}

func TestEODSweepsStaleEntries(t *testing.T) {
	h := newHarness(t)
	h.watchlist.removed = []string{"OLD"}

	require.NoError(t, h.scheduler.runEOD(context.Background()))
	assert.Equal(t, 1, h.report.callCount())
}

func TestStatusReflectsLifecycle(t *testing.T) {
	h := newHarness(t)

	status := h.scheduler.Status()
	assert.False(t, status.Running)
	assert.Equal(t, h.app.Config.Scheduler.Timezone, status.Timezone)
	assert.NotEmpty(t, status.TradingDate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.scheduler.Start(ctx)
	t.Cleanup(h.scheduler.Stop)

	status = h.scheduler.Status()
	assert.True(t, status.Running)
	assert.Len(t, status.NextRuns, 3)

	h.scheduler.Stop()
	assert.False(t, h.scheduler.Status().Running)
}
