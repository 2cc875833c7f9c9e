package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
	"github.com/bobmcallan/argus/internal/storage"
)

type fakeMarketData struct {
	mu         sync.Mutex
	probeOK    bool
	probeErr   error
	probeCalls int

	candles    []models.Candle
	candlesErr error
	fundErr    error
}

func (f *fakeMarketData) Probe(ctx context.Context, symbol string) (bool, error) {
	f.mu.Lock()
	f.probeCalls++
	f.mu.Unlock()
	return f.probeOK, f.probeErr
}

func (f *fakeMarketData) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	return f.candles, f.candlesErr
}

func (f *fakeMarketData) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	if f.fundErr != nil {
		return nil, f.fundErr
	}
	return &models.Fundamentals{Symbol: symbol, SnapshotDate: "2026-08-25", MarketCap: 1e9, PE: 20}, nil
}

func (f *fakeMarketData) GetFinancials(ctx context.Context, symbol string) ([]models.FinancialRow, error) {
	return []models.FinancialRow{{Symbol: symbol, Year: 2025, Revenue: 1e8, NetIncome: 1e7}}, nil
}

func (f *fakeMarketData) GetBalanceSheet(ctx context.Context, symbol string) ([]models.BalanceRow, error) {
	return []models.BalanceRow{{Symbol: symbol, Year: 2025}}, nil
}

func (f *fakeMarketData) GetCashFlows(ctx context.Context, symbol string) ([]models.CashFlowRow, error) {
	return []models.CashFlowRow{{Symbol: symbol, Year: 2025}}, nil
}

func (f *fakeMarketData) GetAnalyst(ctx context.Context, symbol string) (*models.AnalystSnapshot, error) {
	return &models.AnalystSnapshot{Symbol: symbol, SnapshotDate: "2026-08-25", Rating: 2.1}, nil
}

func (f *fakeMarketData) GetInsider(ctx context.Context, symbol string) (*models.InsiderSummary, error) {
	return &models.InsiderSummary{Symbol: symbol, SnapshotDate: "2026-08-25"}, nil
}

func (f *fakeMarketData) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsEvent, error) {
	return []models.EarningsEvent{{Symbol: symbol, ReportDate: "2026-09-15"}}, nil
}

func (f *fakeMarketData) GetNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	return []models.NewsArticle{{Symbol: symbol, ContentHash: "h1", Title: "Earnings beat"}}, nil
}

func (f *fakeMarketData) GetQuotes(ctx context.Context, symbols []string) ([]models.RealTimeQuote, error) {
	return nil, nil
}

type fakeTranscripts struct {
	videos      []interfaces.VideoResult
	transcripts map[string]string
	searchErr   error
}

func (f *fakeTranscripts) SearchChannel(ctx context.Context, channel string, since time.Time) ([]interfaces.VideoResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.videos, nil
}

func (f *fakeTranscripts) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	text, ok := f.transcripts[videoID]
	if !ok {
		return "", errors.New("no transcript")
	}
	return text, nil
}

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Chat(ctx context.Context, system, user string, opts interfaces.ChatOptions) (*interfaces.ChatReply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &interfaces.ChatReply{Content: f.reply}, nil
}

func (f *fakeLLM) Close() error { return nil }

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

func testCandles(symbol string, n int) []models.Candle {
	candles := make([]models.Candle, n)
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		close := 100 + float64(i%7)
		candles[i] = models.Candle{
			Symbol: symbol, Date: day,
			Open: close - 0.5, High: close + 1, Low: close - 1,
			Close: close, AdjClose: close, Volume: 1000,
		}
		day = day.AddDate(0, 0, -1)
	}
	return candles
}

type harness struct {
	service     *Service
	storage     *storage.Manager
	market      *fakeMarketData
	transcripts *fakeTranscripts
	llm         *fakeLLM
	events      *fakeEventLog
	config      *common.DiscoveryConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	mgr, err := storage.NewManager(cfg, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	h := &harness{
		storage:     mgr,
		market:      &fakeMarketData{probeOK: true, candles: testCandles("NVDA", 300)},
		transcripts: &fakeTranscripts{transcripts: map[string]string{}},
		llm:         &fakeLLM{reply: "YES"},
		events:      &fakeEventLog{},
		config:      &common.DiscoveryConfig{},
	}
	h.service = NewService(mgr, h.market, h.transcripts, h.llm, h.events, h.config, common.NewSilentLogger())
	return h
}

func TestValidateTickerDenylist(t *testing.T) {
	h := newHarness(t)

	ok, err := h.service.ValidateTicker(context.Background(), "YOLO")
	if err != nil {
		t.Fatalf("ValidateTicker: %v", err)
	}
	if ok {
		t.Error("denylisted symbol should be rejected")
	}
	if h.market.probeCalls != 0 {
		t.Errorf("probe called %d times, want 0 for denylisted symbol", h.market.probeCalls)
	}
}

func TestValidateTickerEmpty(t *testing.T) {
	h := newHarness(t)
	ok, err := h.service.ValidateTicker(context.Background(), "  ")
	if err != nil || ok {
		t.Errorf("ValidateTicker(blank) = %v, %v; want false, nil", ok, err)
	}
}

func TestValidateTickerProbeReject(t *testing.T) {
	h := newHarness(t)
	h.market.probeOK = false

	ok, err := h.service.ValidateTicker(context.Background(), "ZZZV")
	if err != nil {
		t.Fatalf("ValidateTicker: %v", err)
	}
	if ok {
		t.Error("untradable symbol should be rejected")
	}
}

func TestValidateTickerProbeError(t *testing.T) {
	h := newHarness(t)
	h.market.probeErr = errors.New("rate limited")

	if _, err := h.service.ValidateTicker(context.Background(), "NVDA"); err == nil {
		t.Error("probe error should propagate")
	}
}

func TestValidateTickerLLMConfirms(t *testing.T) {
	h := newHarness(t)

	ok, err := h.service.ValidateTicker(context.Background(), "nvda")
	if err != nil {
		t.Fatalf("ValidateTicker: %v", err)
	}
	if !ok {
		t.Error("confirmed symbol should validate")
	}
}

func TestValidateTickerLLMRejects(t *testing.T) {
	h := newHarness(t)
	h.llm.reply = "NO, that is a meme."

	ok, err := h.service.ValidateTicker(context.Background(), "MEME")
	if err != nil {
		t.Fatalf("ValidateTicker: %v", err)
	}
	if ok {
		t.Error("LLM-rejected symbol should not validate")
	}
}

func TestValidateTickerLLMFailureAcceptsProbe(t *testing.T) {
	h := newHarness(t)
	h.llm.err = errors.New("llm down")

	ok, err := h.service.ValidateTicker(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("ValidateTicker: %v", err)
	}
	if !ok {
		t.Error("probe-confirmed symbol should validate when the LLM is down")
	}
}

func TestValidateTickerCachesVerdict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.service.ValidateTicker(ctx, "NVDA"); err != nil {
		t.Fatalf("first ValidateTicker: %v", err)
	}
	if _, err := h.service.ValidateTicker(ctx, "NVDA"); err != nil {
		t.Fatalf("second ValidateTicker: %v", err)
	}
	if h.market.probeCalls != 1 {
		t.Errorf("probe called %d times, want 1 (cached)", h.market.probeCalls)
	}
}

func TestCollectDataHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	report, err := h.service.CollectData(ctx, "run-1", "NVDA")
	if err != nil {
		t.Fatalf("CollectData: %v", err)
	}

	for _, step := range []string{
		StepPriceHistory, StepFundamentals, StepFinancials, StepBalanceSheet,
		StepCashFlows, StepAnalyst, StepInsider, StepEarnings, StepNews,
		StepTechnicals, StepRisk,
	} {
		if got := report[step].Status; got != interfaces.StepOK {
			t.Errorf("step %s status = %q, want ok (%s)", step, got, report[step].Error)
		}
	}
	if report[StepPriceHistory].Rows != 300 {
		t.Errorf("price_history rows = %d, want 300", report[StepPriceHistory].Rows)
	}
	if !report.CriticalOK() {
		t.Error("report should pass the critical check")
	}

	// Derived rows landed in the store.
	rows, err := h.storage.MarketStore().GetTechnicals(ctx, "NVDA", 1)
	if err != nil || len(rows) != 1 {
		t.Fatalf("GetTechnicals = %v rows, err %v; want 1 row", len(rows), err)
	}
	if _, err := h.storage.MarketStore().GetRisk(ctx, "NVDA"); err != nil {
		t.Errorf("GetRisk: %v", err)
	}

	if got := len(h.events.byType("collection_completed")); got != 1 {
		t.Errorf("collection_completed events = %d, want 1", got)
	}
}

func TestCollectDataSkipsFreshSteps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.service.CollectData(ctx, "run-1", "NVDA"); err != nil {
		t.Fatalf("first CollectData: %v", err)
	}
	report, err := h.service.CollectData(ctx, "run-2", "NVDA")
	if err != nil {
		t.Fatalf("second CollectData: %v", err)
	}

	// Fundamentals carry a long freshness TTL; the rerun skips the fetch.
	if got := report[StepFundamentals].Status; got != interfaces.StepSkipped {
		t.Errorf("fundamentals status on rerun = %q, want skipped", got)
	}
	// Skipped critical steps still count as present data.
	if !report.CriticalOK() {
		t.Error("fresh data should pass the critical check")
	}
}

func TestCollectDataCriticalFailure(t *testing.T) {
	h := newHarness(t)
	h.market.candlesErr = errors.New("upstream 502")

	report, err := h.service.CollectData(context.Background(), "run-1", "NVDA")
	if err != nil {
		t.Fatalf("CollectData: %v", err)
	}
	if got := report[StepPriceHistory].Status; got != interfaces.StepError {
		t.Errorf("price_history status = %q, want error", got)
	}
	if report.CriticalOK() {
		t.Error("failed critical step should fail the check")
	}
	// No stored candles, so derived steps fail too.
	if got := report[StepTechnicals].Status; got != interfaces.StepError {
		t.Errorf("technicals status = %q, want error", got)
	}
	if got := len(h.events.byType("collection_incomplete")); got != 1 {
		t.Errorf("collection_incomplete events = %d, want 1", got)
	}
}

func TestCollectDataNonCriticalFailureStillOK(t *testing.T) {
	h := newHarness(t)
	h.transcripts.searchErr = errors.New("api down")
	h.config.Channels = []string{"finance-weekly"}

	report, err := h.service.CollectData(context.Background(), "run-1", "NVDA")
	if err != nil {
		t.Fatalf("CollectData: %v", err)
	}
	if got := report[StepTranscripts].Status; got != interfaces.StepError {
		t.Errorf("transcripts status = %q, want error", got)
	}
	if !report.CriticalOK() {
		t.Error("transcript failure must not fail the critical check")
	}
	if got := len(h.events.byType("collection_completed")); got != 1 {
		t.Errorf("collection_completed events = %d, want 1", got)
	}
}

func TestCollectTranscriptsFiltersByTitle(t *testing.T) {
	h := newHarness(t)
	h.config.Channels = []string{"finance-weekly"}
	h.transcripts.videos = []interfaces.VideoResult{
		{VideoID: "v1", Title: "NVDA earnings preview", Channel: "finance-weekly"},
		{VideoID: "v2", Title: "Macro outlook", Channel: "finance-weekly"},
	}
	h.transcripts.transcripts = map[string]string{
		"v1": "transcript one",
		"v2": "transcript two",
	}

	inserted, err := h.service.collectTranscripts(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("collectTranscripts: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1 (title filter)", inserted)
	}

	stored, err := h.storage.MarketStore().GetTranscripts(context.Background(), "NVDA", 10)
	if err != nil {
		t.Fatalf("GetTranscripts: %v", err)
	}
	if len(stored) != 1 || stored[0].VideoID != "v1" {
		t.Fatalf("stored = %+v, want only v1", stored)
	}

	// Re-running inserts nothing: the transcript is already present.
	inserted, err = h.service.collectTranscripts(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("second collectTranscripts: %v", err)
	}
	if inserted != 0 {
		t.Errorf("re-run inserted = %d, want 0", inserted)
	}
}
