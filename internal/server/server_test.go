package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/argus/internal/app"
	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/models"
	"github.com/bobmcallan/argus/internal/services/eventlog"
	"github.com/bobmcallan/argus/internal/services/pipeline"
	"github.com/bobmcallan/argus/internal/services/trader"
	"github.com/bobmcallan/argus/internal/services/watchlist"
	"github.com/bobmcallan/argus/internal/storage"
)

// quoteStub satisfies MarketDataClient for routes that never fetch data.
type quoteStub struct{}

func (quoteStub) Probe(ctx context.Context, symbol string) (bool, error) { return true, nil }
func (quoteStub) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	return nil, nil
}
func (quoteStub) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	return nil, common.ErrNotFound
}
func (quoteStub) GetFinancials(ctx context.Context, symbol string) ([]models.FinancialRow, error) {
	return nil, nil
}
func (quoteStub) GetBalanceSheet(ctx context.Context, symbol string) ([]models.BalanceRow, error) {
	return nil, nil
}
func (quoteStub) GetCashFlows(ctx context.Context, symbol string) ([]models.CashFlowRow, error) {
	return nil, nil
}
func (quoteStub) GetAnalyst(ctx context.Context, symbol string) (*models.AnalystSnapshot, error) {
	return nil, common.ErrNotFound
}
func (quoteStub) GetInsider(ctx context.Context, symbol string) (*models.InsiderSummary, error) {
	return nil, common.ErrNotFound
}
func (quoteStub) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsEvent, error) {
	return nil, nil
}
func (quoteStub) GetNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	return nil, nil
}
func (quoteStub) GetQuotes(ctx context.Context, symbols []string) ([]models.RealTimeQuote, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *app.App) {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	logger := common.NewSilentLogger()

	mgr, err := storage.NewManager(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	events := eventlog.NewService(mgr, logger)
	wl := watchlist.NewService(mgr, events, &cfg.Watchlist, logger)
	clock := common.NewMarketClock(nil)
	trd, err := trader.NewService(mgr, events, wl, quoteStub{}, clock, &cfg.Risk, logger)
	require.NoError(t, err)

	a := &app.App{
		Config:      cfg,
		Logger:      logger,
		Storage:     mgr,
		Clock:       clock,
		MarketData:  quoteStub{},
		Events:      events,
		Watchlist:   wl,
		Trader:      trd,
		Hub:         pipeline.NewWSHub(logger),
		StartupTime: time.Now(),
	}
	return NewServer(a), a
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["environment"])
	assert.Contains(t, body, "market_open")
}

func TestVersionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["version"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/api/portfolio", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET", rec.Header().Get("Allow"))
	assert.Equal(t, "Method not allowed", body["error"])
}

func TestPortfolioEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10000.0, body["cash"])
	assert.Equal(t, 10000.0, body["total_value"])
}

func TestPositionsAndOrdersEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, srv.Handler(), http.MethodGet, "/api/orders?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, srv.Handler(), http.MethodGet, "/api/triggers", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWatchlistLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec, body := doJSON(t, h, http.MethodPut, "/api/watchlist", `{"tickers":["nvda"," msft "]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	added, ok := body["added"].([]interface{})
	require.True(t, ok)
	assert.ElementsMatch(t, []interface{}{"NVDA", "MSFT"}, added)

	req := httptest.NewRequest(http.MethodGet, "/api/watchlist", nil)
	list := httptest.NewRecorder()
	h.ServeHTTP(list, req)
	require.Equal(t, http.StatusOK, list.Code)
	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)

	rec, body = doJSON(t, h, http.MethodDelete, "/api/watchlist/NVDA", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NVDA", body["removed"])

	rec, body = doJSON(t, h, http.MethodDelete, "/api/watchlist/UNKNOWN", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error_kind"])
}

func TestWatchlistRejectsEmptyBody(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodPut, "/api/watchlist", `{"tickers":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "ticker is required")
}

func TestWatchlistRejectsInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodPut, "/api/watchlist", `{"tickers": [`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "Invalid JSON")
}

func TestPipelineEventsEndpoint(t *testing.T) {
	srv, a := newTestServer(t)

	a.Events.Log(context.Background(), &models.PipelineEvent{
		RunID:     "run-1",
		Phase:     models.PhaseRun,
		EventType: "pipeline_started",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/pipeline/events?run_id=run-1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "pipeline_started", events[0]["event_type"])
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/portfolio", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorrelationIDPropagation(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc123", rec.Header().Get("X-Correlation-ID"))

	plain := httptest.NewRecorder()
	srv.Handler().ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.NotEmpty(t, plain.Header().Get("X-Correlation-ID"))
}

func TestPathParam(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
		suffix string
		want   string
	}{
		{"/api/dashboard/prices/NVDA", "/api/dashboard/prices/", "", "NVDA"},
		{"/api/watchlist/NVDA/extra", "/api/watchlist/", "", "NVDA"},
		{"/api/analysis/deep/NVDA/status", "/api/analysis/deep/", "/status", "NVDA"},
		{"/api/other/NVDA", "/api/watchlist/", "", ""},
		{"/api/watchlist/", "/api/watchlist/", "", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := PathParam(r, tt.prefix, tt.suffix); got != tt.want {
			t.Errorf("PathParam(%q, %q, %q) = %q, want %q", tt.path, tt.prefix, tt.suffix, got, tt.want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ErrNotFound, http.StatusNotFound},
		{common.ErrPositionNotFound, http.StatusNotFound},
		{common.ErrValidation, http.StatusBadRequest},
		{common.ErrInsufficientCash, http.StatusConflict},
		{common.ErrRiskBlocked, http.StatusConflict},
		{common.ErrLLMTransient, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
