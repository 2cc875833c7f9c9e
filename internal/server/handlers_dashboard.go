package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/argus/internal/common"
)

const defaultPriceWindowDays = 365

// handleQuotes handles GET /api/quotes?tickers=A,B,C.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	raw := r.URL.Query().Get("tickers")
	if raw == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "tickers query parameter is required")
		return
	}
	var symbols []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			symbols = append(symbols, t)
		}
	}
	quotes, err := s.app.MarketData.GetQuotes(r.Context(), symbols)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, quotes)
}

// handleDashboardOverview handles GET /api/dashboard/overview/{ticker} —
// the watchlist entry, latest dossier, open position, and collection
// status in one payload.
func (s *Server) handleDashboardOverview(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/dashboard/overview/")
	if !ok {
		return
	}
	ctx := r.Context()

	overview := map[string]interface{}{"symbol": ticker}

	if entry, err := s.app.Storage.WatchlistStore().Get(ctx, ticker); err == nil {
		overview["watchlist"] = entry
	} else if !errors.Is(err, common.ErrNotFound) {
		WriteServiceError(w, err)
		return
	}
	if dossier, err := s.app.Storage.DossierStore().LatestDossier(ctx, ticker); err == nil {
		overview["dossier"] = dossier
	}
	if pos, err := s.app.Storage.PortfolioStore().GetPosition(ctx, ticker); err == nil {
		overview["position"] = pos
	}
	if status, err := s.app.Storage.MarketStore().GetCollectionStatus(ctx, ticker); err == nil {
		overview["collection_status"] = status
	}

	WriteJSON(w, http.StatusOK, overview)
}

// handleDashboardPrices handles GET /api/dashboard/prices/{ticker}?days=.
func (s *Server) handleDashboardPrices(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/dashboard/prices/")
	if !ok {
		return
	}
	days := queryInt(r, "days", defaultPriceWindowDays)
	now := time.Now().UTC()
	candles, err := s.app.Storage.MarketStore().GetPriceHistory(r.Context(), ticker, now.AddDate(0, 0, -days), now)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, candles)
}

// handleDashboardNews handles GET /api/dashboard/news/{ticker}?limit=.
func (s *Server) handleDashboardNews(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/dashboard/news/")
	if !ok {
		return
	}
	articles, err := s.app.Storage.MarketStore().GetNews(r.Context(), ticker, queryInt(r, "limit", 50))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, articles)
}

// handleDashboardYouTube handles GET /api/dashboard/youtube/{ticker}?limit=.
func (s *Server) handleDashboardYouTube(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/dashboard/youtube/")
	if !ok {
		return
	}
	transcripts, err := s.app.Storage.MarketStore().GetTranscripts(r.Context(), ticker, queryInt(r, "limit", 10))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, transcripts)
}

// handleDashboardTechnicals handles GET /api/dashboard/technicals/{ticker}?limit=.
func (s *Server) handleDashboardTechnicals(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/dashboard/technicals/")
	if !ok {
		return
	}
	rows, err := s.app.Storage.MarketStore().GetTechnicals(r.Context(), ticker, queryInt(r, "limit", 30))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rows)
}

// handleDashboardFinancials handles GET /api/dashboard/financials/{ticker}.
func (s *Server) handleDashboardFinancials(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/dashboard/financials/")
	if !ok {
		return
	}
	ctx := r.Context()

	payload := map[string]interface{}{"symbol": ticker}
	if f, err := s.app.Storage.MarketStore().GetFundamentals(ctx, ticker); err == nil {
		payload["fundamentals"] = f
	}
	if rows, err := s.app.Storage.MarketStore().GetFinancials(ctx, ticker); err == nil {
		payload["financials"] = rows
	}
	if rows, err := s.app.Storage.MarketStore().GetBalanceSheet(ctx, ticker); err == nil {
		payload["balance_sheet"] = rows
	}
	if rows, err := s.app.Storage.MarketStore().GetCashFlows(ctx, ticker); err == nil {
		payload["cash_flows"] = rows
	}
	if events, err := s.app.Storage.MarketStore().GetEarnings(ctx, ticker); err == nil {
		payload["earnings"] = events
	}
	WriteJSON(w, http.StatusOK, payload)
}

// handleDashboardRisk handles GET /api/dashboard/risk/{ticker}.
func (s *Server) handleDashboardRisk(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/dashboard/risk/")
	if !ok {
		return
	}
	row, err := s.app.Storage.MarketStore().GetRisk(r.Context(), ticker)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, row)
}

// handleDashboardAnalyst handles GET /api/dashboard/analyst/{ticker} —
// analyst consensus plus insider activity.
func (s *Server) handleDashboardAnalyst(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/dashboard/analyst/")
	if !ok {
		return
	}
	ctx := r.Context()

	payload := map[string]interface{}{"symbol": ticker}
	if snap, err := s.app.Storage.MarketStore().GetAnalyst(ctx, ticker); err == nil {
		payload["analyst"] = snap
	}
	if ins, err := s.app.Storage.MarketStore().GetInsider(ctx, ticker); err == nil {
		payload["insider"] = ins
	}
	WriteJSON(w, http.StatusOK, payload)
}
