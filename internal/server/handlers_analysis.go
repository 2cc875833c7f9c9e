package server

import (
	"net/http"
	"strings"
)

// handleDeepAnalysis handles POST /api/analysis/deep/{ticker} — runs all
// four layers synchronously and returns the dossier.
func (s *Server) handleDeepAnalysis(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/analysis/deep/")
	if !ok {
		return
	}

	runID := s.app.Events.BeginRun()
	dossier, err := s.app.Analysis.Analyze(r.Context(), runID, ticker)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, dossier)
}

type deepBatchRequest struct {
	Tickers []string `json:"tickers"`
}

// handleDeepBatch handles POST /api/analysis/deep-batch — pushes the
// given tickers through the full pipeline in the background.
func (s *Server) handleDeepBatch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req deepBatchRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Tickers) == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, "At least one ticker is required")
		return
	}

	symbols := make([]string, 0, len(req.Tickers))
	for _, t := range req.Tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			symbols = append(symbols, t)
		}
	}

	runID := s.app.Events.BeginRun()
	go func() {
		if _, err := s.app.Pipeline.Run(s.app.BackgroundContext(), runID, symbols); err != nil {
			s.logger.Error().Err(err).Str("run_id", runID).Msg("Deep batch failed")
		}
	}()

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "started",
		"run_id":  runID,
		"tickers": symbols,
	})
}

// handleDossiers handles GET /api/dossiers/{ticker}?limit=.
func (s *Server) handleDossiers(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/dossiers/")
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 5)
	dossiers, err := s.app.Storage.DossierStore().ListDossiers(r.Context(), ticker, limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, dossiers)
}

// handleScorecards handles GET /api/scorecards/{ticker}.
func (s *Server) handleScorecards(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/scorecards/")
	if !ok {
		return
	}
	card, err := s.app.Storage.DossierStore().LatestScorecard(r.Context(), ticker)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, card)
}
