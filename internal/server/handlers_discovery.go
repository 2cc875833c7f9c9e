package server

import (
	"net/http"
	"strconv"
)

// handleDiscoveryRun handles POST /api/discovery/run. The run executes in
// the background; poll /api/discovery/status for progress.
func (s *Server) handleDiscoveryRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	runID := s.app.Events.BeginRun()
	go func() {
		if _, err := s.app.Discovery.Run(s.app.BackgroundContext(), runID); err != nil {
			s.logger.Error().Err(err).Str("run_id", runID).Msg("Discovery run failed")
		}
	}()

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"run_id": runID,
	})
}

// handleDiscoveryStatus handles GET /api/discovery/status.
func (s *Server) handleDiscoveryStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	run, err := s.app.Discovery.Status(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// handleDiscoveryResults handles GET /api/discovery/results — the scored
// tickers of the most recent completed run.
func (s *Server) handleDiscoveryResults(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	run, err := s.app.Discovery.Status(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  run.ID,
		"status":  run.Status,
		"results": run.Results,
	})
}

// handleDiscoveryHistory handles GET /api/discovery/history?limit=.
func (s *Server) handleDiscoveryHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	limit := queryInt(r, "limit", 20)
	runs, err := s.app.Discovery.History(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, runs)
}

// handleDiscoveryClear handles POST /api/discovery/clear.
func (s *Server) handleDiscoveryClear(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	cleared, err := s.app.Discovery.Clear(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
