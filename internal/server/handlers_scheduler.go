package server

import (
	"net/http"

	"github.com/bobmcallan/argus/internal/interfaces"
)

// handleBotRunLoop handles POST /api/bot/run-loop — kicks off a full
// pre-market style pass in the background.
func (s *Server) handleBotRunLoop(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if s.app.Pipeline.Running() {
		WriteErrorMessage(w, http.StatusConflict, "Pipeline already running")
		return
	}
	if err := s.app.Scheduler.Trigger("premarket"); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// handleBotLoopStatus handles GET /api/bot/loop-status.
func (s *Server) handleBotLoopStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running":     s.app.Pipeline.Running(),
		"market_open": s.app.Clock.IsOpenNow(),
	})
}

// handleSchedulerStatus handles GET /api/scheduler/status.
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Scheduler.Status())
}

// handleSchedulerStart handles POST /api/scheduler/start.
func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	s.app.Scheduler.Start(s.app.BackgroundContext())
	WriteJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// handleSchedulerStop handles POST /api/scheduler/stop.
func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	s.app.Scheduler.Stop()
	WriteJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleSchedulerKill handles POST /api/scheduler/kill — cancels all
// scheduled and in-flight work and deactivates standing triggers. Open
// positions are left untouched.
func (s *Server) handleSchedulerKill(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.app.Kill(r.Context()); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "killed"})
}

// handleSchedulerRun handles POST /api/scheduler/run/{job}.
func (s *Server) handleSchedulerRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	job := PathParam(r, "/api/scheduler/run/", "")
	if job == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "Job name is required")
		return
	}
	if err := s.app.Scheduler.Trigger(job); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "triggered", "job": job})
}

// handlePipelineEvents handles GET /api/pipeline/events?limit=&phase=&ticker=&run_id=.
func (s *Server) handlePipelineEvents(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	q := interfaces.EventQuery{
		Limit:  queryInt(r, "limit", 100),
		Phase:  r.URL.Query().Get("phase"),
		Symbol: r.URL.Query().Get("ticker"),
		RunID:  r.URL.Query().Get("run_id"),
	}
	events, err := s.app.Events.Query(r.Context(), q)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, events)
}
