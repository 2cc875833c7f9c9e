package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/models"
)

// SSE event types emitted by the analyze stream.
const (
	streamPlan             = "plan"
	streamStepStart        = "step_start"
	streamStepComplete     = "step_complete"
	streamStepError        = "step_error"
	streamAgentStart       = "agent_start"
	streamAgentComplete    = "agent_complete"
	streamAgentError       = "agent_error"
	streamDecisionComplete = "decision_complete"
	streamDone             = "done"
	streamError            = "error"
)

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// send writes one `data: <json>\n\n` frame and flushes it.
func (s *sseWriter) send(eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["type"] = eventType
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "data: %s\n\n", data)
	s.flusher.Flush()
}

// handleAnalyzeStream handles POST /api/analyze-stream?ticker=&mode=.
// Streams the collection step, the four analysis agents, and (when
// mode=trade) the routing decision as Server-Sent Events. Errors are
// streamed as an error event followed by a terminal done.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("ticker")))
	if ticker == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "ticker query parameter is required")
		return
	}
	mode := r.URL.Query().Get("mode")

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	stream := &sseWriter{w: w, flusher: flusher}
	ctx := r.Context()
	runID := s.app.Events.BeginRun()

	steps := []string{"collect", "scorecard", "questions", "answers", "synthesis"}
	if mode == "trade" {
		steps = append(steps, "decision")
	}
	stream.send(streamPlan, map[string]interface{}{
		"ticker": ticker,
		"run_id": runID,
		"steps":  steps,
	})

	fail := func(eventType, step string, err error) {
		stream.send(eventType, map[string]interface{}{
			"step":       step,
			"error":      err.Error(),
			"error_kind": common.ErrorKind(err),
		})
		stream.send(streamError, map[string]interface{}{"error": err.Error(), "error_kind": common.ErrorKind(err)})
		stream.send(streamDone, map[string]interface{}{"run_id": runID, "status": "failed"})
	}

	// Collection step
	stream.send(streamStepStart, map[string]interface{}{"step": "collect", "ticker": ticker})
	report, err := s.app.Collector.CollectData(ctx, runID, ticker)
	if err != nil {
		fail(streamStepError, "collect", err)
		return
	}
	stream.send(streamStepComplete, map[string]interface{}{"step": "collect", "report": report})
	if !report.CriticalOK() {
		fail(streamStepError, "collect", fmt.Errorf("critical collection steps failed: %w", common.ErrValidation))
		return
	}

	// Layer 1: scorecard
	stream.send(streamAgentStart, map[string]interface{}{"agent": "scorecard"})
	card, err := s.app.Analysis.BuildScorecard(ctx, runID, ticker)
	if err != nil {
		fail(streamAgentError, "scorecard", err)
		return
	}
	stream.send(streamAgentComplete, map[string]interface{}{
		"agent": "scorecard",
		"flags": card.Flags,
	})

	// Layer 2: questions
	stream.send(streamAgentStart, map[string]interface{}{"agent": "questions"})
	questions, err := s.app.Analysis.GenerateQuestions(ctx, card)
	if err != nil {
		fail(streamAgentError, "questions", err)
		return
	}
	stream.send(streamAgentComplete, map[string]interface{}{
		"agent":     "questions",
		"questions": questions,
	})

	// Layer 3: answers
	stream.send(streamAgentStart, map[string]interface{}{"agent": "answers"})
	pairs, err := s.app.Analysis.AnswerQuestions(ctx, ticker, questions)
	if err != nil {
		fail(streamAgentError, "answers", err)
		return
	}
	stream.send(streamAgentComplete, map[string]interface{}{
		"agent":   "answers",
		"answers": pairs,
	})

	// Layer 4: synthesis
	stream.send(streamAgentStart, map[string]interface{}{"agent": "synthesis"})
	dossier, err := s.app.Analysis.SynthesizeDossier(ctx, runID, card, pairs)
	if err != nil {
		fail(streamAgentError, "synthesis", err)
		return
	}
	if err := s.app.Watchlist.ApplyDossier(ctx, runID, dossier); err != nil {
		s.logger.Warn().Err(err).Str("symbol", ticker).Msg("Failed to apply dossier to watchlist")
	}
	stream.send(streamAgentComplete, map[string]interface{}{
		"agent":      "synthesis",
		"conviction": dossier.ConvictionScore,
		"signal":     models.SignalForConviction(dossier.ConvictionScore),
		"summary":    dossier.ExecutiveSummary,
	})

	if mode == "trade" {
		decision, err := s.app.Trader.Route(ctx, runID, dossier)
		if err != nil {
			fail(streamStepError, "decision", err)
			return
		}
		stream.send(streamDecisionComplete, map[string]interface{}{
			"decision": decision,
		})
	}

	stream.send(streamDone, map[string]interface{}{"run_id": runID, "status": "completed"})
}
