package models

import (
	"encoding/json"
	"time"
)

// Pipeline phases.
const (
	PhaseRun        = "run"
	PhaseDiscovery  = "discovery"
	PhaseCollection = "collection"
	PhaseAnalysis   = "analysis"
	PhaseTrading    = "trading"
	PhaseWatchlist  = "watchlist"
	PhaseMonitor    = "monitor"
	PhaseScheduler  = "scheduler"
)

// Event statuses.
const (
	EventStatusSuccess = "success"
	EventStatusWarning = "warning"
	EventStatusError   = "error"
	EventStatusSkipped = "skipped"
)

// PipelineEvent is one row of the append-only audit trail. Events of one
// pipeline invocation share a run id.
type PipelineEvent struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	RunID     string          `json:"run_id,omitempty"`
	Phase     string          `json:"phase"`
	EventType string          `json:"event_type"`
	Symbol    string          `json:"symbol,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Status    string          `json:"status"`
}

// JobRun records a completed scheduler job for same-day dedupe.
// Keyed by (job name, calendar date in market time).
type JobRun struct {
	Job         string    `json:"job"`
	Date        string    `json:"date"` // YYYY-MM-DD market time
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
}
