package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/models"
)

// Scheduler job names, addressable via the manual trigger endpoint.
const (
	JobPremarket = "premarket"
	JobIntraday  = "intraday"
	JobEOD       = "eod"
)

// Scheduler drives the daily cadence with cron entries evaluated in the
// market timezone. Cron jobs dedupe by (job, calendar date); manual
// triggers bypass the dedupe.
type Scheduler struct {
	app    *App
	cron   *cron.Cron
	logger *common.Logger

	mu       sync.Mutex
	running  bool
	jobOrder []string
	ctx      context.Context
}

// SchedulerStatus reports the scheduler state for the API.
type SchedulerStatus struct {
	Running     bool      `json:"running"`
	Timezone    string    `json:"timezone"`
	NextRuns    []NextRun `json:"next_runs,omitempty"`
	MarketOpen  bool      `json:"market_open"`
	TradingDate string    `json:"trading_date"`
}

// NextRun pairs a cron entry with its next fire time.
type NextRun struct {
	Job  string    `json:"job"`
	Next time.Time `json:"next"`
}

// NewScheduler creates the scheduler. Start registers the entries.
func NewScheduler(a *App) *Scheduler {
	return &Scheduler{
		app:    a,
		logger: a.Logger,
	}
}

// Start registers the cron entries and begins ticking. ctx bounds all
// job work; cancelling it stops jobs mid-flight.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx = ctx
	s.cron = cron.New(cron.WithLocation(s.app.Config.Scheduler.Location()))

	cfg := &s.app.Config.Scheduler
	entries := []struct {
		spec string
		job  string
	}{
		{cfg.PremarketSpec, JobPremarket},
		{cfg.IntradaySpec, JobIntraday},
		{cfg.EODSpec, JobEOD},
	}
	for _, e := range entries {
		job := e.job
		if _, err := s.cron.AddFunc(e.spec, func() { s.runJob(job, false) }); err != nil {
			s.logger.Error().Err(err).Str("job", job).Str("spec", e.spec).Msg("Failed to schedule job")
		}
	}

	s.cron.Start()
	s.running = true
	s.jobOrder = []string{JobPremarket, JobIntraday, JobEOD}
	s.logger.Info().Str("timezone", cfg.Timezone).Msg("Scheduler started")
}

// Stop halts the cron loop. Running jobs are cancelled via the root
// context, not waited for.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
	}
	s.running = false
}

// Status reports the scheduler state, including the next fire time of
// each cron entry.
func (s *Scheduler) Status() *SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := &SchedulerStatus{
		Running:     s.running,
		Timezone:    s.app.Config.Scheduler.Timezone,
		MarketOpen:  s.app.Clock.IsOpenNow(),
		TradingDate: s.app.Clock.TradingDate(time.Now()),
	}
	if s.cron != nil && s.running {
		for i, entry := range s.cron.Entries() {
			job := "unknown"
			if i < len(s.jobOrder) {
				job = s.jobOrder[i]
			}
			status.NextRuns = append(status.NextRuns, NextRun{Job: job, Next: entry.Next})
		}
	}
	return status
}

// Trigger runs a job by name immediately, bypassing same-day dedupe.
func (s *Scheduler) Trigger(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case JobPremarket, JobIntraday, JobEOD:
	default:
		return fmt.Errorf("unknown job %q: %w", name, common.ErrValidation)
	}

	go s.runJob(name, true)
	return nil
}

// runJob executes one scheduled job with same-day dedupe and a job_runs
// record on completion.
func (s *Scheduler) runJob(job string, force bool) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	date := s.app.Clock.TradingDate(time.Now())
	if !force {
		if prev, err := s.app.Storage.JobRunStore().Get(ctx, job, date); err == nil && prev.Status == "completed" {
			s.logger.Info().Str("job", job).Str("date", date).Msg("Job already ran today, skipping")
			s.app.Events.Log(ctx, &models.PipelineEvent{
				Phase:     models.PhaseScheduler,
				EventType: "job_deduped",
				Detail:    fmt.Sprintf("%s already ran on %s", job, date),
				Status:    models.EventStatusSkipped,
			})
			return
		}
	}

	started := time.Now().UTC()
	s.logger.Info().Str("job", job).Bool("forced", force).Msg("Scheduler job started")

	var err error
	switch job {
	case JobPremarket:
		err = s.runPremarket(ctx)
	case JobIntraday:
		err = s.runIntraday(ctx)
	case JobEOD:
		err = s.runEOD(ctx)
	}

	status := "completed"
	detail := ""
	if err != nil {
		status = "failed"
		detail = err.Error()
		s.logger.Error().Err(err).Str("job", job).Msg("Scheduler job failed")
	}

	record := &models.JobRun{
		Job:         job,
		Date:        date,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
		Status:      status,
		Detail:      detail,
	}
	if saveErr := s.app.Storage.JobRunStore().Save(ctx, record); saveErr != nil {
		s.logger.Warn().Err(saveErr).Str("job", job).Msg("Failed to record job run")
	}

	s.app.Events.Log(ctx, &models.PipelineEvent{
		Phase:     models.PhaseScheduler,
		EventType: "job_" + status,
		Detail:    fmt.Sprintf("%s in %s", job, time.Since(started).Round(time.Second)),
		Status:    eventStatusFor(status),
	})
}

func eventStatusFor(jobStatus string) string {
	if jobStatus == "failed" {
		return models.EventStatusError
	}
	return models.EventStatusSuccess
}

// runPremarket is the full pipeline pass: discovery, watchlist import,
// then collection → analysis → trading for every active symbol.
func (s *Scheduler) runPremarket(ctx context.Context) error {
	runID := s.app.Events.BeginRun()

	scored, err := s.app.Discovery.Run(ctx, runID)
	if err != nil {
		// Discovery failing entirely still leaves the existing watchlist
		// worth analyzing.
		s.logger.Warn().Err(err).Msg("Discovery failed, continuing with existing watchlist")
	} else {
		if _, err := s.app.Watchlist.ImportFromDiscovery(ctx, runID, scored); err != nil {
			s.logger.Warn().Err(err).Msg("Watchlist import failed")
		}
	}

	symbols, err := s.app.Watchlist.ActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active symbols: %w", err)
	}
	if len(symbols) == 0 {
		s.logger.Info().Msg("No active symbols, skipping pipeline")
		return nil
	}

	_, err = s.app.Pipeline.Run(ctx, runID, symbols)
	return err
}

// runIntraday re-analyzes symbols showing a BUY signal or a held
// position.
func (s *Scheduler) runIntraday(ctx context.Context) error {
	entries, err := s.app.Watchlist.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list watchlist: %w", err)
	}

	var symbols []string
	for _, e := range entries {
		if !e.IsActive() {
			continue
		}
		if e.LastSignal == models.SignalBuy || e.PositionHeld {
			symbols = append(symbols, e.Symbol)
		}
	}
	if len(symbols) == 0 {
		s.logger.Info().Msg("No BUY-signal symbols, skipping intraday run")
		return nil
	}

	runID := s.app.Events.BeginRun()
	_, err = s.app.Pipeline.Run(ctx, runID, symbols)
	return err
}

// runEOD snapshots the portfolio, prunes stale watchlist entries, and
// writes the daily report.
func (s *Scheduler) runEOD(ctx context.Context) error {
	runID := s.app.Events.BeginRun()

	if removed, err := s.app.Watchlist.RemoveStale(ctx, runID); err != nil {
		s.logger.Warn().Err(err).Msg("Stale watchlist sweep failed")
	} else if len(removed) > 0 {
		s.logger.Info().Strs("symbols", removed).Msg("Stale watchlist entries removed")
	}

	if _, err := s.app.Report.GenerateEOD(ctx, runID); err != nil {
		return fmt.Errorf("failed to generate EOD report: %w", err)
	}
	return nil
}
