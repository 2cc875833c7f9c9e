// Package pipeline runs the staged fan-out: collection workers feed
// analysis workers feed the single trading worker, connected by bounded
// queues.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
)

// RunSummary totals one pipeline pass.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Queued    int           `json:"queued"`
	Collected int           `json:"collected"`
	Analyzed  int           `json:"analyzed"`
	Traded    int           `json:"traded"`
	Dropped   int           `json:"dropped"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Service wires the worker pools together. One run at a time; a second
// Run call while one is in flight returns an error rather than queueing.
type Service struct {
	collector interfaces.CollectorService
	analysis  interfaces.AnalysisService
	trader    interfaces.TraderService
	watchlist interfaces.WatchlistService
	events    interfaces.EventLogService
	config    *common.PipelineConfig
	logger    *common.Logger

	mu      sync.Mutex
	running bool
}

// NewService creates a new pipeline service.
func NewService(
	collector interfaces.CollectorService,
	analysis interfaces.AnalysisService,
	trader interfaces.TraderService,
	watchlist interfaces.WatchlistService,
	events interfaces.EventLogService,
	config *common.PipelineConfig,
	logger *common.Logger,
) *Service {
	return &Service{
		collector: collector,
		analysis:  analysis,
		trader:    trader,
		watchlist: watchlist,
		events:    events,
		config:    config,
		logger:    logger,
	}
}

// Running reports whether a pipeline pass is in flight.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run pushes the given symbols through collection, analysis, and trading.
// Per-ticker failures drop that ticker and continue; only a concurrent
// run or a cancelled context surface as errors.
func (s *Service) Run(ctx context.Context, runID string, symbols []string) (*RunSummary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("pipeline already running: %w", common.ErrValidation)
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	summary := &RunSummary{RunID: runID, Queued: len(symbols)}
	var counts struct {
		sync.Mutex
		collected, analyzed, traded, dropped int
	}
	drop := func() {
		counts.Lock()
		counts.dropped++
		counts.Unlock()
	}

	s.events.Log(ctx, &models.PipelineEvent{
		RunID:     runID,
		Phase:     models.PhaseRun,
		EventType: "pipeline_started",
		Detail:    fmt.Sprintf("%d symbols queued", len(symbols)),
	})

	collectQ := make(chan string, s.config.CollectQueueSize)
	analyzeQ := make(chan string, s.config.AnalyzeQueueSize)
	tradeQ := make(chan *models.TickerDossier, s.config.TradeQueueSize)

	stageTimeout := s.config.GetStageTimeout()

	// Collection workers. Closing collectQ is the shutdown sentinel; the
	// closed channel drains every sibling, and the pool's WaitGroup
	// cascades the close downstream.
	var collectWG sync.WaitGroup
	for i := 0; i < s.config.CollectionWorkers; i++ {
		collectWG.Add(1)
		go func() {
			defer collectWG.Done()
			for symbol := range collectQ {
				if ctx.Err() != nil {
					drop()
					continue
				}
				if s.collectOne(ctx, runID, symbol, stageTimeout) {
					counts.Lock()
					counts.collected++
					counts.Unlock()
					select {
					case analyzeQ <- symbol:
					case <-ctx.Done():
						drop()
					}
				} else {
					drop()
				}
			}
		}()
	}

	// Analysis workers. The pool size doubles as the LLM concurrency
	// semaphore: at most this many layer calls are in flight.
	var analyzeWG sync.WaitGroup
	for i := 0; i < s.config.AnalysisWorkers; i++ {
		analyzeWG.Add(1)
		go func() {
			defer analyzeWG.Done()
			for symbol := range analyzeQ {
				if ctx.Err() != nil {
					drop()
					continue
				}
				dossier := s.analyzeOne(ctx, runID, symbol, stageTimeout)
				if dossier == nil {
					drop()
					continue
				}
				counts.Lock()
				counts.analyzed++
				counts.Unlock()
				select {
				case tradeQ <- dossier:
				case <-ctx.Done():
					drop()
				}
			}
		}()
	}

	// Single trading worker serializes portfolio mutations.
	var tradeWG sync.WaitGroup
	tradeWG.Add(1)
	go func() {
		defer tradeWG.Done()
		for dossier := range tradeQ {
			if ctx.Err() != nil {
				drop()
				continue
			}
			if s.tradeOne(ctx, runID, dossier, stageTimeout) {
				counts.Lock()
				counts.traded++
				counts.Unlock()
			} else {
				drop()
			}
		}
	}()

	for _, symbol := range symbols {
		select {
		case collectQ <- symbol:
		case <-ctx.Done():
		}
	}
	close(collectQ)
	collectWG.Wait()
	close(analyzeQ)
	analyzeWG.Wait()
	close(tradeQ)
	tradeWG.Wait()

	counts.Lock()
	summary.Collected = counts.collected
	summary.Analyzed = counts.analyzed
	summary.Traded = counts.traded
	summary.Dropped = counts.dropped
	counts.Unlock()
	summary.Elapsed = time.Since(start)

	s.events.Log(ctx, &models.PipelineEvent{
		RunID:     runID,
		Phase:     models.PhaseRun,
		EventType: "pipeline_completed",
		Detail: fmt.Sprintf("collected %d, analyzed %d, traded %d, dropped %d in %s",
			summary.Collected, summary.Analyzed, summary.Traded, summary.Dropped,
			summary.Elapsed.Round(time.Second)),
	})
	s.logger.Info().Str("run_id", runID).
		Int("queued", summary.Queued).Int("collected", summary.Collected).
		Int("analyzed", summary.Analyzed).Int("traded", summary.Traded).
		Int("dropped", summary.Dropped).Dur("elapsed", summary.Elapsed).
		Msg("Pipeline run completed")

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("pipeline interrupted: %w", err)
	}
	return summary, nil
}

// collectOne runs the collection stage for one symbol. Returns true when
// the symbol is ready for analysis.
func (s *Service) collectOne(ctx context.Context, runID, symbol string, timeout time.Duration) bool {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report, err := s.collector.CollectData(stageCtx, runID, symbol)
	if err != nil {
		s.stageFailed(ctx, stageCtx, runID, symbol, models.PhaseCollection, err)
		return false
	}
	// The collector already logged collection_incomplete.
	return report.CriticalOK()
}

// analyzeOne runs all four analysis layers for one symbol and applies
// the dossier to the watchlist. Returns nil when the symbol is dropped.
func (s *Service) analyzeOne(ctx context.Context, runID, symbol string, timeout time.Duration) *models.TickerDossier {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dossier, err := s.analysis.Analyze(stageCtx, runID, symbol)
	if err != nil {
		s.stageFailed(ctx, stageCtx, runID, symbol, models.PhaseAnalysis, err)
		return nil
	}

	if err := s.watchlist.ApplyDossier(ctx, runID, dossier); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to apply dossier to watchlist")
	}
	return dossier
}

// tradeOne routes one dossier through the signal router.
func (s *Service) tradeOne(ctx context.Context, runID string, dossier *models.TickerDossier, timeout time.Duration) bool {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	decision, err := s.trader.Route(stageCtx, runID, dossier)
	if err != nil {
		s.stageFailed(ctx, stageCtx, runID, dossier.Symbol, models.PhaseTrading, err)
		return false
	}
	s.logger.Debug().Str("symbol", dossier.Symbol).Str("action", decision.Action).
		Int("qty", decision.Qty).Msg("Signal routed")
	return true
}

// stageFailed records a per-ticker stage failure, distinguishing
// timeouts from ordinary errors.
func (s *Service) stageFailed(ctx, stageCtx context.Context, runID, symbol, phase string, err error) {
	eventType := "stage_failed"
	if stageCtx.Err() == context.DeadlineExceeded {
		eventType = "stage_timeout"
	}
	s.events.Log(ctx, &models.PipelineEvent{
		RunID:     runID,
		Phase:     phase,
		EventType: eventType,
		Symbol:    symbol,
		Detail:    err.Error(),
		Status:    models.EventStatusError,
	})
	s.logger.Error().Err(err).Str("symbol", symbol).Str("phase", phase).Msg("Pipeline stage failed")
}
