// Package discovery scans social and transcript sources for candidate
// tickers and scores them.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
)

// Scoring weights for symbol hits by where they appear in a thread.
const (
	titleWeight   = 3.0
	bodyWeight    = 2.0
	commentWeight = 1.0
)

// Decay parameters for re-surfacing symbols.
const (
	decayPerDay = 0.15
	decayFloor  = 0.1
)

// Compile-time interface check
var _ interfaces.DiscoveryService = (*Service)(nil)

// Service implements DiscoveryService.
type Service struct {
	storage     interfaces.StorageManager
	social      interfaces.SocialClient
	transcripts interfaces.TranscriptClient
	llm         interfaces.LLMClient
	collector   interfaces.CollectorService
	events      interfaces.EventLogService
	config      *common.DiscoveryConfig
	logger      *common.Logger
}

// NewService creates a new discovery service.
func NewService(
	storage interfaces.StorageManager,
	social interfaces.SocialClient,
	transcripts interfaces.TranscriptClient,
	llm interfaces.LLMClient,
	collector interfaces.CollectorService,
	events interfaces.EventLogService,
	config *common.DiscoveryConfig,
	logger *common.Logger,
) *Service {
	return &Service{
		storage:     storage,
		social:      social,
		transcripts: transcripts,
		llm:         llm,
		collector:   collector,
		events:      events,
		config:      config,
		logger:      logger,
	}
}

// Run executes one discovery pass: both sources in parallel, merged by
// symbol, decayed by days since last mention, persisted.
func (s *Service) Run(ctx context.Context, runID string) ([]*models.ScoredTicker, error) {
	run := &models.DiscoveryRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    "running",
	}
	if err := s.storage.DiscoveryStore().SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record discovery run: %w", err)
	}

	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		merged         = make(map[string]*models.ScoredTicker)
		socialErr      error
		transcriptsErr error
	)

	fold := func(tickers []*models.ScoredTicker) {
		mu.Lock()
		defer mu.Unlock()
		for _, t := range tickers {
			if existing, ok := merged[t.Symbol]; ok {
				existing.Merge(t)
			} else {
				merged[t.Symbol] = t
			}
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		tickers, err := s.runSocialSource(ctx, runID)
		if err != nil {
			socialErr = err
			return
		}
		fold(tickers)
	}()
	go func() {
		defer wg.Done()
		tickers, err := s.runTranscriptSource(ctx, runID)
		if err != nil {
			transcriptsErr = err
			return
		}
		fold(tickers)
	}()
	wg.Wait()

	if socialErr != nil {
		s.logger.Warn().Err(socialErr).Msg("Social discovery source failed")
		s.events.Log(ctx, &models.PipelineEvent{
			RunID: runID, Phase: models.PhaseDiscovery, EventType: "source_failed",
			Detail: "social: " + socialErr.Error(), Status: models.EventStatusWarning,
		})
	}
	if transcriptsErr != nil {
		s.logger.Warn().Err(transcriptsErr).Msg("Transcript discovery source failed")
		s.events.Log(ctx, &models.PipelineEvent{
			RunID: runID, Phase: models.PhaseDiscovery, EventType: "source_failed",
			Detail: "transcript: " + transcriptsErr.Error(), Status: models.EventStatusWarning,
		})
	}
	if socialErr != nil && transcriptsErr != nil {
		run.Status = "failed"
		run.Error = fmt.Sprintf("social: %v; transcript: %v", socialErr, transcriptsErr)
		run.CompletedAt = time.Now().UTC()
		_ = s.storage.DiscoveryStore().SaveRun(ctx, run)
		return nil, fmt.Errorf("all discovery sources failed: %s", run.Error)
	}

	results := s.applyDecay(ctx, merged)

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].TotalScore != results[j].TotalScore {
			return results[i].TotalScore > results[j].TotalScore
		}
		return results[i].Symbol < results[j].Symbol
	})

	run.Status = "completed"
	run.CompletedAt = time.Now().UTC()
	run.Results = results
	if err := s.storage.DiscoveryStore().SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist discovery run: %w", err)
	}

	s.events.Log(ctx, &models.PipelineEvent{
		RunID: runID, Phase: models.PhaseDiscovery, EventType: "discovery_completed",
		Detail: fmt.Sprintf("%d candidates", len(results)), Status: models.EventStatusSuccess,
	})
	s.logger.Info().Int("candidates", len(results)).Msg("Discovery run completed")
	return results, nil
}

// applyDecay scales each score by how recently the symbol last surfaced
// and records the new mention.
func (s *Service) applyDecay(ctx context.Context, merged map[string]*models.ScoredTicker) []*models.ScoredTicker {
	now := time.Now().UTC()
	results := make([]*models.ScoredTicker, 0, len(merged))

	for _, t := range merged {
		last, err := s.storage.DiscoveryStore().LastMention(ctx, t.Symbol)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", t.Symbol).Msg("Failed to read last mention")
		}
		if !last.IsZero() {
			days := now.Sub(last).Hours() / 24
			factor := 1.0 - decayPerDay*days
			if factor < decayFloor {
				factor = decayFloor
			}
			t.TotalScore *= factor
		}
		if err := s.storage.DiscoveryStore().RecordMention(ctx, t.Symbol, now); err != nil {
			s.logger.Warn().Err(err).Str("symbol", t.Symbol).Msg("Failed to record mention")
		}
		results = append(results, t)
	}
	return results
}

// Status returns the latest discovery run.
func (s *Service) Status(ctx context.Context) (*models.DiscoveryRun, error) {
	return s.storage.DiscoveryStore().LatestRun(ctx)
}

// History returns recent discovery runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*models.DiscoveryRun, error) {
	return s.storage.DiscoveryStore().ListRuns(ctx, limit)
}

// Clear deletes all discovery runs and mention history.
func (s *Service) Clear(ctx context.Context) (int, error) {
	return s.storage.DiscoveryStore().Clear(ctx)
}

// llmFilterTitles asks the LLM which thread titles are finance-relevant.
// On failure every title passes; the symbol validator catches noise later.
func (s *Service) llmFilterTitles(ctx context.Context, titles []string) map[int]bool {
	keep := make(map[int]bool, len(titles))
	if len(titles) == 0 {
		return keep
	}

	var sb strings.Builder
	for i, t := range titles {
		fmt.Fprintf(&sb, "%d: %s\n", i, t)
	}

	system := "You classify discussion thread titles. Reply with a JSON array of the integer indexes of titles that discuss specific stocks, trades, or company finances."
	reply, err := s.llm.Chat(ctx, system, sb.String(), interfaces.ChatOptions{ExpectJSON: true})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Title filter LLM call failed, keeping all titles")
		for i := range titles {
			keep[i] = true
		}
		return keep
	}

	var indexes []int
	if err := json.Unmarshal([]byte(reply.Content), &indexes); err != nil {
		s.logger.Warn().Err(err).Msg("Unparseable title filter reply, keeping all titles")
		for i := range titles {
			keep[i] = true
		}
		return keep
	}
	for _, idx := range indexes {
		if idx >= 0 && idx < len(titles) {
			keep[idx] = true
		}
	}
	return keep
}
