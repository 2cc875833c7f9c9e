// Package watchlist manages the lifecycle of tracked symbols.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
)

// lowConviction is the cutoff below which an analysis counts against an
// auto-discovered entry.
const lowConviction = 0.3

// Compile-time interface check
var _ interfaces.WatchlistService = (*Service)(nil)

// Service implements WatchlistService.
type Service struct {
	storage interfaces.StorageManager
	events  interfaces.EventLogService
	config  *common.WatchlistConfig
	logger  *common.Logger
}

// NewService creates a new watchlist service.
func NewService(storage interfaces.StorageManager, events interfaces.EventLogService, config *common.WatchlistConfig, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		events:  events,
		config:  config,
		logger:  logger,
	}
}

// ActiveSymbols returns the symbols counting against the active cap.
func (s *Service) ActiveSymbols(ctx context.Context) ([]string, error) {
	entries, err := s.storage.WatchlistStore().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}

	var symbols []string
	for _, e := range entries {
		if e.IsActive() {
			symbols = append(symbols, e.Symbol)
		}
	}
	return symbols, nil
}

// List returns every watchlist entry.
func (s *Service) List(ctx context.Context) ([]*models.WatchlistEntry, error) {
	return s.storage.WatchlistStore().List(ctx)
}

// AddManual adds a symbol by operator request. The active cap still
// applies; cooldown does not.
func (s *Service) AddManual(ctx context.Context, symbol string) (*models.WatchlistEntry, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol: %w", common.ErrValidation)
	}

	if existing, err := s.storage.WatchlistStore().Get(ctx, symbol); err == nil {
		if existing.IsActive() {
			return existing, nil
		}
		// Re-activation overrides cooldown for manual adds
		existing.Status = models.WatchStatusPendingAnalysis
		existing.Source = models.WatchSourceManual
		existing.RemovedAt = time.Time{}
		existing.ConsecutiveLow = 0
		if err := s.storage.WatchlistStore().Upsert(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to re-activate %s: %w", symbol, err)
		}
		s.logger.Info().Str("symbol", symbol).Msg("Watchlist entry re-activated manually")
		return existing, nil
	}

	active, err := s.activeCount(ctx)
	if err != nil {
		return nil, err
	}
	if active >= s.config.MaxActive {
		return nil, fmt.Errorf("watchlist is full (%d active): %w", active, common.ErrValidation)
	}

	entry := &models.WatchlistEntry{
		Symbol:  symbol,
		Source:  models.WatchSourceManual,
		AddedAt: time.Now().UTC(),
		Status:  models.WatchStatusPendingAnalysis,
	}
	if err := s.storage.WatchlistStore().Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to add %s: %w", symbol, err)
	}

	s.logger.Info().Str("symbol", symbol).Msg("Watchlist entry added manually")
	return entry, nil
}

// RemoveManual removes a symbol by operator request.
func (s *Service) RemoveManual(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	entry, err := s.storage.WatchlistStore().Get(ctx, symbol)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("%s is not on the watchlist: %w", symbol, common.ErrNotFound)
		}
		return err
	}

	entry.Status = models.WatchStatusRemoved
	entry.RemovedAt = time.Now().UTC()
	if err := s.storage.WatchlistStore().Upsert(ctx, entry); err != nil {
		return fmt.Errorf("failed to remove %s: %w", symbol, err)
	}
	s.logger.Info().Str("symbol", symbol).Msg("Watchlist entry removed manually")
	return nil
}

// ImportFromDiscovery adds the best-scored candidates until the active cap
// is reached. Already-active, cooldown-bound, and low-scored candidates
// are skipped.
func (s *Service) ImportFromDiscovery(ctx context.Context, runID string, scored []*models.ScoredTicker) ([]string, error) {
	sorted := make([]*models.ScoredTicker, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TotalScore != sorted[j].TotalScore {
			return sorted[i].TotalScore > sorted[j].TotalScore
		}
		return sorted[i].Symbol < sorted[j].Symbol
	})

	active, err := s.activeCount(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var imported []string
	for _, candidate := range sorted {
		if active >= s.config.MaxActive {
			break
		}
		if candidate.TotalScore < s.config.MinDiscoveryScore {
			continue
		}

		existing, err := s.storage.WatchlistStore().Get(ctx, candidate.Symbol)
		if err == nil {
			if existing.IsActive() {
				continue
			}
			if existing.InCooldown(now, s.config.CooldownDays) {
				s.logger.Debug().Str("symbol", candidate.Symbol).Msg("Skipping cooldown-bound candidate")
				continue
			}
			existing.Status = models.WatchStatusPendingAnalysis
			existing.Source = models.WatchSourceAutoDiscovery
			existing.DiscoveryScore = candidate.TotalScore
			existing.RemovedAt = time.Time{}
			existing.ConsecutiveLow = 0
			if err := s.storage.WatchlistStore().Upsert(ctx, existing); err != nil {
				return imported, fmt.Errorf("failed to re-import %s: %w", candidate.Symbol, err)
			}
		} else if errors.Is(err, common.ErrNotFound) {
			entry := &models.WatchlistEntry{
				Symbol:         candidate.Symbol,
				Source:         models.WatchSourceAutoDiscovery,
				AddedAt:        now,
				DiscoveryScore: candidate.TotalScore,
				Status:         models.WatchStatusPendingAnalysis,
			}
			if err := s.storage.WatchlistStore().Upsert(ctx, entry); err != nil {
				return imported, fmt.Errorf("failed to import %s: %w", candidate.Symbol, err)
			}
		} else {
			return imported, err
		}

		active++
		imported = append(imported, candidate.Symbol)
		s.events.Log(ctx, &models.PipelineEvent{
			RunID: runID, Phase: models.PhaseWatchlist, EventType: "watchlist_import",
			Symbol: candidate.Symbol, Detail: fmt.Sprintf("score=%.1f", candidate.TotalScore),
			Status: models.EventStatusSuccess,
		})
	}

	s.logger.Info().Int("imported", len(imported)).Int("active", active).Msg("Discovery import completed")
	return imported, nil
}

// ApplyDossier folds a fresh dossier into the entry: conviction, signal,
// analysis counters, and the consecutive-low auto-removal policy.
func (s *Service) ApplyDossier(ctx context.Context, runID string, dossier *models.TickerDossier) error {
	entry, err := s.storage.WatchlistStore().Get(ctx, dossier.Symbol)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// Analysis of an off-watchlist symbol is legal; nothing to update
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	entry.ConvictionScore = dossier.ConvictionScore
	entry.LastAnalyzed = now
	entry.TimesAnalyzed++
	entry.LastSignal = models.SignalForConviction(dossier.ConvictionScore)
	if entry.Status == models.WatchStatusPendingAnalysis {
		entry.Status = models.WatchStatusActive
	}

	if dossier.ConvictionScore < lowConviction {
		entry.ConsecutiveLow++
	} else {
		entry.ConsecutiveLow = 0
	}

	autoRemove := entry.ConsecutiveLow >= s.config.ConsecutiveLowLimit &&
		!entry.PositionHeld &&
		entry.Source == models.WatchSourceAutoDiscovery
	if autoRemove {
		entry.Status = models.WatchStatusRemoved
		entry.RemovedAt = now
		s.events.Log(ctx, &models.PipelineEvent{
			RunID: runID, Phase: models.PhaseWatchlist, EventType: "watchlist_remove",
			Symbol: entry.Symbol,
			Detail: fmt.Sprintf("consecutive low conviction (%d)", entry.ConsecutiveLow),
			Status: models.EventStatusSuccess,
		})
		s.logger.Info().Str("symbol", entry.Symbol).Int("consecutive_low", entry.ConsecutiveLow).
			Msg("Watchlist entry auto-removed")
	}

	return s.storage.WatchlistStore().Upsert(ctx, entry)
}

// SetPositionHeld flags that a paper position exists for the symbol, which
// shields the entry from auto-removal.
func (s *Service) SetPositionHeld(ctx context.Context, symbol string, held bool) error {
	entry, err := s.storage.WatchlistStore().Get(ctx, symbol)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}
	entry.PositionHeld = held
	return s.storage.WatchlistStore().Upsert(ctx, entry)
}

// RemoveStale removes auto-discovered entries not analyzed within the
// staleness window. Entries with open positions survive.
func (s *Service) RemoveStale(ctx context.Context, runID string) ([]string, error) {
	entries, err := s.storage.WatchlistStore().List(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -s.config.StaleDays)

	var removed []string
	for _, entry := range entries {
		if !entry.IsActive() || entry.Source != models.WatchSourceAutoDiscovery || entry.PositionHeld {
			continue
		}
		lastTouch := entry.LastAnalyzed
		if lastTouch.IsZero() {
			lastTouch = entry.AddedAt
		}
		if lastTouch.After(cutoff) {
			continue
		}

		entry.Status = models.WatchStatusRemoved
		entry.RemovedAt = now
		if err := s.storage.WatchlistStore().Upsert(ctx, entry); err != nil {
			return removed, fmt.Errorf("failed to remove stale entry %s: %w", entry.Symbol, err)
		}
		removed = append(removed, entry.Symbol)
		s.events.Log(ctx, &models.PipelineEvent{
			RunID: runID, Phase: models.PhaseWatchlist, EventType: "watchlist_remove",
			Symbol: entry.Symbol, Detail: fmt.Sprintf("stale for %d days", s.config.StaleDays),
			Status: models.EventStatusSuccess,
		})
	}

	if len(removed) > 0 {
		s.logger.Info().Strs("symbols", removed).Msg("Stale watchlist entries removed")
	}
	return removed, nil
}

func (s *Service) activeCount(ctx context.Context) (int, error) {
	entries, err := s.storage.WatchlistStore().List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list watchlist: %w", err)
	}
	count := 0
	for _, e := range entries {
		if e.IsActive() {
			count++
		}
	}
	return count, nil
}
