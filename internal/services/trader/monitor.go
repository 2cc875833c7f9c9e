package trader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/models"
)

// DefaultMonitorInterval is how often the price monitor ticks during
// market hours.
const DefaultMonitorInterval = 60 * time.Second

// RunMonitor ticks until the context is cancelled, evaluating standing
// triggers against live quotes. Outside market hours a tick degrades to
// a single skipped event.
func (s *Service) RunMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("Price monitor started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Price monitor stopped")
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Monitor tick failed")
			}
		}
	}
}

// Tick runs one monitor pass: batch-fetch quotes for every symbol with
// an open position or an active trigger, refresh position marks, then
// evaluate triggers. Exported so the scheduler and tests can drive it
// directly.
func (s *Service) Tick(ctx context.Context) error {
	if !s.clock.IsOpenNow() {
		s.events.Log(ctx, &models.PipelineEvent{
			Phase:     models.PhaseMonitor,
			EventType: "market_closed_skip",
			Status:    models.EventStatusSkipped,
		})
		return nil
	}

	symbols, triggers, err := s.monitorTargets(ctx)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return nil
	}

	quotes, err := s.marketData.GetQuotes(ctx, symbols)
	if err != nil {
		return fmt.Errorf("failed to fetch monitor quotes: %w", err)
	}
	if err := s.UpdatePrices(ctx, quotes); err != nil {
		return err
	}

	prices := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		if q.Price > 0 {
			prices[q.Symbol] = q.Price
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, trigger := range triggers {
		price, ok := prices[trigger.Symbol]
		if !ok {
			continue
		}
		if err := s.evaluateTrigger(ctx, trigger, price); err != nil {
			s.logger.Error().Err(err).Str("symbol", trigger.Symbol).
				Str("trigger", trigger.TriggerType).Msg("Trigger evaluation failed")
		}
	}
	return nil
}

// monitorTargets returns the deduplicated symbol set to quote plus all
// active triggers.
func (s *Service) monitorTargets(ctx context.Context) ([]string, []*models.PriceTrigger, error) {
	positions, err := s.storage.PortfolioStore().ListPositions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list positions: %w", err)
	}
	triggers, err := s.storage.PortfolioStore().ListTriggers(ctx, models.TriggerStatusActive)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list triggers: %w", err)
	}

	seen := make(map[string]struct{})
	for _, p := range positions {
		seen[p.Symbol] = struct{}{}
	}
	for _, t := range triggers {
		seen[t.Symbol] = struct{}{}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, triggers, nil
}

// evaluateTrigger advances one trigger's state machine. Trailing stops
// ratchet the high-water mark upward before the stop is compared. A
// trigger fires at most once: the active → triggered transition is
// persisted together with the sell.
func (s *Service) evaluateTrigger(ctx context.Context, trigger *models.PriceTrigger, price float64) error {
	if trigger.TriggerType == models.TriggerTrailingStop && price > trigger.HighWaterMark {
		trigger.HighWaterMark = price
		if err := s.storage.PortfolioStore().SaveTrigger(ctx, trigger); err != nil {
			return fmt.Errorf("failed to ratchet trailing stop: %w", err)
		}
	}

	fired := false
	switch trigger.TriggerType {
	case models.TriggerStopLoss, models.TriggerTrailingStop:
		fired = price <= trigger.EffectiveStop()
	case models.TriggerTakeProfit:
		fired = price >= trigger.TriggerPrice
	}
	if !fired {
		return nil
	}

	// Re-read the stored row so a trigger already fired by a concurrent
	// path never fires again.
	current, err := s.storage.PortfolioStore().GetTrigger(ctx, trigger.ID)
	if err != nil {
		return err
	}
	if current.Status != models.TriggerStatusActive {
		return nil
	}

	current.Status = models.TriggerStatusTriggered
	current.FiredAt = time.Now().UTC()
	current.FiredPrice = price
	current.HighWaterMark = trigger.HighWaterMark
	if err := s.storage.PortfolioStore().SaveTrigger(ctx, current); err != nil {
		return fmt.Errorf("failed to mark trigger fired: %w", err)
	}

	reason := fmt.Sprintf("%s fired at $%.2f (stop $%.2f)", current.TriggerType, price, current.EffectiveStop())
	order, err := s.sellLocked(ctx, current.Symbol, current.Qty, price, 0, models.SignalSell, reason)
	if err != nil {
		// Position already closed by another trigger on the same symbol.
		if errors.Is(err, common.ErrPositionNotFound) {
			s.logger.Debug().Str("symbol", current.Symbol).Str("trigger", current.TriggerType).
				Msg("Trigger fired on closed position")
			return nil
		}
		return fmt.Errorf("trigger sell failed: %w", err)
	}

	s.events.Log(ctx, &models.PipelineEvent{
		Phase:     models.PhaseMonitor,
		EventType: "trigger_fired",
		Symbol:    current.Symbol,
		Detail:    fmt.Sprintf("%s: sold %d @ $%.2f", current.TriggerType, order.Qty, price),
		Status:    models.EventStatusWarning,
	})
	s.logger.Warn().Str("symbol", current.Symbol).Str("trigger", current.TriggerType).
		Float64("price", price).Int("qty", order.Qty).Msg("Price trigger fired")
	return nil
}
