package trader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/models"
)

// Route converts a dossier into a trading decision and executes any
// resulting order. Risk-policy rejections come back as HOLD decisions
// with the failed guards listed, never as errors.
func (s *Service) Route(ctx context.Context, runID string, dossier *models.TickerDossier) (*models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := strings.ToUpper(dossier.Symbol)
	conviction := dossier.ConvictionScore

	price, err := s.latestPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve price for %s: %w", symbol, err)
	}

	pos, err := s.storage.PortfolioStore().GetPosition(ctx, symbol)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	held := pos != nil && err == nil

	switch {
	case conviction >= s.risk.BuyThreshold && !held:
		return s.routeBuy(ctx, runID, symbol, price, conviction)
	case conviction <= s.risk.SellThreshold && held:
		return s.routeSell(ctx, runID, symbol, pos, price, conviction)
	default:
		reason := "conviction inside hold band"
		if held && conviction >= s.risk.BuyThreshold {
			reason = "position already held"
		} else if !held && conviction <= s.risk.SellThreshold {
			reason = "no position to sell"
		}
		return &models.Decision{
			Symbol:     symbol,
			Action:     models.SignalHold,
			Conviction: conviction,
			Reason:     reason,
		}, nil
	}
}

func (s *Service) routeBuy(ctx context.Context, runID, symbol string, price, conviction float64) (*models.Decision, error) {
	snap, err := s.computeSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	qty := s.sizePosition(snap.TotalValue, price)
	if qty == 0 {
		return s.blocked(ctx, runID, symbol, conviction, []string{"position_size_zero"}), nil
	}

	blocked, err := s.checkGuards(ctx, symbol, qty, price, conviction, snap)
	if err != nil {
		return nil, err
	}
	if len(blocked) > 0 {
		return s.blocked(ctx, runID, symbol, conviction, blocked), nil
	}

	order, err := s.buyLocked(ctx, symbol, qty, price, conviction, models.SignalBuy,
		fmt.Sprintf("conviction %.2f >= buy threshold %.2f", conviction, s.risk.BuyThreshold))
	if err != nil {
		if errors.Is(err, common.ErrInsufficientCash) {
			return s.blocked(ctx, runID, symbol, conviction, []string{"insufficient_cash"}), nil
		}
		return nil, err
	}

	s.armTriggers(ctx, symbol, qty, price)

	s.events.Log(ctx, &models.PipelineEvent{
		RunID:     runID,
		Phase:     models.PhaseTrading,
		EventType: "order_placed",
		Symbol:    symbol,
		Detail:    fmt.Sprintf("BUY %d @ $%.2f (conviction %.2f)", qty, price, conviction),
	})

	return &models.Decision{
		Symbol:     symbol,
		Action:     models.SignalBuy,
		Qty:        order.Qty,
		Conviction: conviction,
		Reason:     order.Reason,
	}, nil
}

func (s *Service) routeSell(ctx context.Context, runID, symbol string, pos *models.Position, price, conviction float64) (*models.Decision, error) {
	qty := pos.Qty
	order, err := s.sellLocked(ctx, symbol, qty, price, conviction, models.SignalSell,
		fmt.Sprintf("conviction %.2f <= sell threshold %.2f", conviction, s.risk.SellThreshold))
	if err != nil {
		return nil, err
	}

	s.events.Log(ctx, &models.PipelineEvent{
		RunID:     runID,
		Phase:     models.PhaseTrading,
		EventType: "order_placed",
		Symbol:    symbol,
		Detail:    fmt.Sprintf("SELL %d @ $%.2f (conviction %.2f)", qty, price, conviction),
	})

	return &models.Decision{
		Symbol:     symbol,
		Action:     models.SignalSell,
		Qty:        order.Qty,
		Conviction: conviction,
		Reason:     order.Reason,
	}, nil
}

// sizePosition returns min(max_position_pct × portfolio value / price,
// max_position_shares), floored to whole shares.
func (s *Service) sizePosition(totalValue, price float64) int {
	if price <= 0 {
		return 0
	}
	qty := int(math.Floor(s.risk.MaxPositionPct * totalValue / price))
	if qty > s.risk.MaxPositionShares {
		qty = s.risk.MaxPositionShares
	}
	if qty < 0 {
		qty = 0
	}
	return qty
}

// checkGuards evaluates every risk guard and returns the names of all
// that failed, so the event trail shows the full picture rather than the
// first rejection.
func (s *Service) checkGuards(ctx context.Context, symbol string, qty int, price, conviction float64, snap *models.PortfolioSnapshot) ([]string, error) {
	var blocked []string
	cost := float64(qty) * price

	if conviction < s.risk.MinConvictionToTrade {
		blocked = append(blocked, "min_conviction")
	}
	if cost > s.risk.MaxPositionPct*snap.TotalValue {
		blocked = append(blocked, "max_position_pct")
	}
	if snap.PositionsValue+cost > s.risk.MaxAllocationPct*snap.TotalValue {
		blocked = append(blocked, "max_allocation_pct")
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	count, err := s.storage.PortfolioStore().CountOrdersSince(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("failed to count daily orders: %w", err)
	}
	if count >= s.risk.MaxOrdersPerDay {
		blocked = append(blocked, "max_orders_per_day")
	}

	loss, err := s.dailyLoss(ctx, snap)
	if err != nil {
		return nil, err
	}
	if loss > s.risk.DailyLossLimitPct*snap.TotalValue {
		blocked = append(blocked, "daily_loss_limit")
	}

	lastSell, err := s.storage.PortfolioStore().LastSellAt(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load last sell for %s: %w", symbol, err)
	}
	cooldown := time.Duration(s.risk.RebuyCooldownDays) * 24 * time.Hour
	if !lastSell.IsZero() && time.Since(lastSell) < cooldown {
		blocked = append(blocked, "rebuy_cooldown")
	}

	return blocked, nil
}

// dailyLoss measures value lost against the most recent snapshot taken
// before today. With no prior snapshot the loss is zero.
func (s *Service) dailyLoss(ctx context.Context, snap *models.PortfolioSnapshot) (float64, error) {
	history, err := s.storage.PortfolioStore().ListSnapshots(ctx, 10)
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}
	today := snap.Timestamp.UTC().Truncate(24 * time.Hour)
	for _, prev := range history {
		if prev.Timestamp.UTC().Before(today) {
			return prev.TotalValue - snap.TotalValue, nil
		}
	}
	return 0, nil
}

func (s *Service) blocked(ctx context.Context, runID, symbol string, conviction float64, guards []string) *models.Decision {
	s.events.Log(ctx, &models.PipelineEvent{
		RunID:     runID,
		Phase:     models.PhaseTrading,
		EventType: "signal_blocked",
		Symbol:    symbol,
		Detail:    strings.Join(guards, ", "),
		Status:    models.EventStatusWarning,
	})
	s.logger.Warn().Str("symbol", symbol).Strs("guards", guards).Msg("Signal blocked")
	return &models.Decision{
		Symbol:     symbol,
		Action:     models.SignalHold,
		Conviction: conviction,
		Reason:     "blocked by risk policy",
		Blocked:    guards,
	}
}

// armTriggers attaches stop-loss, take-profit, and trailing-stop sell
// triggers to a fresh buy. Trigger persistence failures degrade to a log
// line rather than unwinding the fill.
func (s *Service) armTriggers(ctx context.Context, symbol string, qty int, price float64) {
	now := time.Now().UTC()
	triggers := []*models.PriceTrigger{
		{
			ID:           uuid.NewString(),
			Symbol:       symbol,
			TriggerType:  models.TriggerStopLoss,
			TriggerPrice: price * (1 - s.risk.StopLossPct),
			Qty:          qty,
			Status:       models.TriggerStatusActive,
			CreatedAt:    now,
		},
		{
			ID:           uuid.NewString(),
			Symbol:       symbol,
			TriggerType:  models.TriggerTakeProfit,
			TriggerPrice: price * (1 + s.risk.TakeProfitPct),
			Qty:          qty,
			Status:       models.TriggerStatusActive,
			CreatedAt:    now,
		},
		{
			ID:            uuid.NewString(),
			Symbol:        symbol,
			TriggerType:   models.TriggerTrailingStop,
			HighWaterMark: price,
			TrailingPct:   s.risk.TrailingStopPct,
			Qty:           qty,
			Status:        models.TriggerStatusActive,
			CreatedAt:     now,
		},
	}
	for _, t := range triggers {
		if err := s.storage.PortfolioStore().SaveTrigger(ctx, t); err != nil {
			s.logger.Error().Err(err).Str("symbol", symbol).Str("type", t.TriggerType).
				Msg("Failed to arm trigger")
		}
	}
}

// latestPrice favours a live quote and falls back to the newest stored
// daily close.
func (s *Service) latestPrice(ctx context.Context, symbol string) (float64, error) {
	quotes, err := s.marketData.GetQuotes(ctx, []string{symbol})
	if err == nil && len(quotes) > 0 && quotes[0].Price > 0 {
		return quotes[0].Price, nil
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("Live quote unavailable, using last close")
	}

	now := time.Now().UTC()
	candles, err := s.storage.MarketStore().GetPriceHistory(ctx, symbol, now.AddDate(0, 0, -14), now)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 || candles[0].Close <= 0 {
		return 0, fmt.Errorf("no usable price for %s: %w", symbol, common.ErrNotFound)
	}
	return candles[0].Close, nil
}
