// Package trader implements the paper trader, the deterministic signal
// router, and the price-trigger monitor.
package trader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
)

// Compile-time interface check
var _ interfaces.TraderService = (*Service)(nil)

// Service implements TraderService. All portfolio mutations go through a
// single mutex so cash accounting stays atomic even when the monitor and
// the trading worker act at once.
type Service struct {
	storage    interfaces.StorageManager
	events     interfaces.EventLogService
	watchlist  interfaces.WatchlistService
	marketData interfaces.MarketDataClient
	clock      *common.MarketClock
	risk       *common.RiskConfig
	logger     *common.Logger

	mu sync.Mutex
}

// NewService creates a new trader service and seeds the cash balance on
// first run.
func NewService(
	storage interfaces.StorageManager,
	events interfaces.EventLogService,
	watchlist interfaces.WatchlistService,
	marketData interfaces.MarketDataClient,
	clock *common.MarketClock,
	risk *common.RiskConfig,
	logger *common.Logger,
) (*Service, error) {
	s := &Service{
		storage:    storage,
		events:     events,
		watchlist:  watchlist,
		marketData: marketData,
		clock:      clock,
		risk:       risk,
		logger:     logger,
	}

	ctx := context.Background()
	if _, err := storage.PortfolioStore().GetState(ctx); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to load portfolio state: %w", err)
		}
		state := &models.PortfolioState{
			Cash:      risk.StartingBalance,
			UpdatedAt: time.Now().UTC(),
		}
		if err := storage.PortfolioStore().SaveState(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to seed portfolio state: %w", err)
		}
		logger.Info().Float64("cash", risk.StartingBalance).Msg("Portfolio seeded")
	}
	return s, nil
}

// Buy executes a simulated market buy. Cash is debited atomically; going
// negative fails with ErrInsufficientCash.
func (s *Service) Buy(ctx context.Context, symbol string, qty int, price float64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buyLocked(ctx, symbol, qty, price, 0, "", "")
}

func (s *Service) buyLocked(ctx context.Context, symbol string, qty int, price, conviction float64, signal, reason string) (*models.Order, error) {
	symbol = strings.ToUpper(symbol)
	if qty <= 0 || price <= 0 {
		return nil, fmt.Errorf("qty and price must be positive: %w", common.ErrValidation)
	}

	state, err := s.storage.PortfolioStore().GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio state: %w", err)
	}

	cost := float64(qty) * price
	if state.Cash < cost {
		order := s.recordOrder(ctx, symbol, models.OrderSideBuy, qty, price, models.OrderStatusFailed, conviction, signal, "insufficient cash")
		_ = order
		return nil, fmt.Errorf("need $%.2f, have $%.2f: %w", cost, state.Cash, common.ErrInsufficientCash)
	}

	now := time.Now().UTC()
	pos, err := s.storage.PortfolioStore().GetPosition(ctx, symbol)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		pos = &models.Position{Symbol: symbol, OpenedAt: now}
	}

	// Weighted average entry across adds
	totalCost := pos.AvgEntryPrice*float64(pos.Qty) + cost
	pos.Qty += qty
	pos.AvgEntryPrice = totalCost / float64(pos.Qty)
	pos.CurrentPrice = price
	pos.UnrealizedPnL = (price - pos.AvgEntryPrice) * float64(pos.Qty)
	pos.LastUpdated = now

	state.Cash -= cost
	state.UpdatedAt = now

	if err := s.storage.PortfolioStore().SavePosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("failed to save position: %w", err)
	}
	if err := s.storage.PortfolioStore().SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save portfolio state: %w", err)
	}

	order := s.recordOrder(ctx, symbol, models.OrderSideBuy, qty, price, models.OrderStatusFilled, conviction, signal, reason)

	if err := s.watchlist.SetPositionHeld(ctx, symbol, true); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to flag position held")
	}

	s.logger.Info().Str("symbol", symbol).Int("qty", qty).Float64("price", price).
		Float64("cash", state.Cash).Msg("Buy filled")
	return order, nil
}

// Sell executes a simulated market sell, crediting cash and realizing
// P&L. Selling without a position fails with ErrPositionNotFound.
func (s *Service) Sell(ctx context.Context, symbol string, qty int, price float64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sellLocked(ctx, symbol, qty, price, 0, "", "")
}

func (s *Service) sellLocked(ctx context.Context, symbol string, qty int, price, conviction float64, signal, reason string) (*models.Order, error) {
	symbol = strings.ToUpper(symbol)
	if qty <= 0 || price <= 0 {
		return nil, fmt.Errorf("qty and price must be positive: %w", common.ErrValidation)
	}

	pos, err := s.storage.PortfolioStore().GetPosition(ctx, symbol)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("no open position in %s: %w", symbol, common.ErrPositionNotFound)
		}
		return nil, err
	}
	if qty > pos.Qty {
		qty = pos.Qty
	}

	state, err := s.storage.PortfolioStore().GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio state: %w", err)
	}

	now := time.Now().UTC()
	proceeds := float64(qty) * price
	realized := (price - pos.AvgEntryPrice) * float64(qty)

	state.Cash += proceeds
	state.RealizedPnL += realized
	state.UpdatedAt = now

	pos.Qty -= qty
	if pos.Qty == 0 {
		if err := s.storage.PortfolioStore().DeletePosition(ctx, symbol); err != nil {
			return nil, fmt.Errorf("failed to close position: %w", err)
		}
		if cancelled, err := s.storage.PortfolioStore().CancelTriggersForSymbol(ctx, symbol); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cancel triggers")
		} else if cancelled > 0 {
			s.logger.Debug().Str("symbol", symbol).Int("cancelled", cancelled).Msg("Triggers cancelled on close")
		}
		if err := s.watchlist.SetPositionHeld(ctx, symbol, false); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to clear position held")
		}
	} else {
		pos.CurrentPrice = price
		pos.UnrealizedPnL = (price - pos.AvgEntryPrice) * float64(pos.Qty)
		pos.LastUpdated = now
		if err := s.storage.PortfolioStore().SavePosition(ctx, pos); err != nil {
			return nil, fmt.Errorf("failed to save position: %w", err)
		}
	}

	if err := s.storage.PortfolioStore().SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save portfolio state: %w", err)
	}

	order := s.recordOrder(ctx, symbol, models.OrderSideSell, qty, price, models.OrderStatusFilled, conviction, signal, reason)

	s.logger.Info().Str("symbol", symbol).Int("qty", qty).Float64("price", price).
		Float64("realized", realized).Msg("Sell filled")
	return order, nil
}

func (s *Service) recordOrder(ctx context.Context, symbol, side string, qty int, price float64, status string, conviction float64, signal, reason string) *models.Order {
	now := time.Now().UTC()
	order := &models.Order{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		Qty:        qty,
		Price:      price,
		OrderType:  models.OrderTypeMarket,
		Status:     status,
		CreatedAt:  now,
		Conviction: conviction,
		Signal:     signal,
		Reason:     reason,
	}
	if status == models.OrderStatusFilled {
		order.FilledAt = now
	}
	if err := s.storage.PortfolioStore().SaveOrder(ctx, order); err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to persist order")
	}
	return order
}

// Positions returns all open positions.
func (s *Service) Positions(ctx context.Context) ([]*models.Position, error) {
	return s.storage.PortfolioStore().ListPositions(ctx)
}

// Portfolio computes the current totals without persisting a snapshot.
func (s *Service) Portfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	return s.computeSnapshot(ctx)
}

// Snapshot computes the current totals and persists them.
func (s *Service) Snapshot(ctx context.Context) (*models.PortfolioSnapshot, error) {
	snap, err := s.computeSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.storage.PortfolioStore().SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return snap, nil
}

func (s *Service) computeSnapshot(ctx context.Context) (*models.PortfolioSnapshot, error) {
	state, err := s.storage.PortfolioStore().GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio state: %w", err)
	}
	positions, err := s.storage.PortfolioStore().ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	var positionsValue, unrealized float64
	for _, p := range positions {
		positionsValue += p.MarketValue()
		unrealized += p.UnrealizedPnL
	}

	return &models.PortfolioSnapshot{
		Timestamp:      time.Now().UTC(),
		Cash:           state.Cash,
		PositionsValue: positionsValue,
		TotalValue:     state.Cash + positionsValue,
		RealizedPnL:    state.RealizedPnL,
		UnrealizedPnL:  unrealized,
	}, nil
}

// UpdatePrices refreshes current prices and unrealized P&L from a quote
// batch.
func (s *Service) UpdatePrices(ctx context.Context, quotes []models.RealTimeQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySymbol := make(map[string]models.RealTimeQuote, len(quotes))
	for _, q := range quotes {
		bySymbol[q.Symbol] = q
	}

	positions, err := s.storage.PortfolioStore().ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list positions: %w", err)
	}

	now := time.Now().UTC()
	for _, pos := range positions {
		quote, ok := bySymbol[pos.Symbol]
		if !ok || quote.Price <= 0 {
			continue
		}
		pos.CurrentPrice = quote.Price
		pos.UnrealizedPnL = (quote.Price - pos.AvgEntryPrice) * float64(pos.Qty)
		pos.LastUpdated = now
		if err := s.storage.PortfolioStore().SavePosition(ctx, pos); err != nil {
			return fmt.Errorf("failed to update position %s: %w", pos.Symbol, err)
		}
	}
	return nil
}
