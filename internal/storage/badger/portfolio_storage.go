package badger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/models"
)

// portfolioStateKey is the single-row key for the canonical trading state.
const portfolioStateKey = "portfolio"

type portfolioStorage struct {
	store  *Store
	logger *common.Logger
}

// NewPortfolioStorage creates the portfolio table store.
func NewPortfolioStorage(store *Store, logger *common.Logger) *portfolioStorage {
	return &portfolioStorage{store: store, logger: logger}
}

func (s *portfolioStorage) GetState(_ context.Context) (*models.PortfolioState, error) {
	var state models.PortfolioState
	if err := s.store.db.Get(portfolioStateKey, &state); err != nil {
		return nil, wrapStoreErr("portfolio_state", "get", err)
	}
	return &state, nil
}

func (s *portfolioStorage) SaveState(_ context.Context, state *models.PortfolioState) error {
	lock := s.store.tableLock("portfolio_state")
	lock.Lock()
	defer lock.Unlock()

	return wrapStoreErr("portfolio_state", "upsert", s.store.db.Upsert(portfolioStateKey, *state))
}

func (s *portfolioStorage) GetPosition(_ context.Context, symbol string) (*models.Position, error) {
	var pos models.Position
	if err := s.store.db.Get(symbol, &pos); err != nil {
		return nil, wrapStoreErr("positions", "get", err)
	}
	return &pos, nil
}

func (s *portfolioStorage) SavePosition(_ context.Context, pos *models.Position) error {
	lock := s.store.tableLock("positions")
	lock.Lock()
	defer lock.Unlock()

	return wrapStoreErr("positions", "upsert", s.store.db.Upsert(pos.Symbol, *pos))
}

func (s *portfolioStorage) DeletePosition(_ context.Context, symbol string) error {
	lock := s.store.tableLock("positions")
	lock.Lock()
	defer lock.Unlock()

	return wrapStoreErr("positions", "delete", s.store.db.Delete(symbol, models.Position{}))
}

func (s *portfolioStorage) ListPositions(_ context.Context) ([]*models.Position, error) {
	var positions []models.Position
	if err := s.store.db.Find(&positions, nil); err != nil {
		return nil, wrapStoreErr("positions", "find", err)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	out := make([]*models.Position, len(positions))
	for i := range positions {
		out[i] = &positions[i]
	}
	return out, nil
}

func (s *portfolioStorage) SaveOrder(_ context.Context, order *models.Order) error {
	lock := s.store.tableLock("orders")
	lock.Lock()
	defer lock.Unlock()

	return wrapStoreErr("orders", "upsert", s.store.db.Upsert(order.ID, *order))
}

func (s *portfolioStorage) ListOrders(_ context.Context, limit int) ([]*models.Order, error) {
	var orders []models.Order
	if err := s.store.db.Find(&orders, nil); err != nil {
		return nil, wrapStoreErr("orders", "find", err)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	out := make([]*models.Order, len(orders))
	for i := range orders {
		out[i] = &orders[i]
	}
	return out, nil
}

func (s *portfolioStorage) CountOrdersSince(_ context.Context, since time.Time) (int, error) {
	var orders []models.Order
	err := s.store.db.Find(&orders, badgerhold.Where("Status").Eq(models.OrderStatusFilled))
	if err != nil {
		return 0, wrapStoreErr("orders", "find", err)
	}
	count := 0
	for _, o := range orders {
		if !o.FilledAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// LastSellAt returns the fill time of the most recent filled sell order for
// symbol, or the zero time when none exists.
func (s *portfolioStorage) LastSellAt(_ context.Context, symbol string) (time.Time, error) {
	var orders []models.Order
	err := s.store.db.Find(&orders, badgerhold.Where("Symbol").Eq(symbol))
	if err != nil {
		return time.Time{}, wrapStoreErr("orders", "find", err)
	}
	var last time.Time
	for _, o := range orders {
		if o.Side == models.OrderSideSell && o.Status == models.OrderStatusFilled && o.FilledAt.After(last) {
			last = o.FilledAt
		}
	}
	return last, nil
}

func (s *portfolioStorage) SaveTrigger(_ context.Context, trigger *models.PriceTrigger) error {
	lock := s.store.tableLock("triggers")
	lock.Lock()
	defer lock.Unlock()

	return wrapStoreErr("triggers", "upsert", s.store.db.Upsert(trigger.ID, *trigger))
}

func (s *portfolioStorage) GetTrigger(_ context.Context, id string) (*models.PriceTrigger, error) {
	var trigger models.PriceTrigger
	if err := s.store.db.Get(id, &trigger); err != nil {
		return nil, wrapStoreErr("triggers", "get", err)
	}
	return &trigger, nil
}

func (s *portfolioStorage) ListTriggers(_ context.Context, status string) ([]*models.PriceTrigger, error) {
	var triggers []models.PriceTrigger
	var err error
	if status == "" {
		err = s.store.db.Find(&triggers, nil)
	} else {
		err = s.store.db.Find(&triggers, badgerhold.Where("Status").Eq(status))
	}
	if err != nil {
		return nil, wrapStoreErr("triggers", "find", err)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i].CreatedAt.After(triggers[j].CreatedAt) })
	out := make([]*models.PriceTrigger, len(triggers))
	for i := range triggers {
		out[i] = &triggers[i]
	}
	return out, nil
}

// CancelTriggersForSymbol marks every active trigger for symbol cancelled
// and returns how many it touched.
func (s *portfolioStorage) CancelTriggersForSymbol(_ context.Context, symbol string) (int, error) {
	lock := s.store.tableLock("triggers")
	lock.Lock()
	defer lock.Unlock()

	var triggers []models.PriceTrigger
	err := s.store.db.Find(&triggers, badgerhold.Where("Symbol").Eq(symbol).And("Status").Eq(models.TriggerStatusActive))
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return 0, nil
		}
		return 0, wrapStoreErr("triggers", "find", err)
	}
	cancelled := 0
	for _, t := range triggers {
		t.Status = models.TriggerStatusCancelled
		if err := s.store.db.Upsert(t.ID, t); err != nil {
			return cancelled, wrapStoreErr("triggers", "upsert", err)
		}
		cancelled++
	}
	return cancelled, nil
}

func (s *portfolioStorage) SaveSnapshot(_ context.Context, snap *models.PortfolioSnapshot) error {
	lock := s.store.tableLock("snapshots")
	lock.Lock()
	defer lock.Unlock()

	key := snap.Timestamp.UTC().Format(time.RFC3339)
	return wrapStoreErr("snapshots", "upsert", s.store.db.Upsert(key, *snap))
}

func (s *portfolioStorage) ListSnapshots(_ context.Context, limit int) ([]*models.PortfolioSnapshot, error) {
	var snaps []models.PortfolioSnapshot
	if err := s.store.db.Find(&snaps, nil); err != nil {
		return nil, wrapStoreErr("snapshots", "find", err)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Timestamp.After(snaps[j].Timestamp) })
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	out := make([]*models.PortfolioSnapshot, len(snaps))
	for i := range snaps {
		out[i] = &snaps[i]
	}
	return out, nil
}
