package badger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/models"
)

type marketStorage struct {
	store  *Store
	logger *common.Logger
}

// NewMarketStorage creates the market data table store.
func NewMarketStorage(store *Store, logger *common.Logger) *marketStorage {
	return &marketStorage{store: store, logger: logger}
}

const dateLayout = "2006-01-02"

func (s *marketStorage) SavePriceHistory(_ context.Context, symbol string, candles []models.Candle) error {
	lock := s.store.tableLock("price_history")
	lock.Lock()
	defer lock.Unlock()

	for i := range candles {
		c := candles[i]
		c.Symbol = symbol
		key := compositeKey(symbol, c.Date.Format(dateLayout))
		if err := s.store.db.Upsert(key, c); err != nil {
			return wrapStoreErr("price_history", "upsert", err)
		}
	}
	return nil
}

func (s *marketStorage) GetPriceHistory(_ context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	var candles []models.Candle
	err := s.store.db.Find(&candles, badgerhold.Where("Symbol").Eq(symbol))
	if err != nil {
		return nil, wrapStoreErr("price_history", "find", err)
	}

	out := candles[:0]
	for _, c := range candles {
		if !from.IsZero() && c.Date.Before(from) {
			continue
		}
		if !to.IsZero() && c.Date.After(to) {
			continue
		}
		out = append(out, c)
	}

	// Newest first, the order every consumer expects
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *marketStorage) SaveFundamentals(_ context.Context, f *models.Fundamentals) error {
	lock := s.store.tableLock("fundamentals")
	lock.Lock()
	defer lock.Unlock()

	key := compositeKey(f.Symbol, f.SnapshotDate)
	return wrapStoreErr("fundamentals", "upsert", s.store.db.Upsert(key, *f))
}

func (s *marketStorage) GetFundamentals(_ context.Context, symbol string) (*models.Fundamentals, error) {
	var rows []models.Fundamentals
	if err := s.store.db.Find(&rows, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("fundamentals", "find", err)
	}
	if len(rows) == 0 {
		return nil, wrapStoreErr("fundamentals", "get", badgerhold.ErrNotFound)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SnapshotDate > rows[j].SnapshotDate })
	return &rows[0], nil
}

func (s *marketStorage) SaveFinancials(_ context.Context, rows []models.FinancialRow) error {
	lock := s.store.tableLock("financials")
	lock.Lock()
	defer lock.Unlock()

	for _, r := range rows {
		key := compositeKey(r.Symbol, yearKey(r.Year))
		if err := s.store.db.Upsert(key, r); err != nil {
			return wrapStoreErr("financials", "upsert", err)
		}
	}
	return nil
}

func (s *marketStorage) GetFinancials(_ context.Context, symbol string) ([]models.FinancialRow, error) {
	var rows []models.FinancialRow
	if err := s.store.db.Find(&rows, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("financials", "find", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year > rows[j].Year })
	return rows, nil
}

func (s *marketStorage) SaveBalanceSheet(_ context.Context, rows []models.BalanceRow) error {
	lock := s.store.tableLock("balance_sheet")
	lock.Lock()
	defer lock.Unlock()

	for _, r := range rows {
		key := compositeKey(r.Symbol, yearKey(r.Year))
		if err := s.store.db.Upsert(key, r); err != nil {
			return wrapStoreErr("balance_sheet", "upsert", err)
		}
	}
	return nil
}

func (s *marketStorage) GetBalanceSheet(_ context.Context, symbol string) ([]models.BalanceRow, error) {
	var rows []models.BalanceRow
	if err := s.store.db.Find(&rows, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("balance_sheet", "find", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year > rows[j].Year })
	return rows, nil
}

func (s *marketStorage) SaveCashFlows(_ context.Context, rows []models.CashFlowRow) error {
	lock := s.store.tableLock("cash_flows")
	lock.Lock()
	defer lock.Unlock()

	for _, r := range rows {
		key := compositeKey(r.Symbol, yearKey(r.Year))
		if err := s.store.db.Upsert(key, r); err != nil {
			return wrapStoreErr("cash_flows", "upsert", err)
		}
	}
	return nil
}

func (s *marketStorage) GetCashFlows(_ context.Context, symbol string) ([]models.CashFlowRow, error) {
	var rows []models.CashFlowRow
	if err := s.store.db.Find(&rows, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("cash_flows", "find", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year > rows[j].Year })
	return rows, nil
}

func (s *marketStorage) SaveAnalyst(_ context.Context, snap *models.AnalystSnapshot) error {
	lock := s.store.tableLock("analyst")
	lock.Lock()
	defer lock.Unlock()

	key := compositeKey(snap.Symbol, snap.SnapshotDate)
	return wrapStoreErr("analyst", "upsert", s.store.db.Upsert(key, *snap))
}

func (s *marketStorage) GetAnalyst(_ context.Context, symbol string) (*models.AnalystSnapshot, error) {
	var rows []models.AnalystSnapshot
	if err := s.store.db.Find(&rows, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("analyst", "find", err)
	}
	if len(rows) == 0 {
		return nil, wrapStoreErr("analyst", "get", badgerhold.ErrNotFound)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SnapshotDate > rows[j].SnapshotDate })
	return &rows[0], nil
}

func (s *marketStorage) SaveInsider(_ context.Context, summary *models.InsiderSummary) error {
	lock := s.store.tableLock("insider")
	lock.Lock()
	defer lock.Unlock()

	key := compositeKey(summary.Symbol, summary.SnapshotDate)
	return wrapStoreErr("insider", "upsert", s.store.db.Upsert(key, *summary))
}

func (s *marketStorage) GetInsider(_ context.Context, symbol string) (*models.InsiderSummary, error) {
	var rows []models.InsiderSummary
	if err := s.store.db.Find(&rows, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("insider", "find", err)
	}
	if len(rows) == 0 {
		return nil, wrapStoreErr("insider", "get", badgerhold.ErrNotFound)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SnapshotDate > rows[j].SnapshotDate })
	return &rows[0], nil
}

func (s *marketStorage) SaveEarnings(_ context.Context, events []models.EarningsEvent) error {
	lock := s.store.tableLock("earnings")
	lock.Lock()
	defer lock.Unlock()

	for _, e := range events {
		key := compositeKey(e.Symbol, e.ReportDate)
		if err := s.store.db.Upsert(key, e); err != nil {
			return wrapStoreErr("earnings", "upsert", err)
		}
	}
	return nil
}

func (s *marketStorage) GetEarnings(_ context.Context, symbol string) ([]models.EarningsEvent, error) {
	var rows []models.EarningsEvent
	if err := s.store.db.Find(&rows, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("earnings", "find", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ReportDate < rows[j].ReportDate })
	return rows, nil
}

func (s *marketStorage) SaveTechnicals(_ context.Context, row *models.TechnicalRow) error {
	lock := s.store.tableLock("technicals")
	lock.Lock()
	defer lock.Unlock()

	key := compositeKey(row.Symbol, row.Date)
	return wrapStoreErr("technicals", "upsert", s.store.db.Upsert(key, *row))
}

func (s *marketStorage) GetTechnicals(_ context.Context, symbol string, limit int) ([]models.TechnicalRow, error) {
	var rows []models.TechnicalRow
	if err := s.store.db.Find(&rows, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("technicals", "find", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *marketStorage) SaveRisk(_ context.Context, row *models.RiskRow) error {
	lock := s.store.tableLock("risk")
	lock.Lock()
	defer lock.Unlock()

	key := compositeKey(row.Symbol, row.Date)
	return wrapStoreErr("risk", "upsert", s.store.db.Upsert(key, *row))
}

func (s *marketStorage) GetRisk(_ context.Context, symbol string) (*models.RiskRow, error) {
	var rows []models.RiskRow
	if err := s.store.db.Find(&rows, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("risk", "find", err)
	}
	if len(rows) == 0 {
		return nil, wrapStoreErr("risk", "get", badgerhold.ErrNotFound)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })
	return &rows[0], nil
}

// SaveNews inserts articles that are not already present (dedupe by content
// hash) and returns the number actually inserted.
func (s *marketStorage) SaveNews(_ context.Context, articles []models.NewsArticle) (int, error) {
	lock := s.store.tableLock("news")
	lock.Lock()
	defer lock.Unlock()

	inserted := 0
	for _, a := range articles {
		if a.ContentHash == "" {
			a.ContentHash = HashContent(a.Title + a.URL)
		}
		key := compositeKey(a.Symbol, a.ContentHash)

		var existing models.NewsArticle
		err := s.store.db.Get(key, &existing)
		if err == nil {
			continue
		}
		if !errors.Is(err, badgerhold.ErrNotFound) {
			return inserted, wrapStoreErr("news", "get", err)
		}
		if err := s.store.db.Insert(key, a); err != nil {
			return inserted, wrapStoreErr("news", "insert", err)
		}
		inserted++
	}
	return inserted, nil
}

func (s *marketStorage) GetNews(_ context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	var rows []models.NewsArticle
	if err := s.store.db.Find(&rows, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("news", "find", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PublishedAt.After(rows[j].PublishedAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// SaveTranscript inserts a transcript unless its video id is already stored.
func (s *marketStorage) SaveTranscript(_ context.Context, t *models.Transcript) (bool, error) {
	lock := s.store.tableLock("transcripts")
	lock.Lock()
	defer lock.Unlock()

	key := compositeKey(t.Symbol, t.VideoID)

	var existing models.Transcript
	err := s.store.db.Get(key, &existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, badgerhold.ErrNotFound) {
		return false, wrapStoreErr("transcripts", "get", err)
	}
	if err := s.store.db.Insert(key, *t); err != nil {
		return false, wrapStoreErr("transcripts", "insert", err)
	}
	return true, nil
}

func (s *marketStorage) GetTranscripts(_ context.Context, symbol string, limit int) ([]models.Transcript, error) {
	var rows []models.Transcript
	if err := s.store.db.Find(&rows, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return nil, wrapStoreErr("transcripts", "find", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PublishedAt.After(rows[j].PublishedAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *marketStorage) GetCollectionStatus(_ context.Context, symbol string) (*models.CollectionStatus, error) {
	var status models.CollectionStatus
	err := s.store.db.Get(symbol, &status)
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return &models.CollectionStatus{Symbol: symbol, Steps: map[string]time.Time{}}, nil
		}
		return nil, wrapStoreErr("collection_status", "get", err)
	}
	if status.Steps == nil {
		status.Steps = map[string]time.Time{}
	}
	return &status, nil
}

func (s *marketStorage) MarkStepFresh(ctx context.Context, symbol, step string, at time.Time) error {
	lock := s.store.tableLock("collection_status")
	lock.Lock()
	defer lock.Unlock()

	status, err := s.GetCollectionStatus(ctx, symbol)
	if err != nil {
		return err
	}
	status.Steps[step] = at
	status.UpdatedAt = at
	return wrapStoreErr("collection_status", "upsert", s.store.db.Upsert(symbol, *status))
}

// HashContent returns the sha256 hex digest used to dedupe news articles.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func yearKey(year int) string {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
}
