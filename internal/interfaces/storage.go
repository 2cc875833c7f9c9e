// Package interfaces defines service contracts for Argus
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/argus/internal/models"
)

// StorageManager coordinates all table stores behind the embedded database.
type StorageManager interface {
	MarketStore() MarketStore
	DiscoveryStore() DiscoveryStore
	WatchlistStore() WatchlistStore
	PortfolioStore() PortfolioStore
	DossierStore() DossierStore
	EventStore() EventStore
	JobRunStore() JobRunStore

	// DataPath returns the base data directory path.
	DataPath() string

	// WriteRaw writes arbitrary binary data (report charts) to a
	// subdirectory atomically. Key is sanitized for safe filenames.
	WriteRaw(subdir, key string, data []byte) error

	Close() error
}

// MarketStore persists all collected market data tables. Writes are
// idempotent upserts keyed by each table's primary key.
type MarketStore interface {
	SavePriceHistory(ctx context.Context, symbol string, candles []models.Candle) error
	GetPriceHistory(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)

	SaveFundamentals(ctx context.Context, f *models.Fundamentals) error
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)

	SaveFinancials(ctx context.Context, rows []models.FinancialRow) error
	GetFinancials(ctx context.Context, symbol string) ([]models.FinancialRow, error)

	SaveBalanceSheet(ctx context.Context, rows []models.BalanceRow) error
	GetBalanceSheet(ctx context.Context, symbol string) ([]models.BalanceRow, error)

	SaveCashFlows(ctx context.Context, rows []models.CashFlowRow) error
	GetCashFlows(ctx context.Context, symbol string) ([]models.CashFlowRow, error)

	SaveAnalyst(ctx context.Context, snap *models.AnalystSnapshot) error
	GetAnalyst(ctx context.Context, symbol string) (*models.AnalystSnapshot, error)

	SaveInsider(ctx context.Context, summary *models.InsiderSummary) error
	GetInsider(ctx context.Context, symbol string) (*models.InsiderSummary, error)

	SaveEarnings(ctx context.Context, events []models.EarningsEvent) error
	GetEarnings(ctx context.Context, symbol string) ([]models.EarningsEvent, error)

	SaveTechnicals(ctx context.Context, row *models.TechnicalRow) error
	GetTechnicals(ctx context.Context, symbol string, limit int) ([]models.TechnicalRow, error)

	SaveRisk(ctx context.Context, row *models.RiskRow) error
	GetRisk(ctx context.Context, symbol string) (*models.RiskRow, error)

	SaveNews(ctx context.Context, articles []models.NewsArticle) (int, error) // returns inserted count
	GetNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error)

	SaveTranscript(ctx context.Context, t *models.Transcript) (bool, error) // false if already present
	GetTranscripts(ctx context.Context, symbol string, limit int) ([]models.Transcript, error)

	GetCollectionStatus(ctx context.Context, symbol string) (*models.CollectionStatus, error)
	MarkStepFresh(ctx context.Context, symbol, step string, at time.Time) error
}

// DiscoveryStore persists discovery results and run history.
type DiscoveryStore interface {
	SaveRun(ctx context.Context, run *models.DiscoveryRun) error
	GetRun(ctx context.Context, id string) (*models.DiscoveryRun, error)
	LatestRun(ctx context.Context) (*models.DiscoveryRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.DiscoveryRun, error)
	LastMention(ctx context.Context, symbol string) (time.Time, error)
	RecordMention(ctx context.Context, symbol string, at time.Time) error
	Clear(ctx context.Context) (int, error)
}

// WatchlistStore persists watchlist entries keyed by symbol.
type WatchlistStore interface {
	Get(ctx context.Context, symbol string) (*models.WatchlistEntry, error)
	Upsert(ctx context.Context, entry *models.WatchlistEntry) error
	List(ctx context.Context) ([]*models.WatchlistEntry, error)
	Delete(ctx context.Context, symbol string) error
}

// PortfolioStore persists trading state: cash, positions, orders,
// triggers, and snapshots.
type PortfolioStore interface {
	GetState(ctx context.Context) (*models.PortfolioState, error)
	SaveState(ctx context.Context, state *models.PortfolioState) error

	GetPosition(ctx context.Context, symbol string) (*models.Position, error)
	SavePosition(ctx context.Context, pos *models.Position) error
	DeletePosition(ctx context.Context, symbol string) error
	ListPositions(ctx context.Context) ([]*models.Position, error)

	SaveOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, limit int) ([]*models.Order, error)
	CountOrdersSince(ctx context.Context, since time.Time) (int, error)
	LastSellAt(ctx context.Context, symbol string) (time.Time, error)

	SaveTrigger(ctx context.Context, trigger *models.PriceTrigger) error
	GetTrigger(ctx context.Context, id string) (*models.PriceTrigger, error)
	ListTriggers(ctx context.Context, status string) ([]*models.PriceTrigger, error)
	CancelTriggersForSymbol(ctx context.Context, symbol string) (int, error)

	SaveSnapshot(ctx context.Context, snap *models.PortfolioSnapshot) error
	ListSnapshots(ctx context.Context, limit int) ([]*models.PortfolioSnapshot, error)
}

// DossierStore persists analysis artifacts: scorecards and dossiers.
type DossierStore interface {
	SaveScorecard(ctx context.Context, card *models.QuantScorecard) error
	LatestScorecard(ctx context.Context, symbol string) (*models.QuantScorecard, error)

	SaveDossier(ctx context.Context, dossier *models.TickerDossier) error
	LatestDossier(ctx context.Context, symbol string) (*models.TickerDossier, error)
	ListDossiers(ctx context.Context, symbol string, limit int) ([]*models.TickerDossier, error)
}

// EventQuery filters the pipeline event log.
type EventQuery struct {
	Limit  int
	Phase  string
	Symbol string
	RunID  string
}

// EventStore persists the append-only pipeline event log.
type EventStore interface {
	Append(ctx context.Context, event *models.PipelineEvent) error
	Query(ctx context.Context, q EventQuery) ([]*models.PipelineEvent, error)
}

// JobRunStore records completed scheduler jobs for same-day dedupe.
type JobRunStore interface {
	Get(ctx context.Context, job, date string) (*models.JobRun, error)
	Save(ctx context.Context, run *models.JobRun) error
}
