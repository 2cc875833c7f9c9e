package interfaces

import (
	"context"

	"github.com/bobmcallan/argus/internal/models"
)

// EventLogService appends to and queries the pipeline audit trail.
// Log is best-effort: write failures are logged, never propagated.
type EventLogService interface {
	BeginRun() string
	Log(ctx context.Context, event *models.PipelineEvent)
	Query(ctx context.Context, q EventQuery) ([]*models.PipelineEvent, error)
}

// DiscoveryService scans social sources for candidate tickers.
type DiscoveryService interface {
	Run(ctx context.Context, runID string) ([]*models.ScoredTicker, error)
	Status(ctx context.Context) (*models.DiscoveryRun, error)
	History(ctx context.Context, limit int) ([]*models.DiscoveryRun, error)
	Clear(ctx context.Context) (int, error)
}

// StepStatus values in a collection report.
const (
	StepOK      = "ok"
	StepError   = "error"
	StepSkipped = "skipped"
)

// StepResult is the outcome of one collection step.
type StepResult struct {
	Status string `json:"status"`
	Rows   int    `json:"rows"`
	Error  string `json:"error,omitempty"`
}

// StepReport maps collection step names to their results.
type StepReport map[string]StepResult

// CriticalOK reports whether the steps required for analysis succeeded.
// Skipped counts as success: a step is only skipped when stored data is
// still fresh.
func (r StepReport) CriticalOK() bool {
	for _, step := range []string{"price_history", "fundamentals"} {
		res, ok := r[step]
		if !ok || res.Status == StepError {
			return false
		}
	}
	return true
}

// CollectorService validates tickers and harvests their data.
type CollectorService interface {
	ValidateTicker(ctx context.Context, symbol string) (bool, error)
	CollectData(ctx context.Context, runID, symbol string) (StepReport, error)
}

// WatchlistService manages the lifecycle of tracked symbols.
type WatchlistService interface {
	ActiveSymbols(ctx context.Context) ([]string, error)
	List(ctx context.Context) ([]*models.WatchlistEntry, error)
	AddManual(ctx context.Context, symbol string) (*models.WatchlistEntry, error)
	RemoveManual(ctx context.Context, symbol string) error
	ImportFromDiscovery(ctx context.Context, runID string, scored []*models.ScoredTicker) ([]string, error)
	ApplyDossier(ctx context.Context, runID string, dossier *models.TickerDossier) error
	SetPositionHeld(ctx context.Context, symbol string, held bool) error
	RemoveStale(ctx context.Context, runID string) ([]string, error)
}

// AnalysisService runs the 4-layer deep analysis funnel for one symbol.
type AnalysisService interface {
	BuildScorecard(ctx context.Context, runID, symbol string) (*models.QuantScorecard, error)
	GenerateQuestions(ctx context.Context, card *models.QuantScorecard) ([]models.Question, error)
	AnswerQuestions(ctx context.Context, symbol string, questions []models.Question) ([]models.QAPair, error)
	SynthesizeDossier(ctx context.Context, runID string, card *models.QuantScorecard, pairs []models.QAPair) (*models.TickerDossier, error)

	// Analyze runs all four layers and persists the dossier.
	Analyze(ctx context.Context, runID, symbol string) (*models.TickerDossier, error)
}

// TraderService is the paper trader: position bookkeeping under atomic
// cash accounting, plus the deterministic signal router.
type TraderService interface {
	Buy(ctx context.Context, symbol string, qty int, price float64) (*models.Order, error)
	Sell(ctx context.Context, symbol string, qty int, price float64) (*models.Order, error)
	Positions(ctx context.Context) ([]*models.Position, error)
	Portfolio(ctx context.Context) (*models.PortfolioSnapshot, error)
	Snapshot(ctx context.Context) (*models.PortfolioSnapshot, error)
	UpdatePrices(ctx context.Context, quotes []models.RealTimeQuote) error

	// Route converts a dossier into a decision and executes any resulting
	// order. Policy rejections come back as HOLD decisions, not errors.
	Route(ctx context.Context, runID string, dossier *models.TickerDossier) (*models.Decision, error)
}

// ReportService produces the end-of-day report and growth chart.
type ReportService interface {
	GenerateEOD(ctx context.Context, runID string) (string, error)
}
