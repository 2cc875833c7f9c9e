package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/argus/internal/models"
)

// ChatOptions configures one LLM call.
type ChatOptions struct {
	Model       string
	Temperature float64
	ContextSize int
	ExpectJSON  bool
}

// ChatReply is the LLM response with token accounting.
type ChatReply struct {
	Content   string
	TokensIn  int
	TokensOut int
}

// LLMClient is the provider-agnostic chat interface. Implementations must
// retry once on context-window overflow after trimming the longest
// non-system message, and strip code fences when ExpectJSON is set.
type LLMClient interface {
	Chat(ctx context.Context, system, user string, opts ChatOptions) (*ChatReply, error)
	Close() error
}

// MarketDataClient fetches market and fundamental data for one symbol.
type MarketDataClient interface {
	// Probe reports whether the symbol resolves to a tradable equity.
	Probe(ctx context.Context, symbol string) (bool, error)

	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
	GetFinancials(ctx context.Context, symbol string) ([]models.FinancialRow, error)
	GetBalanceSheet(ctx context.Context, symbol string) ([]models.BalanceRow, error)
	GetCashFlows(ctx context.Context, symbol string) ([]models.CashFlowRow, error)
	GetAnalyst(ctx context.Context, symbol string) (*models.AnalystSnapshot, error)
	GetInsider(ctx context.Context, symbol string) (*models.InsiderSummary, error)
	GetEarnings(ctx context.Context, symbol string) ([]models.EarningsEvent, error)
	GetNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error)

	// GetQuotes returns a batched live snapshot for the given symbols.
	GetQuotes(ctx context.Context, symbols []string) ([]models.RealTimeQuote, error)
}

// SocialThread is one discussion thread from a public forum feed.
type SocialThread struct {
	ID       string
	Forum    string
	Title    string
	Body     string
	Comments []string
	Score    int
	Sticky   bool
	Created  time.Time
}

// SocialClient fetches discussion threads from public JSON endpoints.
type SocialClient interface {
	FetchPriorityThreads(ctx context.Context, forum string, limit int) ([]SocialThread, error)
	FetchTrendingThreads(ctx context.Context, forum string, limit int) ([]SocialThread, error)
}

// VideoResult is one video found by a channel search.
type VideoResult struct {
	VideoID     string
	Title       string
	Channel     string
	PublishedAt time.Time
	DurationSec int
}

// TranscriptClient searches channels and fetches video transcripts using a
// fast API first and a fallback extractor second.
type TranscriptClient interface {
	SearchChannel(ctx context.Context, channel string, since time.Time) ([]VideoResult, error)
	FetchTranscript(ctx context.Context, videoID string) (string, error)
}
