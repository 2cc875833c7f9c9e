package models

import "time"

// Anomaly flags emitted by the quant scorecard. Flag emission is a pure
// function of scorecard values and fixed thresholds.
const (
	FlagZScoreHigh          = "z_score_high"
	FlagPriceAboveUpperBand = "price_above_upper_band"
	FlagPriceBelowLowerBand = "price_below_lower_band"
	FlagVolumeSpike95th     = "volume_spike_95th"
	FlagDrawdownExceeds20   = "drawdown_exceeds_20pct"
	FlagNegativeSortino     = "negative_sortino"
	FlagInsiderBuyingSpike  = "insider_buying_spike"
	FlagInsiderSellingSpike = "insider_selling_spike"
	FlagEarningsSoon        = "earnings_soon"
	FlagMissingInput        = "missing_input"
)

// QuantScorecard is the Layer 1 output: pure-math metrics plus anomaly
// flags. Metric pointers are nil when the underlying input was missing.
type QuantScorecard struct {
	Symbol      string    `json:"symbol"`
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	ZScore20d        *float64 `json:"z_score_20d,omitempty"`
	ZScore20dRobust  *float64 `json:"z_score_20d_robust,omitempty"`
	BollingerPctB    *float64 `json:"bollinger_pct_b,omitempty"`
	PercentilePrice  *float64 `json:"percentile_rank_price,omitempty"`
	PercentileVolume *float64 `json:"percentile_rank_volume,omitempty"`
	Sharpe           *float64 `json:"sharpe,omitempty"`
	Sortino          *float64 `json:"sortino,omitempty"`
	Calmar           *float64 `json:"calmar,omitempty"`
	Omega            *float64 `json:"omega,omitempty"`
	KellyFraction    *float64 `json:"kelly_fraction,omitempty"`
	VaR95            *float64 `json:"var_95,omitempty"`
	CVaR95           *float64 `json:"cvar_95,omitempty"`
	MaxDrawdown      *float64 `json:"max_drawdown,omitempty"`
	Momentum12m1m    *float64 `json:"momentum_12m_1m,omitempty"`
	Hurst            *float64 `json:"hurst,omitempty"`
	MeanReversion    *float64 `json:"mean_reversion_score,omitempty"`
	VWAPDeviation    *float64 `json:"vwap_deviation,omitempty"`
	EarningsYieldGap *float64 `json:"earnings_yield_gap,omitempty"`
	AltmanZ          *float64 `json:"altman_z,omitempty"`
	PiotroskiF       *int     `json:"piotroski_f,omitempty"`

	InsiderNet90d   *float64 `json:"insider_net_90d,omitempty"`
	DaysToEarnings  *int     `json:"days_to_earnings,omitempty"`
	LastClose       float64  `json:"last_close"`
	LastVolume      int64    `json:"last_volume"`

	Flags []string `json:"flags"`
}

// HasFlag reports whether the scorecard carries the given anomaly flag.
func (s *QuantScorecard) HasFlag(flag string) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Question target sources for Layer 3 retrieval routing.
const (
	TargetNews         = "news"
	TargetTranscripts  = "transcripts"
	TargetFundamentals = "fundamentals"
	TargetTechnicals   = "technicals"
	TargetInsider      = "insider"
)

// Question priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Question is one Layer 2 follow-up question routed to a data source.
type Question struct {
	Text         string `json:"question"`
	TargetSource string `json:"target_source"`
	Priority     string `json:"priority"`
}

// Answer confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// QAPair is one Layer 3 answer extracted from routed source text.
type QAPair struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Source     string `json:"source"`
	Confidence string `json:"confidence"`
}

// TickerDossier is the Layer 4 output: the consumable decision unit for
// one symbol. A new dossier supersedes the previous one for the symbol.
type TickerDossier struct {
	Symbol           string          `json:"symbol"`
	GeneratedAt      time.Time       `json:"generated_at"`
	Version          int             `json:"version"`
	Scorecard        *QuantScorecard `json:"scorecard"`
	QAPairs          []QAPair        `json:"qa_pairs"`
	ExecutiveSummary string          `json:"executive_summary"`
	BullCase         string          `json:"bull_case"`
	BearCase         string          `json:"bear_case"`
	KeyCatalysts     []string        `json:"key_catalysts"`
	ConvictionScore  float64         `json:"conviction_score"`
	SignalSummary    string          `json:"signal_summary"`
	TotalTokens      int             `json:"total_tokens"`
}
