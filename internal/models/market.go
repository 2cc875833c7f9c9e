// Package models defines data structures for Argus
package models

import "time"

// RealTimeQuote holds a live price snapshot used by the price monitor.
type RealTimeQuote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePct     float64   `json:"change_pct"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// Candle represents a single day's OHLCV price data, newest first in slices.
type Candle struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
}

// Fundamentals is a dated snapshot of valuation and profitability metrics.
type Fundamentals struct {
	Symbol            string    `json:"symbol"`
	SnapshotDate      string    `json:"snapshot_date"` // YYYY-MM-DD
	Name              string    `json:"name"`
	Sector            string    `json:"sector"`
	Industry          string    `json:"industry"`
	MarketCap         float64   `json:"market_cap"`
	PE                float64   `json:"pe_ratio"`
	ForwardPE         float64   `json:"forward_pe"`
	PB                float64   `json:"pb_ratio"`
	PS                float64   `json:"ps_ratio"`
	PEG               float64   `json:"peg_ratio"`
	EPS               float64   `json:"eps"`
	EPSGrowthYOY      float64   `json:"eps_growth_yoy"`
	RevenueTTM        float64   `json:"revenue_ttm"`
	RevGrowthYOY      float64   `json:"rev_growth_yoy"`
	GrossMargin       float64   `json:"gross_margin"`
	OperatingMargin   float64   `json:"operating_margin"`
	ProfitMargin      float64   `json:"profit_margin"`
	ROE               float64   `json:"roe"`
	ROA               float64   `json:"roa"`
	DebtToEquity      float64   `json:"debt_to_equity"`
	CurrentRatio      float64   `json:"current_ratio"`
	DividendYield     float64   `json:"dividend_yield"`
	Beta              float64   `json:"beta"`
	SharesOutstanding int64     `json:"shares_outstanding"`
	ShortPctFloat     float64   `json:"short_pct_float"`
	BookValue         float64   `json:"book_value"`
	FreeCashFlowTTM   float64   `json:"free_cash_flow_ttm"`
	NextEarningsDate  string    `json:"next_earnings_date,omitempty"` // YYYY-MM-DD
	UpdatedAt         time.Time `json:"updated_at"`
}

// FinancialRow is one fiscal year of income statement data.
type FinancialRow struct {
	Symbol          string  `json:"symbol"`
	Year            int     `json:"year"`
	Revenue         float64 `json:"revenue"`
	GrossProfit     float64 `json:"gross_profit"`
	OperatingIncome float64 `json:"operating_income"`
	NetIncome       float64 `json:"net_income"`
	EBITDA          float64 `json:"ebitda"`
	EPS             float64 `json:"eps"`
}

// BalanceRow is one fiscal year of balance sheet data.
type BalanceRow struct {
	Symbol             string  `json:"symbol"`
	Year               int     `json:"year"`
	TotalAssets        float64 `json:"total_assets"`
	CurrentAssets      float64 `json:"current_assets"`
	TotalLiabilities   float64 `json:"total_liabilities"`
	CurrentLiabilities float64 `json:"current_liabilities"`
	LongTermDebt       float64 `json:"long_term_debt"`
	ShareholderEquity  float64 `json:"shareholder_equity"`
	RetainedEarnings   float64 `json:"retained_earnings"`
	WorkingCapital     float64 `json:"working_capital"`
}

// CashFlowRow is one fiscal year of cash flow data.
type CashFlowRow struct {
	Symbol           string  `json:"symbol"`
	Year             int     `json:"year"`
	OperatingCF      float64 `json:"operating_cf"`
	InvestingCF      float64 `json:"investing_cf"`
	FinancingCF      float64 `json:"financing_cf"`
	FreeCashFlow     float64 `json:"free_cash_flow"`
	CapEx            float64 `json:"capex"`
	DividendsPaid    float64 `json:"dividends_paid"`
	StockBuybacks    float64 `json:"stock_buybacks"`
	NetChangeInCash  float64 `json:"net_change_in_cash"`
}

// AnalystSnapshot is a dated view of sell-side coverage.
type AnalystSnapshot struct {
	Symbol         string    `json:"symbol"`
	SnapshotDate   string    `json:"snapshot_date"`
	Rating         float64   `json:"rating"` // 1 strong buy … 5 strong sell
	TargetPrice    float64   `json:"target_price"`
	StrongBuy      int       `json:"strong_buy"`
	Buy            int       `json:"buy"`
	Hold           int       `json:"hold"`
	Sell           int       `json:"sell"`
	StrongSell     int       `json:"strong_sell"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// InsiderSummary aggregates reported insider activity over a trailing window.
type InsiderSummary struct {
	Symbol        string    `json:"symbol"`
	SnapshotDate  string    `json:"snapshot_date"`
	WindowDays    int       `json:"window_days"`
	BuyCount      int       `json:"buy_count"`
	SellCount     int       `json:"sell_count"`
	NetValueUSD   float64   `json:"net_value_usd"` // buys minus sells
	LargestTrade  float64   `json:"largest_trade"`
	LastActivity  string    `json:"last_activity,omitempty"` // YYYY-MM-DD
	UpdatedAt     time.Time `json:"updated_at"`
}

// EarningsEvent is one upcoming or past earnings calendar entry.
type EarningsEvent struct {
	Symbol       string    `json:"symbol"`
	ReportDate   string    `json:"report_date"` // YYYY-MM-DD
	FiscalPeriod string    `json:"fiscal_period"`
	EPSEstimate  float64   `json:"eps_estimate"`
	EPSActual    float64   `json:"eps_actual"`
	BeforeOpen   bool      `json:"before_open"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TechnicalRow is a dated row of standard technical indicators.
type TechnicalRow struct {
	Symbol       string    `json:"symbol"`
	Date         string    `json:"date"` // YYYY-MM-DD
	SMA20        float64   `json:"sma_20"`
	SMA50        float64   `json:"sma_50"`
	SMA200       float64   `json:"sma_200"`
	EMA12        float64   `json:"ema_12"`
	EMA26        float64   `json:"ema_26"`
	RSI14        float64   `json:"rsi_14"`
	MACD         float64   `json:"macd"`
	MACDSignal   float64   `json:"macd_signal"`
	MACDHist     float64   `json:"macd_hist"`
	BollingerUp  float64   `json:"bollinger_upper"`
	BollingerMid float64   `json:"bollinger_mid"`
	BollingerLow float64   `json:"bollinger_lower"`
	ATR14        float64   `json:"atr_14"`
	ADX14        float64   `json:"adx_14"`
	StochK       float64   `json:"stoch_k"`
	StochD       float64   `json:"stoch_d"`
	OBV          float64   `json:"obv"`
	VWAP         float64   `json:"vwap"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RiskRow is a dated row of portfolio-theory risk metrics for one symbol.
type RiskRow struct {
	Symbol          string    `json:"symbol"`
	Date            string    `json:"date"` // YYYY-MM-DD
	Sharpe          float64   `json:"sharpe"`
	Sortino         float64   `json:"sortino"`
	Calmar          float64   `json:"calmar"`
	Omega           float64   `json:"omega"`
	KellyHalf       float64   `json:"kelly_half"`
	VaR95           float64   `json:"var_95"`
	CVaR95          float64   `json:"cvar_95"`
	MaxDrawdown     float64   `json:"max_drawdown"`
	PercentilePrice float64   `json:"percentile_price"`
	PercentileVol   float64   `json:"percentile_volume"`
	Hurst           float64   `json:"hurst"`
	Momentum12m1m   float64   `json:"momentum_12m_1m"`
	AltmanZ         float64   `json:"altman_z"`
	PiotroskiF      int       `json:"piotroski_f"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewsArticle is a news item, unique by content hash.
type NewsArticle struct {
	Symbol      string    `json:"symbol"`
	ContentHash string    `json:"content_hash"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary"`
	CollectedAt time.Time `json:"collected_at"`
}

// Transcript is a video transcript, unique by video id.
type Transcript struct {
	Symbol      string    `json:"symbol"`
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	Channel     string    `json:"channel"`
	PublishedAt time.Time `json:"published_at"`
	DurationSec int       `json:"duration_sec"`
	Text        string    `json:"text"`
	CollectedAt time.Time `json:"collected_at"`
}

// CollectionStatus tracks per-step freshness for one symbol.
type CollectionStatus struct {
	Symbol    string               `json:"symbol"`
	Steps     map[string]time.Time `json:"steps"` // step name -> last success
	UpdatedAt time.Time            `json:"updated_at"`
}
