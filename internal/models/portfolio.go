package models

import "time"

// Order sides, types, and statuses.
const (
	OrderSideBuy  = "buy"
	OrderSideSell = "sell"

	OrderTypeMarket = "market"

	OrderStatusPending   = "pending"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusFailed    = "failed"
)

// Trigger types and statuses.
const (
	TriggerStopLoss     = "stop_loss"
	TriggerTakeProfit   = "take_profit"
	TriggerTrailingStop = "trailing_stop"

	TriggerStatusActive    = "active"
	TriggerStatusTriggered = "triggered"
	TriggerStatusCancelled = "cancelled"
)

// Position is one open paper trade. Symbol is unique while the position
// is open; qty reaching zero deletes the row.
type Position struct {
	Symbol          string    `json:"symbol"`
	Qty             int       `json:"qty"`
	AvgEntryPrice   float64   `json:"avg_entry_price"`
	CurrentPrice    float64   `json:"current_price"`
	UnrealizedPnL   float64   `json:"unrealized_pnl"`
	StopLoss        float64   `json:"stop_loss,omitempty"`
	TakeProfit      float64   `json:"take_profit,omitempty"`
	TrailingStopPct float64   `json:"trailing_stop_pct,omitempty"`
	OpenedAt        time.Time `json:"opened_at"`
	LastUpdated     time.Time `json:"last_updated"`
}

// MarketValue returns qty × current price.
func (p *Position) MarketValue() float64 {
	return float64(p.Qty) * p.CurrentPrice
}

// Order is an immutable record of a simulated fill attempt.
type Order struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Qty        int       `json:"qty"`
	Price      float64   `json:"price"`
	OrderType  string    `json:"order_type"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	FilledAt   time.Time `json:"filled_at,omitzero"`
	Conviction float64   `json:"conviction_score"`
	Signal     string    `json:"signal,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// PriceTrigger is a standing sell condition evaluated by the price monitor.
// A trigger fires at most once; firing transitions active → triggered
// atomically with order creation.
type PriceTrigger struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	TriggerType   string    `json:"trigger_type"`
	TriggerPrice  float64   `json:"trigger_price"`
	HighWaterMark float64   `json:"high_water_mark,omitempty"`
	TrailingPct   float64   `json:"trailing_pct,omitempty"`
	Qty           int       `json:"qty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	FiredAt       time.Time `json:"fired_at,omitzero"`
	FiredPrice    float64   `json:"fired_price,omitempty"`
}

// EffectiveStop returns the price at which a trailing stop fires given the
// current high-water mark. The stop only ratchets upward with the mark.
func (t *PriceTrigger) EffectiveStop() float64 {
	if t.TriggerType != TriggerTrailingStop {
		return t.TriggerPrice
	}
	return t.HighWaterMark * (1 - t.TrailingPct)
}

// PortfolioSnapshot is a timestamped record of portfolio totals.
type PortfolioSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
	TotalValue     float64   `json:"total_value"`
	RealizedPnL    float64   `json:"realized_pnl"`
	UnrealizedPnL  float64   `json:"unrealized_pnl"`
}

// PortfolioState is the canonical mutable trading state, owned exclusively
// by the trading worker.
type PortfolioState struct {
	Cash        float64   `json:"cash"`
	RealizedPnL float64   `json:"realized_pnl"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Decision is the signal router's output: an action plus a rationale.
// Policy rejections are decisions, not errors.
type Decision struct {
	Symbol     string   `json:"symbol"`
	Action     string   `json:"action"` // BUY, SELL, HOLD
	Qty        int      `json:"qty,omitempty"`
	Conviction float64  `json:"conviction"`
	Reason     string   `json:"reason"`
	Blocked    []string `json:"blocked,omitempty"` // names of failed risk guards
}
