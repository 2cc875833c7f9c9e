package models

import "time"

// Watchlist entry statuses.
const (
	WatchStatusActive          = "active"
	WatchStatusPendingAnalysis = "pending_analysis"
	WatchStatusCooldown        = "cooldown"
	WatchStatusRemoved         = "removed"
)

// Watchlist entry sources.
const (
	WatchSourceManual        = "manual"
	WatchSourceAutoDiscovery = "auto_discovery"
)

// Trading signal labels derived from conviction bands.
const (
	SignalBuy  = "BUY"
	SignalHold = "HOLD"
	SignalSell = "SELL"
)

// WatchlistEntry is one tracked symbol and its lifecycle state.
type WatchlistEntry struct {
	Symbol          string    `json:"symbol"`
	Source          string    `json:"source"`
	AddedAt         time.Time `json:"added_at"`
	DiscoveryScore  float64   `json:"discovery_score"`
	ConvictionScore float64   `json:"conviction_score"`
	LastAnalyzed    time.Time `json:"last_analyzed"`
	TimesAnalyzed   int       `json:"times_analyzed"`
	Status          string    `json:"status"`
	PositionHeld    bool      `json:"position_held"`
	LastSignal      string    `json:"last_signal,omitempty"`
	ConsecutiveLow  int       `json:"consecutive_low"`
	RemovedAt       time.Time `json:"removed_at,omitzero"`
}

// IsActive reports whether the entry counts against the active cap.
func (e *WatchlistEntry) IsActive() bool {
	return e.Status == WatchStatusActive || e.Status == WatchStatusPendingAnalysis
}

// InCooldown reports whether a removed entry is still inside its cooldown
// window at time now.
func (e *WatchlistEntry) InCooldown(now time.Time, cooldownDays int) bool {
	if e.Status != WatchStatusRemoved && e.Status != WatchStatusCooldown {
		return false
	}
	if e.RemovedAt.IsZero() {
		return false
	}
	return now.Sub(e.RemovedAt) < time.Duration(cooldownDays)*24*time.Hour
}

// SignalForConviction maps a conviction score onto a BUY/HOLD/SELL label.
// Bands: [0,0.40) SELL, [0.40,0.60] HOLD, (0.60,1] BUY.
func SignalForConviction(conviction float64) string {
	switch {
	case conviction < 0.40:
		return SignalSell
	case conviction <= 0.60:
		return SignalHold
	default:
		return SignalBuy
	}
}

// ConvictionBand names the five-band classification used in dossiers.
func ConvictionBand(conviction float64) string {
	switch {
	case conviction < 0.25:
		return "Strong SELL"
	case conviction < 0.40:
		return "Lean SELL"
	case conviction <= 0.60:
		return "Hold"
	case conviction <= 0.75:
		return "Lean BUY"
	default:
		return "Strong BUY"
	}
}
