package common

import "time"

// Freshness TTLs per collection step. Re-running collection inside the TTL
// skips the network fetch, which keeps same-day pipeline re-runs idempotent.
const (
	FreshnessPrices       = 1 * time.Hour
	FreshnessFundamentals = 24 * time.Hour
	FreshnessFinancials   = 7 * 24 * time.Hour
	FreshnessAnalyst      = 24 * time.Hour
	FreshnessInsider      = 24 * time.Hour
	FreshnessEarnings     = 24 * time.Hour
	FreshnessNews         = 6 * time.Hour
	FreshnessTranscripts  = 12 * time.Hour
	FreshnessTechnicals   = 1 * time.Hour
	FreshnessRisk         = 24 * time.Hour
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
