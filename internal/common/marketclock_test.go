package common

import (
	"testing"
	"time"
)

func newYorkClock(t *testing.T) *MarketClock {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return NewMarketClock(loc)
}

func TestMarketClockOpenHours(t *testing.T) {
	clock := newYorkClock(t)
	loc, _ := time.LoadLocation("America/New_York")

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"tuesday mid-session", time.Date(2026, 8, 25, 11, 0, 0, 0, loc), true},
		{"exact open", time.Date(2026, 8, 25, 9, 30, 0, 0, loc), true},
		{"minute before open", time.Date(2026, 8, 25, 9, 29, 0, 0, loc), false},
		{"exact close", time.Date(2026, 8, 25, 16, 0, 0, 0, loc), false},
		{"minute before close", time.Date(2026, 8, 25, 15, 59, 0, 0, loc), true},
		{"saturday", time.Date(2026, 8, 29, 11, 0, 0, 0, loc), false},
		{"sunday", time.Date(2026, 8, 30, 11, 0, 0, 0, loc), false},
		{"weekday evening", time.Date(2026, 8, 25, 20, 0, 0, 0, loc), false},
	}
	for _, tt := range tests {
		if got := clock.IsOpen(tt.at); got != tt.want {
			t.Errorf("%s: IsOpen = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMarketClockConvertsTimezone(t *testing.T) {
	clock := newYorkClock(t)

	// 15:00 UTC on a Tuesday is 11:00 in New York: open.
	at := time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC)
	if !clock.IsOpen(at) {
		t.Error("15:00 UTC Tuesday should be inside the New York session")
	}

	// 02:00 UTC is the prior evening in New York: closed.
	late := time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC)
	if clock.IsOpen(late) {
		t.Error("02:00 UTC should be outside the New York session")
	}
}

func TestMarketClockNilLocation(t *testing.T) {
	clock := NewMarketClock(nil)
	at := time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC)
	if !clock.IsOpen(at) {
		t.Error("nil location falls back to UTC; 11:00 UTC Tuesday is open")
	}
}

func TestTradingDate(t *testing.T) {
	clock := newYorkClock(t)

	// 02:00 UTC on the 26th is still the 25th in New York.
	at := time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC)
	if got := clock.TradingDate(at); got != "2026-08-25" {
		t.Errorf("TradingDate = %q, want 2026-08-25", got)
	}
}
