package models

import "time"

// Sentiment hints attached to discovered tickers.
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// Discovery source type names.
const (
	SourceSocial     = "social"
	SourceTranscript = "transcript"
)

// ScoredTicker is a candidate symbol produced by a discovery run.
type ScoredTicker struct {
	Symbol       string             `json:"symbol"`
	TotalScore   float64            `json:"total_score"`
	SourceScores map[string]float64 `json:"source_scores"`
	Mentions     int                `json:"mentions"`
	FirstSeen    time.Time          `json:"first_seen"`
	LastSeen     time.Time          `json:"last_seen"`
	Sentiment    string             `json:"sentiment"`
	Contexts     []string           `json:"contexts,omitempty"`
	Sources      []string           `json:"sources"`
}

// Merge folds another hit for the same symbol into this one: source scores
// sum, sources union, mention counts add.
func (s *ScoredTicker) Merge(other *ScoredTicker) {
	if other == nil || other.Symbol != s.Symbol {
		return
	}
	for src, score := range other.SourceScores {
		if s.SourceScores == nil {
			s.SourceScores = make(map[string]float64)
		}
		s.SourceScores[src] += score
	}
	s.TotalScore += other.TotalScore
	s.Mentions += other.Mentions
	if other.FirstSeen.Before(s.FirstSeen) || s.FirstSeen.IsZero() {
		s.FirstSeen = other.FirstSeen
	}
	if other.LastSeen.After(s.LastSeen) {
		s.LastSeen = other.LastSeen
	}
	s.Contexts = append(s.Contexts, other.Contexts...)
	for _, src := range other.Sources {
		if !containsString(s.Sources, src) {
			s.Sources = append(s.Sources, src)
		}
	}
	// Conflicting sentiment hints cancel out to neutral
	if other.Sentiment != s.Sentiment && other.Sentiment != "" && s.Sentiment != "" {
		s.Sentiment = SentimentNeutral
	} else if s.Sentiment == "" {
		s.Sentiment = other.Sentiment
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// DiscoveryRun records one discovery pass and its results.
type DiscoveryRun struct {
	ID          string          `json:"id"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Status      string          `json:"status"` // "running", "completed", "failed"
	Results     []*ScoredTicker `json:"results,omitempty"`
	Imported    []string        `json:"imported,omitempty"`
	Error       string          `json:"error,omitempty"`
}
