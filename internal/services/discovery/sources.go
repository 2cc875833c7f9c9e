package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
)

// symbolRegex matches candidate tickers: $CASHTAG or bare uppercase runs
// of 2-5 letters.
var symbolRegex = regexp.MustCompile(`\$?([A-Z]{2,5})\b`)

// noiseWords is the static denylist of uppercase tokens that look like
// tickers but never are.
var noiseWords = map[string]bool{
	"YOLO": true, "DD": true, "CEO": true, "CFO": true, "CTO": true,
	"AI": true, "USA": true, "USD": true, "GDP": true, "IMO": true,
	"ATH": true, "IPO": true, "ETF": true, "FOMO": true, "FUD": true,
	"EPS": true, "PE": true, "SEC": true, "FDA": true, "FED": true,
	"NYSE": true, "OTC": true, "WSB": true, "TLDR": true, "EDIT": true,
	"HOLD": true, "BUY": true, "SELL": true, "CALL": true, "PUT": true,
	"PUTS": true, "MOON": true, "APES": true, "GAIN": true, "LOSS": true,
	"NOT": true, "THE": true, "AND": true, "FOR": true, "ARE": true,
	"THIS": true, "WITH": true, "JUST": true, "LIKE": true, "WHAT": true,
	"HUGE": true, "NEWS": true, "TODAY": true, "IT": true, "SO": true,
	"IS": true, "ON": true, "IN": true, "TO": true, "AT": true,
	"OR": true, "MY": true, "BE": true, "IF": true, "ALL": true,
	"NOW": true, "NEW": true, "ONE": true, "CAN": true, "GET": true,
	"LOL": true, "IRA": true, "RSI": true, "IV": true, "ITM": true,
	"OTM": true, "EOD": true, "AH": true, "PM": true, "AM": true,
	"UP": true, "WE": true, "US": true, "OK": true, "PSA": true,
}

// isNoise checks the static denylist plus configured extra noise words.
func (s *Service) isNoise(symbol string) bool {
	if noiseWords[symbol] {
		return true
	}
	for _, w := range s.config.ExtraNoiseWords {
		if strings.EqualFold(w, symbol) {
			return true
		}
	}
	return false
}

// runSocialSource scans configured forums: priority (stickied) and
// trending threads, LLM title filter, regex symbol extraction, validation,
// weighted scoring.
func (s *Service) runSocialSource(ctx context.Context, runID string) ([]*models.ScoredTicker, error) {
	type fetch struct {
		forum    string
		priority bool
	}
	var fetches []fetch
	for _, f := range s.config.PriorityForums {
		fetches = append(fetches, fetch{forum: f, priority: true})
	}
	for _, f := range s.config.TrendingForums {
		fetches = append(fetches, fetch{forum: f, priority: false})
	}
	if len(fetches) == 0 {
		return nil, nil
	}

	var threads []interfaces.SocialThread
	var lastErr error
	for _, f := range fetches {
		var (
			batch []interfaces.SocialThread
			err   error
		)
		if f.priority {
			batch, err = s.social.FetchPriorityThreads(ctx, f.forum, 25)
		} else {
			batch, err = s.social.FetchTrendingThreads(ctx, f.forum, 25)
		}
		if err != nil {
			lastErr = err
			s.logger.Warn().Err(err).Str("forum", f.forum).Msg("Forum fetch failed")
			continue
		}
		threads = append(threads, batch...)
	}
	if len(threads) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("no threads fetched: %w", lastErr)
		}
		return nil, nil
	}

	titles := make([]string, len(threads))
	for i, t := range threads {
		titles[i] = t.Title
	}
	keep := s.llmFilterTitles(ctx, titles)

	scores := make(map[string]*models.ScoredTicker)
	now := time.Now().UTC()
	for i, thread := range threads {
		if !keep[i] {
			continue
		}
		hits := make(map[string]float64)
		s.extractSymbols(thread.Title, titleWeight, hits)
		s.extractSymbols(thread.Body, bodyWeight, hits)
		for _, comment := range thread.Comments {
			s.extractSymbols(comment, commentWeight, hits)
		}

		for symbol, score := range hits {
			st, ok := scores[symbol]
			if !ok {
				st = &models.ScoredTicker{
					Symbol:       symbol,
					SourceScores: map[string]float64{},
					FirstSeen:    now,
					LastSeen:     now,
					Sources:      []string{models.SourceSocial},
				}
				scores[symbol] = st
			}
			st.SourceScores[models.SourceSocial] += score
			st.TotalScore += score
			st.Mentions++
			if len(st.Contexts) < 3 {
				st.Contexts = append(st.Contexts, thread.Title)
			}
		}
	}

	return s.validateCandidates(ctx, runID, scores), nil
}

// extractSymbols adds weighted hits for every denylist-surviving symbol
// match in text.
func (s *Service) extractSymbols(text string, weight float64, hits map[string]float64) {
	for _, match := range symbolRegex.FindAllStringSubmatch(text, -1) {
		symbol := match[1]
		if s.isNoise(symbol) {
			continue
		}
		hits[symbol] += weight
	}
}

// runTranscriptSource scans configured channels for recent videos, fetches
// transcripts, and asks the LLM for symbols mentioned by name or ticker.
func (s *Service) runTranscriptSource(ctx context.Context, runID string) ([]*models.ScoredTicker, error) {
	if len(s.config.Channels) == 0 {
		return nil, nil
	}

	lookback := time.Duration(s.config.LookbackHours) * time.Hour
	if lookback == 0 {
		lookback = 24 * time.Hour
	}
	since := time.Now().UTC().Add(-lookback)

	trust := s.config.ChannelTrust
	if trust == 0 {
		trust = 1.0
	}

	scores := make(map[string]*models.ScoredTicker)
	now := time.Now().UTC()
	var lastErr error

	for _, channel := range s.config.Channels {
		videos, err := s.transcripts.SearchChannel(ctx, channel, since)
		if err != nil {
			lastErr = err
			s.logger.Warn().Err(err).Str("channel", channel).Msg("Channel search failed")
			continue
		}

		for _, video := range videos {
			text, err := s.transcripts.FetchTranscript(ctx, video.VideoID)
			if err != nil {
				s.logger.Debug().Err(err).Str("video_id", video.VideoID).Msg("Transcript fetch failed")
				continue
			}

			mentions, err := s.llmExtractSymbols(ctx, video.Title, text)
			if err != nil {
				s.logger.Warn().Err(err).Str("video_id", video.VideoID).Msg("Symbol extraction failed")
				continue
			}

			for symbol, count := range mentions {
				if s.isNoise(symbol) {
					continue
				}
				score := trust * float64(count)
				st, ok := scores[symbol]
				if !ok {
					st = &models.ScoredTicker{
						Symbol:       symbol,
						SourceScores: map[string]float64{},
						FirstSeen:    now,
						LastSeen:     now,
						Sources:      []string{models.SourceTranscript},
					}
					scores[symbol] = st
				}
				st.SourceScores[models.SourceTranscript] += score
				st.TotalScore += score
				st.Mentions += count
				if len(st.Contexts) < 3 {
					st.Contexts = append(st.Contexts, video.Title)
				}
			}
		}
	}

	if len(scores) == 0 && lastErr != nil {
		return nil, fmt.Errorf("no transcripts processed: %w", lastErr)
	}
	return s.validateCandidates(ctx, runID, scores), nil
}

// llmExtractSymbols asks the LLM for ticker symbols mentioned in a
// transcript, by symbol or company name, with mention counts.
func (s *Service) llmExtractSymbols(ctx context.Context, title, transcript string) (map[string]int, error) {
	system := "You extract US stock tickers from video transcripts. Companies may be mentioned by name or ticker. Reply with a JSON object mapping ticker symbol to the number of times the company is discussed. Only include real public companies."

	user := fmt.Sprintf("Title: %s\n\nTranscript:\n%s", title, transcript)
	reply, err := s.llm.Chat(ctx, system, user, interfaces.ChatOptions{ExpectJSON: true})
	if err != nil {
		return nil, err
	}

	var mentions map[string]int
	if err := json.Unmarshal([]byte(reply.Content), &mentions); err != nil {
		return nil, fmt.Errorf("unparseable symbol extraction reply: %w", err)
	}

	cleaned := make(map[string]int, len(mentions))
	for symbol, count := range mentions {
		symbol = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(symbol), "$"))
		if len(symbol) < 1 || len(symbol) > 5 || count <= 0 {
			continue
		}
		cleaned[symbol] += count
	}
	return cleaned, nil
}

// validateCandidates keeps only candidates that pass ticker validation.
func (s *Service) validateCandidates(ctx context.Context, runID string, scores map[string]*models.ScoredTicker) []*models.ScoredTicker {
	var out []*models.ScoredTicker
	for symbol, st := range scores {
		ok, err := s.collector.ValidateTicker(ctx, symbol)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Ticker validation errored")
			continue
		}
		if !ok {
			s.logger.Debug().Str("symbol", symbol).Msg("Ticker rejected by validation")
			continue
		}
		s.events.Log(ctx, &models.PipelineEvent{
			RunID: runID, Phase: models.PhaseDiscovery, EventType: "ticker_discovered",
			Symbol: symbol, Detail: fmt.Sprintf("score=%.1f", st.TotalScore),
			Status: models.EventStatusSuccess,
		})
		out = append(out, st)
	}
	return out
}
