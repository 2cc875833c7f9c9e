// Package collector validates tickers and harvests their market data.
package collector

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
)

// validationTTL bounds how long a cached ticker validation verdict lives.
const validationTTL = 24 * time.Hour

// Compile-time interface check
var _ interfaces.CollectorService = (*Service)(nil)

// Service implements CollectorService.
type Service struct {
	storage    interfaces.StorageManager
	marketData interfaces.MarketDataClient
	transcripts interfaces.TranscriptClient
	llm        interfaces.LLMClient
	events     interfaces.EventLogService
	config     *common.DiscoveryConfig
	logger     *common.Logger

	mu    sync.Mutex
	cache map[string]validationEntry
}

type validationEntry struct {
	valid   bool
	checked time.Time
}

// NewService creates a new collector service.
func NewService(
	storage interfaces.StorageManager,
	marketData interfaces.MarketDataClient,
	transcripts interfaces.TranscriptClient,
	llm interfaces.LLMClient,
	events interfaces.EventLogService,
	config *common.DiscoveryConfig,
	logger *common.Logger,
) *Service {
	return &Service{
		storage:     storage,
		marketData:  marketData,
		transcripts: transcripts,
		llm:         llm,
		events:      events,
		config:      config,
		logger:      logger,
		cache:       make(map[string]validationEntry),
	}
}

// ValidateTicker runs the three-layer check: denylist, market-data probe,
// LLM confirmation. Verdicts are cached.
func (s *Service) ValidateTicker(ctx context.Context, symbol string) (bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return false, nil
	}

	s.mu.Lock()
	if entry, ok := s.cache[symbol]; ok && time.Since(entry.checked) < validationTTL {
		s.mu.Unlock()
		return entry.valid, nil
	}
	s.mu.Unlock()

	valid, err := s.validate(ctx, symbol)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.cache[symbol] = validationEntry{valid: valid, checked: time.Now()}
	s.mu.Unlock()
	return valid, nil
}

func (s *Service) validate(ctx context.Context, symbol string) (bool, error) {
	// Layer 1: denylist
	if isNoiseWord(symbol, s.config.ExtraNoiseWords) {
		s.logger.Debug().Str("symbol", symbol).Msg("Rejected by denylist")
		return false, nil
	}

	// Layer 2: market data probe
	tradable, err := s.marketData.Probe(ctx, symbol)
	if err != nil {
		return false, err
	}
	if !tradable {
		s.logger.Debug().Str("symbol", symbol).Msg("Rejected by market data probe")
		return false, nil
	}

	// Layer 3: LLM confirmation. An LLM failure does not fail validation;
	// the probe already confirmed tradability.
	confirmed, err := s.llmConfirm(ctx, symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("LLM confirmation failed, accepting probe result")
		return true, nil
	}
	return confirmed, nil
}

func (s *Service) llmConfirm(ctx context.Context, symbol string) (bool, error) {
	system := "You verify US stock ticker symbols. Answer with exactly YES or NO."
	user := "Is " + symbol + " a legitimate publicly traded equity ticker symbol?"

	reply, err := s.llm.Chat(ctx, system, user, interfaces.ChatOptions{Temperature: 0.1})
	if err != nil {
		return false, err
	}
	answer := strings.ToUpper(strings.TrimSpace(reply.Content))
	return strings.HasPrefix(answer, "YES"), nil
}

func isNoiseWord(symbol string, extra []string) bool {
	if staticNoiseWords[symbol] {
		return true
	}
	for _, w := range extra {
		if strings.EqualFold(w, symbol) {
			return true
		}
	}
	return false
}

// staticNoiseWords are uppercase tokens that pattern-match as tickers in
// social text but never are. Shared with discovery's extraction filter.
var staticNoiseWords = map[string]bool{
	"YOLO": true, "DD": true, "CEO": true, "CFO": true, "AI": true,
	"USA": true, "USD": true, "GDP": true, "ATH": true, "IPO": true,
	"ETF": true, "FOMO": true, "FUD": true, "EPS": true, "SEC": true,
	"FDA": true, "FED": true, "NYSE": true, "OTC": true, "WSB": true,
	"HOLD": true, "BUY": true, "SELL": true, "CALL": true, "PUT": true,
	"MOON": true, "TLDR": true, "EDIT": true, "NEWS": true, "LOL": true,
}
