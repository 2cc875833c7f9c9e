// Package analysis runs the four-layer deep analysis funnel: quant
// scorecard, question generation, retrieval-backed answers, and dossier
// synthesis.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
	"github.com/bobmcallan/argus/internal/quant"
)

// Compile-time interface check
var _ interfaces.AnalysisService = (*Service)(nil)

// Service implements AnalysisService.
type Service struct {
	storage  interfaces.StorageManager
	llm      interfaces.LLMClient
	events   interfaces.EventLogService
	risk     *common.RiskConfig
	llmCfg   *common.LLMConfig
	strategy string
	logger   *common.Logger
}

// NewService creates a new analysis service. strategy is the free-form
// strategist text given to the synthesis prompt.
func NewService(
	storage interfaces.StorageManager,
	llm interfaces.LLMClient,
	events interfaces.EventLogService,
	risk *common.RiskConfig,
	llmCfg *common.LLMConfig,
	strategy string,
	logger *common.Logger,
) *Service {
	return &Service{
		storage:  storage,
		llm:      llm,
		events:   events,
		risk:     risk,
		llmCfg:   llmCfg,
		strategy: strategy,
		logger:   logger,
	}
}

// Analyze runs layers 1-4 in order and persists the dossier.
func (s *Service) Analyze(ctx context.Context, runID, symbol string) (*models.TickerDossier, error) {
	started := time.Now()

	card, err := s.BuildScorecard(ctx, runID, symbol)
	if err != nil {
		return nil, s.layerFailed(ctx, runID, 1, symbol, err)
	}

	questions, err := s.GenerateQuestions(ctx, card)
	if err != nil {
		return nil, s.layerFailed(ctx, runID, 2, symbol, err)
	}

	pairs, err := s.AnswerQuestions(ctx, symbol, questions)
	if err != nil {
		return nil, s.layerFailed(ctx, runID, 3, symbol, err)
	}

	dossier, err := s.SynthesizeDossier(ctx, runID, card, pairs)
	if err != nil {
		return nil, s.layerFailed(ctx, runID, 4, symbol, err)
	}

	s.events.Log(ctx, &models.PipelineEvent{
		RunID: runID, Phase: models.PhaseAnalysis, EventType: "analysis_completed",
		Symbol: symbol,
		Detail: fmt.Sprintf("conviction=%.2f elapsed=%s", dossier.ConvictionScore, time.Since(started).Round(time.Second)),
		Status: models.EventStatusSuccess,
	})
	return dossier, nil
}

func (s *Service) layerFailed(ctx context.Context, runID string, layer int, symbol string, err error) error {
	lerr := &common.LayerError{Layer: layer, Symbol: symbol, Err: err}
	s.events.Log(ctx, &models.PipelineEvent{
		RunID: runID, Phase: models.PhaseAnalysis,
		EventType: fmt.Sprintf("layer%d_failed", layer),
		Symbol:    symbol, Detail: err.Error(), Status: models.EventStatusError,
	})
	s.logger.Error().Err(err).Str("symbol", symbol).Int("layer", layer).Msg("Analysis layer failed")
	return lerr
}

// BuildScorecard is Layer 1: pure math over stored data, no LLM.
func (s *Service) BuildScorecard(ctx context.Context, runID, symbol string) (*models.QuantScorecard, error) {
	market := s.storage.MarketStore()

	candles, err := market.GetPriceHistory(ctx, symbol, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load price history: %w", err)
	}

	inputs := quant.ScorecardInputs{
		Candles: candles,
		Kelly:   s.risk.KellyFraction,
	}
	if f, err := market.GetFundamentals(ctx, symbol); err == nil {
		inputs.Fundamentals = f
	}
	if rows, err := market.GetFinancials(ctx, symbol); err == nil {
		inputs.Financials = rows
	}
	if rows, err := market.GetBalanceSheet(ctx, symbol); err == nil {
		inputs.Balances = rows
	}
	if rows, err := market.GetCashFlows(ctx, symbol); err == nil {
		inputs.CashFlows = rows
	}
	if ins, err := market.GetInsider(ctx, symbol); err == nil {
		inputs.Insider = ins
	}

	card := quant.BuildScorecard(symbol, runID, inputs)
	if err := s.storage.DossierStore().SaveScorecard(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to persist scorecard: %w", err)
	}

	s.logger.Debug().Str("symbol", symbol).Strs("flags", card.Flags).Msg("Scorecard built")
	return card, nil
}
