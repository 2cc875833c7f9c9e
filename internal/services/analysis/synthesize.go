package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
)

// defaultTokenBudget bounds the synthesis input when no context size is
// configured.
const defaultTokenBudget = 32768

// SynthesizeDossier is Layer 4: one LLM call combining scorecard, QA
// pairs, and a compact portfolio context. Over-budget inputs shed QA
// pairs in ascending confidence order before the call.
func (s *Service) SynthesizeDossier(ctx context.Context, runID string, card *models.QuantScorecard, pairs []models.QAPair) (*models.TickerDossier, error) {
	cardJSON, err := json.Marshal(card)
	if err != nil {
		return nil, fmt.Errorf("failed to render scorecard: %w", err)
	}

	portfolioContext := s.portfolioContext(ctx)

	budget := s.llmCfg.ContextSize
	if budget <= 0 {
		budget = defaultTokenBudget
	}

	kept := make([]models.QAPair, len(pairs))
	copy(kept, pairs)
	user := buildSynthesisPrompt(cardJSON, kept, portfolioContext)

	// Shed lowest-confidence pairs until the prompt fits
	for tokenEstimate(user) > budget && len(kept) > 0 {
		kept = dropLowestConfidence(kept)
		user = buildSynthesisPrompt(cardJSON, kept, portfolioContext)
	}
	if tokenEstimate(user) > budget {
		return nil, fmt.Errorf("synthesis input exceeds token budget even with no QA pairs")
	}

	system := s.strategy + `

Produce your verdict as JSON with fields: "executive_summary" (3-5 sentences), "bull_case" (2-3 sentences), "bear_case" (2-3 sentences), "key_catalysts" (array, at most 5), "conviction_score" (0.0-1.0), "signal_summary" (one sentence).`

	reply, err := s.llm.Chat(ctx, system, user, interfaces.ChatOptions{
		Model:      s.llmCfg.Model,
		ExpectJSON: true,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ExecutiveSummary string   `json:"executive_summary"`
		BullCase         string   `json:"bull_case"`
		BearCase         string   `json:"bear_case"`
		KeyCatalysts     []string `json:"key_catalysts"`
		ConvictionScore  float64  `json:"conviction_score"`
		SignalSummary    string   `json:"signal_summary"`
	}
	if err := json.Unmarshal([]byte(reply.Content), &parsed); err != nil {
		return nil, fmt.Errorf("unparseable synthesis reply: %w", err)
	}
	if parsed.ExecutiveSummary == "" {
		return nil, fmt.Errorf("synthesis reply missing executive summary")
	}

	conviction := parsed.ConvictionScore
	if conviction < 0 {
		conviction = 0
	}
	if conviction > 1 {
		conviction = 1
	}
	if len(parsed.KeyCatalysts) > 5 {
		parsed.KeyCatalysts = parsed.KeyCatalysts[:5]
	}

	dossier := &models.TickerDossier{
		Symbol:           card.Symbol,
		GeneratedAt:      time.Now().UTC(),
		Scorecard:        card,
		QAPairs:          pairs,
		ExecutiveSummary: parsed.ExecutiveSummary,
		BullCase:         parsed.BullCase,
		BearCase:         parsed.BearCase,
		KeyCatalysts:     parsed.KeyCatalysts,
		ConvictionScore:  conviction,
		SignalSummary:    parsed.SignalSummary,
		TotalTokens:      reply.TokensIn + reply.TokensOut,
	}

	if err := s.storage.DossierStore().SaveDossier(ctx, dossier); err != nil {
		return nil, fmt.Errorf("failed to persist dossier: %w", err)
	}

	s.logger.Info().Str("symbol", card.Symbol).Float64("conviction", conviction).
		Int("version", dossier.Version).Msg("Dossier synthesized")
	return dossier, nil
}

// portfolioContext renders cash and open positions in a few lines.
func (s *Service) portfolioContext(ctx context.Context) string {
	var sb strings.Builder

	if state, err := s.storage.PortfolioStore().GetState(ctx); err == nil {
		fmt.Fprintf(&sb, "Cash: $%.2f. Realized P&L: $%.2f.\n", state.Cash, state.RealizedPnL)
	}
	if positions, err := s.storage.PortfolioStore().ListPositions(ctx); err == nil && len(positions) > 0 {
		sb.WriteString("Open positions: ")
		for i, p := range positions {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s %d @ $%.2f", p.Symbol, p.Qty, p.AvgEntryPrice)
		}
		sb.WriteString(".\n")
	}
	if sb.Len() == 0 {
		return "No portfolio data available.\n"
	}
	return sb.String()
}

func buildSynthesisPrompt(cardJSON []byte, pairs []models.QAPair, portfolioContext string) string {
	var sb strings.Builder
	sb.WriteString("Quantitative scorecard:\n")
	sb.Write(cardJSON)
	sb.WriteString("\n\nResearch Q&A:\n")
	for i, pair := range pairs {
		fmt.Fprintf(&sb, "%d. Q: %s\n   A (%s, confidence %s): %s\n", i+1, pair.Question, pair.Source, pair.Confidence, pair.Answer)
	}
	sb.WriteString("\nPortfolio context:\n")
	sb.WriteString(portfolioContext)
	return sb.String()
}

// dropLowestConfidence removes one pair: the lowest-confidence one,
// breaking ties on later position.
func dropLowestConfidence(pairs []models.QAPair) []models.QAPair {
	if len(pairs) == 0 {
		return pairs
	}
	rank := map[string]int{
		models.ConfidenceLow:    0,
		models.ConfidenceMedium: 1,
		models.ConfidenceHigh:   2,
	}

	indexes := make([]int, len(pairs))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		ra, rb := rank[pairs[indexes[a]].Confidence], rank[pairs[indexes[b]].Confidence]
		if ra != rb {
			return ra < rb
		}
		return indexes[a] > indexes[b]
	})

	drop := indexes[0]
	out := make([]models.QAPair, 0, len(pairs)-1)
	for i, p := range pairs {
		if i == drop {
			continue
		}
		out = append(out, p)
	}
	return out
}
