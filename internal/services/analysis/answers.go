package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
	"github.com/bobmcallan/argus/internal/rag"
)

const (
	newsRetrievalLimit       = 50
	transcriptRetrievalLimit = 10
	technicalsRetrievalLimit = 20
)

// AnswerQuestions is Layer 3: per question, route to the stored source,
// chunk and rank the text, and extract an answer with one LLM call.
// Always returns exactly as many QAPairs as questions, in input order.
func (s *Service) AnswerQuestions(ctx context.Context, symbol string, questions []models.Question) ([]models.QAPair, error) {
	pairs := make([]models.QAPair, 0, len(questions))

	for _, question := range questions {
		texts, err := s.retrieve(ctx, symbol, question.TargetSource)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Str("source", question.TargetSource).
				Msg("Retrieval failed")
		}

		var chunks []string
		for _, text := range texts {
			chunks = append(chunks, rag.Chunk(text, rag.DefaultChunkSize, rag.DefaultChunkOverlap)...)
		}
		ranked := rag.Rank(question.Text, chunks, rag.DefaultTopK)

		if len(ranked) == 0 {
			pairs = append(pairs, models.QAPair{
				Question:   question.Text,
				Answer:     "no data available",
				Source:     question.TargetSource,
				Confidence: models.ConfidenceLow,
			})
			continue
		}

		pair, err := s.extractAnswer(ctx, question, ranked)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Answer extraction failed")
			pair = models.QAPair{
				Question:   question.Text,
				Answer:     "no data available",
				Source:     question.TargetSource,
				Confidence: models.ConfidenceLow,
			}
		}
		pairs = append(pairs, pair)
	}

	return pairs, nil
}

// retrieve loads the raw texts for one target source.
func (s *Service) retrieve(ctx context.Context, symbol, source string) ([]string, error) {
	market := s.storage.MarketStore()

	switch source {
	case models.TargetNews:
		articles, err := market.GetNews(ctx, symbol, newsRetrievalLimit)
		if err != nil {
			return nil, err
		}
		texts := make([]string, 0, len(articles))
		for _, a := range articles {
			texts = append(texts, a.Title+". "+a.Summary)
		}
		return texts, nil

	case models.TargetTranscripts:
		transcripts, err := market.GetTranscripts(ctx, symbol, transcriptRetrievalLimit)
		if err != nil {
			return nil, err
		}
		texts := make([]string, 0, len(transcripts))
		for _, t := range transcripts {
			texts = append(texts, t.Title+". "+t.Text)
		}
		return texts, nil

	case models.TargetFundamentals:
		var texts []string
		if f, err := market.GetFundamentals(ctx, symbol); err == nil {
			if b, err := json.Marshal(f); err == nil {
				texts = append(texts, string(b))
			}
		}
		if rows, err := market.GetFinancials(ctx, symbol); err == nil && len(rows) > 0 {
			if b, err := json.Marshal(rows); err == nil {
				texts = append(texts, string(b))
			}
		}
		if events, err := market.GetEarnings(ctx, symbol); err == nil && len(events) > 0 {
			if b, err := json.Marshal(events); err == nil {
				texts = append(texts, string(b))
			}
		}
		return texts, nil

	case models.TargetTechnicals:
		rows, err := market.GetTechnicals(ctx, symbol, technicalsRetrievalLimit)
		if err != nil {
			return nil, err
		}
		texts := make([]string, 0, len(rows))
		for _, r := range rows {
			if b, err := json.Marshal(r); err == nil {
				texts = append(texts, string(b))
			}
		}
		return texts, nil

	case models.TargetInsider:
		summary, err := market.GetInsider(ctx, symbol)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(summary)
		if err != nil {
			return nil, err
		}
		return []string{string(b)}, nil

	default:
		return nil, fmt.Errorf("unknown target source %q", source)
	}
}

// extractAnswer runs the per-question LLM call over the selected chunks.
func (s *Service) extractAnswer(ctx context.Context, question models.Question, ranked []rag.RankedChunk) (models.QAPair, error) {
	var sb strings.Builder
	for i, chunk := range ranked {
		fmt.Fprintf(&sb, "--- Excerpt %d ---\n%s\n\n", i+1, chunk.Text)
	}
	fmt.Fprintf(&sb, "Question: %s", question.Text)

	system := `You answer research questions strictly from the provided excerpts. If they do not contain the answer, say so. Reply as JSON: {"answer": "...", "confidence": "high|medium|low"}. Never use outside knowledge.`

	reply, err := s.llm.Chat(ctx, system, sb.String(), interfaces.ChatOptions{
		Model:      s.llmCfg.Model,
		ExpectJSON: true,
	})
	if err != nil {
		return models.QAPair{}, err
	}

	var parsed struct {
		Answer     string `json:"answer"`
		Confidence string `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(reply.Content), &parsed); err != nil {
		return models.QAPair{}, fmt.Errorf("unparseable answer reply: %w", err)
	}
	if parsed.Answer == "" {
		return models.QAPair{}, fmt.Errorf("empty answer")
	}

	confidence := strings.ToLower(parsed.Confidence)
	switch confidence {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
	default:
		confidence = models.ConfidenceLow
	}

	return models.QAPair{
		Question:   question.Text,
		Answer:     parsed.Answer,
		Source:     question.TargetSource,
		Confidence: confidence,
	}, nil
}

// tokenEstimate approximates token count from text length. Four bytes per
// token is close enough for budget guarding.
func tokenEstimate(text string) int {
	return len(text) / 4
}
