package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
)

// questionCount is the exact number of Layer 2 questions.
const questionCount = 5

// minDistinctSources is how many different target sources the question
// set must cover together.
const minDistinctSources = 3

var validSources = map[string]bool{
	models.TargetNews:         true,
	models.TargetTranscripts:  true,
	models.TargetFundamentals: true,
	models.TargetTechnicals:   true,
	models.TargetInsider:      true,
}

// GenerateQuestions is Layer 2: one LLM call over the JSON scorecard,
// with a deterministic template fallback keyed by the anomaly flags.
func (s *Service) GenerateQuestions(ctx context.Context, card *models.QuantScorecard) ([]models.Question, error) {
	questions, llmErr := s.llmQuestions(ctx, card)
	if llmErr != nil {
		s.logger.Warn().Err(llmErr).Str("symbol", card.Symbol).Msg("Question LLM call failed, using templates")
	}

	questions = fillFromTemplates(questions, card)
	if len(questions) < questionCount {
		if llmErr != nil {
			return nil, fmt.Errorf("question generation produced %d questions: %w", len(questions), llmErr)
		}
		return nil, fmt.Errorf("question generation produced %d questions", len(questions))
	}

	questions = questions[:questionCount]
	ensureSourceSpread(questions)
	return questions, nil
}

func (s *Service) llmQuestions(ctx context.Context, card *models.QuantScorecard) ([]models.Question, error) {
	cardJSON, err := json.Marshal(card)
	if err != nil {
		return nil, err
	}

	system := fmt.Sprintf(
		"You are an equity research lead. Given a quantitative scorecard, produce exactly %d follow-up research questions as a JSON array. Each object has \"question\", \"target_source\" (one of news, transcripts, fundamentals, technicals, insider), and \"priority\" (high, medium, low). The questions must together cover at least %d distinct target sources.",
		questionCount, minDistinctSources)

	reply, err := s.llm.Chat(ctx, system, string(cardJSON), interfaces.ChatOptions{
		Model:      s.llmCfg.Model,
		ExpectJSON: true,
	})
	if err != nil {
		return nil, err
	}

	var questions []models.Question
	if err := json.Unmarshal([]byte(reply.Content), &questions); err != nil {
		return nil, fmt.Errorf("unparseable question reply: %w", err)
	}

	valid := questions[:0]
	for _, q := range questions {
		q.TargetSource = strings.ToLower(q.TargetSource)
		if q.Text == "" || !validSources[q.TargetSource] {
			continue
		}
		if q.Priority == "" {
			q.Priority = models.PriorityMedium
		}
		valid = append(valid, q)
	}
	return valid, nil
}

// fillFromTemplates tops up the question list from flag-keyed templates,
// then generic ones, until the required count is reached.
func fillFromTemplates(questions []models.Question, card *models.QuantScorecard) []models.Question {
	if len(questions) >= questionCount {
		return questions
	}

	date := card.GeneratedAt.Format("2006-01-02")
	var candidates []models.Question

	if card.HasFlag(models.FlagVolumeSpike95th) {
		candidates = append(candidates, models.Question{
			Text:         fmt.Sprintf("What event caused the unusual trading volume in %s around %s?", card.Symbol, date),
			TargetSource: models.TargetNews, Priority: models.PriorityHigh,
		})
	}
	if card.HasFlag(models.FlagZScoreHigh) || card.HasFlag(models.FlagPriceAboveUpperBand) || card.HasFlag(models.FlagPriceBelowLowerBand) {
		candidates = append(candidates, models.Question{
			Text:         fmt.Sprintf("What news or catalyst explains the sharp recent price move in %s?", card.Symbol),
			TargetSource: models.TargetNews, Priority: models.PriorityHigh,
		})
	}
	if card.HasFlag(models.FlagInsiderBuyingSpike) || card.HasFlag(models.FlagInsiderSellingSpike) {
		candidates = append(candidates, models.Question{
			Text:         fmt.Sprintf("Which insiders have been trading %s recently and at what scale?", card.Symbol),
			TargetSource: models.TargetInsider, Priority: models.PriorityHigh,
		})
	}
	if card.HasFlag(models.FlagEarningsSoon) {
		candidates = append(candidates, models.Question{
			Text:         fmt.Sprintf("What are the expectations going into the upcoming %s earnings report?", card.Symbol),
			TargetSource: models.TargetFundamentals, Priority: models.PriorityHigh,
		})
	}
	if card.HasFlag(models.FlagDrawdownExceeds20) || card.HasFlag(models.FlagNegativeSortino) {
		candidates = append(candidates, models.Question{
			Text:         fmt.Sprintf("What is driving the sustained weakness in %s and is it fundamental?", card.Symbol),
			TargetSource: models.TargetFundamentals, Priority: models.PriorityMedium,
		})
	}

	// Generic fillers ensure five questions regardless of flags
	candidates = append(candidates,
		models.Question{
			Text:         fmt.Sprintf("What are commentators and analysts currently saying about %s?", card.Symbol),
			TargetSource: models.TargetTranscripts, Priority: models.PriorityMedium,
		},
		models.Question{
			Text:         fmt.Sprintf("How do %s's valuation and growth metrics compare with its recent history?", card.Symbol),
			TargetSource: models.TargetFundamentals, Priority: models.PriorityMedium,
		},
		models.Question{
			Text:         fmt.Sprintf("What does the technical picture suggest about %s's current trend?", card.Symbol),
			TargetSource: models.TargetTechnicals, Priority: models.PriorityMedium,
		},
		models.Question{
			Text:         fmt.Sprintf("What recent news could affect %s over the next quarter?", card.Symbol),
			TargetSource: models.TargetNews, Priority: models.PriorityLow,
		},
		models.Question{
			Text:         fmt.Sprintf("Has recent insider activity in %s signaled a change of sentiment?", card.Symbol),
			TargetSource: models.TargetInsider, Priority: models.PriorityLow,
		},
	)

	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		seen[q.Text] = true
	}
	for _, c := range candidates {
		if len(questions) >= questionCount {
			break
		}
		if seen[c.Text] {
			continue
		}
		questions = append(questions, c)
		seen[c.Text] = true
	}
	return questions
}

// ensureSourceSpread rewrites trailing questions' targets when the set
// covers fewer than the required distinct sources.
func ensureSourceSpread(questions []models.Question) {
	distinct := make(map[string]bool)
	for _, q := range questions {
		distinct[q.TargetSource] = true
	}
	if len(distinct) >= minDistinctSources {
		return
	}

	for _, source := range []string{models.TargetNews, models.TargetFundamentals, models.TargetTechnicals, models.TargetTranscripts, models.TargetInsider} {
		if len(distinct) >= minDistinctSources {
			break
		}
		if distinct[source] {
			continue
		}
		// Retarget the last question using an over-represented source
		for i := len(questions) - 1; i >= 0; i-- {
			if countSource(questions, questions[i].TargetSource) > 1 {
				questions[i].TargetSource = source
				distinct[source] = true
				break
			}
		}
	}
}

func countSource(questions []models.Question, source string) int {
	n := 0
	for _, q := range questions {
		if q.TargetSource == source {
			n++
		}
	}
	return n
}
