package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
	"github.com/bobmcallan/argus/internal/quant"
)

// Collection step names, in report order.
const (
	StepPriceHistory = "price_history"
	StepFundamentals = "fundamentals"
	StepFinancials   = "financials"
	StepBalanceSheet = "balance_sheet"
	StepCashFlows    = "cash_flows"
	StepAnalyst      = "analyst"
	StepInsider      = "insider"
	StepEarnings     = "earnings"
	StepTechnicals   = "technicals"
	StepRisk         = "risk"
	StepNews         = "news"
	StepTranscripts  = "transcripts"
)

// priceHistoryYears is how much daily history the price step backfills.
const priceHistoryYears = 2

// CollectData runs all collection steps for one symbol. Fetch steps run in
// parallel; a failure in one never aborts the others. Derived steps
// (technicals, risk) run after the fetches they read from.
func (s *Service) CollectData(ctx context.Context, runID, symbol string) (interfaces.StepReport, error) {
	symbol = strings.ToUpper(symbol)
	report := make(interfaces.StepReport)

	status, err := s.storage.MarketStore().GetCollectionStatus(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection status: %w", err)
	}

	var mu sync.Mutex
	record := func(step string, rows int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report[step] = interfaces.StepResult{Status: interfaces.StepError, Error: err.Error()}
			s.logger.Warn().Err(err).Str("symbol", symbol).Str("step", step).Msg("Collection step failed")
			return
		}
		report[step] = interfaces.StepResult{Status: interfaces.StepOK, Rows: rows}
		if markErr := s.storage.MarketStore().MarkStepFresh(ctx, symbol, step, time.Now().UTC()); markErr != nil {
			s.logger.Warn().Err(markErr).Str("symbol", symbol).Str("step", step).Msg("Failed to mark step fresh")
		}
	}
	skip := func(step string) {
		mu.Lock()
		defer mu.Unlock()
		report[step] = interfaces.StepResult{Status: interfaces.StepSkipped}
	}

	type fetchStep struct {
		name string
		ttl  time.Duration
		run  func(context.Context) (int, error)
	}

	fetchSteps := []fetchStep{
		{StepPriceHistory, common.FreshnessPrices, func(ctx context.Context) (int, error) {
			from := time.Now().AddDate(-priceHistoryYears, 0, 0)
			candles, err := s.marketData.GetCandles(ctx, symbol, from, time.Time{})
			if err != nil {
				return 0, err
			}
			if err := s.storage.MarketStore().SavePriceHistory(ctx, symbol, candles); err != nil {
				return 0, err
			}
			return len(candles), nil
		}},
		{StepFundamentals, common.FreshnessFundamentals, func(ctx context.Context) (int, error) {
			f, err := s.marketData.GetFundamentals(ctx, symbol)
			if err != nil {
				return 0, err
			}
			return 1, s.storage.MarketStore().SaveFundamentals(ctx, f)
		}},
		{StepFinancials, common.FreshnessFinancials, func(ctx context.Context) (int, error) {
			rows, err := s.marketData.GetFinancials(ctx, symbol)
			if err != nil {
				return 0, err
			}
			return len(rows), s.storage.MarketStore().SaveFinancials(ctx, rows)
		}},
		{StepBalanceSheet, common.FreshnessFinancials, func(ctx context.Context) (int, error) {
			rows, err := s.marketData.GetBalanceSheet(ctx, symbol)
			if err != nil {
				return 0, err
			}
			return len(rows), s.storage.MarketStore().SaveBalanceSheet(ctx, rows)
		}},
		{StepCashFlows, common.FreshnessFinancials, func(ctx context.Context) (int, error) {
			rows, err := s.marketData.GetCashFlows(ctx, symbol)
			if err != nil {
				return 0, err
			}
			return len(rows), s.storage.MarketStore().SaveCashFlows(ctx, rows)
		}},
		{StepAnalyst, common.FreshnessAnalyst, func(ctx context.Context) (int, error) {
			snap, err := s.marketData.GetAnalyst(ctx, symbol)
			if err != nil {
				return 0, err
			}
			return 1, s.storage.MarketStore().SaveAnalyst(ctx, snap)
		}},
		{StepInsider, common.FreshnessInsider, func(ctx context.Context) (int, error) {
			summary, err := s.marketData.GetInsider(ctx, symbol)
			if err != nil {
				return 0, err
			}
			return 1, s.storage.MarketStore().SaveInsider(ctx, summary)
		}},
		{StepEarnings, common.FreshnessEarnings, func(ctx context.Context) (int, error) {
			events, err := s.marketData.GetEarnings(ctx, symbol)
			if err != nil {
				return 0, err
			}
			return len(events), s.storage.MarketStore().SaveEarnings(ctx, events)
		}},
		{StepNews, common.FreshnessNews, func(ctx context.Context) (int, error) {
			articles, err := s.marketData.GetNews(ctx, symbol, 50)
			if err != nil {
				return 0, err
			}
			return s.storage.MarketStore().SaveNews(ctx, articles)
		}},
	}

	var wg sync.WaitGroup
	for _, step := range fetchSteps {
		if common.IsFresh(status.Steps[step.name], step.ttl) {
			skip(step.name)
			continue
		}
		wg.Add(1)
		go func(st fetchStep) {
			defer wg.Done()
			rows, err := st.run(ctx)
			if err != nil {
				err = &common.CollectorError{Step: st.name, Symbol: symbol, Err: err}
			}
			record(st.name, rows, err)
		}(step)
	}
	wg.Wait()

	// Derived steps read the price history just stored
	s.collectDerived(ctx, symbol, status, report, record, skip)

	// Transcripts last: slowest fetch, least critical
	if common.IsFresh(status.Steps[StepTranscripts], common.FreshnessTranscripts) {
		skip(StepTranscripts)
	} else {
		rows, err := s.collectTranscripts(ctx, symbol)
		if err != nil {
			err = &common.CollectorError{Step: StepTranscripts, Symbol: symbol, Err: err}
		}
		record(StepTranscripts, rows, err)
	}

	if !report.CriticalOK() {
		s.events.Log(ctx, &models.PipelineEvent{
			RunID: runID, Phase: models.PhaseCollection, EventType: "collection_incomplete",
			Symbol: symbol, Detail: describeFailures(report), Status: models.EventStatusWarning,
		})
	} else {
		s.events.Log(ctx, &models.PipelineEvent{
			RunID: runID, Phase: models.PhaseCollection, EventType: "collection_completed",
			Symbol: symbol, Status: models.EventStatusSuccess,
		})
	}

	return report, nil
}

// collectDerived computes technicals and risk rows from stored data.
func (s *Service) collectDerived(
	ctx context.Context,
	symbol string,
	status *models.CollectionStatus,
	report interfaces.StepReport,
	record func(string, int, error),
	skip func(string),
) {
	techFresh := common.IsFresh(status.Steps[StepTechnicals], common.FreshnessTechnicals)
	riskFresh := common.IsFresh(status.Steps[StepRisk], common.FreshnessRisk)
	if techFresh {
		skip(StepTechnicals)
	}
	if riskFresh {
		skip(StepRisk)
	}
	if techFresh && riskFresh {
		return
	}

	candles, err := s.storage.MarketStore().GetPriceHistory(ctx, symbol, time.Time{}, time.Time{})
	if err != nil || len(candles) == 0 {
		if err == nil {
			err = fmt.Errorf("no price history available")
		}
		if !techFresh {
			record(StepTechnicals, 0, &common.CollectorError{Step: StepTechnicals, Symbol: symbol, Err: err})
		}
		if !riskFresh {
			record(StepRisk, 0, &common.CollectorError{Step: StepRisk, Symbol: symbol, Err: err})
		}
		return
	}

	now := time.Now().UTC()
	if !techFresh {
		row := quant.ComputeTechnicalRow(symbol, candles, now)
		err := s.storage.MarketStore().SaveTechnicals(ctx, row)
		if err != nil {
			err = &common.CollectorError{Step: StepTechnicals, Symbol: symbol, Err: err}
		}
		record(StepTechnicals, 1, err)
	}

	if !riskFresh {
		financials, _ := s.storage.MarketStore().GetFinancials(ctx, symbol)
		balances, _ := s.storage.MarketStore().GetBalanceSheet(ctx, symbol)
		cashflows, _ := s.storage.MarketStore().GetCashFlows(ctx, symbol)
		marketCap := 0.0
		if f, err := s.storage.MarketStore().GetFundamentals(ctx, symbol); err == nil {
			marketCap = f.MarketCap
		}

		row := quant.ComputeRiskRow(symbol, candles, financials, balances, cashflows, marketCap, now)
		err := s.storage.MarketStore().SaveRisk(ctx, row)
		if err != nil {
			err = &common.CollectorError{Step: StepRisk, Symbol: symbol, Err: err}
		}
		record(StepRisk, 1, err)
	}
}

// collectTranscripts pulls recent channel videos whose titles mention the
// symbol and stores their transcripts.
func (s *Service) collectTranscripts(ctx context.Context, symbol string) (int, error) {
	if len(s.config.Channels) == 0 {
		return 0, nil
	}
	since := time.Now().UTC().AddDate(0, 0, -7)

	inserted := 0
	var lastErr error
	for _, channel := range s.config.Channels {
		videos, err := s.transcripts.SearchChannel(ctx, channel, since)
		if err != nil {
			lastErr = err
			continue
		}
		for _, video := range videos {
			if !strings.Contains(strings.ToUpper(video.Title), symbol) {
				continue
			}
			text, err := s.transcripts.FetchTranscript(ctx, video.VideoID)
			if err != nil {
				s.logger.Debug().Err(err).Str("video_id", video.VideoID).Msg("Transcript fetch failed")
				continue
			}
			fresh, err := s.storage.MarketStore().SaveTranscript(ctx, &models.Transcript{
				Symbol:      symbol,
				VideoID:     video.VideoID,
				Title:       video.Title,
				Channel:     video.Channel,
				PublishedAt: video.PublishedAt,
				DurationSec: video.DurationSec,
				Text:        text,
				CollectedAt: time.Now().UTC(),
			})
			if err != nil {
				lastErr = err
				continue
			}
			if fresh {
				inserted++
			}
		}
	}
	if inserted == 0 && lastErr != nil {
		return 0, lastErr
	}
	return inserted, nil
}

func describeFailures(report interfaces.StepReport) string {
	var failed []string
	for step, result := range report {
		if result.Status == interfaces.StepError {
			failed = append(failed, step)
		}
	}
	if len(failed) == 0 {
		return "critical step missing"
	}
	return "failed steps: " + strings.Join(failed, ", ")
}
