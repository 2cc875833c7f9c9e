package quant

import (
	"time"

	"github.com/bobmcallan/argus/internal/models"
)

// ScorecardInputs carries everything the scorecard builder reads. Nil or
// empty members produce null metrics plus a missing_input flag instead of
// an error.
type ScorecardInputs struct {
	Candles      []models.Candle // newest first
	Fundamentals *models.Fundamentals
	Financials   []models.FinancialRow // newest first
	Balances     []models.BalanceRow   // newest first
	CashFlows    []models.CashFlowRow  // newest first
	Insider      *models.InsiderSummary
	RiskFreeRate float64
	Kelly        float64 // fraction of full Kelly, 0.5 default
	Now          time.Time
}

// Flag thresholds.
const (
	zScoreFlagLevel     = 2.0
	volumeSpikeLevel    = 95.0
	drawdownFlagLevel   = -0.20
	insiderSpikeUSD     = 500_000
	earningsSoonDays    = 5
	minCandlesForScores = 60
)

// BuildScorecard computes every metric and anomaly flag from the inputs.
// Zero LLM involvement; identical inputs yield identical output.
func BuildScorecard(symbol, runID string, in ScorecardInputs) *models.QuantScorecard {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	riskFree := in.RiskFreeRate
	if riskFree == 0 {
		riskFree = DefaultRiskFreeRate
	}
	kelly := in.Kelly
	if kelly == 0 {
		kelly = 0.5
	}

	card := &models.QuantScorecard{
		Symbol:      symbol,
		RunID:       runID,
		GeneratedAt: now,
		Flags:       []string{},
	}

	if len(in.Candles) >= minCandlesForScores {
		candles := in.Candles
		returns := DailyReturns(candles)

		card.LastClose = candles[0].Close
		card.LastVolume = candles[0].Volume

		card.ZScore20d = ptr(ZScore(candles, 20))
		card.ZScore20dRobust = ptr(RobustZScore(candles, 20))
		card.BollingerPctB = ptr(BollingerPctB(candles, 20, 2))
		card.PercentilePrice = ptr(PercentileRankPrice(candles, 252))
		card.PercentileVolume = ptr(PercentileRankVolume(candles, 252))
		card.Sharpe = ptr(Sharpe(returns, riskFree))
		card.Sortino = ptr(Sortino(returns, riskFree))
		card.Calmar = ptr(Calmar(candles))
		card.Omega = ptr(Omega(returns, 0))
		card.KellyFraction = ptr(KellyFraction(returns, kelly))
		card.VaR95 = ptr(VaR95(returns))
		card.CVaR95 = ptr(CVaR95(returns))
		card.MaxDrawdown = ptr(MaxDrawdown(candles))
		card.Hurst = ptr(Hurst(candles))
		card.MeanReversion = ptr(MeanReversionScore(candles))
		card.VWAPDeviation = ptr(VWAPDeviation(candles, 20))
		if len(candles) >= 252 {
			card.Momentum12m1m = ptr(Momentum12m1m(candles))
		}
	} else {
		card.Flags = append(card.Flags, models.FlagMissingInput)
		if len(in.Candles) > 0 {
			card.LastClose = in.Candles[0].Close
			card.LastVolume = in.Candles[0].Volume
		}
	}

	if in.Fundamentals != nil {
		card.EarningsYieldGap = ptr(EarningsYieldGap(in.Fundamentals.PE, riskFree))
		if in.Fundamentals.NextEarningsDate != "" {
			if next, err := time.Parse("2006-01-02", in.Fundamentals.NextEarningsDate); err == nil {
				days := int(next.Sub(now).Hours() / 24)
				if days >= 0 {
					card.DaysToEarnings = &days
				}
			}
		}
	} else if !card.HasFlag(models.FlagMissingInput) {
		card.Flags = append(card.Flags, models.FlagMissingInput)
	}

	if len(in.Balances) > 0 && len(in.Financials) > 0 {
		marketCap := 0.0
		if in.Fundamentals != nil {
			marketCap = in.Fundamentals.MarketCap
		}
		card.AltmanZ = ptr(AltmanZ(&in.Balances[0], &in.Financials[0], marketCap))
		f := PiotroskiF(in.Financials, in.Balances, in.CashFlows)
		card.PiotroskiF = &f
	}

	if in.Insider != nil {
		card.InsiderNet90d = ptr(in.Insider.NetValueUSD)
	}

	card.Flags = append(card.Flags, anomalyFlags(card)...)
	return card
}

// anomalyFlags derives the deterministic flag set from computed metrics.
func anomalyFlags(card *models.QuantScorecard) []string {
	var flags []string

	if card.ZScore20d != nil && abs(*card.ZScore20d) > zScoreFlagLevel {
		flags = append(flags, models.FlagZScoreHigh)
	}
	if card.BollingerPctB != nil {
		if *card.BollingerPctB > 1 {
			flags = append(flags, models.FlagPriceAboveUpperBand)
		} else if *card.BollingerPctB < 0 {
			flags = append(flags, models.FlagPriceBelowLowerBand)
		}
	}
	if card.PercentileVolume != nil && *card.PercentileVolume > volumeSpikeLevel {
		flags = append(flags, models.FlagVolumeSpike95th)
	}
	if card.MaxDrawdown != nil && *card.MaxDrawdown < drawdownFlagLevel {
		flags = append(flags, models.FlagDrawdownExceeds20)
	}
	if card.Sortino != nil && *card.Sortino < 0 {
		flags = append(flags, models.FlagNegativeSortino)
	}
	if card.InsiderNet90d != nil {
		if *card.InsiderNet90d > insiderSpikeUSD {
			flags = append(flags, models.FlagInsiderBuyingSpike)
		} else if *card.InsiderNet90d < -insiderSpikeUSD {
			flags = append(flags, models.FlagInsiderSellingSpike)
		}
	}
	if card.DaysToEarnings != nil && *card.DaysToEarnings <= earningsSoonDays {
		flags = append(flags, models.FlagEarningsSoon)
	}

	return flags
}

func ptr(v float64) *float64 {
	return &v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
