package quant

import (
	"math"
	"sort"

	"github.com/bobmcallan/argus/internal/models"
)

const (
	tradingDaysPerYear = 252

	// DefaultRiskFreeRate is the annualized rate used by Sharpe, Sortino
	// and the earnings-yield gap.
	DefaultRiskFreeRate = 0.045
)

// DailyReturns computes simple daily returns, newest first.
func DailyReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(candles)-1)
	for i := 0; i < len(candles)-1; i++ {
		prev := candles[i+1].Close
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (candles[i].Close-prev)/prev)
	}
	return returns
}

// Sharpe calculates the annualized Sharpe ratio of daily returns.
func Sharpe(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := meanStd(returns)
	if std == 0 {
		return 0
	}
	dailyRF := riskFreeRate / tradingDaysPerYear
	return (mean - dailyRF) / std * math.Sqrt(tradingDaysPerYear)
}

// Sortino calculates the annualized Sortino ratio, penalizing only
// downside deviation.
func Sortino(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	dailyRF := riskFreeRate / tradingDaysPerYear

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	downside := 0.0
	for _, r := range returns {
		if r < dailyRF {
			d := r - dailyRF
			downside += d * d
		}
	}
	downside = math.Sqrt(downside / float64(len(returns)))
	if downside == 0 {
		return 0
	}
	return (mean - dailyRF) / downside * math.Sqrt(tradingDaysPerYear)
}

// Calmar calculates annualized return over max drawdown magnitude.
func Calmar(candles []models.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	first := candles[len(candles)-1].Close
	last := candles[0].Close
	if first == 0 {
		return 0
	}

	years := float64(len(candles)) / tradingDaysPerYear
	if years == 0 {
		return 0
	}
	annualized := math.Pow(last/first, 1/years) - 1

	dd := MaxDrawdown(candles)
	if dd == 0 {
		return 0
	}
	return annualized / math.Abs(dd)
}

// Omega calculates the Omega ratio against the given daily threshold.
func Omega(returns []float64, threshold float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var gains, losses float64
	for _, r := range returns {
		if r > threshold {
			gains += r - threshold
		} else {
			losses += threshold - r
		}
	}
	if losses == 0 {
		return 0
	}
	return gains / losses
}

// KellyFraction calculates the fractional Kelly criterion from win rate
// and win/loss magnitudes. fraction scales the full Kelly (0.5 = half).
func KellyFraction(returns []float64, fraction float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var wins, losses, winSum, lossSum float64
	for _, r := range returns {
		if r > 0 {
			wins++
			winSum += r
		} else if r < 0 {
			losses++
			lossSum -= r
		}
	}
	if wins == 0 || losses == 0 || lossSum == 0 {
		return 0
	}

	winRate := wins / (wins + losses)
	avgWin := winSum / wins
	avgLoss := lossSum / losses
	if avgLoss == 0 {
		return 0
	}

	b := avgWin / avgLoss
	kelly := winRate - (1-winRate)/b
	return kelly * fraction
}

// VaR95 returns the 95th percentile historical value-at-risk of daily
// returns, as a negative number.
func VaR95(returns []float64) float64 {
	return historicalVaR(returns, 0.95)
}

// CVaR95 returns the expected shortfall beyond the 95% VaR.
func CVaR95(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	cutoff := historicalVaR(returns, 0.95)

	var sum float64
	var count int
	for _, r := range returns {
		if r <= cutoff {
			sum += r
			count++
		}
	}
	if count == 0 {
		return cutoff
	}
	return sum / float64(count)
}

func historicalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)) * (1 - confidence))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// MaxDrawdown returns the worst peak-to-trough decline as a negative
// fraction.
func MaxDrawdown(candles []models.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}

	// Walk oldest to newest
	peak := candles[len(candles)-1].Close
	worst := 0.0
	for i := len(candles) - 1; i >= 0; i-- {
		c := candles[i].Close
		if c > peak {
			peak = c
		}
		if peak > 0 {
			dd := (c - peak) / peak
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// Momentum12m1m is the 12-month return skipping the most recent month,
// per Jegadeesh-Titman.
func Momentum12m1m(candles []models.Candle) float64 {
	skip := 21       // one trading month
	lookback := 252  // one trading year
	if len(candles) < lookback {
		return 0
	}
	start := candles[lookback-1].Close
	end := candles[skip].Close
	if start == 0 {
		return 0
	}
	return (end - start) / start
}

// Hurst estimates the Hurst exponent by rescaled-range analysis. Values
// above 0.5 indicate trending, below 0.5 mean reversion.
func Hurst(candles []models.Candle) float64 {
	returns := DailyReturns(candles)
	if len(returns) < 64 {
		return 0.5
	}

	var logRS, logN []float64
	for _, n := range []int{16, 32, 64, 128, 256} {
		if n > len(returns) {
			break
		}
		rs := rescaledRange(returns[:n])
		if rs <= 0 {
			continue
		}
		logRS = append(logRS, math.Log(rs))
		logN = append(logN, math.Log(float64(n)))
	}
	if len(logRS) < 2 {
		return 0.5
	}
	return slope(logN, logRS)
}

func rescaledRange(series []float64) float64 {
	n := len(series)
	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(n)

	// Cumulative deviation from the mean
	var cum, minC, maxC, variance float64
	for _, v := range series {
		cum += v - mean
		if cum < minC {
			minC = cum
		}
		if cum > maxC {
			maxC = cum
		}
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(n))
	if std == 0 {
		return 0
	}
	return (maxC - minC) / std
}

func slope(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// EarningsYieldGap is the earnings yield (1/PE) minus the risk-free rate.
func EarningsYieldGap(pe, riskFreeRate float64) float64 {
	if pe <= 0 {
		return 0
	}
	return 1/pe - riskFreeRate
}

// AltmanZ calculates the Altman Z-score from the latest balance sheet,
// income statement, and market cap. Above 3 is safe, below 1.8 distressed.
func AltmanZ(balance *models.BalanceRow, income *models.FinancialRow, marketCap float64) float64 {
	if balance == nil || income == nil || balance.TotalAssets == 0 {
		return 0
	}
	ta := balance.TotalAssets

	a := balance.WorkingCapital / ta
	b := balance.RetainedEarnings / ta
	c := income.OperatingIncome / ta
	d := 0.0
	if balance.TotalLiabilities > 0 {
		d = marketCap / balance.TotalLiabilities
	}
	e := income.Revenue / ta

	return 1.2*a + 1.4*b + 3.3*c + 0.6*d + 1.0*e
}

// PiotroskiF calculates the Piotroski F-score (0-9) from two consecutive
// fiscal years of statements.
func PiotroskiF(financials []models.FinancialRow, balances []models.BalanceRow, cashflows []models.CashFlowRow) int {
	if len(financials) < 2 || len(balances) < 2 || len(cashflows) < 1 {
		return 0
	}
	cur, prev := financials[0], financials[1]
	curB, prevB := balances[0], balances[1]
	curCF := cashflows[0]

	score := 0

	// Profitability
	if cur.NetIncome > 0 {
		score++
	}
	if curCF.OperatingCF > 0 {
		score++
	}
	if roa(cur, curB) > roa(prev, prevB) {
		score++
	}
	if curCF.OperatingCF > cur.NetIncome {
		score++
	}

	// Leverage and liquidity
	if leverage(curB) < leverage(prevB) {
		score++
	}
	if currentRatio(curB) > currentRatio(prevB) {
		score++
	}

	// Operating efficiency
	if margin(cur) > margin(prev) {
		score++
	}
	if turnover(cur, curB) > turnover(prev, prevB) {
		score++
	}

	// No share dilution signal requires shares history; grant the point
	// only when buybacks exceeded issuance
	if curCF.StockBuybacks < 0 {
		score++
	}

	return score
}

func roa(f models.FinancialRow, b models.BalanceRow) float64 {
	if b.TotalAssets == 0 {
		return 0
	}
	return f.NetIncome / b.TotalAssets
}

func leverage(b models.BalanceRow) float64 {
	if b.TotalAssets == 0 {
		return 0
	}
	return b.LongTermDebt / b.TotalAssets
}

func currentRatio(b models.BalanceRow) float64 {
	if b.CurrentLiabilities == 0 {
		return 0
	}
	return b.CurrentAssets / b.CurrentLiabilities
}

func margin(f models.FinancialRow) float64 {
	if f.Revenue == 0 {
		return 0
	}
	return f.GrossProfit / f.Revenue
}

func turnover(f models.FinancialRow, b models.BalanceRow) float64 {
	if b.TotalAssets == 0 {
		return 0
	}
	return f.Revenue / b.TotalAssets
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}
