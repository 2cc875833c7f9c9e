package quant

import (
	"time"

	"github.com/bobmcallan/argus/internal/models"
)

// ComputeTechnicalRow derives the standard indicator row for the most
// recent trading day.
func ComputeTechnicalRow(symbol string, candles []models.Candle, now time.Time) *models.TechnicalRow {
	if len(candles) == 0 {
		return nil
	}

	macd, signal, hist := MACD(candles, 12, 26, 9)
	upper, mid, lower := Bollinger(candles, 20, 2)
	stochK, stochD := Stochastic(candles, 14, 3)

	return &models.TechnicalRow{
		Symbol:       symbol,
		Date:         candles[0].Date.Format("2006-01-02"),
		SMA20:        SMA(candles, 20),
		SMA50:        SMA(candles, 50),
		SMA200:       SMA(candles, 200),
		EMA12:        EMA(candles, 12),
		EMA26:        EMA(candles, 26),
		RSI14:        RSI(candles, 14),
		MACD:         macd,
		MACDSignal:   signal,
		MACDHist:     hist,
		BollingerUp:  upper,
		BollingerMid: mid,
		BollingerLow: lower,
		ATR14:        ATR(candles, 14),
		StochK:       stochK,
		StochD:       stochD,
		OBV:          OBV(candles),
		VWAP:         VWAP(candles, 20),
		UpdatedAt:    now,
	}
}

// ComputeRiskRow derives the portfolio-theory risk row for the most
// recent trading day.
func ComputeRiskRow(symbol string, candles []models.Candle, financials []models.FinancialRow,
	balances []models.BalanceRow, cashflows []models.CashFlowRow, marketCap float64, now time.Time) *models.RiskRow {
	if len(candles) == 0 {
		return nil
	}

	returns := DailyReturns(candles)
	row := &models.RiskRow{
		Symbol:          symbol,
		Date:            candles[0].Date.Format("2006-01-02"),
		Sharpe:          Sharpe(returns, DefaultRiskFreeRate),
		Sortino:         Sortino(returns, DefaultRiskFreeRate),
		Calmar:          Calmar(candles),
		Omega:           Omega(returns, 0),
		KellyHalf:       KellyFraction(returns, 0.5),
		VaR95:           VaR95(returns),
		CVaR95:          CVaR95(returns),
		MaxDrawdown:     MaxDrawdown(candles),
		PercentilePrice: PercentileRankPrice(candles, 252),
		PercentileVol:   PercentileRankVolume(candles, 252),
		Hurst:           Hurst(candles),
		Momentum12m1m:   Momentum12m1m(candles),
		UpdatedAt:       now,
	}

	if len(balances) > 0 && len(financials) > 0 {
		row.AltmanZ = AltmanZ(&balances[0], &financials[0], marketCap)
		row.PiotroskiF = PiotroskiF(financials, balances, cashflows)
	}
	return row
}
