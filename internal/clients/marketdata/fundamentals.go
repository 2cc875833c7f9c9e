package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/bobmcallan/argus/internal/models"
)

// GetFundamentals retrieves the fundamentals snapshot for a symbol.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	var resp fundamentalsResponse
	if err := c.get(ctx, fmt.Sprintf("/fundamentals/%s", symbol), nil, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	f := &models.Fundamentals{
		Symbol:            symbol,
		SnapshotDate:      now.Format("2006-01-02"),
		Name:              resp.General.Name,
		Sector:            resp.General.Sector,
		Industry:          resp.General.Industry,
		MarketCap:         float64(resp.Highlights.MarketCapitalization),
		PE:                float64(resp.Highlights.PERatio),
		ForwardPE:         float64(resp.Valuation.ForwardPE),
		PB:                float64(resp.Valuation.PriceBookMRQ),
		PS:                float64(resp.Valuation.PriceSalesTTM),
		PEG:               float64(resp.Highlights.PEGRatio),
		EPS:               float64(resp.Highlights.EarningsShare),
		EPSGrowthYOY:      float64(resp.Highlights.EPSGrowth),
		RevenueTTM:        float64(resp.Highlights.RevenueTTM),
		RevGrowthYOY:      float64(resp.Highlights.RevenueGrowthYOY),
		GrossMargin:       float64(resp.Highlights.GrossMargin),
		OperatingMargin:   float64(resp.Highlights.OperatingMarginTTM),
		ProfitMargin:      float64(resp.Highlights.ProfitMargin),
		ROE:               float64(resp.Highlights.ReturnOnEquityTTM),
		ROA:               float64(resp.Highlights.ReturnOnAssetsTTM),
		DebtToEquity:      float64(resp.Valuation.DebtToEquity),
		CurrentRatio:      float64(resp.Valuation.CurrentRatio),
		DividendYield:     float64(resp.Highlights.DividendYield),
		Beta:              float64(resp.Technicals.Beta),
		SharesOutstanding: int64(resp.SharesStats.SharesOutstanding),
		ShortPctFloat:     float64(resp.Technicals.ShortPercent),
		BookValue:         float64(resp.Highlights.BookValue),
		FreeCashFlowTTM:   float64(resp.Highlights.FreeCashFlowTTM),
		NextEarningsDate:  resp.Highlights.MostRecentQuarter,
		UpdatedAt:         now,
	}

	// The earnings calendar carries the authoritative next report date
	if next := resp.nextEarningsDate(now); next != "" {
		f.NextEarningsDate = next
	}

	return f, nil
}

// GetFinancials retrieves yearly income statement rows, newest first.
func (c *Client) GetFinancials(ctx context.Context, symbol string) ([]models.FinancialRow, error) {
	var resp fundamentalsResponse
	if err := c.get(ctx, fmt.Sprintf("/fundamentals/%s", symbol), nil, &resp); err != nil {
		return nil, err
	}

	rows := make([]models.FinancialRow, 0, len(resp.Financials.IncomeStatement.Yearly))
	for date, stmt := range resp.Financials.IncomeStatement.Yearly {
		year := yearOf(date)
		if year == 0 {
			continue
		}
		rows = append(rows, models.FinancialRow{
			Symbol:          symbol,
			Year:            year,
			Revenue:         float64(stmt.TotalRevenue),
			GrossProfit:     float64(stmt.GrossProfit),
			OperatingIncome: float64(stmt.OperatingIncome),
			NetIncome:       float64(stmt.NetIncome),
			EBITDA:          float64(stmt.EBITDA),
			EPS:             float64(stmt.EPS),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year > rows[j].Year })
	return rows, nil
}

// GetBalanceSheet retrieves yearly balance sheet rows, newest first.
func (c *Client) GetBalanceSheet(ctx context.Context, symbol string) ([]models.BalanceRow, error) {
	var resp fundamentalsResponse
	if err := c.get(ctx, fmt.Sprintf("/fundamentals/%s", symbol), nil, &resp); err != nil {
		return nil, err
	}

	rows := make([]models.BalanceRow, 0, len(resp.Financials.BalanceSheet.Yearly))
	for date, sheet := range resp.Financials.BalanceSheet.Yearly {
		year := yearOf(date)
		if year == 0 {
			continue
		}
		rows = append(rows, models.BalanceRow{
			Symbol:             symbol,
			Year:               year,
			TotalAssets:        float64(sheet.TotalAssets),
			CurrentAssets:      float64(sheet.TotalCurrentAssets),
			TotalLiabilities:   float64(sheet.TotalLiab),
			CurrentLiabilities: float64(sheet.TotalCurrentLiabilities),
			LongTermDebt:       float64(sheet.LongTermDebt),
			ShareholderEquity:  float64(sheet.TotalStockholderEquity),
			RetainedEarnings:   float64(sheet.RetainedEarnings),
			WorkingCapital:     float64(sheet.TotalCurrentAssets) - float64(sheet.TotalCurrentLiabilities),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year > rows[j].Year })
	return rows, nil
}

// GetCashFlows retrieves yearly cash flow rows, newest first.
func (c *Client) GetCashFlows(ctx context.Context, symbol string) ([]models.CashFlowRow, error) {
	var resp fundamentalsResponse
	if err := c.get(ctx, fmt.Sprintf("/fundamentals/%s", symbol), nil, &resp); err != nil {
		return nil, err
	}

	rows := make([]models.CashFlowRow, 0, len(resp.Financials.CashFlow.Yearly))
	for date, cf := range resp.Financials.CashFlow.Yearly {
		year := yearOf(date)
		if year == 0 {
			continue
		}
		rows = append(rows, models.CashFlowRow{
			Symbol:          symbol,
			Year:            year,
			OperatingCF:     float64(cf.TotalCashFromOperatingActivities),
			InvestingCF:     float64(cf.TotalCashflowsFromInvestingActivities),
			FinancingCF:     float64(cf.TotalCashFromFinancingActivities),
			FreeCashFlow:    float64(cf.FreeCashFlow),
			CapEx:           float64(cf.CapitalExpenditures),
			DividendsPaid:   float64(cf.DividendsPaid),
			StockBuybacks:   float64(cf.SalePurchaseOfStock),
			NetChangeInCash: float64(cf.ChangeInCash),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year > rows[j].Year })
	return rows, nil
}

// GetAnalyst retrieves the sell-side coverage snapshot.
func (c *Client) GetAnalyst(ctx context.Context, symbol string) (*models.AnalystSnapshot, error) {
	var resp fundamentalsResponse
	if err := c.get(ctx, fmt.Sprintf("/fundamentals/%s", symbol), nil, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &models.AnalystSnapshot{
		Symbol:       symbol,
		SnapshotDate: now.Format("2006-01-02"),
		Rating:       float64(resp.AnalystRatings.Rating),
		TargetPrice:  float64(resp.AnalystRatings.TargetPrice),
		StrongBuy:    int(resp.AnalystRatings.StrongBuy),
		Buy:          int(resp.AnalystRatings.Buy),
		Hold:         int(resp.AnalystRatings.Hold),
		Sell:         int(resp.AnalystRatings.Sell),
		StrongSell:   int(resp.AnalystRatings.StrongSell),
		UpdatedAt:    now,
	}, nil
}

// insiderWindowDays is the trailing window summarized by GetInsider.
const insiderWindowDays = 90

// GetInsider aggregates reported insider transactions over the trailing
// window into a summary row.
func (c *Client) GetInsider(ctx context.Context, symbol string) (*models.InsiderSummary, error) {
	params := url.Values{}
	params.Set("code", symbol)
	params.Set("limit", "200")

	var txns []insiderTxnResponse
	if err := c.get(ctx, "/insider-transactions", params, &txns); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -insiderWindowDays)

	summary := &models.InsiderSummary{
		Symbol:       symbol,
		SnapshotDate: now.Format("2006-01-02"),
		WindowDays:   insiderWindowDays,
		UpdatedAt:    now,
	}

	for _, txn := range txns {
		date, err := time.Parse("2006-01-02", txn.TransactionDate)
		if err != nil || date.Before(cutoff) {
			continue
		}
		value := float64(txn.TransactionPrice) * float64(txn.TransactionAmount)
		switch txn.TransactionCode {
		case "P", "B":
			summary.BuyCount++
			summary.NetValueUSD += value
		case "S":
			summary.SellCount++
			summary.NetValueUSD -= value
		default:
			continue
		}
		if value > summary.LargestTrade {
			summary.LargestTrade = value
		}
		if summary.LastActivity == "" || txn.TransactionDate > summary.LastActivity {
			summary.LastActivity = txn.TransactionDate
		}
	}
	return summary, nil
}

// GetEarnings retrieves the earnings calendar for a symbol.
func (c *Client) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsEvent, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("from", time.Now().AddDate(-1, 0, 0).Format("2006-01-02"))
	params.Set("to", time.Now().AddDate(0, 6, 0).Format("2006-01-02"))

	var resp earningsCalendarResponse
	if err := c.get(ctx, "/calendar/earnings", params, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	events := make([]models.EarningsEvent, 0, len(resp.Earnings))
	for _, e := range resp.Earnings {
		events = append(events, models.EarningsEvent{
			Symbol:       symbol,
			ReportDate:   e.ReportDate,
			FiscalPeriod: e.Date,
			EPSEstimate:  float64(e.Estimate),
			EPSActual:    float64(e.Actual),
			BeforeOpen:   e.BeforeAfterMarket == "BeforeMarket",
			UpdatedAt:    now,
		})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ReportDate < events[j].ReportDate })
	return events, nil
}

// GetNews retrieves recent news articles for a symbol.
func (c *Client) GetNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{}
	params.Set("s", symbol)
	params.Set("limit", strconv.Itoa(limit))

	var rows []newsResponse
	if err := c.get(ctx, "/news", params, &rows); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	articles := make([]models.NewsArticle, 0, len(rows))
	for _, r := range rows {
		published, _ := time.Parse(time.RFC3339, r.Date)
		articles = append(articles, models.NewsArticle{
			Symbol:      symbol,
			Title:       r.Title,
			Source:      r.Source,
			URL:         r.Link,
			PublishedAt: published,
			Summary:     r.Content,
			CollectedAt: now,
		})
	}
	return articles, nil
}

func yearOf(date string) int {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0
	}
	return t.Year()
}

type fundamentalsResponse struct {
	General struct {
		Code     string `json:"Code"`
		Name     string `json:"Name"`
		Type     string `json:"Type"`
		Sector   string `json:"Sector"`
		Industry string `json:"Industry"`
	} `json:"General"`
	Highlights struct {
		MarketCapitalization flexFloat64 `json:"MarketCapitalization"`
		PERatio              flexFloat64 `json:"PERatio"`
		PEGRatio             flexFloat64 `json:"PEGRatio"`
		EarningsShare        flexFloat64 `json:"EarningsShare"`
		EPSGrowth            flexFloat64 `json:"EPSEstimateCurrentYear"`
		RevenueTTM           flexFloat64 `json:"RevenueTTM"`
		RevenueGrowthYOY     flexFloat64 `json:"QuarterlyRevenueGrowthYOY"`
		GrossMargin          flexFloat64 `json:"GrossProfitTTM"`
		OperatingMarginTTM   flexFloat64 `json:"OperatingMarginTTM"`
		ProfitMargin         flexFloat64 `json:"ProfitMargin"`
		ReturnOnEquityTTM    flexFloat64 `json:"ReturnOnEquityTTM"`
		ReturnOnAssetsTTM    flexFloat64 `json:"ReturnOnAssetsTTM"`
		DividendYield        flexFloat64 `json:"DividendYield"`
		BookValue            flexFloat64 `json:"BookValue"`
		FreeCashFlowTTM      flexFloat64 `json:"FreeCashFlow"`
		MostRecentQuarter    string      `json:"MostRecentQuarter"`
	} `json:"Highlights"`
	Valuation struct {
		ForwardPE     flexFloat64 `json:"ForwardPE"`
		PriceBookMRQ  flexFloat64 `json:"PriceBookMRQ"`
		PriceSalesTTM flexFloat64 `json:"PriceSalesTTM"`
		DebtToEquity  flexFloat64 `json:"DebtToEquity"`
		CurrentRatio  flexFloat64 `json:"CurrentRatio"`
	} `json:"Valuation"`
	SharesStats struct {
		SharesOutstanding flexFloat64 `json:"SharesOutstanding"`
	} `json:"SharesStats"`
	Technicals struct {
		Beta         flexFloat64 `json:"Beta"`
		ShortPercent flexFloat64 `json:"ShortPercentFloat"`
	} `json:"Technicals"`
	AnalystRatings struct {
		Rating      flexFloat64 `json:"Rating"`
		TargetPrice flexFloat64 `json:"TargetPrice"`
		StrongBuy   flexFloat64 `json:"StrongBuy"`
		Buy         flexFloat64 `json:"Buy"`
		Hold        flexFloat64 `json:"Hold"`
		Sell        flexFloat64 `json:"Sell"`
		StrongSell  flexFloat64 `json:"StrongSell"`
	} `json:"AnalystRatings"`
	Financials struct {
		IncomeStatement struct {
			Yearly map[string]incomeStatementYear `json:"yearly"`
		} `json:"Income_Statement"`
		BalanceSheet struct {
			Yearly map[string]balanceSheetYear `json:"yearly"`
		} `json:"Balance_Sheet"`
		CashFlow struct {
			Yearly map[string]cashFlowYear `json:"yearly"`
		} `json:"Cash_Flow"`
	} `json:"Financials"`
	Earnings struct {
		History map[string]struct {
			ReportDate        string      `json:"reportDate"`
			EPSEstimate       flexFloat64 `json:"epsEstimate"`
			BeforeAfterMarket string      `json:"beforeAfterMarket"`
		} `json:"History"`
	} `json:"Earnings"`
}

// nextEarningsDate returns the earliest report date on or after now.
func (r *fundamentalsResponse) nextEarningsDate(now time.Time) string {
	today := now.Format("2006-01-02")
	next := ""
	for _, h := range r.Earnings.History {
		if h.ReportDate < today {
			continue
		}
		if next == "" || h.ReportDate < next {
			next = h.ReportDate
		}
	}
	return next
}

type incomeStatementYear struct {
	TotalRevenue    flexFloat64 `json:"totalRevenue"`
	GrossProfit     flexFloat64 `json:"grossProfit"`
	OperatingIncome flexFloat64 `json:"operatingIncome"`
	NetIncome       flexFloat64 `json:"netIncome"`
	EBITDA          flexFloat64 `json:"ebitda"`
	EPS             flexFloat64 `json:"epsActual"`
}

type balanceSheetYear struct {
	TotalAssets             flexFloat64 `json:"totalAssets"`
	TotalCurrentAssets      flexFloat64 `json:"totalCurrentAssets"`
	TotalLiab               flexFloat64 `json:"totalLiab"`
	TotalCurrentLiabilities flexFloat64 `json:"totalCurrentLiabilities"`
	LongTermDebt            flexFloat64 `json:"longTermDebt"`
	TotalStockholderEquity  flexFloat64 `json:"totalStockholderEquity"`
	RetainedEarnings        flexFloat64 `json:"retainedEarnings"`
}

type cashFlowYear struct {
	TotalCashFromOperatingActivities      flexFloat64 `json:"totalCashFromOperatingActivities"`
	TotalCashflowsFromInvestingActivities flexFloat64 `json:"totalCashflowsFromInvestingActivities"`
	TotalCashFromFinancingActivities      flexFloat64 `json:"totalCashFromFinancingActivities"`
	FreeCashFlow                          flexFloat64 `json:"freeCashFlow"`
	CapitalExpenditures                   flexFloat64 `json:"capitalExpenditures"`
	DividendsPaid                         flexFloat64 `json:"dividendsPaid"`
	SalePurchaseOfStock                   flexFloat64 `json:"salePurchaseOfStock"`
	ChangeInCash                          flexFloat64 `json:"changeInCash"`
}

type insiderTxnResponse struct {
	TransactionDate   string      `json:"transactionDate"`
	TransactionCode   string      `json:"transactionCode"`
	TransactionAmount flexFloat64 `json:"transactionAmount"`
	TransactionPrice  flexFloat64 `json:"transactionPrice"`
}

type earningsCalendarResponse struct {
	Earnings []struct {
		Code              string      `json:"code"`
		ReportDate        string      `json:"report_date"`
		Date              string      `json:"date"`
		Estimate          flexFloat64 `json:"estimate"`
		Actual            flexFloat64 `json:"actual"`
		BeforeAfterMarket string      `json:"before_after_market"`
	} `json:"earnings"`
}

type newsResponse struct {
	Date    string `json:"date"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Link    string `json:"link"`
	Source  string `json:"symbols_source,omitempty"`
}
