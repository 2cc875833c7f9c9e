// Package report produces the end-of-day portfolio report and growth
// chart.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
)

// Compile-time interface check
var _ interfaces.ReportService = (*Service)(nil)

const (
	reportSubdir      = "reports"
	snapshotChartDays = 90
	maxOrdersInReport = 25
)

// Service assembles the daily report from the trader's snapshot, the
// day's orders, and the watchlist.
type Service struct {
	storage   interfaces.StorageManager
	trader    interfaces.TraderService
	watchlist interfaces.WatchlistService
	events    interfaces.EventLogService
	logger    *common.Logger
}

// NewService creates a new report service.
func NewService(
	storage interfaces.StorageManager,
	trader interfaces.TraderService,
	watchlist interfaces.WatchlistService,
	events interfaces.EventLogService,
	logger *common.Logger,
) *Service {
	return &Service{
		storage:   storage,
		trader:    trader,
		watchlist: watchlist,
		events:    events,
		logger:    logger,
	}
}

// GenerateEOD takes a fresh snapshot, writes the markdown report and the
// growth chart PNG, and returns the report text.
func (s *Service) GenerateEOD(ctx context.Context, runID string) (string, error) {
	snap, err := s.trader.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to snapshot portfolio: %w", err)
	}

	positions, err := s.trader.Positions(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list positions: %w", err)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	orders, err := s.todaysOrders(ctx, snap.Timestamp)
	if err != nil {
		return "", err
	}

	entries, err := s.watchlist.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list watchlist: %w", err)
	}

	text := s.renderReport(snap, positions, orders, entries)

	date := snap.Timestamp.UTC().Format("2006-01-02")
	if err := s.storage.WriteRaw(reportSubdir, fmt.Sprintf("eod-%s.md", date), []byte(text)); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	if err := s.writeGrowthChart(ctx, date); err != nil {
		// A thin snapshot history is expected early on; the report still
		// counts as generated.
		s.logger.Warn().Err(err).Msg("Growth chart skipped")
	}

	s.events.Log(ctx, &models.PipelineEvent{
		RunID:     runID,
		Phase:     models.PhaseRun,
		EventType: "eod_report_generated",
		Detail:    fmt.Sprintf("total $%.2f, %d positions, %d orders today", snap.TotalValue, len(positions), len(orders)),
	})
	s.logger.Info().Str("date", date).Float64("total_value", snap.TotalValue).Msg("EOD report generated")
	return text, nil
}

func (s *Service) todaysOrders(ctx context.Context, now time.Time) ([]*models.Order, error) {
	orders, err := s.storage.PortfolioStore().ListOrders(ctx, maxOrdersInReport)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	midnight := now.UTC().Truncate(24 * time.Hour)
	var today []*models.Order
	for _, o := range orders {
		if o.CreatedAt.After(midnight) || o.CreatedAt.Equal(midnight) {
			today = append(today, o)
		}
	}
	return today, nil
}

func (s *Service) renderReport(snap *models.PortfolioSnapshot, positions []*models.Position, orders []*models.Order, entries []*models.WatchlistEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# End of Day Report — %s\n\n", snap.Timestamp.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "## Portfolio\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total value | $%.2f |\n", snap.TotalValue)
	fmt.Fprintf(&b, "| Cash | $%.2f |\n", snap.Cash)
	fmt.Fprintf(&b, "| Positions value | $%.2f |\n", snap.PositionsValue)
	fmt.Fprintf(&b, "| Realized P&L | $%.2f |\n", snap.RealizedPnL)
	fmt.Fprintf(&b, "| Unrealized P&L | $%.2f |\n\n", snap.UnrealizedPnL)

	fmt.Fprintf(&b, "## Open Positions (%d)\n\n", len(positions))
	if len(positions) == 0 {
		b.WriteString("None.\n\n")
	} else {
		b.WriteString("| Symbol | Qty | Avg Entry | Current | Unrealized |\n|---|---|---|---|---|\n")
		for _, p := range positions {
			fmt.Fprintf(&b, "| %s | %d | $%.2f | $%.2f | $%.2f |\n",
				p.Symbol, p.Qty, p.AvgEntryPrice, p.CurrentPrice, p.UnrealizedPnL)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Orders Today (%d)\n\n", len(orders))
	if len(orders) == 0 {
		b.WriteString("None.\n\n")
	} else {
		b.WriteString("| Time | Symbol | Side | Qty | Price | Status | Reason |\n|---|---|---|---|---|---|---|\n")
		for _, o := range orders {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | $%.2f | %s | %s |\n",
				o.CreatedAt.UTC().Format("15:04"), o.Symbol, strings.ToUpper(o.Side), o.Qty, o.Price, o.Status, o.Reason)
		}
		b.WriteString("\n")
	}

	active := 0
	for _, e := range entries {
		if e.Status == models.WatchStatusActive || e.Status == models.WatchStatusPendingAnalysis {
			active++
		}
	}
	fmt.Fprintf(&b, "## Watchlist\n\n%d tracked, %d active.\n\n", len(entries), active)
	if active > 0 {
		b.WriteString("| Symbol | Status | Conviction | Signal | Held |\n|---|---|---|---|---|\n")
		for _, e := range entries {
			if e.Status != models.WatchStatusActive && e.Status != models.WatchStatusPendingAnalysis {
				continue
			}
			fmt.Fprintf(&b, "| %s | %s | %.2f | %s | %v |\n",
				e.Symbol, e.Status, e.ConvictionScore, e.LastSignal, e.PositionHeld)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (s *Service) writeGrowthChart(ctx context.Context, date string) error {
	snaps, err := s.storage.PortfolioStore().ListSnapshots(ctx, snapshotChartDays)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	png, err := RenderGrowthChart(snaps)
	if err != nil {
		return err
	}
	if err := s.storage.WriteRaw(reportSubdir, fmt.Sprintf("growth-%s.png", date), png); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}
