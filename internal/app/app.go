// Package app wires configuration, storage, clients, and services into
// the running agent. It is the shared core used by cmd/argus-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/argus/internal/clients/llm"
	"github.com/bobmcallan/argus/internal/clients/marketdata"
	"github.com/bobmcallan/argus/internal/clients/reddit"
	"github.com/bobmcallan/argus/internal/clients/youtube"
	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
	"github.com/bobmcallan/argus/internal/services/analysis"
	"github.com/bobmcallan/argus/internal/services/collector"
	"github.com/bobmcallan/argus/internal/services/discovery"
	"github.com/bobmcallan/argus/internal/services/eventlog"
	"github.com/bobmcallan/argus/internal/services/pipeline"
	"github.com/bobmcallan/argus/internal/services/report"
	"github.com/bobmcallan/argus/internal/services/trader"
	"github.com/bobmcallan/argus/internal/services/watchlist"
	"github.com/bobmcallan/argus/internal/storage"
)

// App holds all initialized clients and services.
type App struct {
	Config  *common.Config
	Logger  *common.Logger
	Storage interfaces.StorageManager
	Clock   *common.MarketClock

	LLMClient  interfaces.LLMClient
	MarketData interfaces.MarketDataClient

	Events    interfaces.EventLogService
	Discovery interfaces.DiscoveryService
	Collector interfaces.CollectorService
	Watchlist interfaces.WatchlistService
	Analysis  interfaces.AnalysisService
	Trader    *trader.Service
	Report    interfaces.ReportService
	Pipeline  *pipeline.Service
	Hub       *pipeline.WSHub
	Scheduler *Scheduler

	StartupTime time.Time

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// BackgroundContext returns the root context governing background work.
// Before Start it falls back to context.Background().
func (a *App) BackgroundContext() context.Context {
	if a.rootCtx != nil {
		return a.rootCtx
	}
	return context.Background()
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, clients, and every service. configPath may
// be empty, in which case ARGUS_CONFIG and the binary directory are tried.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()
	if configPath == "" {
		configPath = os.Getenv("ARGUS_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "argus.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/argus.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative paths to the binary directory so the agent is
	// self-contained.
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()

	marketKey := config.MarketData.APIKey
	if marketKey == "" {
		marketKey = os.Getenv("EODHD_API_KEY")
	}
	if marketKey == "" {
		logger.Warn().Msg("Market data API key not configured - collection will fail")
	}
	marketOpts := []marketdata.ClientOption{
		marketdata.WithLogger(logger),
		marketdata.WithRateLimit(config.MarketData.RateLimit),
		marketdata.WithTimeout(config.MarketData.GetTimeout()),
	}
	if config.MarketData.BaseURL != "" {
		marketOpts = append(marketOpts, marketdata.WithBaseURL(config.MarketData.BaseURL))
	}
	marketClient := marketdata.NewClient(marketKey, marketOpts...)

	llmKey := config.LLM.APIKey
	if llmKey == "" {
		llmKey = os.Getenv("GEMINI_API_KEY")
	}
	llmClient, err := llm.NewGeminiClient(ctx, llmKey,
		llm.WithLogger(logger),
		llm.WithModel(config.LLM.Model),
		llm.WithTemperature(config.LLM.Temperature),
		llm.WithTimeout(config.LLM.GetTimeout()),
	)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	socialClient := reddit.NewClient(reddit.WithLogger(logger))
	transcriptClient := youtube.NewClient(youtube.WithLogger(logger))

	clock := common.NewMarketClock(config.Scheduler.Location())

	events := eventlog.NewService(storageManager, logger)
	hub := pipeline.NewWSHub(logger)
	events.SetBroadcaster(hub)

	collectorService := collector.NewService(storageManager, marketClient, transcriptClient, llmClient, events, &config.Discovery, logger)
	discoveryService := discovery.NewService(storageManager, socialClient, transcriptClient, llmClient, collectorService, events, &config.Discovery, logger)
	watchlistService := watchlist.NewService(storageManager, events, &config.Watchlist, logger)
	analysisService := analysis.NewService(storageManager, llmClient, events, &config.Risk, &config.LLM, config.Strategy.LoadStrategyText(), logger)

	traderService, err := trader.NewService(storageManager, events, watchlistService, marketClient, clock, &config.Risk, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize trader: %w", err)
	}

	reportService := report.NewService(storageManager, traderService, watchlistService, events, logger)
	pipelineService := pipeline.NewService(collectorService, analysisService, traderService, watchlistService, events, &config.Pipeline, logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Clock:       clock,
		LLMClient:   llmClient,
		MarketData:  marketClient,
		Events:      events,
		Discovery:   discoveryService,
		Collector:   collectorService,
		Watchlist:   watchlistService,
		Analysis:    analysisService,
		Trader:      traderService,
		Report:      reportService,
		Pipeline:    pipelineService,
		Hub:         hub,
		StartupTime: startupStart,
	}
	a.Scheduler = NewScheduler(a)

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// Start launches the background machinery: the WebSocket hub, the
// scheduler, and the price monitor. The returned context is the root of
// all scheduled work; Kill cancels it.
func (a *App) Start() {
	rootCtx, cancel := context.WithCancel(context.Background())
	a.rootCtx = rootCtx
	a.rootCancel = cancel

	go a.Hub.Run()
	go a.Trader.RunMonitor(rootCtx, a.Config.Scheduler.GetMonitorInterval())
	if a.Config.Scheduler.AutoStart {
		a.Scheduler.Start(rootCtx)
	}
}

// Kill is the kill switch: cancels all scheduled and in-flight work,
// stops the scheduler, and deactivates every standing trigger.
func (a *App) Kill(ctx context.Context) error {
	if a.rootCancel != nil {
		a.rootCancel()
	}
	a.Scheduler.Stop()

	triggers, err := a.Storage.PortfolioStore().ListTriggers(ctx, models.TriggerStatusActive)
	if err != nil {
		return fmt.Errorf("failed to list triggers: %w", err)
	}
	cancelled := 0
	for _, t := range triggers {
		if n, err := a.Storage.PortfolioStore().CancelTriggersForSymbol(ctx, t.Symbol); err == nil {
			cancelled += n
		}
	}
	a.Logger.Warn().Int("triggers_cancelled", cancelled).Msg("Kill switch engaged")
	return nil
}

// Close releases all resources. Shutdown order: scheduler, hub, LLM
// client, storage.
func (a *App) Close() {
	if a.rootCancel != nil {
		a.rootCancel()
		a.rootCancel = nil
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Hub != nil {
		a.Hub.Stop()
	}
	if a.LLMClient != nil {
		a.LLMClient.Close()
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
