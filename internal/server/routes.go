package server

import (
	"net/http"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Watchlist
	mux.HandleFunc("/api/watchlist", s.handleWatchlist)
	mux.HandleFunc("/api/watchlist/", s.handleWatchlistSymbol)

	// Live quotes
	mux.HandleFunc("/api/quotes", s.handleQuotes)

	// Discovery
	mux.HandleFunc("/api/discovery/run", s.handleDiscoveryRun)
	mux.HandleFunc("/api/discovery/status", s.handleDiscoveryStatus)
	mux.HandleFunc("/api/discovery/results", s.handleDiscoveryResults)
	mux.HandleFunc("/api/discovery/history", s.handleDiscoveryHistory)
	mux.HandleFunc("/api/discovery/clear", s.handleDiscoveryClear)

	// Analysis
	mux.HandleFunc("/api/analyze-stream", s.handleAnalyzeStream)
	mux.HandleFunc("/api/analysis/deep/", s.handleDeepAnalysis)
	mux.HandleFunc("/api/analysis/deep-batch", s.handleDeepBatch)
	mux.HandleFunc("/api/dossiers/", s.handleDossiers)
	mux.HandleFunc("/api/scorecards/", s.handleScorecards)

	// Dashboard
	mux.HandleFunc("/api/dashboard/overview/", s.handleDashboardOverview)
	mux.HandleFunc("/api/dashboard/prices/", s.handleDashboardPrices)
	mux.HandleFunc("/api/dashboard/news/", s.handleDashboardNews)
	mux.HandleFunc("/api/dashboard/youtube/", s.handleDashboardYouTube)
	mux.HandleFunc("/api/dashboard/technicals/", s.handleDashboardTechnicals)
	mux.HandleFunc("/api/dashboard/financials/", s.handleDashboardFinancials)
	mux.HandleFunc("/api/dashboard/risk/", s.handleDashboardRisk)
	mux.HandleFunc("/api/dashboard/analyst/", s.handleDashboardAnalyst)

	// Portfolio
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)
	mux.HandleFunc("/api/portfolio/history", s.handlePortfolioHistory)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/orders", s.handleOrders)
	mux.HandleFunc("/api/triggers", s.handleTriggers)

	// Bot loop
	mux.HandleFunc("/api/bot/run-loop", s.handleBotRunLoop)
	mux.HandleFunc("/api/bot/loop-status", s.handleBotLoopStatus)

	// Scheduler
	mux.HandleFunc("/api/scheduler/status", s.handleSchedulerStatus)
	mux.HandleFunc("/api/scheduler/start", s.handleSchedulerStart)
	mux.HandleFunc("/api/scheduler/stop", s.handleSchedulerStop)
	mux.HandleFunc("/api/scheduler/kill", s.handleSchedulerKill)
	mux.HandleFunc("/api/scheduler/run/", s.handleSchedulerRun)

	// Pipeline events
	mux.HandleFunc("/api/pipeline/events", s.handlePipelineEvents)
	mux.HandleFunc("/api/pipeline/ws", s.app.Hub.ServeWS)
}
