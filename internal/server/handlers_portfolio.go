package server

import (
	"net/http"

	"github.com/bobmcallan/argus/internal/models"
)

// handlePortfolio handles GET /api/portfolio.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap, err := s.app.Trader.Portfolio(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

// handlePortfolioHistory handles GET /api/portfolio/history?limit=.
func (s *Server) handlePortfolioHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snaps, err := s.app.Storage.PortfolioStore().ListSnapshots(r.Context(), queryInt(r, "limit", 90))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snaps)
}

// handlePositions handles GET /api/positions.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	positions, err := s.app.Trader.Positions(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, positions)
}

// handleOrders handles GET /api/orders?limit=.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	orders, err := s.app.Storage.PortfolioStore().ListOrders(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, orders)
}

// handleTriggers handles GET /api/triggers?status=.
func (s *Server) handleTriggers(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.TriggerStatusActive
	}
	triggers, err := s.app.Storage.PortfolioStore().ListTriggers(r.Context(), status)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, triggers)
}
