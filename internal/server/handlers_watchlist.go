package server

import (
	"net/http"
	"strings"
)

type watchlistPutRequest struct {
	Tickers []string `json:"tickers"`
}

// handleWatchlist handles GET and PUT /api/watchlist.
func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.app.Watchlist.List(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, entries)

	case http.MethodPut:
		var req watchlistPutRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		if len(req.Tickers) == 0 {
			WriteErrorMessage(w, http.StatusBadRequest, "At least one ticker is required")
			return
		}

		added := make([]string, 0, len(req.Tickers))
		failed := make(map[string]string)
		for _, ticker := range req.Tickers {
			entry, err := s.app.Watchlist.AddManual(r.Context(), ticker)
			if err != nil {
				failed[strings.ToUpper(ticker)] = err.Error()
				continue
			}
			added = append(added, entry.Symbol)
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"added":  added,
			"failed": failed,
		})

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut)
	}
}

// handleWatchlistSymbol handles DELETE /api/watchlist/{ticker}.
func (s *Server) handleWatchlistSymbol(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	ticker, ok := TickerParam(w, r, "/api/watchlist/")
	if !ok {
		return
	}
	if err := s.app.Watchlist.RemoveManual(r.Context(), ticker); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"removed": ticker})
}
