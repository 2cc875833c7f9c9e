package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bobmcallan/argus/internal/common"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response with a stable error_kind
// derived from the error taxonomy.
func WriteError(w http.ResponseWriter, statusCode int, err error) {
	WriteJSON(w, statusCode, ErrorResponse{Error: err.Error(), ErrorKind: common.ErrorKind(err)})
}

// WriteErrorMessage writes a JSON error response from a plain message.
func WriteErrorMessage(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, ErrorKind: "validation_error"})
}

// WriteServiceError maps an error onto an HTTP status via the taxonomy
// and writes it.
func WriteServiceError(w http.ResponseWriter, err error) {
	WriteError(w, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrInsufficientCash), errors.Is(err, common.ErrRiskBlocked):
		return http.StatusConflict
	case errors.Is(err, common.ErrLLMTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteErrorMessage(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// PathParam extracts a path parameter from the URL path.
// For a pattern like /api/dashboard/prices/{ticker}, calling
// PathParam(r, "/api/dashboard/prices/", "") extracts the {ticker} part.
func PathParam(r *http.Request, prefix, suffix string) string {
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if suffix != "" {
		idx := strings.Index(rest, suffix)
		if idx < 0 {
			return rest
		}
		return rest[:idx]
	}
	// No suffix — return up to the next /
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx]
	}
	return rest
}

// TickerParam extracts and normalizes a ticker path parameter, writing a
// 400 when it is missing.
func TickerParam(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(PathParam(r, prefix, "")))
	if ticker == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "Ticker is required")
		return "", false
	}
	return ticker, true
}
