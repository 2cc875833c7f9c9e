package common

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors shared across services. Handlers map these to HTTP status
// codes and stable error_kind strings at the boundary.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrLLMTransient     = errors.New("llm transient failure")
	ErrLLMFatal         = errors.New("llm fatal failure")
	ErrRiskBlocked      = errors.New("order blocked by risk guard")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrPositionNotFound = errors.New("position not found")
)

// StoreError wraps a storage access failure that is not a simple miss.
type StoreError struct {
	Table string
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// CollectorError records a single failed collection step. Collection failures
// are non-fatal to the pipeline; callers aggregate them into a StepReport.
type CollectorError struct {
	Step   string
	Symbol string
	Err    error
}

func (e *CollectorError) Error() string {
	return fmt.Sprintf("collector step %s for %s: %v", e.Step, e.Symbol, e.Err)
}

func (e *CollectorError) Unwrap() error { return e.Err }

// LayerError records a failed analysis layer for one ticker. It aborts the
// ticker, never the batch.
type LayerError struct {
	Layer  int
	Symbol string
	Err    error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("layer %d failed for %s: %v", e.Layer, e.Symbol, e.Err)
}

func (e *LayerError) Unwrap() error { return e.Err }

// ErrorKind returns the stable machine-readable kind string for an error.
func ErrorKind(err error) string {
	var layerErr *LayerError
	var collErr *CollectorError
	var storeErr *StoreError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrLLMTransient):
		return "llm_transient"
	case errors.Is(err, ErrLLMFatal):
		return "llm_fatal"
	case errors.Is(err, ErrRiskBlocked):
		return "risk_blocked"
	case errors.Is(err, ErrInsufficientCash):
		return "insufficient_cash"
	case errors.Is(err, ErrPositionNotFound):
		return "position_not_found"
	case errors.As(err, &layerErr):
		return fmt.Sprintf("layer%d_failed", layerErr.Layer)
	case errors.As(err, &collErr):
		return "collector_error"
	case errors.As(err, &storeErr):
		return "store_error"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "internal_error"
	}
}
