package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, "not_found"},
		{ErrValidation, "validation_error"},
		{ErrLLMTransient, "llm_transient"},
		{ErrLLMFatal, "llm_fatal"},
		{ErrRiskBlocked, "risk_blocked"},
		{ErrInsufficientCash, "insufficient_cash"},
		{ErrPositionNotFound, "position_not_found"},
		{context.Canceled, "cancelled"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestErrorKindWrapped(t *testing.T) {
	wrapped := fmt.Errorf("fetch quote for NVDA: %w", ErrNotFound)
	if got := ErrorKind(wrapped); got != "not_found" {
		t.Errorf("wrapped sentinel kind = %q, want not_found", got)
	}

	double := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrInsufficientCash))
	if got := ErrorKind(double); got != "insufficient_cash" {
		t.Errorf("double-wrapped kind = %q, want insufficient_cash", got)
	}
}

func TestErrorKindStructuredErrors(t *testing.T) {
	layer := &LayerError{Layer: 3, Symbol: "NVDA", Err: errors.New("model timeout")}
	if got := ErrorKind(layer); got != "layer3_failed" {
		t.Errorf("layer kind = %q, want layer3_failed", got)
	}

	coll := &CollectorError{Step: "news", Symbol: "NVDA", Err: errors.New("http 500")}
	if got := ErrorKind(coll); got != "collector_error" {
		t.Errorf("collector kind = %q, want collector_error", got)
	}

	store := &StoreError{Table: "orders", Op: "save", Err: errors.New("disk full")}
	if got := ErrorKind(store); got != "store_error" {
		t.Errorf("store kind = %q, want store_error", got)
	}
}

func TestStructuredErrorsUnwrap(t *testing.T) {
	inner := ErrLLMTransient
	layer := &LayerError{Layer: 2, Symbol: "AAPL", Err: fmt.Errorf("call: %w", inner)}

	if !errors.Is(layer, ErrLLMTransient) {
		t.Error("LayerError must unwrap to its cause")
	}
	// Sentinel match wins over the As branch in kind mapping.
	if got := ErrorKind(layer); got != "llm_transient" {
		t.Errorf("kind = %q, want llm_transient because Is matches first", got)
	}
}

func TestErrorMessages(t *testing.T) {
	store := &StoreError{Table: "positions", Op: "get", Err: errors.New("closed")}
	want := "store get positions: closed"
	if store.Error() != want {
		t.Errorf("StoreError message = %q, want %q", store.Error(), want)
	}
}
