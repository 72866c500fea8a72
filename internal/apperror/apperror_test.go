package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// one slice of cases, one loop of assertions, one sub-test per case.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("goals", "anna"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("weight", "weight must be between 30 and 300"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "AccessDenied wraps ErrAccessDenied",
			err:       AccessDenied(""),
			target:    ErrAccessDenied,
			wantMatch: true,
		},
		{
			name:      "Gateway wraps ErrGateway",
			err:       Gateway("analyze", errors.New("timeout")),
			target:    ErrGateway,
			wantMatch: true,
		},
		{
			name:      "Ledger survives fmt.Errorf wrapping",
			err:       fmt.Errorf("commit: %w", Ledger("append daily record", nil)),
			target:    ErrLedger,
			wantMatch: true,
		},
		{
			name:      "Gateway does NOT match ErrLedger",
			err:       Gateway("transcribe", nil),
			target:    ErrLedger,
			wantMatch: false,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("weight goal", "anna"),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and key",
			err:         NotFound("goals", "anna"),
			wantMessage: "goals not found for anna",
		},
		{
			name:        "AccessDenied renders an empty handle",
			err:         AccessDenied(""),
			wantMessage: "access denied for <none>",
		},
		{
			name:        "Gateway includes the cause",
			err:         Gateway("analyze", errors.New("boom")),
			wantMessage: "analysis gateway: analyze failed: boom",
		},
		{
			name:        "Ledger without a cause",
			err:         Ledger("upsert goals", nil),
			wantMessage: "ledger: upsert goals failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("weight", "not a number")

	if err.Field != "weight" {
		t.Errorf("Field = %q, want %q", err.Field, "weight")
	}
	if err.Unwrap() != ErrValidation {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), ErrValidation)
	}
}
