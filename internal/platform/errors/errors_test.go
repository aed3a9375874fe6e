package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindTransport, "dial", "channel unreachable",
				errors.New("connection refused")),
			contains: []string{"[transport:dial]", "channel unreachable", "connection refused"},
		},
		{
			name:     "error without cause",
			err:      New(KindTimeout, "call", "no ack within budget"),
			contains: []string{"[timeout:call]", "no ack within budget"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindAuth, "verify", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"direct match", New(KindRejected, "op", "msg"), KindRejected, true},
		{"mismatch", New(KindRejected, "op", "msg"), KindTimeout, false},
		{"wrapped match", fmt.Errorf("outer: %w", New(KindSession, "op", "msg")), KindSession, true},
		{"plain error", errors.New("plain"), KindSession, false},
		{"nil error", nil, KindSession, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.want {
				t.Errorf("IsKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindof(t *testing.T) {
	if got := Kindof(New(KindAuth, "op", "msg")); got != KindAuth {
		t.Errorf("Kindof() = %v, want %v", got, KindAuth)
	}
	if got := Kindof(errors.New("plain")); got != KindUnknown {
		t.Errorf("Kindof() = %v, want %v", got, KindUnknown)
	}
}
