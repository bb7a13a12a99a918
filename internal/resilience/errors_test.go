package resilience

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked transient", NewTransientError(errors.New("503"), 503), true},
		{"wrapped transient", fmt.Errorf("outer: %w", NewTransientError(errors.New("503"), 503)), true},
		{"connection reset heuristic", errors.New("read tcp: connection reset by peer"), true},
		{"plain error", errors.New("invalid request"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d not to be transient", code)
		}
	}
}

func TestFaultClassifiers(t *testing.T) {
	rejected := fmt.Errorf("unit: %w", &SourceRejectedError{Source: model.SourcePlaces, StatusCode: 403})
	if !IsSourceRejected(rejected) {
		t.Error("expected wrapped SourceRejectedError to classify as rejected")
	}
	if IsSourceRejected(errors.New("other")) {
		t.Error("plain error misclassified as rejected")
	}

	malformed := fmt.Errorf("record: %w", &MalformedSourceError{Source: model.SourceCatalog, Reason: "no title"})
	if !IsMalformed(malformed) {
		t.Error("expected wrapped MalformedSourceError to classify as malformed")
	}
	if IsMalformed(rejected) {
		t.Error("rejected error misclassified as malformed")
	}

	storage := fmt.Errorf("unit: %w", &StorageError{Op: "upsert", Err: errors.New("disk full")})
	if !IsStorage(storage) {
		t.Error("expected wrapped StorageError to classify as storage")
	}
	if IsStorage(malformed) {
		t.Error("malformed error misclassified as storage")
	}
}
