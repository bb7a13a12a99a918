package resilience

import (
	"errors"
	"fmt"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

// The harvest pipeline distinguishes five failure classes. Per-record faults
// (MalformedSource) are absorbed and counted; per-unit faults (Unavailable,
// Rejected, Storage) fail that unit only; quota exhaustion pauses one source
// and is not an error in the unit sense.

// SourceUnavailableError is a transient source-level failure that survived
// the bounded retry policy. The owning unit is marked failed.
type SourceUnavailableError struct {
	Source model.SourceKind
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// SourceRejectedError is an authorization or upstream-quota rejection (4xx).
// Never retried locally; quota policy belongs to the governor.
type SourceRejectedError struct {
	Source     model.SourceKind
	StatusCode int
	Message    string
}

func (e *SourceRejectedError) Error() string {
	return fmt.Sprintf("source %s rejected call (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// MalformedSourceError marks a single record that could not yield a display
// name and identity key. Logged, counted, skipped; never aborts a unit.
type MalformedSourceError struct {
	Source model.SourceKind
	Reason string
}

func (e *MalformedSourceError) Error() string {
	return fmt.Sprintf("malformed %s record: %s", e.Source, e.Reason)
}

// StorageError wraps a durable-storage failure. Fatal to the current unit;
// already-committed leads are unaffected because upserts are per record.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsSourceRejected reports whether err chains to a SourceRejectedError.
func IsSourceRejected(err error) bool {
	var re *SourceRejectedError
	return errors.As(err, &re)
}

// IsMalformed reports whether err chains to a MalformedSourceError.
func IsMalformed(err error) bool {
	var me *MalformedSourceError
	return errors.As(err, &me)
}

// IsStorage reports whether err chains to a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
