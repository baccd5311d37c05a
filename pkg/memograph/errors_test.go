package memograph

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestClassifyError_Sentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid memory", ErrInvalidMemory, ErrTypeValidation},
		{"wrapped invalid memory", fmt.Errorf("store: %w", ErrInvalidMemory), ErrTypeValidation},
		{"schema identifier", ErrInvalidSchemaIdentifier, ErrTypeValidation},
		{"memory not found", ErrMemoryNotFound, ErrTypeNotFound},
		{"relationship not found", ErrRelationshipNotFound, ErrTypeNotFound},
		{"conflicting write", ErrConflictingWrite, ErrTypeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError_Timeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"context deadline", context.DeadlineExceeded},
		{"string timeout", fmt.Errorf("operation timeout")},
		{"deadline exceeded", fmt.Errorf("context deadline exceeded")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != ErrTypeTimeout {
				t.Errorf("ClassifyError() = %v, want %v", got, ErrTypeTimeout)
			}
		})
	}
}

func TestClassifyError_Network(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"connection refused", fmt.Errorf("connection refused")},
		{"connection reset", fmt.Errorf("connection reset by peer")},
		{"no such host", fmt.Errorf("no such host")},
		{"dial tcp error", fmt.Errorf("dial tcp: host unreachable")},
		{"eof", fmt.Errorf("unexpected EOF")},
		{"net.OpError", &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != ErrTypeNetwork {
				t.Errorf("ClassifyError() = %v, want %v for error: %v", got, ErrTypeNetwork, tt.err)
			}
		})
	}
}

func TestClassifyError_Database(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"sql error", fmt.Errorf("sql: transaction has already been committed")},
		{"database locked", fmt.Errorf("database is locked")},
		{"constraint", fmt.Errorf("constraint failed")},
		{"cypher", fmt.Errorf("cypher statement rejected")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != ErrTypeDatabase {
				t.Errorf("ClassifyError() = %v, want %v", got, ErrTypeDatabase)
			}
		})
	}
}

func TestClassifyError_Unknown(t *testing.T) {
	if got := ClassifyError(fmt.Errorf("something odd happened")); got != ErrTypeUnknown {
		t.Errorf("ClassifyError() = %v, want %v", got, ErrTypeUnknown)
	}
	if got := ClassifyError(nil); got != "" {
		t.Errorf("ClassifyError(nil) = %v, want empty", got)
	}
}

func TestRetryable(t *testing.T) {
	if retryable(nil) != nil {
		t.Error("retryable(nil) should be nil")
	}

	// Infrastructure failures gain the retryable marker.
	dbErr := fmt.Errorf("database is locked")
	wrapped := retryable(dbErr)
	if !errors.Is(wrapped, ErrStoreUnavailable) {
		t.Errorf("database error not marked retryable: %v", wrapped)
	}

	// Domain errors pass through untouched.
	notFound := fmt.Errorf("get: %w", ErrMemoryNotFound)
	if got := retryable(notFound); errors.Is(got, ErrStoreUnavailable) {
		t.Error("not-found error must not be retryable")
	}
	invalid := fmt.Errorf("store: %w", ErrInvalidMemory)
	if got := retryable(invalid); errors.Is(got, ErrStoreUnavailable) {
		t.Error("validation error must not be retryable")
	}
}
