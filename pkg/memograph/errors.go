package memograph

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/dan-solli/memograph/pkg/memory"
	"github.com/dan-solli/memograph/pkg/schema"
	"github.com/dan-solli/memograph/pkg/store"
)

// Sentinel errors re-exported for caller convenience.
var (
	// ErrInvalidMemory indicates a memory failed validation (e.g.
	// empty content).
	ErrInvalidMemory = memory.ErrInvalidMemory

	// ErrInvalidSchemaIdentifier indicates a label or relationship
	// type was rejected in strict mode.
	ErrInvalidSchemaIdentifier = schema.ErrInvalidIdentifier

	// ErrMemoryNotFound indicates the referenced memory does not
	// exist. Also returned for absent relationship or path endpoints.
	ErrMemoryNotFound = memory.ErrMemoryNotFound

	// ErrRelationshipNotFound indicates the referenced relationship
	// does not exist.
	ErrRelationshipNotFound = memory.ErrRelationshipNotFound

	// ErrConflictingWrite indicates a write collided with an existing
	// record, e.g. an explicit ID already in use.
	ErrConflictingWrite = store.ErrDuplicateID
)

// ErrStoreUnavailable wraps engine failures that are worth retrying:
// the backing store could not be reached or a statement failed for
// infrastructure reasons. Validation and not-found errors are never
// wrapped as retryable.
var ErrStoreUnavailable = errors.New("memory store unavailable")

// Error type constants for classification
const (
	ErrTypeNetwork    = "network"
	ErrTypeTimeout    = "timeout"
	ErrTypeDatabase   = "database"
	ErrTypeValidation = "validation"
	ErrTypeNotFound   = "not_found"
	ErrTypeConflict   = "conflict"
	ErrTypeUnknown    = "unknown"
)

// ClassifyError inspects an error and returns its type classification.
// This enables grouping errors by category in metrics and traces.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidMemory), errors.Is(err, ErrInvalidSchemaIdentifier):
		return ErrTypeValidation
	case errors.Is(err, ErrMemoryNotFound), errors.Is(err, ErrRelationshipNotFound),
		errors.Is(err, store.ErrNodeNotFound), errors.Is(err, store.ErrEdgeNotFound):
		return ErrTypeNotFound
	case errors.Is(err, ErrConflictingWrite):
		return ErrTypeConflict
	}

	errStrLower := strings.ToLower(err.Error())

	// Check for timeout errors
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(errStrLower, "timeout") || strings.Contains(errStrLower, "deadline exceeded") {
		return ErrTypeTimeout
	}

	// Check for network errors
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return ErrTypeNetwork
	}
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "connection reset") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "network is unreachable") ||
		strings.Contains(errStrLower, "dial tcp") ||
		strings.Contains(errStrLower, "eof") {
		return ErrTypeNetwork
	}

	// Check for database errors (SQLite and Neo4j)
	if strings.Contains(errStrLower, "sql") ||
		strings.Contains(errStrLower, "database") ||
		strings.Contains(errStrLower, "constraint") ||
		strings.Contains(errStrLower, "neo4j") ||
		strings.Contains(errStrLower, "cypher") {
		return ErrTypeDatabase
	}

	// Check for validation errors
	if strings.Contains(errStrLower, "validation") ||
		strings.Contains(errStrLower, "invalid") ||
		strings.Contains(errStrLower, "required") ||
		strings.Contains(errStrLower, "cannot be empty") ||
		strings.Contains(errStrLower, "must be") {
		return ErrTypeValidation
	}

	// Default to unknown
	return ErrTypeUnknown
}

// retryable wraps infrastructure failures in ErrStoreUnavailable so
// callers can distinguish them from domain errors. Domain errors pass
// through unchanged.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	switch ClassifyError(err) {
	case ErrTypeDatabase, ErrTypeNetwork, ErrTypeTimeout:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
