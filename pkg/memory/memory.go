// Package memory implements node and relationship lifecycle for the memory
// graph: validation, clamping, schema normalization and access tracking on
// top of a store.GraphEngine.
package memory

import (
	"errors"
	"fmt"

	"github.com/dan-solli/memograph/pkg/store"
)

// ErrInvalidMemory indicates a store or update request with a missing or
// unusable required field. Detected before any persistence call.
var ErrInvalidMemory = errors.New("invalid memory")

// ErrMemoryNotFound indicates that no memory exists for the given ID.
// This is an expected outcome for read paths, not an infrastructure failure.
var ErrMemoryNotFound = fmt.Errorf("memory not found")

// ErrRelationshipNotFound indicates that no relationship exists for the
// given ID.
var ErrRelationshipNotFound = fmt.Errorf("relationship not found")

// MapStoreError translates store-level not-found sentinels into this
// package's memory-level ones. Other errors pass through unchanged.
func MapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNodeNotFound):
		return fmt.Errorf("%w: %v", ErrMemoryNotFound, err)
	case errors.Is(err, store.ErrEdgeNotFound):
		return fmt.Errorf("%w: %v", ErrRelationshipNotFound, err)
	}
	return err
}

// clamp01 bounds a score field into [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
