// Package schema validates caller-supplied graph schema identifiers.
//
// Node labels and relationship types are structural query elements: graph
// query languages cannot parameterize them, so any backend that builds
// label or type names into query text must only ever see values that have
// passed through this package. The allowed alphabet is the usual
// identifier pattern; anything else falls back to a safe default (lenient
// mode) or is rejected (strict mode).
package schema

import (
	"errors"
	"fmt"
	"regexp"
)

const (
	// DefaultLabel is substituted for missing or invalid node labels.
	DefaultLabel = "Memory"

	// DefaultRelationshipType is substituted for missing or invalid
	// relationship types.
	DefaultRelationshipType = "RELATED_TO"
)

// ErrInvalidIdentifier indicates a label or relationship type that is not a
// safe schema identifier. Only returned by the Strict variants.
var ErrInvalidIdentifier = errors.New("invalid schema identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Valid reports whether s is a safe schema identifier.
func Valid(s string) bool {
	return identifierPattern.MatchString(s)
}

// NormalizeLabel returns label unchanged when it is a safe identifier and
// DefaultLabel otherwise (including the empty string).
func NormalizeLabel(label string) string {
	if !Valid(label) {
		return DefaultLabel
	}
	return label
}

// NormalizeRelationshipType returns t unchanged when it is a safe identifier
// and DefaultRelationshipType otherwise (including the empty string).
func NormalizeRelationshipType(t string) string {
	if !Valid(t) {
		return DefaultRelationshipType
	}
	return t
}

// StrictLabel returns label when it is a safe identifier and
// ErrInvalidIdentifier otherwise. Used by administrative create-with-exact-
// label operations that must not silently substitute the default.
func StrictLabel(label string) (string, error) {
	if !Valid(label) {
		return "", fmt.Errorf("%w: label %q", ErrInvalidIdentifier, label)
	}
	return label, nil
}

// StrictRelationshipType returns t when it is a safe identifier and
// ErrInvalidIdentifier otherwise.
func StrictRelationshipType(t string) (string, error) {
	if !Valid(t) {
		return "", fmt.Errorf("%w: relationship type %q", ErrInvalidIdentifier, t)
	}
	return t, nil
}
