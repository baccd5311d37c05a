// Package search provides relevance ranking, graph expansion, and
// path finding over the memory graph.
package search

import "github.com/dan-solli/memograph/pkg/store"

// Result represents a single search result with scoring metadata.
type Result struct {
	Node  *store.Node // Full node data
	Score float64     // Relevance score (higher is better)
	// Depth indicates the minimum graph distance from the ranked seed
	// set. 0 for direct ranking hits, >0 for nodes discovered via
	// graph expansion.
	Depth int
}

// Options configures ranking and traversal behavior.
type Options struct {
	Limit         int      // Maximum number of results to return (default: 10)
	MinImportance float64  // Drop candidates below this importance
	Categories    []string // Restrict candidates to these categories (empty: all)
}

// ApplyDefaults sets default values for unspecified options.
func ApplyDefaults(opts *Options) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
}
