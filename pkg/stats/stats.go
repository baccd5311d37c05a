// Package stats aggregates summary figures over the memory graph.
package stats

import (
	"context"

	"github.com/dan-solli/memograph/pkg/store"
)

// Stats summarizes the current state of the graph.
type Stats struct {
	TotalMemories      int64            `json:"total_memories"`
	TotalRelationships int64            `json:"total_relationships"`
	Categories         map[string]int64 `json:"categories"`
	AverageImportance  float64          `json:"average_importance"`
}

// Aggregator collects stats from a graph engine.
type Aggregator struct {
	engine store.GraphEngine
}

// NewAggregator creates an aggregator over the given engine.
func NewAggregator(engine store.GraphEngine) *Aggregator {
	return &Aggregator{engine: engine}
}

// Collect gathers the current counts and averages. An empty store
// yields zero values with a non-nil category map.
func (a *Aggregator) Collect(ctx context.Context) (*Stats, error) {
	nodes, err := a.engine.NodeCount(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := a.engine.EdgeCount(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := a.engine.CategoryCounts(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = make(map[string]int64)
	}
	avg, err := a.engine.AverageImportance(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalMemories:      nodes,
		TotalRelationships: edges,
		Categories:         categories,
		AverageImportance:  avg,
	}, nil
}
