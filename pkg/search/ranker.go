package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dan-solli/memograph/pkg/store"
)

// RankWeights controls how the components of a relevance score are
// combined. The weights are applied as-is; callers who want a
// normalized blend should make them sum to 1.
type RankWeights struct {
	TextMatch  float64
	Importance float64
	Confidence float64
	Recency    float64
}

// DefaultRankWeights favors text relevance while still letting
// frequently useful, recently touched memories surface.
var DefaultRankWeights = RankWeights{
	TextMatch:  0.5,
	Importance: 0.2,
	Confidence: 0.15,
	Recency:    0.15,
}

// Ranker scores stored memories against a text query.
type Ranker struct {
	engine  store.GraphEngine
	weights RankWeights
	now     func() time.Time
}

// NewRanker creates a ranker over the given engine. Zero weights fall
// back to DefaultRankWeights.
func NewRanker(engine store.GraphEngine, weights RankWeights) *Ranker {
	if weights == (RankWeights{}) {
		weights = DefaultRankWeights
	}
	return &Ranker{engine: engine, weights: weights, now: time.Now}
}

// Search ranks candidate memories against the query and returns the
// top results ordered by score descending. Ties are broken by most
// recently accessed, then by ID so results are deterministic.
func (r *Ranker) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	ApplyDefaults(&opts)

	candidates, err := r.engine.FindCandidates(ctx, store.CandidateFilter{
		Query:         query,
		Categories:    opts.Categories,
		MinImportance: opts.MinImportance,
	})
	if err != nil {
		return nil, err
	}

	now := r.now()
	results := make([]Result, 0, len(candidates))
	for _, node := range candidates {
		results = append(results, Result{
			Node:  node,
			Score: Score(node, query, now, r.weights),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Node.LastAccessed.Equal(results[j].Node.LastAccessed) {
			return results[i].Node.LastAccessed.After(results[j].Node.LastAccessed)
		}
		return results[i].Node.ID < results[j].Node.ID
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Score computes the weighted relevance of a node against a query at
// the given moment.
func Score(node *store.Node, query string, now time.Time, weights RankWeights) float64 {
	return weights.TextMatch*textMatchScore(node, query) +
		weights.Importance*node.Importance +
		weights.Confidence*node.Confidence +
		weights.Recency*recencyScore(node.LastAccessed, now)
}

// textMatchScore scores how well a node's text matches the query.
// A full substring match of the query in the content scores 1.0;
// otherwise the score is the fraction of query tokens found in the
// content or tags.
func textMatchScore(node *store.Node, query string) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return 0
	}

	content := strings.ToLower(node.Content)
	if strings.Contains(content, query) {
		return 1.0
	}

	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return 0
	}

	tags := make([]string, len(node.Tags))
	for i, tag := range node.Tags {
		tags[i] = strings.ToLower(tag)
	}

	matched := 0
	for _, token := range tokens {
		if strings.Contains(content, token) {
			matched++
			continue
		}
		for _, tag := range tags {
			if strings.Contains(tag, token) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(tokens))
}

// recencyScore decays with days since last access: 1 for a memory
// touched now, 0.5 after a day, approaching 0 for stale memories.
func recencyScore(lastAccessed, now time.Time) float64 {
	if lastAccessed.IsZero() {
		return 0
	}
	days := now.Sub(lastAccessed).Hours() / 24
	if days < 0 {
		days = 0
	}
	return 1.0 / (1.0 + days)
}
