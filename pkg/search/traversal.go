package search

import (
	"context"
	"sort"

	"github.com/dan-solli/memograph/pkg/store"
)

// DefaultDepthPenalty is subtracted from a node's relevance score for
// every hop it sits away from the ranked seed set.
const DefaultDepthPenalty = 0.05

// DefaultSeedLimit caps how many ranked seeds the expansion starts from.
const DefaultSeedLimit = 10

// Traversal expands ranked search results through the graph,
// surfacing memories connected to the strongest direct matches.
type Traversal struct {
	engine       store.GraphEngine
	ranker       *Ranker
	seedLimit    int
	depthPenalty float64
}

// NewTraversal creates a traversal over the given engine and ranker.
// A non-positive seedLimit falls back to DefaultSeedLimit, a
// non-positive depthPenalty to DefaultDepthPenalty.
func NewTraversal(engine store.GraphEngine, ranker *Ranker, seedLimit int, depthPenalty float64) *Traversal {
	if seedLimit <= 0 {
		seedLimit = DefaultSeedLimit
	}
	if depthPenalty <= 0 {
		depthPenalty = DefaultDepthPenalty
	}
	return &Traversal{engine: engine, ranker: ranker, seedLimit: seedLimit, depthPenalty: depthPenalty}
}

// Search ranks up to seedLimit seeds for the query, then walks outward
// up to maxDepth hops following edges in both directions. Each
// discovered neighbor scores its own relevance against the query minus
// a per-hop penalty, so a strong match several hops out can outrank a
// weak match next to a seed. A node reachable along several paths keeps
// its shallowest depth. With maxDepth 0 the result is exactly the
// ranked seeds; the final result is truncated to opts.Limit.
func (t *Traversal) Search(ctx context.Context, query string, maxDepth int, opts Options) ([]Result, error) {
	ApplyDefaults(&opts)

	seedOpts := opts
	seedOpts.Limit = t.seedLimit
	seeds, err := t.ranker.Search(ctx, query, seedOpts)
	if err != nil {
		return nil, err
	}
	if maxDepth <= 0 || len(seeds) == 0 {
		if len(seeds) > opts.Limit {
			seeds = seeds[:opts.Limit]
		}
		return seeds, nil
	}

	now := t.ranker.now()

	type entry struct {
		node  *store.Node
		score float64
		depth int
	}
	found := make(map[string]*entry, len(seeds))

	type frontierItem struct {
		id    string
		depth int
	}
	var frontier []frontierItem
	for _, seed := range seeds {
		found[seed.Node.ID] = &entry{node: seed.Node, score: seed.Score, depth: 0}
		frontier = append(frontier, frontierItem{id: seed.Node.ID, depth: 0})
	}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		if current.depth >= maxDepth {
			continue
		}

		edges, err := t.engine.EdgesOf(ctx, current.id, store.DirectionBoth)
		if err != nil {
			return nil, err
		}

		nextDepth := current.depth + 1
		for _, edge := range edges {
			neighborID := edge.TargetID
			if neighborID == current.id {
				neighborID = edge.SourceID
			}

			if existing, ok := found[neighborID]; ok {
				if nextDepth < existing.depth {
					existing.depth = nextDepth
					existing.score = Score(existing.node, query, now, t.ranker.weights) -
						t.depthPenalty*float64(nextDepth)
				}
				continue
			}

			node, err := t.engine.GetNode(ctx, neighborID)
			if err != nil {
				return nil, err
			}
			if node == nil {
				continue
			}

			found[neighborID] = &entry{
				node:  node,
				score: Score(node, query, now, t.ranker.weights) - t.depthPenalty*float64(nextDepth),
				depth: nextDepth,
			}
			frontier = append(frontier, frontierItem{id: neighborID, depth: nextDepth})
		}
	}

	results := make([]Result, 0, len(found))
	for _, e := range found {
		results = append(results, Result{Node: e.node, Score: e.score, Depth: e.depth})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Depth != results[j].Depth {
			return results[i].Depth < results[j].Depth
		}
		return results[i].Node.ID < results[j].Node.ID
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}
