package search

import (
	"context"
	"fmt"

	"github.com/dan-solli/memograph/pkg/store"
)

// PathFinder finds shortest connection chains between two memories.
type PathFinder struct {
	engine store.GraphEngine
}

// NewPathFinder creates a path finder over the given engine.
func NewPathFinder(engine store.GraphEngine) *PathFinder {
	return &PathFinder{engine: engine}
}

// Find returns the nodes along a shortest directed path from sourceID
// to targetID, following edges source-to-target only, inclusive of
// both endpoints. Paths are compared first by hop count, then by
// lower cumulative edge weight. Returns nil with no error when no
// path exists within maxDepth hops; returns store.ErrNodeNotFound
// when either endpoint is missing.
func (p *PathFinder) Find(ctx context.Context, sourceID, targetID string, maxDepth int) ([]*store.Node, error) {
	source, err := p.engine.GetNode(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("path source %q: %w", sourceID, store.ErrNodeNotFound)
	}
	target, err := p.engine.GetNode(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("path target %q: %w", targetID, store.ErrNodeNotFound)
	}

	if sourceID == targetID {
		return []*store.Node{source}, nil
	}
	if maxDepth <= 0 {
		return nil, nil
	}

	// Level-synchronous BFS. Within a level, a node reachable along
	// several paths keeps the one with the lowest cumulative weight
	// (predecessor ID as the final tie-break), so the reconstructed
	// path is deterministic.
	visited := map[string]pathVisit{sourceID: {}}
	frontier := []string{sourceID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		discovered := make(map[string]pathVisit)
		var next []string

		for _, id := range frontier {
			edges, err := p.engine.EdgesOf(ctx, id, store.DirectionOutgoing)
			if err != nil {
				return nil, err
			}
			base := visited[id].totalWeight
			for _, edge := range edges {
				if _, seen := visited[edge.TargetID]; seen {
					continue
				}
				candidate := pathVisit{predecessor: id, totalWeight: base + edge.Weight}
				existing, found := discovered[edge.TargetID]
				if !found {
					discovered[edge.TargetID] = candidate
					next = append(next, edge.TargetID)
					continue
				}
				if candidate.totalWeight < existing.totalWeight ||
					(candidate.totalWeight == existing.totalWeight && candidate.predecessor < existing.predecessor) {
					discovered[edge.TargetID] = candidate
				}
			}
		}

		for id, v := range discovered {
			visited[id] = v
		}
		if _, reached := visited[targetID]; reached {
			return p.reconstruct(ctx, sourceID, targetID, visited)
		}
		frontier = next
	}

	return nil, nil
}

type pathVisit struct {
	predecessor string
	totalWeight float64
}

func (p *PathFinder) reconstruct(ctx context.Context, sourceID, targetID string, visited map[string]pathVisit) ([]*store.Node, error) {
	var ids []string
	for id := targetID; ; id = visited[id].predecessor {
		ids = append(ids, id)
		if id == sourceID {
			break
		}
	}

	nodes := make([]*store.Node, len(ids))
	for i, id := range ids {
		node, err := p.engine.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, fmt.Errorf("path node %q: %w", id, store.ErrNodeNotFound)
		}
		nodes[len(ids)-1-i] = node
	}
	return nodes, nil
}
