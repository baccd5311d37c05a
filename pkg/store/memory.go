package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryEngine implements GraphEngine with in-process maps. It is used by
// tests and by embedders that want the engine semantics without a database.
// A single RWMutex stands in for the transactional scoping the database
// engines get from their store.
type MemoryEngine struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[string]*Edge
}

// NewMemoryEngine creates an empty in-process graph engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
	}
}

// cloneNode copies a node so callers never alias internal state.
func cloneNode(node *Node) *Node {
	clone := *node
	if node.Tags != nil {
		clone.Tags = make([]string, len(node.Tags))
		copy(clone.Tags, node.Tags)
	}
	if node.Properties != nil {
		clone.Properties = make(map[string]any, len(node.Properties))
		for k, v := range node.Properties {
			clone.Properties[k] = v
		}
	}
	return &clone
}

func cloneEdge(edge *Edge) *Edge {
	clone := *edge
	if edge.Properties != nil {
		clone.Properties = make(map[string]any, len(edge.Properties))
		for k, v := range edge.Properties {
			clone.Properties[k] = v
		}
	}
	return &clone
}

// InsertNode persists a new node.
func (m *MemoryEngine) InsertNode(ctx context.Context, node *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[node.ID]; exists {
		return fmt.Errorf("%w: node %s", ErrDuplicateID, node.ID)
	}
	m.nodes[node.ID] = cloneNode(node)
	return nil
}

// GetNode retrieves a node by ID. Returns (nil, nil) when absent.
func (m *MemoryEngine) GetNode(ctx context.Context, id string) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.nodes[id]
	if !ok {
		return nil, nil
	}
	return cloneNode(node), nil
}

// UpdateNode writes the full node row, preserving CreatedAt, AccessCount
// and LastAccessed (those change only through TouchNode).
func (m *MemoryEngine) UpdateNode(ctx context.Context, node *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.nodes[node.ID]
	if !ok {
		return ErrNodeNotFound
	}

	updated := cloneNode(node)
	updated.CreatedAt = existing.CreatedAt
	updated.AccessCount = existing.AccessCount
	updated.LastAccessed = existing.LastAccessed
	m.nodes[node.ID] = updated
	return nil
}

// TouchNode increments the access count and refreshes the access timestamp.
func (m *MemoryEngine) TouchNode(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	node.AccessCount++
	node.LastAccessed = time.Now()
	return nil
}

// DeleteNode removes a node and every edge referencing it.
func (m *MemoryEngine) DeleteNode(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[id]; !ok {
		return ErrNodeNotFound
	}
	delete(m.nodes, id)

	for edgeID, edge := range m.edges {
		if edge.SourceID == id || edge.TargetID == id {
			delete(m.edges, edgeID)
		}
	}
	return nil
}

// InsertEdge verifies both endpoints under the write lock, so a concurrent
// node delete cannot race a dangling edge into the graph.
func (m *MemoryEngine) InsertEdge(ctx context.Context, edge *Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[edge.SourceID]; !ok {
		return fmt.Errorf("%w: endpoint %s", ErrNodeNotFound, edge.SourceID)
	}
	if _, ok := m.nodes[edge.TargetID]; !ok {
		return fmt.Errorf("%w: endpoint %s", ErrNodeNotFound, edge.TargetID)
	}
	if _, exists := m.edges[edge.ID]; exists {
		return fmt.Errorf("%w: edge %s", ErrDuplicateID, edge.ID)
	}

	m.edges[edge.ID] = cloneEdge(edge)
	return nil
}

// GetEdge retrieves an edge by ID. Returns (nil, nil) when absent.
func (m *MemoryEngine) GetEdge(ctx context.Context, id string) (*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	edge, ok := m.edges[id]
	if !ok {
		return nil, nil
	}
	return cloneEdge(edge), nil
}

// DeleteEdge removes an edge by ID.
func (m *MemoryEngine) DeleteEdge(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.edges[id]; !ok {
		return ErrEdgeNotFound
	}
	delete(m.edges, id)
	return nil
}

// EdgesOf retrieves edges incident to a node in the given direction.
func (m *MemoryEngine) EdgesOf(ctx context.Context, nodeID string, dir Direction) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	edges := make([]*Edge, 0)
	for _, edge := range m.edges {
		var match bool
		switch dir {
		case DirectionOutgoing:
			match = edge.SourceID == nodeID
		case DirectionIncoming:
			match = edge.TargetID == nodeID
		default:
			match = edge.SourceID == nodeID || edge.TargetID == nodeID
		}
		if match {
			edges = append(edges, cloneEdge(edge))
		}
	}

	sortEdges(edges)
	return edges, nil
}

// Neighbors retrieves the unique nodes within depth hops, undirected.
func (m *MemoryEngine) Neighbors(ctx context.Context, nodeID string, depth int) ([]*Node, error) {
	if depth < 1 {
		return nil, fmt.Errorf("depth must be at least 1")
	}

	visited := make(map[string]bool)
	visited[nodeID] = true
	frontier := []string{nodeID}

	for d := 0; d < depth; d++ {
		var nextFrontier []string

		for _, currentID := range frontier {
			edges, err := m.EdgesOf(ctx, currentID, DirectionBoth)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				neighborID := edge.TargetID
				if edge.SourceID != currentID {
					neighborID = edge.SourceID
				}
				if !visited[neighborID] {
					visited[neighborID] = true
					nextFrontier = append(nextFrontier, neighborID)
				}
			}
		}

		frontier = nextFrontier
		if len(frontier) == 0 {
			break
		}
	}

	delete(visited, nodeID)

	m.mu.RLock()
	defer m.mu.RUnlock()

	neighbors := make([]*Node, 0, len(visited))
	for neighborID := range visited {
		if node, ok := m.nodes[neighborID]; ok {
			neighbors = append(neighbors, cloneNode(node))
		}
	}
	return neighbors, nil
}

// FindCandidates runs the recall pass: a node is a candidate when any
// query token is contained in its content, a tag, the category or the
// context, case-insensitive. An empty query matches everything.
func (m *MemoryEngine) FindCandidates(ctx context.Context, filter CandidateFilter) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := strings.Fields(strings.ToLower(filter.Query))

	wantCategory := make(map[string]bool, len(filter.Categories))
	for _, category := range filter.Categories {
		wantCategory[category] = true
	}

	candidates := make([]*Node, 0)
	for _, node := range m.nodes {
		if node.Importance < filter.MinImportance {
			continue
		}
		if len(wantCategory) > 0 && !wantCategory[node.Category] {
			continue
		}
		if !candidateMatches(node, tokens) {
			continue
		}
		candidates = append(candidates, cloneNode(node))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates, nil
}

func candidateMatches(node *Node, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	content := strings.ToLower(node.Content)
	category := strings.ToLower(node.Category)
	context := strings.ToLower(node.Context)
	for _, token := range tokens {
		if strings.Contains(content, token) ||
			strings.Contains(category, token) ||
			strings.Contains(context, token) {
			return true
		}
		for _, tag := range node.Tags {
			if strings.Contains(strings.ToLower(tag), token) {
				return true
			}
		}
	}
	return false
}

// NodeCount returns the total number of nodes.
func (m *MemoryEngine) NodeCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the total number of edges.
func (m *MemoryEngine) EdgeCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.edges)), nil
}

// CategoryCounts returns the number of nodes per non-empty category.
func (m *MemoryEngine) CategoryCounts(ctx context.Context) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64)
	for _, node := range m.nodes {
		if node.Category != "" {
			counts[node.Category]++
		}
	}
	return counts, nil
}

// AverageImportance returns the mean importance, 0 for an empty graph.
func (m *MemoryEngine) AverageImportance(ctx context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.nodes) == 0 {
		return 0, nil
	}

	var sum float64
	for _, node := range m.nodes {
		sum += node.Importance
	}
	return sum / float64(len(m.nodes)), nil
}

// Close releases nothing for the in-process engine.
func (m *MemoryEngine) Close() error {
	return nil
}

func sortEdges(edges []*Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].CreatedAt.Before(edges[j].CreatedAt)
		}
		return edges[i].ID < edges[j].ID
	})
}

// Compile-time interface check
var _ GraphEngine = (*MemoryEngine)(nil)
