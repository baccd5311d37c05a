package memograph

import (
	"context"
	"time"

	"github.com/dan-solli/memograph/pkg/memory"
	"github.com/dan-solli/memograph/pkg/stats"
	"github.com/dan-solli/memograph/pkg/store"
)

// StoreMemory creates a new memory and returns its ID. An invalid
// label falls back to the default; content is required.
func (m *Memograph) StoreMemory(ctx context.Context, fields MemoryFields) (id string, err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "store", start, t, map[string]interface{}{"memoryId": id}, err)
	}()

	finish := t.span("write-graph")
	id, err = m.memories.Store(ctx, fields)
	finish(err, nil)
	return id, retryable(err)
}

// StoreMemoryStrict creates a new memory but rejects invalid labels
// with ErrInvalidSchemaIdentifier instead of falling back.
func (m *Memograph) StoreMemoryStrict(ctx context.Context, fields MemoryFields) (id string, err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "store", start, t, map[string]interface{}{"memoryId": id}, err)
	}()

	finish := t.span("write-graph")
	id, err = m.memories.StoreExact(ctx, fields)
	finish(err, nil)
	return id, retryable(err)
}

// GetMemory returns a memory by ID without touching its access
// tracking. Returns ErrMemoryNotFound when absent.
func (m *Memograph) GetMemory(ctx context.Context, id string) (node *Memory, err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "get", start, t, map[string]interface{}{"memoryId": id}, err)
	}()

	finish := t.span("read-graph")
	node, err = m.memories.Get(ctx, id)
	finish(err, nil)
	return node, retryable(err)
}

// UpdateMemory applies a partial update to a memory. Unset fields are
// left untouched.
func (m *Memograph) UpdateMemory(ctx context.Context, id string, update MemoryUpdate) (err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "update", start, t, map[string]interface{}{"memoryId": id}, err)
	}()

	finish := t.span("write-graph")
	err = m.memories.UpdateMem(ctx, id, update)
	finish(err, nil)
	return retryable(err)
}

// UpdateMemoryAccess increments a memory's access count and refreshes
// its last-accessed timestamp.
func (m *Memograph) UpdateMemoryAccess(ctx context.Context, id string) (err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "update_access", start, t, map[string]interface{}{"memoryId": id}, err)
	}()

	finish := t.span("write-graph")
	err = m.memories.UpdateAccess(ctx, id)
	finish(err, nil)
	return retryable(err)
}

// DeleteMemory removes a memory and all relationships attached to it.
func (m *Memograph) DeleteMemory(ctx context.Context, id string) (err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "delete", start, t, map[string]interface{}{"memoryId": id}, err)
	}()

	finish := t.span("write-graph")
	err = m.memories.Delete(ctx, id)
	finish(err, nil)
	return retryable(err)
}

// CreateRelationship links two memories with a directed, typed edge
// and returns the relationship ID. Both endpoints must exist.
func (m *Memograph) CreateRelationship(ctx context.Context, sourceID, targetID string, fields RelationshipFields) (id string, err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "relate", start, t, map[string]interface{}{
			"relationshipId": id,
			"sourceId":       sourceID,
			"targetId":       targetID,
		}, err)
	}()

	finish := t.span("write-graph")
	id, err = m.relationships.Create(ctx, sourceID, targetID, fields)
	finish(err, nil)
	return id, retryable(err)
}

// DeleteRelationship removes a relationship by ID.
func (m *Memograph) DeleteRelationship(ctx context.Context, id string) (err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "unrelate", start, t, map[string]interface{}{"relationshipId": id}, err)
	}()

	finish := t.span("write-graph")
	err = m.relationships.Delete(ctx, id)
	finish(err, nil)
	return retryable(err)
}

// GetRelationshipsOf returns the relationships touching a memory in
// the given direction.
func (m *Memograph) GetRelationshipsOf(ctx context.Context, id string, direction store.Direction) (edges []*Relationship, err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "relationships_of", start, t, map[string]interface{}{"memoryId": id}, err)
	}()

	finish := t.span("read-graph")
	edges, err = m.relationships.Of(ctx, id, direction)
	finish(err, map[string]int64{"resultsReturned": int64(len(edges))})
	return edges, retryable(err)
}

// SearchMemories ranks stored memories against a text query and
// returns the best matches. The read is pure: access tracking is the
// caller's call, via UpdateMemoryAccess.
func (m *Memograph) SearchMemories(ctx context.Context, query string, opts SearchOptions) (results []SearchResult, err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "search", start, t, nil, err)
	}()

	finish := t.span("rank")
	results, err = m.ranker.Search(ctx, query, opts)
	finish(err, map[string]int64{"resultsReturned": int64(len(results))})
	return results, retryable(err)
}

// GraphSearch ranks seed memories for the query and expands through
// their relationships up to maxDepth hops. maxDepth 0 returns exactly
// the ranked seeds.
func (m *Memograph) GraphSearch(ctx context.Context, query string, maxDepth int, opts SearchOptions) (results []SearchResult, err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "search", start, t, nil, err)
	}()

	finish := t.span("expand")
	results, err = m.traversal.Search(ctx, query, maxDepth, opts)
	finish(err, map[string]int64{"resultsReturned": int64(len(results))})
	return results, retryable(err)
}

// FindPath returns the memories along a shortest directed path from
// sourceID to targetID, bounded by maxDepth hops. No path within the
// bound yields (nil, nil); missing endpoints yield ErrMemoryNotFound.
func (m *Memograph) FindPath(ctx context.Context, sourceID, targetID string, maxDepth int) (path []*Memory, err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "find_path", start, t, map[string]interface{}{
			"sourceId": sourceID,
			"targetId": targetID,
		}, err)
	}()

	finish := t.span("path")
	path, err = m.paths.Find(ctx, sourceID, targetID, maxDepth)
	if err != nil {
		err = memory.MapStoreError(err)
	}
	finish(err, map[string]int64{"pathLength": int64(len(path))})
	return path, retryable(err)
}

// GetMemoryStats returns summary figures for the stored graph.
func (m *Memograph) GetMemoryStats(ctx context.Context) (summary *stats.Stats, err error) {
	start := time.Now()
	t := &opTrace{}
	defer func() {
		m.finishOp(ctx, "stats", start, t, nil, err)
	}()

	finish := t.span("aggregate")
	summary, err = m.aggregator.Collect(ctx)
	finish(err, nil)
	if err == nil && m.metrics != nil {
		m.metrics.SetStorageCount(ctx, "memories", summary.TotalMemories)
		m.metrics.SetStorageCount(ctx, "relationships", summary.TotalRelationships)
	}
	return summary, retryable(err)
}
