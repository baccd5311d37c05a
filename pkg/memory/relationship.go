package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dan-solli/memograph/pkg/schema"
	"github.com/dan-solli/memograph/pkg/store"
)

// RelationshipFields is the caller-supplied payload for linking two memories.
type RelationshipFields struct {
	ID         string  // Optional; generated when empty
	Type       string  // Normalized through the schema package
	Weight     float64 // Defaults to 1.0 when zero
	Context    string
	Confidence float64 // Clamped into [0,1]
	Properties map[string]any
}

// RelationshipRepository provides edge lifecycle over a graph engine.
// Edges are directed source->target; traversal decides direction per query.
type RelationshipRepository struct {
	engine store.GraphEngine
	now    func() time.Time
}

// NewRelationshipRepository creates a relationship repository backed by engine.
func NewRelationshipRepository(engine store.GraphEngine) *RelationshipRepository {
	return &RelationshipRepository{engine: engine, now: time.Now}
}

// Create links sourceID to targetID with a typed, weighted edge and returns
// the edge ID. Both endpoints must exist; the engine verifies them inside
// the same transaction that writes the edge.
func (r *RelationshipRepository) Create(ctx context.Context, sourceID, targetID string, f RelationshipFields) (string, error) {
	id := f.ID
	if id == "" {
		id = uuid.New().String()
	}

	weight := f.Weight
	if weight == 0 {
		weight = 1.0
	}

	edge := &store.Edge{
		ID:         id,
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       schema.NormalizeRelationshipType(f.Type),
		Weight:     weight,
		Context:    f.Context,
		Confidence: clamp01(f.Confidence),
		Properties: f.Properties,
		CreatedAt:  r.now(),
	}

	if err := r.engine.InsertEdge(ctx, edge); err != nil {
		if errors.Is(err, store.ErrNodeNotFound) {
			return "", fmt.Errorf("%w: relationship endpoint", ErrMemoryNotFound)
		}
		return "", err
	}
	return id, nil
}

// Delete removes a relationship by ID.
func (r *RelationshipRepository) Delete(ctx context.Context, id string) error {
	if err := r.engine.DeleteEdge(ctx, id); err != nil {
		if errors.Is(err, store.ErrEdgeNotFound) {
			return fmt.Errorf("%w: %s", ErrRelationshipNotFound, id)
		}
		return err
	}
	return nil
}

// Of retrieves the relationships incident to a memory in the given
// direction. A memory with no relationships (or an unknown ID) yields an
// empty slice.
func (r *RelationshipRepository) Of(ctx context.Context, nodeID string, dir store.Direction) ([]*store.Edge, error) {
	return r.engine.EdgesOf(ctx, nodeID, dir)
}
