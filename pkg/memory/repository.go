package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dan-solli/memograph/pkg/schema"
	"github.com/dan-solli/memograph/pkg/store"
)

// Fields is the caller-supplied payload for storing a memory.
type Fields struct {
	ID         string // Optional; generated when empty
	Label      string // Normalized through the schema package
	Content    string // Required
	Category   string
	Importance float64 // Clamped into [0,1]
	Confidence float64 // Clamped into [0,1]
	Tags       []string
	Context    string
	Properties map[string]any
}

// Update represents a partial update to a memory. All fields are pointers to
// distinguish between "not provided" and "set to zero value".
type Update struct {
	Label      *string
	Content    *string
	Category   *string
	Importance *float64
	Confidence *float64
	Tags       *[]string
	Context    *string
	Properties *map[string]any
}

// Repository provides memory node lifecycle over a graph engine.
type Repository struct {
	engine store.GraphEngine
	now    func() time.Time
}

// NewRepository creates a memory repository backed by engine.
func NewRepository(engine store.GraphEngine) *Repository {
	return &Repository{engine: engine, now: time.Now}
}

// buildNode validates and normalizes fields into a persistable node.
// Creation counts as the first access, so AccessCount starts at 1.
func (r *Repository) buildNode(f Fields, label string) (*store.Node, error) {
	if strings.TrimSpace(f.Content) == "" {
		return nil, fmt.Errorf("%w: content must not be empty", ErrInvalidMemory)
	}

	id := f.ID
	if id == "" {
		id = uuid.New().String()
	}

	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	properties := f.Properties
	if properties == nil {
		properties = map[string]any{}
	}

	now := r.now()
	return &store.Node{
		ID:           id,
		Label:        label,
		Content:      f.Content,
		Category:     f.Category,
		Importance:   clamp01(f.Importance),
		Confidence:   clamp01(f.Confidence),
		Tags:         tags,
		Context:      f.Context,
		Properties:   properties,
		AccessCount:  1,
		LastAccessed: now,
		CreatedAt:    now,
	}, nil
}

// Store validates, normalizes and persists a new memory, returning its ID.
// An invalid label silently falls back to the default (lenient mode).
func (r *Repository) Store(ctx context.Context, f Fields) (string, error) {
	node, err := r.buildNode(f, schema.NormalizeLabel(f.Label))
	if err != nil {
		return "", err
	}
	if err := r.engine.InsertNode(ctx, node); err != nil {
		return "", err
	}
	return node.ID, nil
}

// StoreExact is the administrative variant of Store: the label must be a
// valid schema identifier, no default substitution.
func (r *Repository) StoreExact(ctx context.Context, f Fields) (string, error) {
	label, err := schema.StrictLabel(f.Label)
	if err != nil {
		return "", err
	}
	node, err := r.buildNode(f, label)
	if err != nil {
		return "", err
	}
	if err := r.engine.InsertNode(ctx, node); err != nil {
		return "", err
	}
	return node.ID, nil
}

// Get retrieves a memory by ID. Pure read: access tracking is a separate,
// explicit operation (UpdateAccess).
func (r *Repository) Get(ctx context.Context, id string) (*store.Node, error) {
	node, err := r.engine.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrMemoryNotFound, id)
	}
	return node, nil
}

// UpdateMem merges the provided fields into the existing memory. Unset
// fields are untouched; importance and confidence are re-clamped when
// present.
func (r *Repository) UpdateMem(ctx context.Context, id string, u Update) error {
	node, err := r.engine.GetNode(ctx, id)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("%w: %s", ErrMemoryNotFound, id)
	}

	if u.Label != nil {
		node.Label = schema.NormalizeLabel(*u.Label)
	}
	if u.Content != nil {
		if strings.TrimSpace(*u.Content) == "" {
			return fmt.Errorf("%w: content must not be empty", ErrInvalidMemory)
		}
		node.Content = *u.Content
	}
	if u.Category != nil {
		node.Category = *u.Category
	}
	if u.Importance != nil {
		node.Importance = clamp01(*u.Importance)
	}
	if u.Confidence != nil {
		node.Confidence = clamp01(*u.Confidence)
	}
	if u.Tags != nil {
		node.Tags = *u.Tags
	}
	if u.Context != nil {
		node.Context = *u.Context
	}
	if u.Properties != nil {
		node.Properties = *u.Properties
	}

	if err := r.engine.UpdateNode(ctx, node); err != nil {
		if errors.Is(err, store.ErrNodeNotFound) {
			return fmt.Errorf("%w: %s", ErrMemoryNotFound, id)
		}
		return err
	}
	return nil
}

// UpdateAccess records one read-through access: access count +1 and a fresh
// last-accessed timestamp. Each call is exactly one increment.
func (r *Repository) UpdateAccess(ctx context.Context, id string) error {
	if err := r.engine.TouchNode(ctx, id); err != nil {
		if errors.Is(err, store.ErrNodeNotFound) {
			return fmt.Errorf("%w: %s", ErrMemoryNotFound, id)
		}
		return err
	}
	return nil
}

// Delete removes a memory and, per the detach-delete policy, every
// relationship referencing it.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.engine.DeleteNode(ctx, id); err != nil {
		if errors.Is(err, store.ErrNodeNotFound) {
			return fmt.Errorf("%w: %s", ErrMemoryNotFound, id)
		}
		return err
	}
	return nil
}
