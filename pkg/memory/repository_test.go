package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dan-solli/memograph/pkg/schema"
	"github.com/dan-solli/memograph/pkg/store"
)

func setupRepos(t *testing.T) (*Repository, *RelationshipRepository, store.GraphEngine) {
	t.Helper()
	engine := store.NewMemoryEngine()
	return NewRepository(engine), NewRelationshipRepository(engine), engine
}

func TestStore_DefaultsAndClamping(t *testing.T) {
	repo, _, _ := setupRepos(t)
	ctx := context.Background()

	id, err := repo.Store(ctx, Fields{
		Content:    "User loves action movies",
		Importance: 1.7,
		Confidence: -0.3,
	})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if id == "" {
		t.Fatal("Store returned empty id")
	}

	node, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if node.Importance != 1.0 {
		t.Errorf("importance not clamped: got %f, want 1.0", node.Importance)
	}
	if node.Confidence != 0.0 {
		t.Errorf("confidence not clamped: got %f, want 0.0", node.Confidence)
	}
	if node.AccessCount != 1 {
		t.Errorf("creation access count: got %d, want 1", node.AccessCount)
	}
	if node.Tags == nil || node.Properties == nil {
		t.Error("tags/properties not defaulted to empty")
	}
	if node.CreatedAt.IsZero() || node.LastAccessed.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestStore_LabelNormalization(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"absent", "", "Memory"},
		{"valid", "Person", "Person"},
		{"invalid characters", "bad label!", "Memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _, _ := setupRepos(t)
			ctx := context.Background()

			id, err := repo.Store(ctx, Fields{Content: "labeled memory", Label: tt.label})
			if err != nil {
				t.Fatalf("Store failed: %v", err)
			}

			node, err := repo.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if node.Label != tt.want {
				t.Errorf("label: got %q, want %q", node.Label, tt.want)
			}
		})
	}
}

func TestStore_EmptyContent(t *testing.T) {
	repo, _, _ := setupRepos(t)

	_, err := repo.Store(context.Background(), Fields{Content: "   "})
	if !errors.Is(err, ErrInvalidMemory) {
		t.Fatalf("expected ErrInvalidMemory, got %v", err)
	}
}

func TestStoreExact_RejectsInvalidLabel(t *testing.T) {
	repo, _, _ := setupRepos(t)
	ctx := context.Background()

	_, err := repo.StoreExact(ctx, Fields{Content: "strict", Label: "bad label!"})
	if !errors.Is(err, schema.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}

	id, err := repo.StoreExact(ctx, Fields{Content: "strict", Label: "Preference"})
	if err != nil {
		t.Fatalf("StoreExact failed for valid label: %v", err)
	}
	node, _ := repo.Get(ctx, id)
	if node.Label != "Preference" {
		t.Errorf("label: got %q, want Preference", node.Label)
	}
}

func TestGet_PureRead(t *testing.T) {
	repo, _, _ := setupRepos(t)
	ctx := context.Background()

	id, err := repo.Store(ctx, Fields{Content: "read me"})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := repo.Get(ctx, id); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}

	node, _ := repo.Get(ctx, id)
	if node.AccessCount != 1 {
		t.Errorf("Get mutated access count: got %d, want 1", node.AccessCount)
	}

	if _, err := repo.Get(ctx, "ghost"); !errors.Is(err, ErrMemoryNotFound) {
		t.Fatalf("expected ErrMemoryNotFound, got %v", err)
	}
}

func TestUpdateAccess_Monotonic(t *testing.T) {
	repo, _, _ := setupRepos(t)
	ctx := context.Background()

	id, err := repo.Store(ctx, Fields{Content: "tracked"})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	before, _ := repo.Get(ctx, id)
	var lastSeen time.Time
	const n = 4
	for i := 0; i < n; i++ {
		if err := repo.UpdateAccess(ctx, id); err != nil {
			t.Fatalf("UpdateAccess failed: %v", err)
		}
		node, _ := repo.Get(ctx, id)
		if node.LastAccessed.Before(lastSeen) {
			t.Error("lastAccessed went backwards")
		}
		lastSeen = node.LastAccessed
	}

	after, _ := repo.Get(ctx, id)
	if after.AccessCount != before.AccessCount+n {
		t.Errorf("access count: got %d, want %d", after.AccessCount, before.AccessCount+n)
	}

	if err := repo.UpdateAccess(ctx, "ghost"); !errors.Is(err, ErrMemoryNotFound) {
		t.Fatalf("expected ErrMemoryNotFound, got %v", err)
	}
}

func TestUpdateMem_PartialMerge(t *testing.T) {
	repo, _, _ := setupRepos(t)
	ctx := context.Background()

	id, err := repo.Store(ctx, Fields{
		Content:    "original content",
		Category:   "fact",
		Importance: 0.4,
	})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	importance := 2.0
	content := "updated content"
	if err := repo.UpdateMem(ctx, id, Update{Content: &content, Importance: &importance}); err != nil {
		t.Fatalf("UpdateMem failed: %v", err)
	}

	node, _ := repo.Get(ctx, id)
	if node.Content != "updated content" {
		t.Errorf("content: got %q", node.Content)
	}
	if node.Importance != 1.0 {
		t.Errorf("importance not re-clamped: got %f", node.Importance)
	}
	if node.Category != "fact" {
		t.Errorf("unspecified field modified: category %q", node.Category)
	}

	empty := " "
	if err := repo.UpdateMem(ctx, id, Update{Content: &empty}); !errors.Is(err, ErrInvalidMemory) {
		t.Fatalf("expected ErrInvalidMemory, got %v", err)
	}

	if err := repo.UpdateMem(ctx, "ghost", Update{Content: &content}); !errors.Is(err, ErrMemoryNotFound) {
		t.Fatalf("expected ErrMemoryNotFound, got %v", err)
	}
}

func TestCreateRelationship(t *testing.T) {
	repo, rels, _ := setupRepos(t)
	ctx := context.Background()

	a, _ := repo.Store(ctx, Fields{Content: "memory a"})
	b, _ := repo.Store(ctx, Fields{Content: "memory b"})

	relID, err := rels.Create(ctx, a, b, RelationshipFields{Type: "likes"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	outgoing, err := rels.Of(ctx, a, store.DirectionOutgoing)
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if len(outgoing) != 1 || outgoing[0].ID != relID {
		t.Errorf("outgoing from a: got %d edges", len(outgoing))
	}
	if outgoing[0].Type != "likes" {
		t.Errorf("type: got %q, want likes", outgoing[0].Type)
	}
	if outgoing[0].Weight != 1.0 {
		t.Errorf("default weight: got %f, want 1.0", outgoing[0].Weight)
	}

	incoming, err := rels.Of(ctx, b, store.DirectionIncoming)
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if len(incoming) != 1 || incoming[0].ID != relID {
		t.Errorf("incoming to b: got %d edges", len(incoming))
	}

	if _, err := rels.Create(ctx, a, "ghost", RelationshipFields{}); !errors.Is(err, ErrMemoryNotFound) {
		t.Fatalf("expected ErrMemoryNotFound for missing target, got %v", err)
	}
	if _, err := rels.Create(ctx, "ghost", b, RelationshipFields{}); !errors.Is(err, ErrMemoryNotFound) {
		t.Fatalf("expected ErrMemoryNotFound for missing source, got %v", err)
	}

	// Invalid type falls back to the default.
	defaulted, err := rels.Create(ctx, b, a, RelationshipFields{Type: "not valid!"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	edges, _ := rels.Of(ctx, b, store.DirectionOutgoing)
	for _, edge := range edges {
		if edge.ID == defaulted && edge.Type != "RELATED_TO" {
			t.Errorf("type not normalized: got %q", edge.Type)
		}
	}
}

func TestDelete_DetachesRelationships(t *testing.T) {
	repo, rels, engine := setupRepos(t)
	ctx := context.Background()

	a, _ := repo.Store(ctx, Fields{Content: "memory a"})
	b, _ := repo.Store(ctx, Fields{Content: "memory b"})
	if _, err := rels.Create(ctx, a, b, RelationshipFields{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.Delete(ctx, a); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	edges, err := rels.Of(ctx, b, store.DirectionBoth)
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("edges survived detach delete: %d", len(edges))
	}

	count, _ := engine.EdgeCount(ctx)
	if count != 0 {
		t.Errorf("edge count after detach delete: got %d, want 0", count)
	}

	if err := repo.Delete(ctx, a); !errors.Is(err, ErrMemoryNotFound) {
		t.Fatalf("expected ErrMemoryNotFound, got %v", err)
	}
}

func TestDeleteRelationship(t *testing.T) {
	repo, rels, _ := setupRepos(t)
	ctx := context.Background()

	a, _ := repo.Store(ctx, Fields{Content: "memory a"})
	b, _ := repo.Store(ctx, Fields{Content: "memory b"})
	relID, _ := rels.Create(ctx, a, b, RelationshipFields{})

	if err := rels.Delete(ctx, relID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := rels.Delete(ctx, relID); !errors.Is(err, ErrRelationshipNotFound) {
		t.Fatalf("expected ErrRelationshipNotFound, got %v", err)
	}
}
