package search

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/dan-solli/memograph/pkg/store"
)

func addNode(t *testing.T, engine store.GraphEngine, node *store.Node) {
	t.Helper()
	if node.Label == "" {
		node.Label = "Memory"
	}
	if node.LastAccessed.IsZero() {
		node.LastAccessed = time.Now()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = node.LastAccessed
	}
	if node.AccessCount == 0 {
		node.AccessCount = 1
	}
	if err := engine.InsertNode(context.Background(), node); err != nil {
		t.Fatalf("InsertNode(%s) failed: %v", node.ID, err)
	}
}

func addEdge(t *testing.T, engine store.GraphEngine, id, source, target, edgeType string, weight float64) {
	t.Helper()
	err := engine.InsertEdge(context.Background(), &store.Edge{
		ID:        id,
		SourceID:  source,
		TargetID:  target,
		Type:      edgeType,
		Weight:    weight,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("InsertEdge(%s) failed: %v", id, err)
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore_Components(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	node := &store.Node{
		ID:           "n1",
		Content:      "User loves action movies",
		Tags:         []string{"movies", "preferences"},
		Importance:   0.8,
		Confidence:   0.6,
		LastAccessed: now.Add(-24 * time.Hour),
	}

	// Full substring match: text component is 1.0, recency after one
	// day is 0.5.
	got := Score(node, "action movies", now, DefaultRankWeights)
	want := 0.5*1.0 + 0.2*0.8 + 0.15*0.6 + 0.15*0.5
	if !almostEqual(got, want) {
		t.Errorf("full match score: got %f, want %f", got, want)
	}

	// Partial match: 1 of 2 tokens present.
	got = Score(node, "action cinema", now, DefaultRankWeights)
	want = 0.5*0.5 + 0.2*0.8 + 0.15*0.6 + 0.15*0.5
	if !almostEqual(got, want) {
		t.Errorf("partial match score: got %f, want %f", got, want)
	}

	// Token found via tags only.
	got = Score(node, "preferences", now, DefaultRankWeights)
	want = 0.5*1.0 + 0.2*0.8 + 0.15*0.6 + 0.15*0.5
	if !almostEqual(got, want) {
		t.Errorf("tag match score: got %f, want %f", got, want)
	}

	// Empty query contributes no text score.
	got = Score(node, "  ", now, DefaultRankWeights)
	want = 0.2*0.8 + 0.15*0.6 + 0.15*0.5
	if !almostEqual(got, want) {
		t.Errorf("empty query score: got %f, want %f", got, want)
	}
}

func TestRecencyScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if got := recencyScore(now, now); !almostEqual(got, 1.0) {
		t.Errorf("fresh: got %f, want 1.0", got)
	}
	if got := recencyScore(now.Add(-24*time.Hour), now); !almostEqual(got, 0.5) {
		t.Errorf("one day: got %f, want 0.5", got)
	}
	if got := recencyScore(now.Add(-9*24*time.Hour), now); !almostEqual(got, 0.1) {
		t.Errorf("nine days: got %f, want 0.1", got)
	}
	if got := recencyScore(time.Time{}, now); got != 0 {
		t.Errorf("zero time: got %f, want 0", got)
	}
	// Clock skew: never exceeds 1.
	if got := recencyScore(now.Add(time.Hour), now); !almostEqual(got, 1.0) {
		t.Errorf("future access: got %f, want 1.0", got)
	}
}

func TestRanker_OrderingAndLimit(t *testing.T) {
	engine := store.NewMemoryEngine()
	now := time.Now()

	addNode(t, engine, &store.Node{ID: "exact", Content: "user loves action movies", Importance: 0.5, Confidence: 0.5, LastAccessed: now})
	addNode(t, engine, &store.Node{ID: "partial", Content: "watched an action film", Importance: 0.5, Confidence: 0.5, LastAccessed: now})
	addNode(t, engine, &store.Node{ID: "stale", Content: "action movies from the 80s", Importance: 0.5, Confidence: 0.5, LastAccessed: now.Add(-30 * 24 * time.Hour)})

	ranker := NewRanker(engine, RankWeights{})
	results, err := ranker.Search(context.Background(), "action movies", Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Node.ID != "exact" {
		t.Errorf("top result: got %s, want exact", results[0].Node.ID)
	}
	// Same text score as "exact" but a month stale.
	if results[1].Node.ID != "stale" {
		t.Errorf("second result: got %s, want stale", results[1].Node.ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not sorted by score descending")
		}
	}

	limited, err := ranker.Search(context.Background(), "action movies", Options{Limit: 1})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(limited) != 1 || limited[0].Node.ID != "exact" {
		t.Errorf("limit 1: got %d results", len(limited))
	}
}

func TestRanker_TieBreaks(t *testing.T) {
	engine := store.NewMemoryEngine()
	now := time.Now().Truncate(time.Second)

	// Identical scores except access time.
	addNode(t, engine, &store.Node{ID: "older", Content: "likes jazz", Importance: 0.5, Confidence: 0.5, LastAccessed: now.Add(-time.Hour)})
	addNode(t, engine, &store.Node{ID: "newer", Content: "likes jazz", Importance: 0.5, Confidence: 0.5, LastAccessed: now})
	// Fully identical: ID ascending decides.
	addNode(t, engine, &store.Node{ID: "b-twin", Content: "likes jazz", Importance: 0.5, Confidence: 0.5, LastAccessed: now})
	addNode(t, engine, &store.Node{ID: "a-twin", Content: "likes jazz", Importance: 0.5, Confidence: 0.5, LastAccessed: now})

	ranker := NewRanker(engine, RankWeights{})
	results, err := ranker.Search(context.Background(), "likes jazz", Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	got := []string{results[0].Node.ID, results[1].Node.ID, results[2].Node.ID, results[3].Node.ID}
	want := []string{"a-twin", "b-twin", "newer", "older"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v, want %v", got, want)
		}
	}
}

func TestRanker_Filters(t *testing.T) {
	engine := store.NewMemoryEngine()
	now := time.Now()

	addNode(t, engine, &store.Node{ID: "pref", Content: "prefers window seats", Category: "preference", Importance: 0.9, Confidence: 0.5, LastAccessed: now})
	addNode(t, engine, &store.Node{ID: "fact", Content: "prefers aisle seats on long flights", Category: "fact", Importance: 0.2, Confidence: 0.5, LastAccessed: now})

	ranker := NewRanker(engine, RankWeights{})

	results, err := ranker.Search(context.Background(), "seats", Options{MinImportance: 0.5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Node.ID != "pref" {
		t.Errorf("importance filter: got %d results", len(results))
	}

	results, err = ranker.Search(context.Background(), "seats", Options{Categories: []string{"fact"}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Node.ID != "fact" {
		t.Errorf("category filter: got %d results", len(results))
	}
}
