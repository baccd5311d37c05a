package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeNeo4j captures the last Cypher statement and replies with a canned
// tx/commit response.
type fakeNeo4j struct {
	lastStatement string
	lastParams    map[string]any
	response      string
	sawBasicAuth  bool
}

func (f *fakeNeo4j) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _, f.sawBasicAuth = r.BasicAuth()

		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Statements []struct {
				Statement  string         `json:"statement"`
				Parameters map[string]any `json:"parameters"`
			} `json:"statements"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && len(payload.Statements) > 0 {
			f.lastStatement = payload.Statements[0].Statement
			f.lastParams = payload.Statements[0].Parameters
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, f.response)
	}
}

func newFakeEngine(t *testing.T, response string) (*Neo4jEngine, *fakeNeo4j) {
	t.Helper()
	fake := &fakeNeo4j{response: response}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)
	engine, err := NewNeo4jEngine(server.URL, "neo4j", "secret", time.Second)
	if err != nil {
		t.Fatalf("NewNeo4jEngine failed: %v", err)
	}
	return engine, fake
}

func TestNewNeo4jEngine_RequiresEndpoint(t *testing.T) {
	if _, err := NewNeo4jEngine("", "neo4j", "secret", time.Second); err == nil {
		t.Fatal("expected an error for an empty endpoint")
	}
	if _, err := NewNeo4jEngine("   ", "neo4j", "secret", time.Second); err == nil {
		t.Fatal("expected an error for a blank endpoint")
	}
}

const emptyResult = `{"results":[{"columns":[],"data":[]}],"errors":[]}`

func TestNeo4jInsertNode_LabelInterpolation(t *testing.T) {
	engine, fake := newFakeEngine(t,
		`{"results":[{"columns":["m.id"],"data":[{"row":["n1"]}]}],"errors":[]}`)

	ctx := context.Background()
	node := testNode("n1", "content")
	node.Label = "Person"
	if err := engine.InsertNode(ctx, node); err != nil {
		t.Fatalf("InsertNode failed: %v", err)
	}
	if !strings.Contains(fake.lastStatement, "CREATE (m:Memory:Person") {
		t.Errorf("expected secondary Person label, got: %s", fake.lastStatement)
	}
	if !fake.sawBasicAuth {
		t.Error("basic auth credentials not sent")
	}

	// An unsafe label must be normalized away before it reaches query text.
	node = testNode("n2", "content")
	node.Label = "Person) DETACH DELETE (x"
	if err := engine.InsertNode(ctx, node); err != nil {
		t.Fatalf("InsertNode failed: %v", err)
	}
	if strings.Contains(fake.lastStatement, "DETACH DELETE (x") {
		t.Fatalf("unsafe label reached query text: %s", fake.lastStatement)
	}
	if !strings.Contains(fake.lastStatement, "CREATE (m:Memory {") {
		t.Errorf("expected base label fallback, got: %s", fake.lastStatement)
	}
}

func TestNeo4jInsertEdge_TypeInterpolationAndMissingEndpoint(t *testing.T) {
	engine, fake := newFakeEngine(t, emptyResult)

	edge := &Edge{
		ID:        "e1",
		SourceID:  "a",
		TargetID:  "b",
		Type:      "bad type!",
		Weight:    1.0,
		CreatedAt: time.Now(),
	}

	// Zero rows back means an endpoint match failed.
	err := engine.InsertEdge(context.Background(), edge)
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	if !strings.Contains(fake.lastStatement, "[r:RELATED_TO") {
		t.Errorf("expected normalized relationship type, got: %s", fake.lastStatement)
	}
}

func TestNeo4jGetNode_ParsesProperties(t *testing.T) {
	props := map[string]any{
		"id":               "n1",
		"label":            "Preference",
		"content":          "User loves action movies",
		"category":         "user_preference",
		"importance":       0.7,
		"confidence":       0.9,
		"tags_json":        `["action","movies"]`,
		"context":          "chat session",
		"properties_json":  `{"source":"conversation"}`,
		"access_count":     float64(3),
		"created_at":       "2026-08-01T10:00:00Z",
		"last_accessed_at": "2026-08-20T10:00:00Z",
	}
	row, _ := json.Marshal(props)
	engine, _ := newFakeEngine(t,
		`{"results":[{"columns":["properties(m)"],"data":[{"row":[`+string(row)+`]}]}],"errors":[]}`)

	node, err := engine.GetNode(context.Background(), "n1")
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if node == nil {
		t.Fatal("expected node, got nil")
	}
	if node.Label != "Preference" || node.Category != "user_preference" {
		t.Errorf("label/category mismatch: %+v", node)
	}
	if len(node.Tags) != 2 || node.Tags[0] != "action" {
		t.Errorf("tags mismatch: %v", node.Tags)
	}
	if node.Properties["source"] != "conversation" {
		t.Errorf("properties mismatch: %v", node.Properties)
	}
	if node.AccessCount != 3 {
		t.Errorf("access count mismatch: %d", node.AccessCount)
	}
	if node.CreatedAt.IsZero() || node.LastAccessed.IsZero() {
		t.Error("timestamps not parsed")
	}
}

func TestNeo4jGetNode_NotFound(t *testing.T) {
	engine, _ := newFakeEngine(t, emptyResult)

	node, err := engine.GetNode(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetNode returned error: %v", err)
	}
	if node != nil {
		t.Fatalf("expected nil, got %+v", node)
	}
}

func TestNeo4jExecCypher_ServerError(t *testing.T) {
	engine, _ := newFakeEngine(t,
		`{"results":[],"errors":[{"code":"Neo.ClientError.Schema.ConstraintValidationFailed","message":"node with id already exists"}]}`)

	err := engine.InsertNode(context.Background(), testNode("dup", "content"))
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}
