package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dan-solli/memograph/pkg/schema"
)

// Neo4jEngine implements GraphEngine against a Neo4j server's transactional
// HTTP endpoint. Every execCypher call is one /tx/commit request, so each
// statement batch executes in a single transaction.
//
// Labels and relationship types are structural Cypher elements that cannot
// be parameterized. The engine re-normalizes them through the schema package
// before interpolation, so even a caller that bypasses the repositories
// cannot inject query text.
type Neo4jEngine struct {
	endpoint string
	username string
	password string
	client   *http.Client
}

// NewNeo4jEngine creates a graph engine for the Neo4j server at endpoint
// (e.g. "http://localhost:7474"). A zero timeout defaults to 10s.
func NewNeo4jEngine(endpoint, username, password string, timeout time.Duration) (*Neo4jEngine, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("neo4j endpoint is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Neo4jEngine{
		endpoint: strings.TrimRight(endpoint, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// InitSchema ensures the uniqueness constraint on node IDs exists.
// Idempotent: re-running it against an initialized server never errors.
func (e *Neo4jEngine) InitSchema(ctx context.Context) error {
	_, err := e.execCypher(ctx,
		"CREATE CONSTRAINT memograph_node_id IF NOT EXISTS FOR (m:Memory) REQUIRE m.id IS UNIQUE", nil)
	if err != nil {
		return fmt.Errorf("failed to initialize neo4j schema: %w", err)
	}
	return nil
}

type cypherResponse struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row []any `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// execCypher executes one Cypher statement inside one transaction and
// returns its result rows.
func (e *Neo4jEngine) execCypher(ctx context.Context, query string, params map[string]any) ([][]any, error) {
	payload := map[string]any{
		"statements": []map[string]any{{
			"statement":  query,
			"parameters": params,
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.endpoint+"/db/neo4j/tx/commit",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if e.username != "" {
		req.SetBasicAuth(e.username, e.password)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("query failed, status: %d", resp.StatusCode)
	}

	var result cypherResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Errors) > 0 {
		msg := result.Errors[0].Message
		if strings.Contains(strings.ToLower(msg), "already exists") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, msg)
		}
		return nil, fmt.Errorf("neo4j error: %s", msg)
	}

	if len(result.Results) == 0 {
		return nil, nil
	}

	rows := make([][]any, 0, len(result.Results[0].Data))
	for _, d := range result.Results[0].Data {
		rows = append(rows, d.Row)
	}
	return rows, nil
}

// extraLabel returns the interpolation-safe secondary label clause for a
// node label, empty for the base label.
func extraLabel(label string) string {
	label = schema.NormalizeLabel(label)
	if label == schema.DefaultLabel {
		return ""
	}
	return ":" + label
}

// nodeParams flattens a node into Cypher parameters. Tags and open
// properties travel as JSON strings because Neo4j properties cannot nest.
func nodeParams(node *Node) (map[string]any, error) {
	tagsJSON, propertiesJSON, err := marshalNode(node)
	if err != nil {
		return nil, err
	}

	lastAccessed := ""
	if !node.LastAccessed.IsZero() {
		lastAccessed = node.LastAccessed.UTC().Format(time.RFC3339Nano)
	}

	return map[string]any{
		"id":             node.ID,
		"label":          schema.NormalizeLabel(node.Label),
		"content":        node.Content,
		"category":       node.Category,
		"importance":     node.Importance,
		"confidence":     node.Confidence,
		"tagsJson":       string(tagsJSON),
		"context":        node.Context,
		"propertiesJson": string(propertiesJSON),
		"accessCount":    node.AccessCount,
		"lastAccessedAt": lastAccessed,
		"createdAt":      node.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// parseNode hydrates a node from a properties(m) row value.
func parseNode(value any) (*Node, error) {
	props, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected node row shape: %T", value)
	}

	var node Node
	node.ID, _ = props["id"].(string)
	node.Label, _ = props["label"].(string)
	node.Content, _ = props["content"].(string)
	node.Category, _ = props["category"].(string)
	node.Context, _ = props["context"].(string)

	if v, ok := props["importance"].(float64); ok {
		node.Importance = v
	}
	if v, ok := props["confidence"].(float64); ok {
		node.Confidence = v
	}
	if v, ok := props["access_count"].(float64); ok {
		node.AccessCount = int(v)
	}

	if s, ok := props["tags_json"].(string); ok && s != "" {
		if err := json.Unmarshal([]byte(s), &node.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if s, ok := props["properties_json"].(string); ok && s != "" {
		if err := json.Unmarshal([]byte(s), &node.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}

	if s, ok := props["created_at"].(string); ok && s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			node.CreatedAt = t
		}
	}
	if s, ok := props["last_accessed_at"].(string); ok && s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			node.LastAccessed = t
		}
	}

	return &node, nil
}

// InsertNode creates a node carrying the base :Memory label plus the
// normalized caller label as a secondary label.
func (e *Neo4jEngine) InsertNode(ctx context.Context, node *Node) error {
	params, err := nodeParams(node)
	if err != nil {
		return err
	}

	cypher := fmt.Sprintf(`
		CREATE (m:Memory%s {id: $id, label: $label, content: $content, category: $category,
			importance: $importance, confidence: $confidence, tags_json: $tagsJson,
			context: $context, properties_json: $propertiesJson, access_count: $accessCount,
			last_accessed_at: $lastAccessedAt, created_at: $createdAt})
		RETURN m.id`, extraLabel(node.Label))

	if _, err := e.execCypher(ctx, cypher, params); err != nil {
		return fmt.Errorf("failed to insert node: %w", err)
	}
	return nil
}

// GetNode retrieves a node by ID. Returns (nil, nil) when absent.
func (e *Neo4jEngine) GetNode(ctx context.Context, id string) (*Node, error) {
	rows, err := e.execCypher(ctx,
		"MATCH (m:Memory {id: $id}) RETURN properties(m)",
		map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil
	}
	return parseNode(rows[0][0])
}

// UpdateNode rewrites the mutable node properties. A changed label is added
// as a secondary Neo4j label; stale secondary labels are left in place and
// the label property stays authoritative.
func (e *Neo4jEngine) UpdateNode(ctx context.Context, node *Node) error {
	params, err := nodeParams(node)
	if err != nil {
		return err
	}

	cypher := fmt.Sprintf(`
		MATCH (m:Memory {id: $id})
		SET m.label = $label, m.content = $content, m.category = $category,
			m.importance = $importance, m.confidence = $confidence,
			m.tags_json = $tagsJson, m.context = $context,
			m.properties_json = $propertiesJson
		SET m%s
		RETURN m.id`, orBaseLabel(node.Label))

	rows, err := e.execCypher(ctx, cypher, params)
	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}
	if len(rows) == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// orBaseLabel is like extraLabel but always yields a valid SET target.
func orBaseLabel(label string) string {
	if clause := extraLabel(label); clause != "" {
		return clause
	}
	return ":Memory"
}

// TouchNode increments access_count and refreshes last_accessed_at.
func (e *Neo4jEngine) TouchNode(ctx context.Context, id string) error {
	rows, err := e.execCypher(ctx, `
		MATCH (m:Memory {id: $id})
		SET m.access_count = coalesce(m.access_count, 0) + 1,
		    m.last_accessed_at = $now
		RETURN m.id`,
		map[string]any{"id": id, "now": time.Now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return fmt.Errorf("failed to update node access: %w", err)
	}
	if len(rows) == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// DeleteNode detach-deletes the node and its relationships in one statement.
func (e *Neo4jEngine) DeleteNode(ctx context.Context, id string) error {
	rows, err := e.execCypher(ctx, `
		MATCH (m:Memory {id: $id})
		WITH m, m.id AS id
		DETACH DELETE m
		RETURN id`,
		map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	if len(rows) == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// InsertEdge matches both endpoints and creates the relationship in a single
// statement, so the existence check and the write share one transaction.
func (e *Neo4jEngine) InsertEdge(ctx context.Context, edge *Edge) error {
	var propertiesJSON []byte
	var err error
	if edge.Properties != nil {
		propertiesJSON, err = json.Marshal(edge.Properties)
		if err != nil {
			return fmt.Errorf("failed to marshal properties: %w", err)
		}
	}

	cypher := fmt.Sprintf(`
		MATCH (s:Memory {id: $sourceId})
		MATCH (t:Memory {id: $targetId})
		CREATE (s)-[r:%s {id: $id, source_id: $sourceId, target_id: $targetId,
			weight: $weight, context: $context, confidence: $confidence,
			properties_json: $propertiesJson, created_at: $createdAt}]->(t)
		RETURN r.id`, schema.NormalizeRelationshipType(edge.Type))

	rows, err := e.execCypher(ctx, cypher, map[string]any{
		"id":             edge.ID,
		"sourceId":       edge.SourceID,
		"targetId":       edge.TargetID,
		"weight":         edge.Weight,
		"context":        edge.Context,
		"confidence":     edge.Confidence,
		"propertiesJson": string(propertiesJSON),
		"createdAt":      edge.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: edge endpoint missing", ErrNodeNotFound)
	}
	return nil
}

// parseEdge hydrates an edge from a properties(r), type(r) row pair.
func parseEdge(propsValue, typeValue any) (*Edge, error) {
	props, ok := propsValue.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected edge row shape: %T", propsValue)
	}

	var edge Edge
	edge.ID, _ = props["id"].(string)
	edge.SourceID, _ = props["source_id"].(string)
	edge.TargetID, _ = props["target_id"].(string)
	edge.Context, _ = props["context"].(string)
	edge.Type, _ = typeValue.(string)

	if v, ok := props["weight"].(float64); ok {
		edge.Weight = v
	}
	if v, ok := props["confidence"].(float64); ok {
		edge.Confidence = v
	}
	if s, ok := props["properties_json"].(string); ok && s != "" {
		if err := json.Unmarshal([]byte(s), &edge.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}
	if s, ok := props["created_at"].(string); ok && s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			edge.CreatedAt = t
		}
	}

	return &edge, nil
}

// GetEdge retrieves an edge by ID. Returns (nil, nil) when absent.
func (e *Neo4jEngine) GetEdge(ctx context.Context, id string) (*Edge, error) {
	rows, err := e.execCypher(ctx,
		"MATCH ()-[r]->() WHERE r.id = $id RETURN properties(r), type(r)",
		map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) < 2 {
		return nil, nil
	}
	return parseEdge(rows[0][0], rows[0][1])
}

// DeleteEdge removes an edge by ID.
func (e *Neo4jEngine) DeleteEdge(ctx context.Context, id string) error {
	rows, err := e.execCypher(ctx, `
		MATCH ()-[r]->() WHERE r.id = $id
		WITH r, r.id AS id
		DELETE r
		RETURN id`,
		map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	if len(rows) == 0 {
		return ErrEdgeNotFound
	}
	return nil
}

// EdgesOf retrieves edges incident to a node in the given direction.
func (e *Neo4jEngine) EdgesOf(ctx context.Context, nodeID string, dir Direction) ([]*Edge, error) {
	var pattern string
	switch dir {
	case DirectionOutgoing:
		pattern = "(m:Memory {id: $id})-[r]->()"
	case DirectionIncoming:
		pattern = "(m:Memory {id: $id})<-[r]-()"
	default:
		pattern = "(m:Memory {id: $id})-[r]-()"
	}

	rows, err := e.execCypher(ctx,
		"MATCH "+pattern+" RETURN properties(r), type(r) ORDER BY r.created_at, r.id",
		map[string]any{"id": nodeID})
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}

	edges := make([]*Edge, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		edge, err := parseEdge(row[0], row[1])
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// Neighbors retrieves the unique nodes within depth hops, undirected.
// The depth bound is interpolated as an integer, never as caller text.
func (e *Neo4jEngine) Neighbors(ctx context.Context, nodeID string, depth int) ([]*Node, error) {
	if depth < 1 {
		return nil, fmt.Errorf("depth must be at least 1")
	}

	cypher := fmt.Sprintf(`
		MATCH (m:Memory {id: $id})-[*1..%d]-(n:Memory)
		WHERE n.id <> $id
		RETURN DISTINCT properties(n)`, depth)

	rows, err := e.execCypher(ctx, cypher, map[string]any{"id": nodeID})
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors: %w", err)
	}

	neighbors := make([]*Node, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		node, err := parseNode(row[0])
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, node)
	}
	return neighbors, nil
}

// FindCandidates runs the recall pass server-side: any query token
// contained in content, serialized tags, category or context makes a
// node a candidate.
func (e *Neo4jEngine) FindCandidates(ctx context.Context, filter CandidateFilter) ([]*Node, error) {
	cypher := `
		MATCH (m:Memory)
		WHERE m.importance >= $minImportance`
	params := map[string]any{
		"minImportance": filter.MinImportance,
	}

	if tokens := strings.Fields(strings.ToLower(filter.Query)); len(tokens) > 0 {
		cypher += `
			AND any(token IN $tokens WHERE
				toLower(m.content) CONTAINS token
				OR toLower(coalesce(m.tags_json, '')) CONTAINS token
				OR toLower(coalesce(m.category, '')) CONTAINS token
				OR toLower(coalesce(m.context, '')) CONTAINS token)`
		params["tokens"] = tokens
	}

	if len(filter.Categories) > 0 {
		cypher += "\n\t\t\tAND m.category IN $categories"
		params["categories"] = filter.Categories
	}

	cypher += "\n\t\tRETURN properties(m) ORDER BY m.created_at, m.id"

	rows, err := e.execCypher(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}

	nodes := make([]*Node, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		node, err := parseNode(row[0])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// NodeCount returns the total number of nodes.
func (e *Neo4jEngine) NodeCount(ctx context.Context) (int64, error) {
	return e.countQuery(ctx, "MATCH (m:Memory) RETURN count(m)")
}

// EdgeCount returns the total number of edges.
func (e *Neo4jEngine) EdgeCount(ctx context.Context) (int64, error) {
	return e.countQuery(ctx, "MATCH (:Memory)-[r]->(:Memory) RETURN count(r)")
}

func (e *Neo4jEngine) countQuery(ctx context.Context, cypher string) (int64, error) {
	rows, err := e.execCypher(ctx, cypher, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	count, ok := rows[0][0].(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected count row shape: %T", rows[0][0])
	}
	return int64(count), nil
}

// CategoryCounts returns the number of nodes per non-empty category.
func (e *Neo4jEngine) CategoryCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := e.execCypher(ctx, `
		MATCH (m:Memory)
		WHERE coalesce(m.category, '') <> ''
		RETURN m.category, count(m)`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}

	counts := make(map[string]int64)
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		category, _ := row[0].(string)
		count, _ := row[1].(float64)
		if category != "" {
			counts[category] = int64(count)
		}
	}
	return counts, nil
}

// AverageImportance returns the mean importance, 0 for an empty graph.
func (e *Neo4jEngine) AverageImportance(ctx context.Context) (float64, error) {
	rows, err := e.execCypher(ctx,
		"MATCH (m:Memory) RETURN coalesce(avg(m.importance), 0)", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to average importance: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	avg, _ := rows[0][0].(float64)
	return avg, nil
}

// Close releases nothing; the HTTP client holds no persistent connection
// state worth tearing down.
func (e *Neo4jEngine) Close() error {
	return nil
}

// Compile-time interface check
var _ GraphEngine = (*Neo4jEngine)(nil)
