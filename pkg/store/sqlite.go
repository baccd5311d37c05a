package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SQLiteEngine implements GraphEngine on top of SQLite.
type SQLiteEngine struct {
	db *sql.DB
}

// NewSQLiteEngine opens (or creates) a SQLite-backed graph at dbPath.
// The path can be a file path or ":memory:" for an in-memory database.
// Schema initialization is idempotent: reopening an existing database is
// safe and never errors on already-present tables or indexes.
func NewSQLiteEngine(dbPath string) (*SQLiteEngine, error) {
	db, err := sql.Open(sqliteDriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one
	// so every statement sees the same database.
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	engine := &SQLiteEngine{db: db}
	if err := engine.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return engine, nil
}

// initSchema creates the database schema if it doesn't exist.
// Also performs schema migrations for columns added after the first release.
func (s *SQLiteEngine) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT 'Memory',
		content TEXT NOT NULL,
		category TEXT,
		importance REAL DEFAULT 0,
		confidence REAL DEFAULT 0,
		tags_json TEXT,
		context TEXT,
		properties_json TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_category ON nodes(category);

	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		type TEXT NOT NULL,
		weight REAL DEFAULT 1.0,
		context TEXT,
		confidence REAL DEFAULT 0,
		properties_json TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (source_id) REFERENCES nodes(id),
		FOREIGN KEY (target_id) REFERENCES nodes(id)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return err
	}

	return s.migrateSchema()
}

// migrateSchema adds the access-tracking columns to databases created before
// usage tracking existed.
func (s *SQLiteEngine) migrateSchema() error {
	if !s.columnExists("nodes", "access_count") {
		_, err := s.db.Exec("ALTER TABLE nodes ADD COLUMN access_count INTEGER DEFAULT 0")
		if err != nil {
			return fmt.Errorf("failed to add access_count column: %w", err)
		}
	}

	if !s.columnExists("nodes", "last_accessed_at") {
		_, err := s.db.Exec("ALTER TABLE nodes ADD COLUMN last_accessed_at DATETIME DEFAULT NULL")
		if err != nil {
			return fmt.Errorf("failed to add last_accessed_at column: %w", err)
		}
	}

	return nil
}

// columnExists checks if a column exists in a table.
func (s *SQLiteEngine) columnExists(tableName, columnName string) bool {
	query := fmt.Sprintf("PRAGMA table_info(%s)", tableName)
	rows, err := s.db.Query(query)
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int

		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false
		}

		if name == columnName {
			return true
		}
	}

	return false
}

const nodeColumns = `id, label, content, category, importance, confidence,
	tags_json, context, properties_json, access_count, last_accessed_at, created_at`

// marshalNode serializes the JSON-backed node columns.
func marshalNode(node *Node) (tagsJSON, propertiesJSON []byte, err error) {
	if node.Tags != nil {
		tagsJSON, err = json.Marshal(node.Tags)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal tags: %w", err)
		}
	}
	if node.Properties != nil {
		propertiesJSON, err = json.Marshal(node.Properties)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal properties: %w", err)
		}
	}
	return tagsJSON, propertiesJSON, nil
}

// scanNode hydrates a node from a row produced with nodeColumns.
func scanNode(row interface{ Scan(...any) error }) (*Node, error) {
	var node Node
	var category, nodeContext sql.NullString
	var tagsJSON, propertiesJSON []byte
	var lastAccessed sql.NullTime

	err := row.Scan(
		&node.ID,
		&node.Label,
		&node.Content,
		&category,
		&node.Importance,
		&node.Confidence,
		&tagsJSON,
		&nodeContext,
		&propertiesJSON,
		&node.AccessCount,
		&lastAccessed,
		&node.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	node.Category = category.String
	node.Context = nodeContext.String
	if lastAccessed.Valid {
		node.LastAccessed = lastAccessed.Time
	}

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &node.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if len(propertiesJSON) > 0 {
		if err := json.Unmarshal(propertiesJSON, &node.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}

	return &node, nil
}

// InsertNode persists a new node.
func (s *SQLiteEngine) InsertNode(ctx context.Context, node *Node) error {
	tagsJSON, propertiesJSON, err := marshalNode(node)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO nodes (id, label, content, category, importance, confidence,
			tags_json, context, properties_json, access_count, last_accessed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		node.ID,
		node.Label,
		node.Content,
		node.Category,
		node.Importance,
		node.Confidence,
		tagsJSON,
		node.Context,
		propertiesJSON,
		node.AccessCount,
		node.LastAccessed,
		node.CreatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return fmt.Errorf("%w: node %s", ErrDuplicateID, node.ID)
		}
		return fmt.Errorf("failed to insert node: %w", err)
	}

	return nil
}

// GetNode retrieves a node by ID. Returns (nil, nil) when absent.
func (s *SQLiteEngine) GetNode(ctx context.Context, id string) (*Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE id = ?`

	node, err := scanNode(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	return node, nil
}

// UpdateNode writes the full node row. CreatedAt is never touched.
func (s *SQLiteEngine) UpdateNode(ctx context.Context, node *Node) error {
	tagsJSON, propertiesJSON, err := marshalNode(node)
	if err != nil {
		return err
	}

	query := `
		UPDATE nodes
		SET label = ?, content = ?, category = ?, importance = ?, confidence = ?,
			tags_json = ?, context = ?, properties_json = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		node.Label,
		node.Content,
		node.Category,
		node.Importance,
		node.Confidence,
		tagsJSON,
		node.Context,
		propertiesJSON,
		node.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}

	return nil
}

// TouchNode increments access_count and refreshes last_accessed_at.
func (s *SQLiteEngine) TouchNode(ctx context.Context, id string) error {
	query := `
		UPDATE nodes
		SET access_count = access_count + 1,
		    last_accessed_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update node access: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}

	return nil
}

// DeleteNode removes a node and all incident edges in one transaction.
func (s *SQLiteEngine) DeleteNode(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM edges WHERE source_id = ? OR target_id = ?", id, id); err != nil {
		return fmt.Errorf("failed to detach edges: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// InsertEdge verifies both endpoints and writes the edge in one transaction,
// so a concurrent endpoint delete cannot produce a dangling edge.
func (s *SQLiteEngine) InsertEdge(ctx context.Context, edge *Edge) error {
	var propertiesJSON []byte
	var err error
	if edge.Properties != nil {
		propertiesJSON, err = json.Marshal(edge.Properties)
		if err != nil {
			return fmt.Errorf("failed to marshal properties: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, endpoint := range []string{edge.SourceID, edge.TargetID} {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM nodes WHERE id = ?", endpoint).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: endpoint %s", ErrNodeNotFound, endpoint)
		}
		if err != nil {
			return fmt.Errorf("failed to check endpoint existence: %w", err)
		}
	}

	query := `
		INSERT INTO edges (id, source_id, target_id, type, weight, context, confidence, properties_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		edge.ID,
		edge.SourceID,
		edge.TargetID,
		edge.Type,
		edge.Weight,
		edge.Context,
		edge.Confidence,
		propertiesJSON,
		edge.CreatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return fmt.Errorf("%w: edge %s", ErrDuplicateID, edge.ID)
		}
		return fmt.Errorf("failed to insert edge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

const edgeColumns = `id, source_id, target_id, type, weight, context, confidence, properties_json, created_at`

// scanEdge hydrates an edge from a row produced with edgeColumns.
func scanEdge(row interface{ Scan(...any) error }) (*Edge, error) {
	var edge Edge
	var edgeContext sql.NullString
	var propertiesJSON []byte

	err := row.Scan(
		&edge.ID,
		&edge.SourceID,
		&edge.TargetID,
		&edge.Type,
		&edge.Weight,
		&edgeContext,
		&edge.Confidence,
		&propertiesJSON,
		&edge.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	edge.Context = edgeContext.String
	if len(propertiesJSON) > 0 {
		if err := json.Unmarshal(propertiesJSON, &edge.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}

	return &edge, nil
}

// GetEdge retrieves an edge by ID. Returns (nil, nil) when absent.
func (s *SQLiteEngine) GetEdge(ctx context.Context, id string) (*Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM edges WHERE id = ?`

	edge, err := scanEdge(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}

	return edge, nil
}

// DeleteEdge removes an edge by ID.
func (s *SQLiteEngine) DeleteEdge(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM edges WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrEdgeNotFound
	}

	return nil
}

// EdgesOf retrieves edges incident to a node in the given direction.
func (s *SQLiteEngine) EdgesOf(ctx context.Context, nodeID string, dir Direction) ([]*Edge, error) {
	var where string
	var args []any
	switch dir {
	case DirectionOutgoing:
		where = "source_id = ?"
		args = []any{nodeID}
	case DirectionIncoming:
		where = "target_id = ?"
		args = []any{nodeID}
	default:
		where = "source_id = ? OR target_id = ?"
		args = []any{nodeID, nodeID}
	}

	query := `SELECT ` + edgeColumns + ` FROM edges WHERE ` + where + ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	edges := make([]*Edge, 0)
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}

// Neighbors retrieves the unique nodes within depth hops of nodeID,
// treating edges as undirected. Frontier-at-a-time BFS with a visited set,
// so cycles terminate.
func (s *SQLiteEngine) Neighbors(ctx context.Context, nodeID string, depth int) ([]*Node, error) {
	if depth < 1 {
		return nil, fmt.Errorf("depth must be at least 1")
	}

	visited := make(map[string]bool)
	visited[nodeID] = true
	frontier := []string{nodeID}

	for d := 0; d < depth; d++ {
		var nextFrontier []string

		for _, currentID := range frontier {
			edges, err := s.EdgesOf(ctx, currentID, DirectionBoth)
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

	neighbors := make([]*Node, 0, len(visited))
	for neighborID := range visited {
		node, err := s.GetNode(ctx, neighborID)
		if err != nil {
			return nil, err
		}
		if node != nil {
			neighbors = append(neighbors, node)
		}
	}

	return neighbors, nil
}

// FindCandidates runs the recall pass: any query token contained in
// content, tags, category or context makes a node a candidate. The
// tags match is against the serialized tag list, which is a superset
// of per-tag containment; the ranker re-scores candidates precisely.
func (s *SQLiteEngine) FindCandidates(ctx context.Context, filter CandidateFilter) ([]*Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE importance >= ?`
	args := []any{filter.MinImportance}

	tokens := strings.Fields(strings.ToLower(filter.Query))
	if len(tokens) > 0 {
		clauses := make([]string, len(tokens))
		for i, token := range tokens {
			clauses[i] = `(instr(lower(content), ?) > 0
				OR instr(lower(ifnull(tags_json, '')), ?) > 0
				OR instr(lower(ifnull(category, '')), ?) > 0
				OR instr(lower(ifnull(context, '')), ?) > 0)`
			args = append(args, token, token, token, token)
		}
		query += " AND (" + strings.Join(clauses, " OR ") + ")"
	}

	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			placeholders[i] = "?"
			args = append(args, category)
		}
		query += " AND category IN (" + strings.Join(placeholders, ",") + ")"
	}

	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	nodes := make([]*Node, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}

	return nodes, nil
}

// NodeCount returns the total number of nodes in the graph.
func (s *SQLiteEngine) NodeCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return count, nil
}

// EdgeCount returns the total number of edges in the graph.
func (s *SQLiteEngine) EdgeCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return count, nil
}

// CategoryCounts returns the number of nodes per non-empty category.
func (s *SQLiteEngine) CategoryCounts(ctx context.Context) (map[string]int64, error) {
	query := `
		SELECT category, COUNT(*)
		FROM nodes
		WHERE category IS NOT NULL AND category != ''
		GROUP BY category
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts[category] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}

	return counts, nil
}

// AverageImportance returns the mean importance across all nodes.
func (s *SQLiteEngine) AverageImportance(ctx context.Context) (float64, error) {
	var avg float64
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(AVG(importance), 0) FROM nodes").Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to average importance: %w", err)
	}
	return avg, nil
}

// Close releases database resources.
func (s *SQLiteEngine) Close() error {
	return s.db.Close()
}

// Compile-time interface check
var _ GraphEngine = (*SQLiteEngine)(nil)
