// Package store provides persistence engines for memograph's memory graph.
package store

import (
	"context"
	"errors"
	"time"
)

// Node represents a single persisted memory in the graph.
type Node struct {
	ID           string         // Unique identifier (UUID), immutable
	Label        string         // Schema tag, normalized before storage (default "Memory")
	Content      string         // Factual payload, never empty
	Category     string         // Free-text classification ("fact", "user_preference", ...)
	Importance   float64        // Caller-assigned significance in [0,1]
	Confidence   float64        // Certainty of the fact in [0,1]
	Tags         []string       // Display-ordered tag list
	Context      string         // Provenance / situation description
	Properties   map[string]any // Open caller-defined attributes, stored as JSON
	AccessCount  int            // Number of recorded accesses, >= 1 after creation
	LastAccessed time.Time      // Timestamp of last recorded access
	CreatedAt    time.Time      // Timestamp of creation, immutable
}

// Edge represents a directed, typed, weighted relationship between two nodes.
type Edge struct {
	ID         string         // Unique identifier (UUID)
	SourceID   string         // Source node ID
	TargetID   string         // Target node ID
	Type       string         // Relationship type, normalized before storage (default "RELATED_TO")
	Weight     float64        // Relation strength, defaults to 1.0
	Context    string         // Provenance / situation description
	Confidence float64        // Certainty of the relation in [0,1]
	Properties map[string]any // Open caller-defined attributes, stored as JSON
	CreatedAt  time.Time      // Timestamp of creation, immutable
}

// Direction selects which edges of a node to read.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// CandidateFilter describes the cheap superset pass used by the relevance
// ranker: any node whose content, tags, category or context contains the
// query text case-insensitively is a candidate. Precise scoring happens in
// the search package.
type CandidateFilter struct {
	Query         string
	Categories    []string
	MinImportance float64
}

// GraphEngine defines the contract every persistence backend must satisfy.
// Implementations must provide transactional scoping for multi-statement
// operations: DeleteNode removes incident edges atomically with the node,
// and InsertEdge verifies both endpoints inside the same transaction that
// writes the edge, so a concurrent endpoint delete can never produce a
// dangling edge.
type GraphEngine interface {
	// InsertNode persists a new node. Node IDs are immutable; inserting an
	// existing ID is an error.
	InsertNode(ctx context.Context, node *Node) error

	// GetNode retrieves a node by ID.
	// Returns (nil, nil) if the node is not found (no error).
	GetNode(ctx context.Context, id string) (*Node, error)

	// UpdateNode writes the full node row. CreatedAt is never modified.
	// Returns ErrNodeNotFound if the ID is absent.
	UpdateNode(ctx context.Context, node *Node) error

	// TouchNode increments the node's access count by one and sets its
	// last-accessed timestamp to now. Returns ErrNodeNotFound if absent.
	TouchNode(ctx context.Context, id string) error

	// DeleteNode removes a node and every edge referencing it in one
	// transaction (detach-delete). Returns ErrNodeNotFound if absent.
	DeleteNode(ctx context.Context, id string) error

	// InsertEdge persists a new directed edge. Both endpoints must exist;
	// the existence check and the insert run in one transaction.
	// Returns ErrNodeNotFound when an endpoint is missing.
	InsertEdge(ctx context.Context, edge *Edge) error

	// GetEdge retrieves an edge by ID.
	// Returns (nil, nil) if the edge is not found (no error).
	GetEdge(ctx context.Context, id string) (*Edge, error)

	// DeleteEdge removes an edge. Returns ErrEdgeNotFound if absent.
	DeleteEdge(ctx context.Context, id string) error

	// EdgesOf retrieves the edges incident to a node in the given direction,
	// ordered deterministically (created_at, then id). Returns an empty
	// slice when the node has no matching edges or does not exist.
	EdgesOf(ctx context.Context, nodeID string, dir Direction) ([]*Edge, error)

	// Neighbors retrieves the unique nodes reachable from nodeID within
	// depth hops, treating edges as undirected. The starting node is not
	// included in the result.
	Neighbors(ctx context.Context, nodeID string, depth int) ([]*Node, error)

	// FindCandidates runs the superset text-match pass described by filter,
	// ordered deterministically (created_at, then id).
	FindCandidates(ctx context.Context, filter CandidateFilter) ([]*Node, error)

	// NodeCount returns the total number of nodes in the graph.
	NodeCount(ctx context.Context) (int64, error)

	// EdgeCount returns the total number of edges in the graph.
	EdgeCount(ctx context.Context) (int64, error)

	// CategoryCounts returns the number of nodes per non-empty category.
	// The map is never nil.
	CategoryCounts(ctx context.Context) (map[string]int64, error)

	// AverageImportance returns the mean importance across all nodes,
	// 0 for an empty graph (never NaN).
	AverageImportance(ctx context.Context) (float64, error)

	// Close releases any resources held by the engine.
	Close() error
}

// ErrNodeNotFound indicates that no node exists for the given ID.
var ErrNodeNotFound = errors.New("node not found")

// ErrEdgeNotFound indicates that no edge exists for the given ID.
var ErrEdgeNotFound = errors.New("edge not found")

// ErrDuplicateID indicates an insert with an ID that is already taken.
var ErrDuplicateID = errors.New("duplicate id")
