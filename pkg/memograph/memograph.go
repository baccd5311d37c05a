// Package memograph provides a graph-backed long-term memory store
// for conversational agents.
package memograph

import (
	"context"
	"fmt"
	"time"

	"github.com/dan-solli/memograph/pkg/memory"
	"github.com/dan-solli/memograph/pkg/metrics"
	"github.com/dan-solli/memograph/pkg/search"
	"github.com/dan-solli/memograph/pkg/stats"
	"github.com/dan-solli/memograph/pkg/store"
	"github.com/dan-solli/memograph/pkg/trace"
)

// EngineKind selects the storage backend.
type EngineKind string

const (
	// EngineSQLite stores the graph in a local SQLite database.
	EngineSQLite EngineKind = "sqlite"

	// EngineMemory stores the graph in process memory. Useful for
	// tests and ephemeral agents.
	EngineMemory EngineKind = "memory"

	// EngineNeo4j stores the graph in a Neo4j server reached over
	// its HTTP transactional endpoint.
	EngineNeo4j EngineKind = "neo4j"
)

// Neo4jConfig holds connection settings for the Neo4j backend.
type Neo4jConfig struct {
	// Endpoint is the server base URL, e.g. "http://localhost:7474".
	Endpoint string

	Username string
	Password string

	// Timeout bounds each HTTP request (default: 10s).
	Timeout time.Duration
}

// Config holds configuration for the memory system.
type Config struct {
	// Engine selects the storage backend (default: EngineSQLite).
	Engine EngineKind

	// StorePath is the SQLite database path (default: "memograph.db").
	// Ignored by the other engines.
	StorePath string

	// Neo4j configures the Neo4j backend. Required when Engine is
	// EngineNeo4j.
	Neo4j Neo4jConfig

	// Weights controls relevance scoring (default: DefaultRankWeights).
	Weights search.RankWeights

	// SeedLimit caps the ranked seed set for graph search (default: 10).
	SeedLimit int

	// DepthPenalty is subtracted per hop during graph search
	// (default: search.DefaultDepthPenalty).
	DepthPenalty float64

	// TraceEnabled turns on operation trace export. Traces are
	// written as JSON Lines to TracePath when the binary is built
	// with the tracing tag, and dropped otherwise.
	TraceEnabled bool

	// TracePath is the trace output file (default: "memograph-traces.jsonl").
	TracePath string

	// Metrics receives operation metrics. Nil disables collection.
	Metrics metrics.Collector
}

func (cfg *Config) applyDefaults() {
	if cfg.Engine == "" {
		cfg.Engine = EngineSQLite
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "memograph.db"
	}
	if cfg.Weights == (search.RankWeights{}) {
		cfg.Weights = search.DefaultRankWeights
	}
	if cfg.SeedLimit <= 0 {
		cfg.SeedLimit = search.DefaultSeedLimit
	}
	if cfg.DepthPenalty <= 0 {
		cfg.DepthPenalty = search.DefaultDepthPenalty
	}
	if cfg.TracePath == "" {
		cfg.TracePath = "memograph-traces.jsonl"
	}
}

// Memograph is the main entry point for the memory system.
type Memograph struct {
	config        Config
	engine        store.GraphEngine
	memories      *memory.Repository
	relationships *memory.RelationshipRepository
	ranker        *search.Ranker
	traversal     *search.Traversal
	paths         *search.PathFinder
	aggregator    *stats.Aggregator
	metrics       metrics.Collector
	exporter      trace.Exporter
}

// New creates a memory system backed by the configured engine.
func New(ctx context.Context, cfg Config) (*Memograph, error) {
	cfg.applyDefaults()

	var engine store.GraphEngine
	switch cfg.Engine {
	case EngineSQLite:
		sqlite, err := store.NewSQLiteEngine(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite engine: %w", err)
		}
		engine = sqlite
	case EngineMemory:
		engine = store.NewMemoryEngine()
	case EngineNeo4j:
		neo, err := store.NewNeo4jEngine(cfg.Neo4j.Endpoint, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Timeout)
		if err != nil {
			return nil, fmt.Errorf("open neo4j engine: %w", err)
		}
		if err := neo.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("init neo4j schema: %w", err)
		}
		engine = neo
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}

	var exporter trace.Exporter
	if cfg.TraceEnabled {
		exp, err := trace.NewFileExporter(cfg.TracePath)
		if err != nil {
			engine.Close()
			return nil, fmt.Errorf("open trace exporter: %w", err)
		}
		exporter = exp
	}

	ranker := search.NewRanker(engine, cfg.Weights)
	return &Memograph{
		config:        cfg,
		engine:        engine,
		memories:      memory.NewRepository(engine),
		relationships: memory.NewRelationshipRepository(engine),
		ranker:        ranker,
		traversal:     search.NewTraversal(engine, ranker, cfg.SeedLimit, cfg.DepthPenalty),
		paths:         search.NewPathFinder(engine),
		aggregator:    stats.NewAggregator(engine),
		metrics:       cfg.Metrics,
		exporter:      exporter,
	}, nil
}

// Close releases the engine and flushes any pending traces.
func (m *Memograph) Close() error {
	var traceErr error
	if m.exporter != nil {
		traceErr = m.exporter.Close()
	}
	if err := m.engine.Close(); err != nil {
		return err
	}
	return traceErr
}
