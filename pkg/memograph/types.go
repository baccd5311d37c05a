package memograph

import (
	"github.com/dan-solli/memograph/pkg/memory"
	"github.com/dan-solli/memograph/pkg/search"
	"github.com/dan-solli/memograph/pkg/stats"
	"github.com/dan-solli/memograph/pkg/store"
)

// Type re-exports for caller convenience

// Memory is the stored node shape, re-exported from the store package.
type Memory = store.Node

// Relationship is the stored edge shape, re-exported from the store
// package.
type Relationship = store.Edge

// Direction is re-exported from the store package.
type Direction = store.Direction

// Direction constants re-exported from the store package.
const (
	DirectionOutgoing = store.DirectionOutgoing
	DirectionIncoming = store.DirectionIncoming
	DirectionBoth     = store.DirectionBoth
)

// MemoryFields is re-exported from the memory package.
type MemoryFields = memory.Fields

// MemoryUpdate is re-exported from the memory package.
type MemoryUpdate = memory.Update

// RelationshipFields is re-exported from the memory package.
type RelationshipFields = memory.RelationshipFields

// SearchResult is re-exported from the search package.
type SearchResult = search.Result

// SearchOptions is re-exported from the search package.
type SearchOptions = search.Options

// RankWeights is re-exported from the search package.
type RankWeights = search.RankWeights

// DefaultRankWeights is re-exported from the search package.
var DefaultRankWeights = search.DefaultRankWeights

// Stats is re-exported from the stats package.
type Stats = stats.Stats
