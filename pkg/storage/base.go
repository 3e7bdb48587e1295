// Package storage defines the graph-store contract the consolidation
// engine runs against, along with the shared types, scoring math, vector
// helpers, and cluster construction used by every backend.
//
// Two implementations ship with the module: a Neo4j backend
// (storage/neo4j) for server deployments and an embedded SQLite backend
// (storage/sqlite). Both compute scores and clusters through the shared
// helpers in this package so the formulas cannot drift apart.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an operation references a memory ID that
// does not exist.
var ErrNotFound = errors.New("memory not found")

// GraphStore is the persistence contract of the consolidation engine.
//
// All mutation is transactional inside the backend; the engine holds no
// locks of its own. Every query that takes an agentID treats the empty
// string as "no filter". Invalidated memories are invisible to every read
// operation except GetMemory.
type GraphStore interface {
	// InsertMemory stores a new memory and returns its generated ID.
	// The embedding must already be unit-norm; extraction status starts
	// pending.
	InsertMemory(ctx context.Context, text string, embedding []float64, opts *InsertOptions) (string, error)

	// GetMemory retrieves a memory by ID, invalidated or not.
	GetMemory(ctx context.Context, id string) (*Memory, error)

	// SearchSimilar returns the limit most similar non-invalidated
	// memories, highest cosine similarity first, with Score populated.
	SearchSimilar(ctx context.Context, embedding []float64, limit int, agentID string) ([]*Memory, error)

	// TouchMemories increments RetrievalCount and refreshes
	// LastAccessedAt for the given memories.
	TouchMemories(ctx context.Context, ids []string) error

	// SetPinned sets or clears the user-pinned flag.
	SetPinned(ctx context.Context, id string, pinned bool) error

	// InvalidateMemory soft-deletes a memory. It stays in the store but
	// is excluded from retrieval and from all later consolidation phases.
	InvalidateMemory(ctx context.Context, id string) error

	// UpdateExtractionStatus advances the extraction status. Transitions
	// are monotonic: a terminal status is never overwritten with a
	// different one. incrementRetries additionally bumps the retry
	// counter, which never decreases.
	UpdateExtractionStatus(ctx context.Context, id, status string, incrementRetries bool) error

	// BatchEntityOperations applies a full extraction result in a single
	// transaction: MERGE entities by (name, type), create MENTIONS edges,
	// MERGE inter-entity relationships with confidence, MERGE tags by
	// name, create TAGGED edges, set the memory category when non-empty,
	// and mark extraction complete.
	BatchEntityOperations(ctx context.Context, memoryID string, entities []EntityInput, relationships []RelationshipInput, tags []TagInput, category string) error

	// ListPendingExtractions returns up to limit memories whose
	// extraction is still pending, oldest first.
	ListPendingExtractions(ctx context.Context, limit int, agentID string) ([]*PendingExtraction, error)

	// CountByExtractionStatus returns the number of non-invalidated
	// memories per extraction status.
	CountByExtractionStatus(ctx context.Context, agentID string) (map[string]int, error)

	// FindDuplicateClusters returns the connected components of the
	// similarity graph whose edges are pairs with cosine >= threshold.
	// Singleton components are omitted. With withScores the pairwise
	// similarity map of each cluster is populated.
	FindDuplicateClusters(ctx context.Context, threshold float64, agentID string, withScores bool) ([]*DuplicateCluster, error)

	// MergeMemoryCluster collapses a cluster into its most important
	// member: ties break on higher RetrievalCount, then older CreatedAt.
	// The survivor absorbs the summed RetrievalCount and the maximum
	// importance, incoming MENTIONS and TAGGED edges migrate onto it, and
	// the other members are invalidated. Invoking it on a singleton is a
	// no-op.
	MergeMemoryCluster(ctx context.Context, ids []string, importances []float64) (*MergeResult, error)

	// FindConflictingMemories returns candidate pairs for conflict
	// adjudication: same-category pairs whose similarity falls in the
	// related-but-not-duplicate band.
	FindConflictingMemories(ctx context.Context, agentID string) ([]*ConflictPair, error)

	// CalculateAllEffectiveScores computes the effective score of every
	// non-invalidated memory.
	CalculateAllEffectiveScores(ctx context.Context, agentID string) ([]*ScoredMemory, error)

	// ListCoreMemories returns all non-invalidated core-tier memories.
	ListCoreMemories(ctx context.Context, agentID string) ([]*Memory, error)

	// PromoteToCore sets category core on the given memories and returns
	// how many changed.
	PromoteToCore(ctx context.Context, ids []string) (int, error)

	// FindDecayedMemories returns the IDs of memories whose retention has
	// fallen below the threshold. Pinned and core memories are never
	// returned.
	FindDecayedMemories(ctx context.Context, opts *DecayOptions) ([]string, error)

	// PruneMemories hard-deletes the given memories together with their
	// MENTIONS and TAGGED edges, skipping core and pinned ones. Returns
	// the number deleted.
	PruneMemories(ctx context.Context, ids []string) (int, error)

	// FindOrphanEntities returns entities with no remaining MENTIONS
	// edges from live memories.
	FindOrphanEntities(ctx context.Context) ([]string, error)

	// DeleteOrphanEntities removes the given entities and their
	// relationships. Returns the number deleted.
	DeleteOrphanEntities(ctx context.Context, ids []string) (int, error)

	// FindOrphanTags returns tags with no remaining TAGGED edges from
	// live memories.
	FindOrphanTags(ctx context.Context) ([]string, error)

	// DeleteOrphanTags removes the given tags. Returns the number
	// deleted.
	DeleteOrphanTags(ctx context.Context, ids []string) (int, error)

	// ListActiveMemories returns the id, text, category and pinned flag
	// of every non-invalidated memory, for text-pattern scans.
	ListActiveMemories(ctx context.Context, agentID string) ([]*ActiveMemory, error)

	// Close closes the store and releases resources.
	Close() error
}
