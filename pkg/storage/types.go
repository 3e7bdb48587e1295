package storage

import "time"

// Memory categories. Core is a retention tier rather than a content
// category: it overrides the others for decay and pruning and is only ever
// assigned by explicit promotion or user curation.
const (
	CategoryPreference = "preference"
	CategoryFact       = "fact"
	CategoryDecision   = "decision"
	CategoryEntity     = "entity"
	CategoryOther      = "other"
	CategoryCore       = "core"
)

// Extraction statuses. Transitions are monotonic: pending moves to exactly
// one of complete, failed, or skipped and never back.
const (
	ExtractionPending  = "pending"
	ExtractionComplete = "complete"
	ExtractionFailed   = "failed"
	ExtractionSkipped  = "skipped"
)

// MaxExtractionRetries is the transient-failure budget per memory. Once
// ExtractionRetries reaches it, the next transient failure terminates the
// memory in ExtractionFailed.
const MaxExtractionRetries = 3

// Entity types.
const (
	EntityPerson       = "person"
	EntityOrganization = "organization"
	EntityLocation     = "location"
	EntityEvent        = "event"
	EntityConcept      = "concept"
)

// Inter-entity relationship types.
const (
	RelWorksAt   = "WORKS_AT"
	RelLivesAt   = "LIVES_AT"
	RelKnows     = "KNOWS"
	RelMarriedTo = "MARRIED_TO"
	RelPrefers   = "PREFERS"
	RelDecided   = "DECIDED"
	RelRelatedTo = "RELATED_TO"
)

// Conflict candidate band. Pairs at or above the ceiling belong to
// dedup; pairs below the floor are unrelated. The cap bounds the LLM
// work one sweep can generate.
const (
	ConflictSimilarityFloor = 0.45
	ConflictSimilarityCeil  = 0.80
	MaxConflictPairs        = 50
)

// DefaultImportance is the neutral importance assigned when no rating is
// available.
const DefaultImportance = 0.5

// DefaultConfidence is assigned to extracted relationships that carry no
// confidence of their own.
const DefaultConfidence = 0.7

// ValidCategories holds the content categories the extractor may assign.
// CategoryCore is deliberately absent: the LLM never assigns the core tier.
var ValidCategories = map[string]bool{
	CategoryPreference: true,
	CategoryFact:       true,
	CategoryDecision:   true,
	CategoryEntity:     true,
	CategoryOther:      true,
}

// ValidEntityTypes holds the recognized entity types.
var ValidEntityTypes = map[string]bool{
	EntityPerson:       true,
	EntityOrganization: true,
	EntityLocation:     true,
	EntityEvent:        true,
	EntityConcept:      true,
}

// ValidRelationshipTypes holds the recognized inter-entity relationship
// types.
var ValidRelationshipTypes = map[string]bool{
	RelWorksAt:   true,
	RelLivesAt:   true,
	RelKnows:     true,
	RelMarriedTo: true,
	RelPrefers:   true,
	RelDecided:   true,
	RelRelatedTo: true,
}

// Memory represents a stored utterance with its metadata and embedding.
type Memory struct {
	// ID is the unique identifier (UUID).
	ID string

	// Text is the utterance content.
	Text string

	// Embedding is the unit-norm vector for similarity search.
	Embedding []float64

	// Category classifies the content; CategoryCore marks the protected
	// tier.
	Category string

	// Importance is the rated importance in [0.1, 1.0].
	Importance float64

	// RetrievalCount is how many times this memory was returned to the
	// caller.
	RetrievalCount int

	// LastAccessedAt is when the memory was last retrieved.
	LastAccessedAt time.Time

	// CreatedAt is when the memory was stored.
	CreatedAt time.Time

	// ExtractionStatus tracks the entity-extraction lifecycle.
	ExtractionStatus string

	// ExtractionRetries counts transient extraction failures so far.
	ExtractionRetries int

	// UserPinned memories are exempt from decay and noise cleanup.
	UserPinned bool

	// Invalidated memories are soft-deleted: hidden from retrieval and
	// from consolidation, but kept in the store.
	Invalidated bool

	// AgentID optionally scopes the memory to one agent.
	AgentID string

	// Score is the similarity score from search operations.
	Score float64
}

// AgeDays returns the memory's age in fractional days at now.
func (m *Memory) AgeDays(now time.Time) float64 {
	return now.Sub(m.CreatedAt).Hours() / 24
}

// DaysSinceAccess returns the fractional days since the memory was last
// retrieved, falling back to CreatedAt when it never was.
func (m *Memory) DaysSinceAccess(now time.Time) float64 {
	last := m.LastAccessedAt
	if last.IsZero() {
		last = m.CreatedAt
	}
	return now.Sub(last).Hours() / 24
}

// EntityInput is an extracted entity headed for the graph. Name and
// aliases arrive lowercased and trimmed from the sanitiser.
type EntityInput struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description,omitempty"`
}

// RelationshipInput is an extracted inter-entity relationship. Source and
// Target reference entity names from the same extraction batch.
type RelationshipInput struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// TagInput is an extracted categorisation keyword.
type TagInput struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// InsertOptions configures a memory insert.
type InsertOptions struct {
	// Category is the initial content category; defaults to
	// CategoryOther until extraction classifies the text.
	Category string

	// Importance in [0.1, 1.0]; defaults to DefaultImportance.
	Importance float64

	// AgentID optionally scopes the memory to one agent.
	AgentID string

	// Pinned marks the memory user-pinned from the start.
	Pinned bool
}

// DuplicateCluster is a connected component of mutually similar memories.
type DuplicateCluster struct {
	// MemoryIDs, Texts and Importances are parallel slices describing the
	// cluster members.
	MemoryIDs   []string
	Texts       []string
	Importances []float64

	// Similarities maps PairKey(i, j) to the cosine similarity of the
	// pair. Nil unless the cluster query asked for scores.
	Similarities map[string]float64
}

// MergeResult reports the outcome of a cluster merge.
type MergeResult struct {
	// KeptID is the surviving memory.
	KeptID string

	// DeletedCount is how many cluster members were invalidated into the
	// survivor.
	DeletedCount int
}

// ConflictPair is a candidate pair of potentially contradictory memories.
type ConflictPair struct {
	IDA   string
	TextA string
	IDB   string
	TextB string
}

// ScoredMemory is one row of the effective-score snapshot used for Pareto
// ranking and promotion.
type ScoredMemory struct {
	ID             string
	Text           string
	Category       string
	EffectiveScore float64
	RetrievalCount int
	AgeDays        float64
}

// DecayCurve overrides the half-life for one category.
type DecayCurve struct {
	HalfLifeDays float64
}

// DecayOptions parameterize the decay sweep.
type DecayOptions struct {
	// RetentionThreshold is the retention value below which a memory is
	// considered decayed.
	RetentionThreshold float64

	// BaseHalfLifeDays anchors the half-life before importance scaling.
	BaseHalfLifeDays float64

	// ImportanceMultiplier controls how strongly importance stretches or
	// shrinks the half-life.
	ImportanceMultiplier float64

	// DecayCurves optionally overrides the half-life per category.
	DecayCurves map[string]DecayCurve

	// AgentID optionally restricts the sweep to one agent.
	AgentID string
}

// PendingExtraction is one memory awaiting entity extraction.
type PendingExtraction struct {
	ID      string
	Text    string
	Retries int
}

// ActiveMemory is the minimal projection used for text-pattern scans.
type ActiveMemory struct {
	ID       string
	Text     string
	Category string
	Pinned   bool
}
