// Package intelligence provides the LLM-judged operations of the
// consolidation engine: entity extraction, importance rating, semantic
// duplicate detection, and conflict resolution.
//
// Every operation degrades safely: extraction reports whether a failure is
// transient, importance falls back to the neutral default, duplicate
// detection fails open (allow storage), and conflict resolution falls back
// to keeping both memories. A disabled configuration short-circuits all
// four without touching the LLM.
package intelligence

import "github.com/driftlab/graphmem/pkg/storage"

// ExtractionConfig configures the LLM-judged operations.
type ExtractionConfig struct {
	// Enabled turns the LLM pipeline on. When false every operation
	// returns its safe default without network calls.
	Enabled bool

	// Endpoint is the OpenAI-compatible base URL.
	Endpoint string

	// Model is the chat model name.
	Model string

	// APIKey authenticates against the endpoint.
	APIKey string

	// MaxRetries is the client-internal retry budget per call.
	MaxRetries int

	// TimeoutMs is the per-attempt timeout in milliseconds.
	TimeoutMs int
}

// ExtractionResult is the sanitised output of entity extraction, ready for
// storage.GraphStore.BatchEntityOperations.
type ExtractionResult struct {
	// Category is the content category the LLM assigned, empty when it
	// offered none or an unknown one.
	Category string

	// Entities holds the extracted referents, names lowercased.
	Entities []storage.EntityInput

	// Relationships holds inter-entity relationships whose source and
	// target reference entity names from this same result.
	Relationships []storage.RelationshipInput

	// Tags holds categorisation keywords, names lowercased.
	Tags []storage.TagInput
}

// IsEmpty reports whether extraction produced nothing to persist.
func (r *ExtractionResult) IsEmpty() bool {
	return r == nil || (len(r.Entities) == 0 && len(r.Relationships) == 0 && len(r.Tags) == 0)
}

// Verdict is the outcome of conflict resolution between two memories.
type Verdict string

const (
	// VerdictKeepA keeps memory A and invalidates B.
	VerdictKeepA Verdict = "a"

	// VerdictKeepB keeps memory B and invalidates A.
	VerdictKeepB Verdict = "b"

	// VerdictKeepBoth keeps both: the memories do not actually conflict.
	VerdictKeepBoth Verdict = "both"

	// VerdictSkip keeps both because no determination could be made.
	VerdictSkip Verdict = "skip"
)

// rawExtraction mirrors the JSON contract asked of the LLM before any
// sanitisation.
type rawExtraction struct {
	Category      string            `json:"category"`
	Entities      []rawEntity       `json:"entities"`
	Relationships []rawRelationship `json:"relationships"`
	Tags          []rawTag          `json:"tags"`
}

type rawEntity struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Aliases     []string `json:"aliases"`
	Description string   `json:"description"`
}

type rawRelationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`

	// Confidence is a pointer so an absent field can default rather than
	// read as zero.
	Confidence *float64 `json:"confidence"`
}

type rawTag struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}
