package core

import "github.com/driftlab/graphmem/pkg/storage"

// Memory is the stored memory record. It is an alias for the storage
// type: the engine keeps a single memory shape from ingest to store, so
// callers of this package never convert between representations.
type Memory = storage.Memory

// Role identifies who produced the text being ingested. The attention
// gate applies a different profile per role: the assistant profile is
// strictly stronger than the user profile.
type Role string

const (
	// RoleUser marks text typed by the user.
	RoleUser Role = "user"

	// RoleAssistant marks text produced by the assistant.
	RoleAssistant Role = "assistant"
)

// AddResult reports what happened to one ingested text.
//
// A gate rejection is a normal outcome, not an error: Stored is false
// and Reason carries the rejection label. Errors are reserved for
// embedding and storage failures.
type AddResult struct {
	// ID is the stored memory's identifier; empty when not stored.
	ID string `json:"id,omitempty"`

	// Stored reports whether the text was written to the store.
	Stored bool `json:"stored"`

	// Reason is the gate rejection label when Stored is false
	// (e.g. "length", "noise_pattern", "proposal").
	Reason string `json:"reason,omitempty"`
}
