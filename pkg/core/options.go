package core

// AddOption is a function type for configuring Add operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type AddOption func(*AddOptions)

// AddOptions contains configuration options for Add operations.
type AddOptions struct {
	// Role selects the gate profile for the text. Defaults to RoleUser.
	Role Role

	// AgentID scopes the memory to one agent. Defaults to the client's
	// configured agent id.
	AgentID string

	// Category is the initial content category. Empty lets extraction
	// classify the text later.
	Category string

	// Importance overrides the stored importance in [0.1, 1.0]. Zero
	// lets the importance rater (or the neutral default) decide.
	Importance float64

	// Pinned marks the memory user-pinned from the start, exempting it
	// from decay and noise cleanup.
	Pinned bool
}

// WithRole sets the gate profile for Add operations.
//
// Example:
//
//	result, _ := client.Add(ctx, reply, core.WithRole(core.RoleAssistant))
func WithRole(role Role) AddOption {
	return func(opts *AddOptions) {
		opts.Role = role
	}
}

// WithAgentID sets the agent ID for Add operations.
//
// Example:
//
//	result, _ := client.Add(ctx, "content", core.WithAgentID("agent_001"))
func WithAgentID(agentID string) AddOption {
	return func(opts *AddOptions) {
		opts.AgentID = agentID
	}
}

// WithCategory sets the initial category for Add operations.
func WithCategory(category string) AddOption {
	return func(opts *AddOptions) {
		opts.Category = category
	}
}

// WithImportance sets an explicit importance for Add operations,
// bypassing the LLM importance rater.
func WithImportance(importance float64) AddOption {
	return func(opts *AddOptions) {
		opts.Importance = importance
	}
}

// WithPinned marks the memory pinned for Add operations.
func WithPinned(pinned bool) AddOption {
	return func(opts *AddOptions) {
		opts.Pinned = pinned
	}
}

// applyAddOptions builds AddOptions from the defaults and the given
// option functions.
func applyAddOptions(defaultAgentID string, opts []AddOption) *AddOptions {
	options := &AddOptions{
		Role:    RoleUser,
		AgentID: defaultAgentID,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// SearchOption is a function type for configuring Search and
// GetCoreMemories operations.
type SearchOption func(*SearchOptions)

// SearchOptions contains configuration options for retrieval operations.
type SearchOptions struct {
	// AgentID scopes the query to one agent. Defaults to the client's
	// configured agent id; empty matches every agent.
	AgentID string

	// Limit caps the number of results. Defaults to 10.
	Limit int

	// MinScore drops results below this similarity score. Zero keeps
	// everything.
	MinScore float64
}

// WithAgentIDForSearch sets the agent ID for retrieval operations.
//
// Example:
//
//	results, _ := client.Search(ctx, "query", core.WithAgentIDForSearch("agent_001"))
func WithAgentIDForSearch(agentID string) SearchOption {
	return func(opts *SearchOptions) {
		opts.AgentID = agentID
	}
}

// WithLimit sets the maximum number of results for retrieval operations.
//
// Example:
//
//	results, _ := client.Search(ctx, "query", core.WithLimit(5))
func WithLimit(limit int) SearchOption {
	return func(opts *SearchOptions) {
		opts.Limit = limit
	}
}

// WithMinScore sets the minimum similarity score for Search operations.
//
// Example:
//
//	results, _ := client.Search(ctx, "query", core.WithMinScore(0.7))
func WithMinScore(minScore float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.MinScore = minScore
	}
}

// applySearchOptions builds SearchOptions from the defaults and the
// given option functions.
func applySearchOptions(defaultAgentID string, opts []SearchOption) *SearchOptions {
	options := &SearchOptions{
		AgentID: defaultAgentID,
		Limit:   10,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
