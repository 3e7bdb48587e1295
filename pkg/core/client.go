package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftlab/graphmem/pkg/consolidate"
	"github.com/driftlab/graphmem/pkg/embedder"
	openaiEmbedder "github.com/driftlab/graphmem/pkg/embedder/openai"
	"github.com/driftlab/graphmem/pkg/gate"
	"github.com/driftlab/graphmem/pkg/intelligence"
	"github.com/driftlab/graphmem/pkg/llm"
	openaiLLM "github.com/driftlab/graphmem/pkg/llm/openai"
	"github.com/driftlab/graphmem/pkg/metrics"
	"github.com/driftlab/graphmem/pkg/storage"
	neo4jStore "github.com/driftlab/graphmem/pkg/storage/neo4j"
	sqliteStore "github.com/driftlab/graphmem/pkg/storage/sqlite"
)

// Client is the graphmem memory engine client.
//
// It wires the attention gate, the embedding and LLM endpoints, the graph
// store and the consolidation engine behind one ingest/retrieval API:
//   - Add screens text through the gate, rates importance, embeds, and
//     stores; entity extraction runs in the background
//   - Search embeds the query and returns similarity-ranked memories,
//     counting each return as a retrieval
//   - RunSleepCycle and StartScheduler drive consolidation
//
// The client is safe for concurrent use.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(ctx, config)
//	defer client.Close()
//
//	result, _ := client.Add(ctx, "I switched to a standing desk last month")
//	if result.Stored {
//	    fmt.Println("stored as", result.ID)
//	}
type Client struct {
	config *Config

	store    storage.GraphStore
	llm      llm.Provider
	embedder embedder.Provider

	extractor  *intelligence.Extractor
	runner     *consolidate.ExtractionRunner
	dispatcher *consolidate.Dispatcher
	cycle      *consolidate.SleepCycle
	worker     *consolidate.Worker

	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
}

// ClientOption configures a Client beyond its Config.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	store    storage.GraphStore
	llm      llm.Provider
	embedder embedder.Provider
}

// WithLogger sets the client logger. The default discards everything.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics attaches engine metrics to every component.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(o *clientOptions) {
		o.metrics = m
	}
}

// WithStore injects a graph store, overriding the configured backend.
func WithStore(store storage.GraphStore) ClientOption {
	return func(o *clientOptions) {
		o.store = store
	}
}

// WithLLMProvider injects a chat provider, overriding the configured
// endpoint.
func WithLLMProvider(provider llm.Provider) ClientOption {
	return func(o *clientOptions) {
		o.llm = provider
	}
}

// WithEmbedderProvider injects an embedding provider, overriding the
// configured endpoint.
func WithEmbedderProvider(provider embedder.Provider) ClientOption {
	return func(o *clientOptions) {
		o.embedder = provider
	}
}

// NewClient creates a graphmem client from the configuration.
//
// The context covers backend initialization; the Neo4j backend verifies
// connectivity before returning. A nil config behaves as DefaultConfig.
//
// Parameters:
//   - ctx: Context for backend initialization
//   - cfg: Configuration for storage, LLM, embedder and scheduling
//   - opts: Optional logger, metrics, and component overrides
//
// Returns:
//   - *Client: The wired client
//   - error: Error if the configuration is invalid or a backend cannot
//     be reached
func NewClient(ctx context.Context, cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &clientOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = initStorage(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
	}

	llmProvider := o.llm
	if llmProvider == nil && cfg.Extraction {
		var err error
		llmProvider, err = initLLM(cfg.LLM)
		if err != nil {
			return nil, err
		}
	}

	embedderProvider := o.embedder
	if embedderProvider == nil {
		var err error
		embedderProvider, err = initEmbedder(cfg.Embedder)
		if err != nil {
			return nil, err
		}
	}

	extractor := intelligence.NewExtractor(llmProvider, &intelligence.ExtractionConfig{
		Enabled:    cfg.Extraction,
		Endpoint:   cfg.LLM.Endpoint,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		MaxRetries: cfg.LLM.MaxRetries,
		TimeoutMs:  cfg.LLM.TimeoutMs,
	}, intelligence.WithLogger(o.logger), intelligence.WithMetrics(o.metrics))

	cycle, err := consolidate.NewSleepCycle(store, extractor,
		consolidate.WithLogger(o.logger), consolidate.WithMetrics(o.metrics))
	if err != nil {
		return nil, NewMemoryError("NewClient", err)
	}

	return &Client{
		config:     cfg,
		store:      store,
		llm:        llmProvider,
		embedder:   embedderProvider,
		extractor:  extractor,
		runner:     consolidate.NewExtractionRunner(store, extractor, consolidate.WithLogger(o.logger), consolidate.WithMetrics(o.metrics)),
		dispatcher: consolidate.NewDispatcher(o.logger),
		cycle:      cycle,
		logger:     o.logger,
		metrics:    o.metrics,
	}, nil
}

// Add ingests one text through the attention gate into the store.
//
// The pipeline is:
//  1. Gate the text with the profile for its role; a rejection returns
//     AddResult{Stored: false, Reason: label} without error
//  2. Rate importance (blocking LLM call when extraction is enabled)
//  3. Embed the text and insert the memory
//  4. Dispatch entity extraction in the background
//
// The background extraction deliberately outlives ctx: once the insert
// has succeeded the caller's cancellation no longer affects it.
//
// Parameters:
//   - ctx: Context for cancellation
//   - text: Raw utterance to ingest
//   - opts: Optional role, agent id, category, importance, pin flag
//
// Returns the ingest outcome, or an error on embedding/storage failure.
//
// Example:
//
//	result, err := client.Add(ctx, "I prefer window seats on long flights",
//	    core.WithRole(core.RoleUser),
//	    core.WithAgentID("agent_001"),
//	)
func (c *Client) Add(ctx context.Context, text string, opts ...AddOption) (*AddResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, NewMemoryError("Add", err)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, NewMemoryError("Add", ErrEmptyText)
	}

	addOpts := applyAddOptions(c.config.AgentID, opts)

	var reason string
	switch addOpts.Role {
	case RoleAssistant:
		reason = gate.AssistantRejectReason(trimmed)
	default:
		reason = gate.UserRejectReason(trimmed)
	}
	c.metrics.RecordGate(string(addOpts.Role), reason)
	if reason != "" {
		c.logger.Debug("gate rejected text",
			zap.String("role", string(addOpts.Role)),
			zap.String("reason", reason))
		return &AddResult{Stored: false, Reason: reason}, nil
	}

	importance := addOpts.Importance
	if importance <= 0 && c.extractor.Enabled() {
		importance = c.extractor.RateImportance(ctx, trimmed)
	}

	embedding, err := c.embedder.Embed(ctx, trimmed)
	if err != nil {
		return nil, NewMemoryError("Add", err)
	}

	id, err := c.store.InsertMemory(ctx, trimmed, storage.NormalizeVector(embedding), &storage.InsertOptions{
		Category:   addOpts.Category,
		Importance: importance,
		AgentID:    addOpts.AgentID,
		Pinned:     addOpts.Pinned,
	})
	if err != nil {
		return nil, NewMemoryError("Add", err)
	}

	if c.extractor.Enabled() {
		c.dispatcher.Go(func() {
			c.runner.Run(context.Background(), id, trimmed, 0)
		})
	}

	return &AddResult{ID: id, Stored: true}, nil
}

// Search returns the memories most similar to the query, ranked by
// cosine similarity. Every returned memory is counted as retrieved,
// which feeds the frequency and recency terms of its effective score.
//
// Parameters:
//   - ctx: Context for cancellation
//   - query: Search query text
//   - opts: Optional agent id, limit, minimum score
//
// Returns matching memories sorted by score (highest first).
//
// Example:
//
//	results, err := client.Search(ctx, "seating preferences",
//	    core.WithLimit(5),
//	    core.WithMinScore(0.7),
//	)
func (c *Client) Search(ctx context.Context, query string, opts ...SearchOption) ([]*Memory, error) {
	if err := c.checkOpen(); err != nil {
		return nil, NewMemoryError("Search", err)
	}

	searchOpts := applySearchOptions(c.config.AgentID, opts)

	queryEmbedding, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, NewMemoryError("Search", err)
	}

	memories, err := c.store.SearchSimilar(ctx, queryEmbedding, searchOpts.Limit, searchOpts.AgentID)
	if err != nil {
		return nil, NewMemoryError("Search", err)
	}

	if searchOpts.MinScore > 0 {
		filtered := memories[:0]
		for _, m := range memories {
			if m.Score >= searchOpts.MinScore {
				filtered = append(filtered, m)
			}
		}
		memories = filtered
	}

	if len(memories) > 0 {
		ids := make([]string, len(memories))
		for i, m := range memories {
			ids[i] = m.ID
		}
		if err := c.store.TouchMemories(ctx, ids); err != nil {
			c.logger.Warn("retrieval accounting failed", zap.Error(err))
		}
	}

	return memories, nil
}

// Get retrieves a memory by its ID.
//
// Returns the Memory, or an error wrapping ErrNotFound when no memory
// has that ID.
func (c *Client) Get(ctx context.Context, id string) (*Memory, error) {
	if err := c.checkOpen(); err != nil {
		return nil, NewMemoryError("Get", err)
	}

	memory, err := c.store.GetMemory(ctx, id)
	if err != nil {
		return nil, NewMemoryError("Get", err)
	}
	return memory, nil
}

// GetCoreMemories returns the core-tier memories ranked by usage score
// (retrieval frequency weighted by recency of access).
//
// Parameters:
//   - ctx: Context for cancellation
//   - opts: Optional agent id and limit
func (c *Client) GetCoreMemories(ctx context.Context, opts ...SearchOption) ([]*Memory, error) {
	if err := c.checkOpen(); err != nil {
		return nil, NewMemoryError("GetCoreMemories", err)
	}

	searchOpts := applySearchOptions(c.config.AgentID, opts)

	memories, err := c.store.ListCoreMemories(ctx, searchOpts.AgentID)
	if err != nil {
		return nil, NewMemoryError("GetCoreMemories", err)
	}

	now := time.Now().UTC()
	sort.SliceStable(memories, func(i, j int) bool {
		return storage.UsageScore(memories[i].RetrievalCount, memories[i].DaysSinceAccess(now)) >
			storage.UsageScore(memories[j].RetrievalCount, memories[j].DaysSinceAccess(now))
	})
	if searchOpts.Limit > 0 && len(memories) > searchOpts.Limit {
		memories = memories[:searchOpts.Limit]
	}
	return memories, nil
}

// Pin sets or clears the user pin on a memory. Pinned memories are
// exempt from decay and noise cleanup.
func (c *Client) Pin(ctx context.Context, id string, pinned bool) error {
	if err := c.checkOpen(); err != nil {
		return NewMemoryError("Pin", err)
	}
	if err := c.store.SetPinned(ctx, id, pinned); err != nil {
		return NewMemoryError("Pin", err)
	}
	return nil
}

// Invalidate soft-deletes a memory. Invalidated memories stop appearing
// in retrieval but remain in the store.
func (c *Client) Invalidate(ctx context.Context, id string) error {
	if err := c.checkOpen(); err != nil {
		return NewMemoryError("Invalidate", err)
	}
	if err := c.store.InvalidateMemory(ctx, id); err != nil {
		return NewMemoryError("Invalidate", err)
	}
	return nil
}

// RunSleepCycle executes one consolidation pass immediately.
//
// A nil opts runs with the defaults scoped to the client's agent id.
// The returned result reports what every phase did; phase failures are
// logged and counted, never returned.
func (c *Client) RunSleepCycle(ctx context.Context, opts *consolidate.SleepCycleOptions) (*consolidate.Result, error) {
	if err := c.checkOpen(); err != nil {
		return nil, NewMemoryError("RunSleepCycle", err)
	}
	if opts == nil {
		opts = &consolidate.SleepCycleOptions{AgentID: c.config.AgentID}
	}
	return c.cycle.Run(ctx, opts), nil
}

// StartScheduler begins periodic consolidation at the configured sleep
// interval. Calling it again while running is a no-op.
func (c *Client) StartScheduler() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return NewMemoryError("StartScheduler", ErrClosed)
	}
	if c.worker == nil {
		c.worker = consolidate.NewWorker(c.cycle, &consolidate.WorkerConfig{
			Interval: c.config.SleepInterval,
			Options:  &consolidate.SleepCycleOptions{AgentID: c.config.AgentID},
		}, consolidate.WithLogger(c.logger), consolidate.WithMetrics(c.metrics))
	}
	c.worker.Start()
	return nil
}

// StopScheduler stops periodic consolidation, waiting for an in-flight
// run to finish.
func (c *Client) StopScheduler() {
	c.mu.RLock()
	worker := c.worker
	c.mu.RUnlock()

	if worker != nil {
		worker.Stop()
	}
}

// Metrics returns the engine metrics attached at construction, or nil.
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// Close shuts the client down.
//
// It stops the scheduler, waits for all background extractions to
// settle, then closes the store and the providers. Closing twice is
// safe.
//
// Returns the first error encountered during cleanup.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	worker := c.worker
	c.mu.Unlock()

	if worker != nil {
		worker.Stop()
	}
	c.dispatcher.Wait()

	var errs []error
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return NewMemoryError("Close", errs[0])
	}
	return nil
}

// checkOpen returns ErrClosed once Close has begun.
func (c *Client) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// initStorage initializes the configured graph store backend.
func initStorage(ctx context.Context, cfg StorageConfig) (storage.GraphStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			Path: cfg.SQLitePath,
		})
	case "neo4j":
		return neo4jStore.NewClient(ctx, &neo4jStore.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
	default:
		return nil, NewMemoryError("initStorage", ErrInvalidConfig)
	}
}

// initLLM initializes the chat provider.
func initLLM(cfg LLMConfig) (llm.Provider, error) {
	return openaiLLM.NewClient(&openaiLLM.Config{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.Endpoint,
		MaxRetries: cfg.MaxRetries,
		Timeout:    time.Duration(cfg.TimeoutMs) * time.Millisecond,
	})
}

// initEmbedder initializes the embedding provider.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	return openaiEmbedder.NewClient(&openaiEmbedder.Config{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.Endpoint,
		Dimensions: cfg.Dimensions,
	})
}
