package intelligence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/driftlab/graphmem/pkg/llm"
	"github.com/driftlab/graphmem/pkg/metrics"
)

// LLM call kinds, used as metric labels.
const (
	kindExtract    = "extract"
	kindImportance = "importance"
	kindDedup      = "dedup"
	kindConflict   = "conflict"
)

// Extractor runs the LLM-judged operations of the engine.
//
// Example usage:
//
//	extractor := intelligence.NewExtractor(provider, config)
//	result, transient := extractor.ExtractEntities(ctx, text)
//	// result is nil on failure; transient tells the caller whether a
//	// retry might succeed
type Extractor struct {
	// llm is the chat-completion provider for all four operations.
	llm llm.Provider

	// config gates the operations; a nil or disabled config turns the
	// extractor into a set of safe defaults.
	config *ExtractionConfig

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches engine metrics to the extractor's LLM calls.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

// NewExtractor creates an Extractor on the given provider.
//
// Parameters:
//   - provider: Chat-completion client (may be nil when config is
//     disabled)
//   - config: Extraction configuration; nil behaves as disabled
//   - opts: Optional logger and metrics
func NewExtractor(provider llm.Provider, config *ExtractionConfig, opts ...Option) *Extractor {
	e := &Extractor{
		llm:    provider,
		config: config,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enabled reports whether the extractor has a live provider and an
// enabled configuration. Disabled extractors answer every operation with
// its safe default.
func (e *Extractor) Enabled() bool {
	return e.config != nil && e.config.Enabled && e.llm != nil
}

// ExtractEntities asks the LLM for the entities, relationships, tags and
// category of a memory text, over a streaming call.
//
// The second return value reports whether a failure was transient:
//   - (result, false): success; result may still be empty
//   - (nil, true): transient failure, worth retrying later
//   - (nil, false): permanent failure or disabled configuration
func (e *Extractor) ExtractEntities(ctx context.Context, text string) (*ExtractionResult, bool) {
	if !e.Enabled() {
		return nil, false
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: extractionSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Memory text:\n%s", text)},
	}

	start := time.Now()
	response, err := e.llm.ChatStream(ctx, messages, llm.WithMaxTokens(1500))
	if err != nil {
		transient := llm.IsTransient(err)
		e.metrics.RecordLLMRequest(kindExtract, failureOutcome(transient), time.Since(start).Seconds())
		e.logger.Warn("entity extraction call failed",
			zap.Bool("transient", transient),
			zap.Error(err))
		return nil, transient
	}
	e.metrics.RecordLLMRequest(kindExtract, "ok", time.Since(start).Seconds())

	result, err := ParseExtractionResponse(response)
	if err != nil {
		e.logger.Warn("unparseable extraction response", zap.Error(err))
		return nil, false
	}
	return result, false
}

func failureOutcome(transient bool) string {
	if transient {
		return "transient"
	}
	return "permanent"
}
