// Package consolidate implements the engine's background work: the
// per-memory extraction runner, the fire-and-forget dispatcher used by
// the ingest path, the seven-phase sleep cycle, and its interval
// scheduler.
package consolidate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/driftlab/graphmem/pkg/intelligence"
	"github.com/driftlab/graphmem/pkg/llm"
	"github.com/driftlab/graphmem/pkg/metrics"
	"github.com/driftlab/graphmem/pkg/storage"
)

// Option configures the consolidation components.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Outcome reports how one background extraction ended.
type Outcome struct {
	MemoryID string
	Success  bool
}

// ExtractionRunner executes entity extraction for a single memory and
// maintains the memory's extraction status through every failure mode.
//
// Run never returns an error and never panics out: the ingest path
// dispatches it fire-and-forget, and the sleep cycle calls it from a
// bounded worker pool. All failures are logged and folded into the
// status bookkeeping.
type ExtractionRunner struct {
	store     storage.GraphStore
	extractor *intelligence.Extractor
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewExtractionRunner creates a runner over the given store and
// extractor.
func NewExtractionRunner(store storage.GraphStore, extractor *intelligence.Extractor, opts ...Option) *ExtractionRunner {
	o := applyOptions(opts)
	return &ExtractionRunner{
		store:     store,
		extractor: extractor,
		logger:    o.logger,
		metrics:   o.metrics,
	}
}

// Run extracts entities for one memory and advances its extraction
// status:
//
//   - extraction disabled: status skipped, success
//   - transient LLM failure: retries incremented; failed once the new
//     count reaches the retry budget, otherwise still pending
//   - permanent LLM failure: status failed
//   - empty result: status complete without graph writes
//   - non-empty result: one atomic batch write that links entities,
//     relationships and tags and marks the memory complete
//
// Graph-write errors are classified with llm.IsTransient and follow the
// same retry bookkeeping as LLM failures.
func (r *ExtractionRunner) Run(ctx context.Context, memoryID, text string, currentRetries int) (outcome Outcome) {
	outcome = Outcome{MemoryID: memoryID}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("background extraction panicked",
				zap.String("memory_id", memoryID),
				zap.Any("panic", rec))
		}
	}()

	if !r.extractor.Enabled() {
		r.setStatus(ctx, memoryID, storage.ExtractionSkipped, false)
		r.metrics.RecordExtraction("skipped")
		outcome.Success = true
		return outcome
	}

	result, transient := r.extractor.ExtractEntities(ctx, text)
	if result == nil {
		r.recordFailure(ctx, memoryID, transient, currentRetries)
		return outcome
	}

	if result.IsEmpty() {
		r.setStatus(ctx, memoryID, storage.ExtractionComplete, false)
		r.metrics.RecordExtraction("complete")
		outcome.Success = true
		return outcome
	}

	err := r.store.BatchEntityOperations(ctx, memoryID,
		result.Entities, result.Relationships, result.Tags, result.Category)
	if err != nil {
		r.logger.Warn("entity batch write failed",
			zap.String("memory_id", memoryID),
			zap.Error(err))
		r.recordFailure(ctx, memoryID, llm.IsTransient(err), currentRetries)
		return outcome
	}

	r.metrics.RecordExtraction("complete")
	outcome.Success = true
	return outcome
}

// recordFailure applies the retry policy after a failed extraction
// attempt.
func (r *ExtractionRunner) recordFailure(ctx context.Context, memoryID string, transient bool, currentRetries int) {
	if !transient {
		r.setStatus(ctx, memoryID, storage.ExtractionFailed, false)
		r.metrics.RecordExtraction("failed")
		return
	}
	if currentRetries+1 >= storage.MaxExtractionRetries {
		r.setStatus(ctx, memoryID, storage.ExtractionFailed, true)
		r.metrics.RecordExtraction("failed")
		return
	}
	r.setStatus(ctx, memoryID, storage.ExtractionPending, true)
	r.metrics.RecordExtraction("retry")
}

func (r *ExtractionRunner) setStatus(ctx context.Context, memoryID, status string, increment bool) {
	if err := r.store.UpdateExtractionStatus(ctx, memoryID, status, increment); err != nil {
		r.logger.Warn("extraction status update failed",
			zap.String("memory_id", memoryID),
			zap.String("status", status),
			zap.Error(err))
	}
}

// Dispatcher runs fire-and-forget tasks on tracked goroutines, in the
// spirit of the async client: spawn freely, wait on shutdown.
type Dispatcher struct {
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil logger falls back to a nop.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger}
}

// Go runs task on its own goroutine. A panicking task is logged and
// absorbed.
func (d *Dispatcher) Go(task func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				d.logger.Error("background task panicked", zap.Any("panic", rec))
			}
		}()
		task()
	}()
}

// Wait blocks until every in-flight task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
