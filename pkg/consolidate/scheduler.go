package consolidate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSleepInterval is how often the worker consolidates when no
// interval is configured.
const DefaultSleepInterval = 6 * time.Hour

// defaultRunTimeout bounds a single scheduled cycle.
const defaultRunTimeout = 30 * time.Minute

// Worker runs the sleep cycle on an interval.
type Worker struct {
	cycle      *SleepCycle
	opts       *SleepCycleOptions
	logger     *zap.Logger
	interval   time.Duration
	timeout    time.Duration
	runOnStart bool

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// WorkerConfig configures the interval worker.
type WorkerConfig struct {
	// Interval between cycles. Defaults to DefaultSleepInterval.
	Interval time.Duration

	// RunTimeout bounds each cycle. Defaults to 30 minutes.
	RunTimeout time.Duration

	// RunOnStart triggers a cycle immediately instead of waiting a full
	// interval first.
	RunOnStart bool

	// Options are passed to every run; nil means defaults.
	Options *SleepCycleOptions
}

// NewWorker creates a worker around the given cycle.
func NewWorker(cycle *SleepCycle, cfg *WorkerConfig, opts ...Option) *Worker {
	if cfg == nil {
		cfg = &WorkerConfig{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSleepInterval
	}
	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}

	o := applyOptions(opts)
	return &Worker{
		cycle:      cycle,
		opts:       cfg.Options,
		logger:     o.logger,
		interval:   interval,
		timeout:    timeout,
		runOnStart: cfg.RunOnStart,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the background loop. Calling Start on a running worker
// is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("sleep cycle worker started",
			zap.Duration("interval", w.interval))

		if w.runOnStart {
			w.runOnce()
		}
		for {
			select {
			case <-ticker.C:
				w.runOnce()
			case <-w.stopCh:
				w.logger.Info("sleep cycle worker stopped")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight cycle to finish.
// Calling Stop on a stopped or never-started worker is a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.stopCh = make(chan struct{})
	w.mu.Unlock()
}

func (w *Worker) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	result := w.cycle.Run(ctx, w.opts)
	w.logger.Info("scheduled sleep cycle done",
		zap.String("run_id", result.RunID),
		zap.Bool("aborted", result.Aborted),
		zap.Int64("duration_ms", result.DurationMs))
}
