package consolidate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/driftlab/graphmem/pkg/gate"
	"github.com/driftlab/graphmem/pkg/intelligence"
	"github.com/driftlab/graphmem/pkg/metrics"
	"github.com/driftlab/graphmem/pkg/storage"
)

// SleepCycleOptions configure one consolidation run. The zero value of
// every numeric field means "use the default"; DefaultSleepCycleOptions
// lists them.
type SleepCycleOptions struct {
	// ClusterThreshold is the cosine similarity at which two memories
	// become cluster neighbours. Default 0.75.
	ClusterThreshold float64

	// DedupThreshold marks a cluster high-similarity: any pair at or
	// above it sends the whole cluster to a vector merge. Default 0.95.
	DedupThreshold float64

	// MaxSemanticDedupPairs caps the pairs judged by the LLM in one run;
	// the most similar pairs win when the cap bites. Default 500.
	MaxSemanticDedupPairs int

	// LLMConcurrency bounds concurrent outstanding LLM calls. Default 8.
	LLMConcurrency int

	// SkipSemanticDedup skips the LLM dedup and conflict passes, leaving
	// only the vector merge.
	SkipSemanticDedup bool

	// EnablePromotion turns on core promotion. Off by default: promotion
	// is one-way, so it stays opt-in.
	EnablePromotion bool

	// ParetoPercentile positions the effective-score threshold; 0.80
	// keeps the top 20%. Default 0.80.
	ParetoPercentile float64

	// PromotionMinAgeDays is the minimum age before a memory can become
	// core. Default 7.
	PromotionMinAgeDays float64

	// ExtractionBatchSize is the extraction catch-up page size.
	// Default 50.
	ExtractionBatchSize int

	// ExtractionDelay is the pause between catch-up pages. Default 1s.
	ExtractionDelay time.Duration

	// RetentionThreshold is the retention value below which a memory
	// decays. Default 0.10.
	RetentionThreshold float64

	// BaseHalfLifeDays anchors the decay half-life. Default 30.
	BaseHalfLifeDays float64

	// ImportanceMultiplier scales how strongly importance stretches the
	// half-life. Default 1.0.
	ImportanceMultiplier float64

	// DecayCurves optionally overrides the half-life per category.
	DecayCurves map[string]storage.DecayCurve

	// AgentID restricts the whole cycle to one agent's memories.
	AgentID string

	// OnPhase is invoked synchronously as each phase starts.
	OnPhase func(phase int, name string)

	// OnProgress receives human-readable progress lines.
	OnProgress func(message string)
}

// DefaultSleepCycleOptions returns the standard consolidation settings.
func DefaultSleepCycleOptions() *SleepCycleOptions {
	return &SleepCycleOptions{
		ClusterThreshold:      0.75,
		DedupThreshold:        0.95,
		MaxSemanticDedupPairs: 500,
		LLMConcurrency:        8,
		ParetoPercentile:      0.80,
		PromotionMinAgeDays:   7,
		ExtractionBatchSize:   50,
		ExtractionDelay:       time.Second,
		RetentionThreshold:    0.10,
		BaseHalfLifeDays:      30,
		ImportanceMultiplier:  1.0,
	}
}

func (o *SleepCycleOptions) withDefaults() *SleepCycleOptions {
	def := DefaultSleepCycleOptions()
	if o == nil {
		return def
	}

	out := *o
	if out.ClusterThreshold <= 0 {
		out.ClusterThreshold = def.ClusterThreshold
	}
	if out.DedupThreshold <= 0 {
		out.DedupThreshold = def.DedupThreshold
	}
	if out.MaxSemanticDedupPairs <= 0 {
		out.MaxSemanticDedupPairs = def.MaxSemanticDedupPairs
	}
	if out.LLMConcurrency <= 0 {
		out.LLMConcurrency = def.LLMConcurrency
	}
	if out.ParetoPercentile <= 0 {
		out.ParetoPercentile = def.ParetoPercentile
	}
	if out.PromotionMinAgeDays <= 0 {
		out.PromotionMinAgeDays = def.PromotionMinAgeDays
	}
	if out.ExtractionBatchSize <= 0 {
		out.ExtractionBatchSize = def.ExtractionBatchSize
	}
	if out.ExtractionDelay <= 0 {
		out.ExtractionDelay = def.ExtractionDelay
	}
	if out.RetentionThreshold <= 0 {
		out.RetentionThreshold = def.RetentionThreshold
	}
	if out.BaseHalfLifeDays <= 0 {
		out.BaseHalfLifeDays = def.BaseHalfLifeDays
	}
	if out.ImportanceMultiplier <= 0 {
		out.ImportanceMultiplier = def.ImportanceMultiplier
	}
	return &out
}

func (o *SleepCycleOptions) phase(n int, name string) {
	if o.OnPhase != nil {
		o.OnPhase(n, name)
	}
}

func (o *SleepCycleOptions) progress(message string) {
	if o.OnProgress != nil {
		o.OnProgress(message)
	}
}

// Result aggregates what one sleep cycle did.
type Result struct {
	RunID                 string  `json:"runId"`
	ClustersFound         int     `json:"clustersFound"`
	VectorMerged          int     `json:"vectorMerged"`
	SemanticInvalidated   int     `json:"semanticInvalidated"`
	ConflictInvalidated   int     `json:"conflictInvalidated"`
	MemoriesScored        int     `json:"memoriesScored"`
	ParetoThreshold       float64 `json:"paretoThreshold"`
	Promoted              int     `json:"promoted"`
	PendingExtractions    int     `json:"pendingExtractions"`
	ExtractionsProcessed  int     `json:"extractionsProcessed"`
	ExtractionsSucceeded  int     `json:"extractionsSucceeded"`
	MemoriesDecayed       int     `json:"memoriesDecayed"`
	MemoriesPruned        int     `json:"memoriesPruned"`
	OrphanEntitiesDeleted int     `json:"orphanEntitiesDeleted"`
	OrphanTagsDeleted     int     `json:"orphanTagsDeleted"`
	NoiseMemoriesDeleted  int     `json:"noiseMemoriesDeleted"`
	DurationMs            int64   `json:"durationMs"`
	Aborted               bool    `json:"aborted"`
}

// SleepCycle runs the seven consolidation phases over a graph store.
//
// Phases execute strictly in order; a phase begins only after all work
// from the previous one has settled. A cancelled context short-circuits
// the remaining phases and marks the result aborted; partial progress
// is never rolled back. Phase errors are logged and counted, never
// returned: a consolidation pass must not take the engine down.
type SleepCycle struct {
	store     storage.GraphStore
	extractor *intelligence.Extractor
	runner    *ExtractionRunner
	logger    *zap.Logger
	metrics   *metrics.Metrics
	node      *snowflake.Node
}

// NewSleepCycle creates a sleep cycle over the given store and extractor.
//
// Parameters:
//   - store: Graph store holding the memories
//   - extractor: LLM-judged operations; disabled extractors degrade the
//     LLM passes to their safe defaults
//   - opts: Optional logger and metrics
//
// Returns:
//   - *SleepCycle: The configured cycle
//   - error: Error if the run-ID generator cannot be created
func NewSleepCycle(store storage.GraphStore, extractor *intelligence.Extractor, opts ...Option) (*SleepCycle, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	return &SleepCycle{
		store:     store,
		extractor: extractor,
		runner: &ExtractionRunner{
			store:     store,
			extractor: extractor,
			logger:    o.logger,
			metrics:   o.metrics,
		},
		logger:  o.logger,
		metrics: o.metrics,
		node:    node,
	}, nil
}

// cycleState carries the data phases hand to each other within one run.
type cycleState struct {
	opts      *SleepCycleOptions
	result    *Result
	snapshot  []*storage.ScoredMemory
	threshold float64
}

// Run executes one full consolidation pass and reports what it did.
func (s *SleepCycle) Run(ctx context.Context, opts *SleepCycleOptions) *Result {
	opts = opts.withDefaults()
	start := time.Now()

	st := &cycleState{
		opts:   opts,
		result: &Result{RunID: s.node.Generate().String()},
	}
	s.logger.Info("sleep cycle starting",
		zap.String("run_id", st.result.RunID),
		zap.String("agent_id", opts.AgentID))

	phases := []struct {
		name string
		run  func(context.Context, *cycleState) error
	}{
		{"dedup", s.phaseDedup},
		{"pareto", s.phasePareto},
		{"promotion", s.phasePromotion},
		{"extraction", s.phaseExtraction},
		{"decay", s.phaseDecay},
		{"orphans", s.phaseOrphans},
		{"noise", s.phaseNoise},
	}

	for i, phase := range phases {
		if ctx.Err() != nil {
			st.result.Aborted = true
			break
		}
		opts.phase(i+1, phase.name)

		phaseStart := time.Now()
		if err := phase.run(ctx, st); err != nil {
			s.logger.Error("sleep phase failed",
				zap.String("run_id", st.result.RunID),
				zap.Int("phase", i+1),
				zap.String("name", phase.name),
				zap.Error(err))
		}
		s.metrics.RecordPhase(phase.name, time.Since(phaseStart).Seconds())
	}
	if ctx.Err() != nil {
		st.result.Aborted = true
	}

	st.result.DurationMs = time.Since(start).Milliseconds()
	outcome := "completed"
	if st.result.Aborted {
		outcome = "aborted"
	}
	s.metrics.RecordSleepCycle(outcome)
	s.logger.Info("sleep cycle finished",
		zap.String("run_id", st.result.RunID),
		zap.String("outcome", outcome),
		zap.Int64("duration_ms", st.result.DurationMs),
		zap.Int("vector_merged", st.result.VectorMerged),
		zap.Int("semantic_invalidated", st.result.SemanticInvalidated),
		zap.Int("conflict_invalidated", st.result.ConflictInvalidated),
		zap.Int("pruned", st.result.MemoriesPruned+st.result.NoiseMemoriesDeleted))
	return st.result
}

// phaseDedup is Phase 1: vector merges over high-similarity clusters,
// then LLM dedup over the remaining pairs, then conflict adjudication.
func (s *SleepCycle) phaseDedup(ctx context.Context, st *cycleState) error {
	clusters, err := s.store.FindDuplicateClusters(ctx, st.opts.ClusterThreshold, st.opts.AgentID, true)
	if err != nil {
		return err
	}
	st.result.ClustersFound = len(clusters)

	var high, medium []*storage.DuplicateCluster
	for _, cluster := range clusters {
		if clusterHasHighSim(cluster, st.opts.DedupThreshold) {
			high = append(high, cluster)
		} else {
			medium = append(medium, cluster)
		}
	}

	for _, cluster := range high {
		if ctx.Err() != nil {
			return nil
		}
		merged, err := s.store.MergeMemoryCluster(ctx, cluster.MemoryIDs, cluster.Importances)
		if err != nil {
			s.logger.Warn("cluster merge failed",
				zap.Strings("memory_ids", cluster.MemoryIDs),
				zap.Error(err))
			continue
		}
		st.result.VectorMerged += merged.DeletedCount
		s.metrics.AddMerged(merged.DeletedCount)
	}
	st.opts.progress(fmt.Sprintf("vector merge folded %d memories across %d clusters",
		st.result.VectorMerged, len(high)))

	if st.opts.SkipSemanticDedup {
		st.opts.progress("semantic dedup and conflict detection skipped")
		return nil
	}

	pairs := collectDedupPairs(medium, st.opts.MaxSemanticDedupPairs)
	s.runDedupPairs(ctx, st, pairs)
	st.opts.progress(fmt.Sprintf("semantic dedup judged %d pairs, invalidated %d",
		len(pairs), st.result.SemanticInvalidated))

	if ctx.Err() != nil {
		return nil
	}

	conflicts, err := s.store.FindConflictingMemories(ctx, st.opts.AgentID)
	if err != nil {
		return err
	}
	s.runConflictPairs(ctx, st, conflicts)
	st.opts.progress(fmt.Sprintf("conflict detection judged %d pairs, invalidated %d",
		len(conflicts), st.result.ConflictInvalidated))
	return nil
}

// dedupPair is one candidate pair for the LLM duplicate judgement.
// Member A is the older memory.
type dedupPair struct {
	idA, idB                 string
	textA, textB             string
	importanceA, importanceB float64
	similarity               float64
}

// clusterHasHighSim reports whether any pair in the cluster reaches the
// vector-merge threshold.
func clusterHasHighSim(cluster *storage.DuplicateCluster, threshold float64) bool {
	for i := range cluster.MemoryIDs {
		for j := i + 1; j < len(cluster.MemoryIDs); j++ {
			key := storage.PairKey(cluster.MemoryIDs[i], cluster.MemoryIDs[j])
			if cluster.Similarities[key] >= threshold {
				return true
			}
		}
	}
	return false
}

// collectDedupPairs enumerates every unordered pair across the clusters.
// When the count exceeds limit, the most similar pairs win.
func collectDedupPairs(clusters []*storage.DuplicateCluster, limit int) []dedupPair {
	var pairs []dedupPair
	for _, cluster := range clusters {
		for i := range cluster.MemoryIDs {
			for j := i + 1; j < len(cluster.MemoryIDs); j++ {
				key := storage.PairKey(cluster.MemoryIDs[i], cluster.MemoryIDs[j])
				pairs = append(pairs, dedupPair{
					idA:         cluster.MemoryIDs[i],
					idB:         cluster.MemoryIDs[j],
					textA:       cluster.Texts[i],
					textB:       cluster.Texts[j],
					importanceA: cluster.Importances[i],
					importanceB: cluster.Importances[j],
					similarity:  cluster.Similarities[key],
				})
			}
		}
	}
	if len(pairs) > limit {
		sort.SliceStable(pairs, func(i, j int) bool {
			return pairs[i].similarity > pairs[j].similarity
		})
		pairs = pairs[:limit]
	}
	return pairs
}

// runDedupPairs fans the pairs out over the LLM with bounded
// concurrency. Workers swallow their own failures so the whole batch
// always settles.
//
// The invalidated set is consulted when a worker starts and again after
// its verdict, under one mutex, so concurrent verdicts can neither
// double-invalidate a memory nor keep two contradictory survivors.
func (s *SleepCycle) runDedupPairs(ctx context.Context, st *cycleState, pairs []dedupPair) {
	var mu sync.Mutex
	invalidated := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(st.opts.LLMConcurrency)

	for _, pair := range pairs {
		if ctx.Err() != nil {
			break
		}
		pair := pair
		g.Go(func() error {
			mu.Lock()
			skip := invalidated[pair.idA] || invalidated[pair.idB]
			mu.Unlock()
			if skip {
				return nil
			}

			sim := pair.similarity
			if !s.extractor.IsSemanticDuplicate(gctx, pair.textB, pair.textA, &sim) {
				return nil
			}

			// Lower importance loses; ties fall on the older member.
			loser := pair.idA
			if pair.importanceB < pair.importanceA {
				loser = pair.idB
			}

			mu.Lock()
			if invalidated[pair.idA] || invalidated[pair.idB] {
				mu.Unlock()
				return nil
			}
			invalidated[loser] = true
			mu.Unlock()

			if err := s.store.InvalidateMemory(gctx, loser); err != nil {
				s.logger.Warn("dedup invalidation failed",
					zap.String("memory_id", loser),
					zap.Error(err))
				return nil
			}

			mu.Lock()
			st.result.SemanticInvalidated++
			mu.Unlock()
			s.metrics.AddInvalidated(1)
			return nil
		})
	}
	_ = g.Wait()
}

// runConflictPairs adjudicates contradiction candidates with the same
// settle-all pool as runDedupPairs.
func (s *SleepCycle) runConflictPairs(ctx context.Context, st *cycleState, pairs []*storage.ConflictPair) {
	var mu sync.Mutex
	invalidated := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(st.opts.LLMConcurrency)

	for _, pair := range pairs {
		if ctx.Err() != nil {
			break
		}
		pair := pair
		g.Go(func() error {
			mu.Lock()
			skip := invalidated[pair.IDA] || invalidated[pair.IDB]
			mu.Unlock()
			if skip {
				return nil
			}

			var loser string
			switch s.extractor.ResolveConflict(gctx, pair.TextA, pair.TextB) {
			case intelligence.VerdictKeepA:
				loser = pair.IDB
			case intelligence.VerdictKeepB:
				loser = pair.IDA
			default:
				return nil
			}

			mu.Lock()
			if invalidated[pair.IDA] || invalidated[pair.IDB] {
				mu.Unlock()
				return nil
			}
			invalidated[loser] = true
			mu.Unlock()

			if err := s.store.InvalidateMemory(gctx, loser); err != nil {
				s.logger.Warn("conflict invalidation failed",
					zap.String("memory_id", loser),
					zap.Error(err))
				return nil
			}

			mu.Lock()
			st.result.ConflictInvalidated++
			mu.Unlock()
			s.metrics.AddInvalidated(1)
			return nil
		})
	}
	_ = g.Wait()
}

// phasePareto is Phase 2: snapshot every live memory's effective score
// and position the percentile threshold.
func (s *SleepCycle) phasePareto(ctx context.Context, st *cycleState) error {
	scored, err := s.store.CalculateAllEffectiveScores(ctx, st.opts.AgentID)
	if err != nil {
		return err
	}

	st.snapshot = scored
	st.result.MemoriesScored = len(scored)

	scores := make([]float64, len(scored))
	for i, m := range scored {
		scores[i] = m.EffectiveScore
	}
	st.threshold = storage.ParetoThreshold(scores, st.opts.ParetoPercentile)
	st.result.ParetoThreshold = st.threshold

	st.opts.progress(fmt.Sprintf("scored %d memories, pareto threshold %.4f",
		len(scored), st.threshold))
	return nil
}

// phasePromotion is Phase 3: promote old-enough, high-scoring memories
// to the core tier. It reuses the Phase 2 snapshot; staleness against
// concurrent writes is accepted because promotion is one-way.
func (s *SleepCycle) phasePromotion(ctx context.Context, st *cycleState) error {
	if !st.opts.EnablePromotion {
		st.opts.progress("core promotion disabled")
		return nil
	}

	var ids []string
	for _, m := range st.snapshot {
		if m.Category == storage.CategoryCore {
			continue
		}
		if m.EffectiveScore >= st.threshold && m.AgeDays >= st.opts.PromotionMinAgeDays {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	promoted, err := s.store.PromoteToCore(ctx, ids)
	if err != nil {
		return err
	}
	st.result.Promoted = promoted
	st.opts.progress(fmt.Sprintf("promoted %d memories to core", promoted))
	return nil
}

// phaseExtraction is Phase 4: page through pending extractions and run
// each through the extraction runner. A memory that stays pending after
// a transient failure is attempted at most once per cycle.
func (s *SleepCycle) phaseExtraction(ctx context.Context, st *cycleState) error {
	counts, err := s.store.CountByExtractionStatus(ctx, st.opts.AgentID)
	if err != nil {
		return err
	}
	st.result.PendingExtractions = counts[storage.ExtractionPending]
	if st.result.PendingExtractions == 0 {
		return nil
	}
	st.opts.progress(fmt.Sprintf("extraction catch-up: %d pending", st.result.PendingExtractions))

	attempted := make(map[string]bool)
	for {
		if ctx.Err() != nil {
			return nil
		}

		page, err := s.store.ListPendingExtractions(ctx, st.opts.ExtractionBatchSize, st.opts.AgentID)
		if err != nil {
			return err
		}

		var todo []*storage.PendingExtraction
		for _, p := range page {
			if attempted[p.ID] {
				continue
			}
			attempted[p.ID] = true
			todo = append(todo, p)
		}
		if len(todo) == 0 {
			return nil
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(st.opts.LLMConcurrency)
		for _, p := range todo {
			p := p
			g.Go(func() error {
				outcome := s.runner.Run(gctx, p.ID, p.Text, p.Retries)
				mu.Lock()
				st.result.ExtractionsProcessed++
				if outcome.Success {
					st.result.ExtractionsSucceeded++
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if len(page) < st.opts.ExtractionBatchSize {
			return nil
		}
		if !sleepContext(ctx, st.opts.ExtractionDelay) {
			return nil
		}
	}
}

// phaseDecay is Phase 5: sweep for memories whose retention fell below
// the threshold and prune them.
func (s *SleepCycle) phaseDecay(ctx context.Context, st *cycleState) error {
	ids, err := s.store.FindDecayedMemories(ctx, &storage.DecayOptions{
		RetentionThreshold:   st.opts.RetentionThreshold,
		BaseHalfLifeDays:     st.opts.BaseHalfLifeDays,
		ImportanceMultiplier: st.opts.ImportanceMultiplier,
		DecayCurves:          st.opts.DecayCurves,
		AgentID:              st.opts.AgentID,
	})
	if err != nil {
		return err
	}
	st.result.MemoriesDecayed = len(ids)
	if len(ids) == 0 {
		return nil
	}

	pruned, err := s.store.PruneMemories(ctx, ids)
	if err != nil {
		return err
	}
	st.result.MemoriesPruned = pruned
	s.metrics.AddPruned(pruned)
	st.opts.progress(fmt.Sprintf("decay pruned %d of %d decayed memories", pruned, len(ids)))
	return nil
}

// phaseOrphans is Phase 6: delete entities and tags no live memory
// references any more.
func (s *SleepCycle) phaseOrphans(ctx context.Context, st *cycleState) error {
	entityIDs, err := s.store.FindOrphanEntities(ctx)
	if err != nil {
		return err
	}
	if len(entityIDs) > 0 {
		deleted, err := s.store.DeleteOrphanEntities(ctx, entityIDs)
		if err != nil {
			return err
		}
		st.result.OrphanEntitiesDeleted = deleted
	}

	tagIDs, err := s.store.FindOrphanTags(ctx)
	if err != nil {
		return err
	}
	if len(tagIDs) > 0 {
		deleted, err := s.store.DeleteOrphanTags(ctx, tagIDs)
		if err != nil {
			return err
		}
		st.result.OrphanTagsDeleted = deleted
	}

	if st.result.OrphanEntitiesDeleted > 0 || st.result.OrphanTagsDeleted > 0 {
		st.opts.progress(fmt.Sprintf("orphan cleanup removed %d entities, %d tags",
			st.result.OrphanEntitiesDeleted, st.result.OrphanTagsDeleted))
	}
	return nil
}

// phaseNoise is Phase 7: hard-delete stored assistant proposals that
// slipped past the gate. Core and pinned memories are exempt.
func (s *SleepCycle) phaseNoise(ctx context.Context, st *cycleState) error {
	active, err := s.store.ListActiveMemories(ctx, st.opts.AgentID)
	if err != nil {
		return err
	}

	var doomed []string
	for _, m := range active {
		if m.Category == storage.CategoryCore || m.Pinned {
			continue
		}
		if gate.MatchesProposal(m.Text) {
			doomed = append(doomed, m.ID)
		}
	}
	if len(doomed) == 0 {
		return nil
	}

	deleted, err := s.store.PruneMemories(ctx, doomed)
	if err != nil {
		return err
	}
	st.result.NoiseMemoriesDeleted = deleted
	s.metrics.AddPruned(deleted)
	st.opts.progress(fmt.Sprintf("noise cleanup removed %d memories", deleted))
	return nil
}

// sleepContext waits for d unless the context is cancelled first. It
// reports whether the full delay elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
