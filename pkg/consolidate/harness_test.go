package consolidate_test

// Test doubles shared by the consolidation tests: an in-memory graph
// store that reuses the storage package's scoring and clustering
// helpers, and an LLM provider that routes on the request shape.

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/driftlab/graphmem/pkg/llm"
	"github.com/driftlab/graphmem/pkg/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	memories map[string]*storage.Memory
	order    []string

	orphanEntities []string
	orphanTags     []string

	batchedIDs []string
	batchErr   error

	baseTime time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		memories: make(map[string]*storage.Memory),
		baseTime: time.Now().UTC(),
	}
}

// seed inserts a memory directly, filling defaults and keeping creation
// times strictly increasing in seed order.
func (f *fakeStore) seed(m *storage.Memory) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if m.ID == "" {
		m.ID = fmt.Sprintf("mem-%d", len(f.order)+1)
	}
	if m.Category == "" {
		m.Category = storage.CategoryOther
	}
	if m.Importance == 0 {
		m.Importance = storage.DefaultImportance
	}
	if m.ExtractionStatus == "" {
		m.ExtractionStatus = storage.ExtractionPending
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = f.baseTime.Add(time.Duration(len(f.order)) * time.Second)
	}
	f.memories[m.ID] = m
	f.order = append(f.order, m.ID)
	return m.ID
}

func (f *fakeStore) get(id string) *storage.Memory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memories[id]
}

// live returns non-invalidated memories in seed order, optionally agent
// filtered.
func (f *fakeStore) live(agentID string) []*storage.Memory {
	var out []*storage.Memory
	for _, id := range f.order {
		m, ok := f.memories[id]
		if !ok || m.Invalidated {
			continue
		}
		if agentID != "" && m.AgentID != agentID {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeStore) InsertMemory(ctx context.Context, text string, embedding []float64, opts *storage.InsertOptions) (string, error) {
	m := &storage.Memory{Text: text, Embedding: embedding}
	if opts != nil {
		m.Category = opts.Category
		m.Importance = opts.Importance
		m.AgentID = opts.AgentID
		m.UserPinned = opts.Pinned
	}
	return f.seed(m), nil
}

func (f *fakeStore) GetMemory(ctx context.Context, id string) (*storage.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (f *fakeStore) SearchSimilar(ctx context.Context, embedding []float64, limit int, agentID string) ([]*storage.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*storage.Memory
	for _, m := range f.live(agentID) {
		clone := *m
		clone.Score = storage.CosineSimilarity(embedding, m.Embedding)
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) TouchMemories(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range ids {
		if m, ok := f.memories[id]; ok {
			m.RetrievalCount++
			m.LastAccessedAt = now
		}
	}
	return nil
}

func (f *fakeStore) SetPinned(ctx context.Context, id string, pinned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.UserPinned = pinned
	return nil
}

func (f *fakeStore) InvalidateMemory(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.Invalidated = true
	return nil
}

func (f *fakeStore) UpdateExtractionStatus(ctx context.Context, id, status string, incrementRetries bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return storage.ErrNotFound
	}
	if m.ExtractionStatus == storage.ExtractionPending || m.ExtractionStatus == status {
		m.ExtractionStatus = status
		if incrementRetries {
			m.ExtractionRetries++
		}
	}
	return nil
}

func (f *fakeStore) BatchEntityOperations(ctx context.Context, memoryID string, entities []storage.EntityInput, relationships []storage.RelationshipInput, tags []storage.TagInput, category string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return f.batchErr
	}
	f.batchedIDs = append(f.batchedIDs, memoryID)
	m, ok := f.memories[memoryID]
	if !ok {
		return storage.ErrNotFound
	}
	if category != "" && m.Category != storage.CategoryCore {
		m.Category = category
	}
	if m.ExtractionStatus == storage.ExtractionPending {
		m.ExtractionStatus = storage.ExtractionComplete
	}
	return nil
}

func (f *fakeStore) ListPendingExtractions(ctx context.Context, limit int, agentID string) ([]*storage.PendingExtraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*storage.PendingExtraction
	for _, m := range f.live(agentID) {
		if m.ExtractionStatus != storage.ExtractionPending {
			continue
		}
		out = append(out, &storage.PendingExtraction{ID: m.ID, Text: m.Text, Retries: m.ExtractionRetries})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) CountByExtractionStatus(ctx context.Context, agentID string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, m := range f.live(agentID) {
		counts[m.ExtractionStatus]++
	}
	return counts, nil
}

func (f *fakeStore) FindDuplicateClusters(ctx context.Context, threshold float64, agentID string, withScores bool) ([]*storage.DuplicateCluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var members []storage.ClusterMember
	for _, m := range f.live(agentID) {
		members = append(members, storage.ClusterMember{
			ID: m.ID, Text: m.Text, Importance: m.Importance, Embedding: m.Embedding,
		})
	}
	return storage.BuildClusters(members, threshold, withScores), nil
}

func (f *fakeStore) MergeMemoryCluster(ctx context.Context, ids []string, importances []float64) (*storage.MergeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var members []*storage.Memory
	for _, id := range ids {
		if m, ok := f.memories[id]; ok && !m.Invalidated {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		return nil, storage.ErrNotFound
	}
	if len(members) == 1 {
		return &storage.MergeResult{KeptID: members[0].ID}, nil
	}

	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Importance != members[j].Importance {
			return members[i].Importance > members[j].Importance
		}
		if members[i].RetrievalCount != members[j].RetrievalCount {
			return members[i].RetrievalCount > members[j].RetrievalCount
		}
		return members[i].CreatedAt.Before(members[j].CreatedAt)
	})

	survivor := members[0]
	total := 0
	maxImportance := 0.0
	for _, m := range members {
		total += m.RetrievalCount
		if m.Importance > maxImportance {
			maxImportance = m.Importance
		}
	}
	survivor.RetrievalCount = total
	survivor.Importance = maxImportance
	for _, m := range members[1:] {
		m.Invalidated = true
	}
	return &storage.MergeResult{KeptID: survivor.ID, DeletedCount: len(members) - 1}, nil
}

func (f *fakeStore) FindConflictingMemories(ctx context.Context, agentID string) ([]*storage.ConflictPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var members []storage.ConflictMember
	for _, m := range f.live(agentID) {
		members = append(members, storage.ConflictMember{
			ID: m.ID, Text: m.Text, Category: m.Category, Embedding: m.Embedding,
		})
	}
	return storage.BuildConflictPairs(members), nil
}

func (f *fakeStore) CalculateAllEffectiveScores(ctx context.Context, agentID string) ([]*storage.ScoredMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var out []*storage.ScoredMemory
	for _, m := range f.live(agentID) {
		out = append(out, &storage.ScoredMemory{
			ID:             m.ID,
			Text:           m.Text,
			Category:       m.Category,
			EffectiveScore: storage.EffectiveScore(m.Importance, m.RetrievalCount, m.DaysSinceAccess(now)),
			RetrievalCount: m.RetrievalCount,
			AgeDays:        m.AgeDays(now),
		})
	}
	return out, nil
}

func (f *fakeStore) ListCoreMemories(ctx context.Context, agentID string) ([]*storage.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*storage.Memory
	for _, m := range f.live(agentID) {
		if m.Category == storage.CategoryCore {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeStore) PromoteToCore(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	promoted := 0
	for _, id := range ids {
		m, ok := f.memories[id]
		if !ok || m.Invalidated || m.Category == storage.CategoryCore {
			continue
		}
		m.Category = storage.CategoryCore
		promoted++
	}
	return promoted, nil
}

func (f *fakeStore) FindDecayedMemories(ctx context.Context, opts *storage.DecayOptions) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var out []string
	for _, m := range f.live(opts.AgentID) {
		if storage.IsDecayed(m, m.AgeDays(now), opts) {
			out = append(out, m.ID)
		}
	}
	return out, nil
}

func (f *fakeStore) PruneMemories(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pruned := 0
	for _, id := range ids {
		m, ok := f.memories[id]
		if !ok || m.Category == storage.CategoryCore || m.UserPinned {
			continue
		}
		delete(f.memories, id)
		pruned++
	}
	return pruned, nil
}

func (f *fakeStore) FindOrphanEntities(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.orphanEntities...), nil
}

func (f *fakeStore) DeleteOrphanEntities(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deleted := len(ids)
	f.orphanEntities = nil
	return deleted, nil
}

func (f *fakeStore) FindOrphanTags(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.orphanTags...), nil
}

func (f *fakeStore) DeleteOrphanTags(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deleted := len(ids)
	f.orphanTags = nil
	return deleted, nil
}

func (f *fakeStore) ListActiveMemories(ctx context.Context, agentID string) ([]*storage.ActiveMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*storage.ActiveMemory
	for _, m := range f.live(agentID) {
		out = append(out, &storage.ActiveMemory{
			ID: m.ID, Text: m.Text, Category: m.Category, Pinned: m.UserPinned,
		})
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batchedIDs)
}

// routingProvider answers LLM calls according to the user message shape
// each extractor operation produces.
type routingProvider struct {
	mu    sync.Mutex
	calls map[string]int

	extractReply    func(user string) (string, error)
	importanceReply func(user string) (string, error)
	dedupReply      func(user string) (string, error)
	conflictReply   func(user string) (string, error)
}

func newRoutingProvider() *routingProvider {
	return &routingProvider{calls: make(map[string]int)}
}

func classifyRequest(user string) string {
	switch {
	case strings.HasPrefix(user, "Memory text:"):
		return "extract"
	case strings.HasPrefix(user, "EXISTING memory:"):
		return "dedup"
	case strings.HasPrefix(user, "Memory A:"):
		return "conflict"
	default:
		return "importance"
	}
}

func (p *routingProvider) respond(user string) (string, error) {
	kind := classifyRequest(user)

	p.mu.Lock()
	p.calls[kind]++
	var reply func(string) (string, error)
	switch kind {
	case "extract":
		reply = p.extractReply
	case "dedup":
		reply = p.dedupReply
	case "conflict":
		reply = p.conflictReply
	default:
		reply = p.importanceReply
	}
	p.mu.Unlock()

	if reply == nil {
		return "", fmt.Errorf("unexpected %s request", kind)
	}
	return reply(user)
}

func (p *routingProvider) callCount(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[kind]
}

func (p *routingProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (string, error) {
	return p.respond(messages[len(messages)-1].Content)
}

func (p *routingProvider) ChatStream(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (string, error) {
	return p.respond(messages[len(messages)-1].Content)
}

func (p *routingProvider) Close() error { return nil }
