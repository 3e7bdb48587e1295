package core_test

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftlab/graphmem/pkg/core"
	"github.com/driftlab/graphmem/pkg/llm"
	"github.com/driftlab/graphmem/pkg/storage"
	"github.com/driftlab/graphmem/pkg/storage/sqlite"
)

// fakeEmbedder derives a deterministic unit vector from the text hash.
// Registered texts share an exact vector so similarity is controllable.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float64
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: make(map[string][]float64)}
}

// alias maps a text onto another text's vector, making the pair
// maximally similar in search.
func (f *fakeEmbedder) alias(text, target string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[text] = hashVector(target)
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.vectors[text]; ok {
		return append([]float64(nil), v...), nil
	}
	return hashVector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 8 }
func (f *fakeEmbedder) Close() error    { return nil }

func hashVector(text string) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float64, 8)
	var norm float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float64(int64(seed>>11))/float64(1<<52) - 1
		norm += v[i] * v[i]
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}

// scriptedProvider answers importance prompts on Chat and extraction
// prompts on ChatStream with fixed responses.
type scriptedProvider struct {
	mu          sync.Mutex
	chatReply   string
	streamReply string
	chatCalls   int
	streamCalls int
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chatCalls++
	return p.chatReply, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streamCalls++
	return p.streamReply, nil
}

func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) calls() (chat, stream int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chatCalls, p.streamCalls
}

// testClient wires a client against an in-memory sqlite store and the
// fake embedder. The store handle stays accessible for assertions.
func testClient(t *testing.T, extraction bool, provider llm.Provider) (*core.Client, *sqlite.Client, *fakeEmbedder) {
	t.Helper()

	store, err := sqlite.NewClient(&sqlite.Config{Path: ":memory:"})
	require.NoError(t, err)

	embedder := newFakeEmbedder()
	cfg := core.DefaultConfig()
	cfg.Storage.SQLitePath = ":memory:"
	cfg.Extraction = extraction

	opts := []core.ClientOption{
		core.WithStore(store),
		core.WithEmbedderProvider(embedder),
	}
	if provider != nil {
		opts = append(opts, core.WithLLMProvider(provider))
	}

	client, err := core.NewClient(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, store, embedder
}

// storedText is a gate-passing user utterance reused across tests.
const storedText = "I have been using the new grocery delivery service for three weeks and it works well."

func countStored(t *testing.T, store storage.GraphStore) int {
	t.Helper()
	counts, err := store.CountByExtractionStatus(context.Background(), "")
	require.NoError(t, err)
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
