package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/graphmem/pkg/core"
	"github.com/driftlab/graphmem/pkg/storage"
	"github.com/driftlab/graphmem/pkg/storage/sqlite"
)

func TestAddRejectsEmptyText(t *testing.T) {
	client, _, _ := testClient(t, false, nil)

	_, err := client.Add(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrEmptyText)
}

func TestAddGateRejectionIsNotAnError(t *testing.T) {
	client, store, _ := testClient(t, false, nil)
	ctx := context.Background()

	result, err := client.Add(ctx, "ok thanks!")
	require.NoError(t, err)
	assert.False(t, result.Stored)
	assert.NotEmpty(t, result.Reason)
	assert.Empty(t, result.ID)

	result, err = client.Add(ctx, "Want me to submit that pull request for you right away today?",
		core.WithRole(core.RoleAssistant))
	require.NoError(t, err)
	assert.False(t, result.Stored)

	assert.Zero(t, countStored(t, store))
}

func TestAddStoresWithoutExtraction(t *testing.T) {
	client, store, _ := testClient(t, false, nil)
	ctx := context.Background()

	result, err := client.Add(ctx, storedText,
		core.WithAgentID("agent_001"),
		core.WithCategory(storage.CategoryFact),
		core.WithPinned(true))
	require.NoError(t, err)
	require.True(t, result.Stored)
	require.NotEmpty(t, result.ID)

	memory, err := client.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, storedText, memory.Text)
	assert.Equal(t, storage.CategoryFact, memory.Category)
	assert.Equal(t, "agent_001", memory.AgentID)
	assert.True(t, memory.UserPinned)
	assert.InDelta(t, storage.DefaultImportance, memory.Importance, 1e-9)

	// Extraction disabled: no status transition is ever dispatched.
	counts, err := store.CountByExtractionStatus(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[storage.ExtractionPending])
}

func TestAddRatesImportanceAndExtracts(t *testing.T) {
	provider := &scriptedProvider{
		chatReply:   "7",
		streamReply: `{"category":"preference","entities":[{"name":"Lisbon","type":"location"}],"relationships":[],"tags":[{"name":"travel","category":"topic"}]}`,
	}
	client, store, _ := testClient(t, true, provider)
	ctx := context.Background()

	result, err := client.Add(ctx, storedText)
	require.NoError(t, err)
	require.True(t, result.Stored)

	memory, err := client.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, memory.Importance, 1e-9)

	// Background extraction settles shortly after the insert returns.
	require.Eventually(t, func() bool {
		counts, err := store.CountByExtractionStatus(ctx, "")
		return err == nil && counts[storage.ExtractionComplete] == 1
	}, 2*time.Second, 10*time.Millisecond)

	memory, err = client.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.CategoryPreference, memory.Category)

	chat, stream := provider.calls()
	assert.Equal(t, 1, chat)
	assert.Equal(t, 1, stream)
}

func TestAddExplicitImportanceSkipsRating(t *testing.T) {
	provider := &scriptedProvider{chatReply: "9", streamReply: `{"entities":[],"relationships":[],"tags":[]}`}
	client, _, _ := testClient(t, true, provider)

	result, err := client.Add(context.Background(), storedText, core.WithImportance(0.4))
	require.NoError(t, err)

	memory, err := client.Get(context.Background(), result.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, memory.Importance, 1e-9)

	chat, _ := provider.calls()
	assert.Zero(t, chat)
}

func TestSearchRanksAndCountsRetrievals(t *testing.T) {
	client, _, embedder := testClient(t, false, nil)
	ctx := context.Background()

	near := "I switched my morning commute to the riverside bicycle path last week."
	far := "The quarterly report deadline moved to the second Friday of next month."
	query := "how do I get to work in the mornings"
	embedder.alias(query, near)

	nearResult, err := client.Add(ctx, near)
	require.NoError(t, err)
	farResult, err := client.Add(ctx, far)
	require.NoError(t, err)

	results, err := client.Search(ctx, query)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, nearResult.ID, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	// MinScore drops the unrelated memory.
	filtered, err := client.Search(ctx, query, core.WithMinScore(0.99))
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, nearResult.ID, filtered[0].ID)

	// Every return counts as a retrieval.
	memory, err := client.Get(ctx, nearResult.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, memory.RetrievalCount)

	farMemory, err := client.Get(ctx, farResult.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, farMemory.RetrievalCount)
}

func TestSearchLimit(t *testing.T) {
	client, _, _ := testClient(t, false, nil)
	ctx := context.Background()

	texts := []string{
		"I planted tomatoes and basil in the balcony garden this spring season.",
		"My sister recommended a dentist near the central station and I booked it.",
		"The landlord agreed to repaint the kitchen before the lease renews in June.",
	}
	for _, text := range texts {
		_, err := client.Add(ctx, text)
		require.NoError(t, err)
	}

	results, err := client.Search(ctx, "anything at all", core.WithLimit(2))
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestGetCoreMemoriesRankedByUsage(t *testing.T) {
	client, store, _ := testClient(t, false, nil)
	ctx := context.Background()

	busy, err := store.InsertMemory(ctx, "core memory retrieved often", hashVector("a"), &storage.InsertOptions{
		Category: storage.CategoryCore,
	})
	require.NoError(t, err)
	quiet, err := store.InsertMemory(ctx, "core memory rarely touched", hashVector("b"), &storage.InsertOptions{
		Category: storage.CategoryCore,
	})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.TouchMemories(ctx, []string{busy}))
	}

	memories, err := client.GetCoreMemories(ctx)
	require.NoError(t, err)
	require.Len(t, memories, 2)
	assert.Equal(t, busy, memories[0].ID)
	assert.Equal(t, quiet, memories[1].ID)

	limited, err := client.GetCoreMemories(ctx, core.WithLimit(1))
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, busy, limited[0].ID)
}

func TestPinAndInvalidate(t *testing.T) {
	client, _, _ := testClient(t, false, nil)
	ctx := context.Background()

	result, err := client.Add(ctx, storedText)
	require.NoError(t, err)

	require.NoError(t, client.Pin(ctx, result.ID, true))
	memory, err := client.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.True(t, memory.UserPinned)

	require.NoError(t, client.Invalidate(ctx, result.ID))
	memory, err = client.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.True(t, memory.Invalidated)

	results, err := client.Search(ctx, storedText)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunSleepCycleQuiescent(t *testing.T) {
	client, _, _ := testClient(t, false, nil)

	result, err := client.RunSleepCycle(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Aborted)
	assert.Zero(t, result.VectorMerged)
	assert.Zero(t, result.MemoriesPruned)
}

func TestAgentIDScopesDefaultFromConfig(t *testing.T) {
	store, err := sqlite.NewClient(&sqlite.Config{Path: ":memory:"})
	require.NoError(t, err)

	cfg := core.DefaultConfig()
	cfg.Extraction = false
	cfg.AgentID = "agent_007"

	client, err := core.NewClient(context.Background(), cfg,
		core.WithStore(store), core.WithEmbedderProvider(newFakeEmbedder()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	result, err := client.Add(ctx, storedText)
	require.NoError(t, err)

	memory, err := client.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, "agent_007", memory.AgentID)

	// A different agent sees nothing.
	results, err := client.Search(ctx, storedText, core.WithAgentIDForSearch("someone_else"))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClosedClientRejectsOperations(t *testing.T) {
	client, _, _ := testClient(t, false, nil)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.Add(context.Background(), storedText)
	assert.ErrorIs(t, err, core.ErrClosed)

	_, err = client.Search(context.Background(), "anything")
	assert.ErrorIs(t, err, core.ErrClosed)

	assert.ErrorIs(t, client.StartScheduler(), core.ErrClosed)
}
