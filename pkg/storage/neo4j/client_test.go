package neo4j

// Integration tests against a running Neo4j server. They are skipped
// unless NEO4J_URI is set, e.g.
//
//	NEO4J_URI=bolt://localhost:7687 NEO4J_PASSWORD=secret go test ./pkg/storage/neo4j/

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/graphmem/pkg/storage"
)

func setupTestStore(t *testing.T) *Client {
	t.Helper()

	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("Skipping Neo4j test: NEO4J_URI not set")
	}
	username := os.Getenv("NEO4J_USERNAME")
	if username == "" {
		username = "neo4j"
	}

	ctx := context.Background()
	client, err := NewClient(ctx, &Config{
		URI:      uri,
		Username: username,
		Password: os.Getenv("NEO4J_PASSWORD"),
		Database: os.Getenv("NEO4J_DATABASE"),
	})
	if err != nil {
		t.Skipf("Skipping Neo4j test: failed to connect: %v", err)
	}

	wipe := func() {
		_, _ = client.write(ctx, `MATCH (n) DETACH DELETE n`, nil)
	}
	wipe()
	t.Cleanup(func() {
		wipe()
		_ = client.Close()
	})
	return client
}

func TestNeo4jMemoryLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.InsertMemory(ctx, "I prefer tea over coffee in the mornings", []float64{0.6, 0.8}, &storage.InsertOptions{
		Category:   storage.CategoryPreference,
		Importance: 0.8,
		AgentID:    "agent-a",
	})
	require.NoError(t, err)

	memory, err := store.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, storage.CategoryPreference, memory.Category)
	assert.Equal(t, 0.8, memory.Importance)
	assert.Equal(t, storage.ExtractionPending, memory.ExtractionStatus)
	assert.Equal(t, []float64{0.6, 0.8}, memory.Embedding)
	assert.True(t, memory.LastAccessedAt.IsZero())

	require.NoError(t, store.TouchMemories(ctx, []string{id}))
	memory, err = store.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, memory.RetrievalCount)
	assert.False(t, memory.LastAccessedAt.IsZero())

	require.NoError(t, store.SetPinned(ctx, id, true))
	require.NoError(t, store.InvalidateMemory(ctx, id))
	memory, err = store.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.True(t, memory.UserPinned)
	assert.True(t, memory.Invalidated)

	err = store.SetPinned(ctx, "no-such-id", true)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetMemory(ctx, "no-such-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNeo4jBatchEntityOperations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.InsertMemory(ctx, "Maya works at Hillcrest Medical", []float64{1, 0}, nil)
	require.NoError(t, err)

	entities := []storage.EntityInput{
		{Name: "maya chen", Type: storage.EntityPerson, Aliases: []string{"maya"}},
		{Name: "hillcrest medical", Type: storage.EntityOrganization},
	}
	relationships := []storage.RelationshipInput{
		{Source: "maya chen", Target: "hillcrest medical", Type: storage.RelWorksAt, Confidence: 0.9},
		// Unknown relationship types never become edge labels.
		{Source: "maya chen", Target: "hillcrest medical", Type: "ADMIRES", Confidence: 0.9},
	}
	tags := []storage.TagInput{{Name: "career", Category: "topic"}}

	require.NoError(t, store.BatchEntityOperations(ctx, id, entities, relationships, tags, storage.CategoryFact))

	memory, err := store.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, storage.ExtractionComplete, memory.ExtractionStatus)
	assert.Equal(t, storage.CategoryFact, memory.Category)

	// Re-running merges instead of duplicating nodes.
	require.NoError(t, store.BatchEntityOperations(ctx, id, entities, nil, tags, ""))

	require.NoError(t, store.InvalidateMemory(ctx, id))
	orphanEntities, err := store.FindOrphanEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, orphanEntities, 2)

	orphanTags, err := store.FindOrphanTags(ctx)
	require.NoError(t, err)
	assert.Len(t, orphanTags, 1)

	deleted, err := store.DeleteOrphanEntities(ctx, orphanEntities)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	deleted, err = store.DeleteOrphanTags(ctx, orphanTags)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestNeo4jMergeMemoryCluster(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	keep, err := store.InsertMemory(ctx, "I love hiking in the mountains", []float64{1, 0}, &storage.InsertOptions{Importance: 0.8})
	require.NoError(t, err)
	lose, err := store.InsertMemory(ctx, "I really enjoy mountain hikes", []float64{1, 0}, &storage.InsertOptions{Importance: 0.5})
	require.NoError(t, err)

	require.NoError(t, store.TouchMemories(ctx, []string{keep}))
	require.NoError(t, store.TouchMemories(ctx, []string{lose}))
	require.NoError(t, store.TouchMemories(ctx, []string{lose}))

	require.NoError(t, store.BatchEntityOperations(ctx, lose,
		[]storage.EntityInput{{Name: "hiking", Type: storage.EntityConcept}}, nil, nil, ""))

	result, err := store.MergeMemoryCluster(ctx, []string{keep, lose}, []float64{0.8, 0.5})
	require.NoError(t, err)
	assert.Equal(t, keep, result.KeptID)
	assert.Equal(t, 1, result.DeletedCount)

	survivor, err := store.GetMemory(ctx, keep)
	require.NoError(t, err)
	assert.Equal(t, 0.8, survivor.Importance)
	assert.Equal(t, 3, survivor.RetrievalCount)

	loser, err := store.GetMemory(ctx, lose)
	require.NoError(t, err)
	assert.True(t, loser.Invalidated)

	// The MENTIONS edge moved to the survivor, so nothing is orphaned.
	orphans, err := store.FindOrphanEntities(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestNeo4jExtractionQueue(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.InsertMemory(ctx, "first pending memory for the queue", []float64{1, 0}, nil)
	require.NoError(t, err)
	second, err := store.InsertMemory(ctx, "second pending memory for the queue", []float64{0, 1}, nil)
	require.NoError(t, err)

	pending, err := store.ListPendingExtractions(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first, pending[0].ID)
	assert.Equal(t, second, pending[1].ID)

	require.NoError(t, store.UpdateExtractionStatus(ctx, first, storage.ExtractionPending, true))
	require.NoError(t, store.UpdateExtractionStatus(ctx, first, storage.ExtractionFailed, false))

	// Terminal states never revert.
	require.NoError(t, store.UpdateExtractionStatus(ctx, first, storage.ExtractionComplete, false))
	memory, err := store.GetMemory(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, storage.ExtractionFailed, memory.ExtractionStatus)
	assert.Equal(t, 1, memory.ExtractionRetries)

	counts, err := store.CountByExtractionStatus(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[storage.ExtractionPending])
	assert.Equal(t, 1, counts[storage.ExtractionFailed])
}
