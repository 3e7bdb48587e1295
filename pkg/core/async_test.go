package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/graphmem/pkg/core"
	"github.com/driftlab/graphmem/pkg/storage/sqlite"
)

func newAsyncClient(t *testing.T) *core.AsyncClient {
	t.Helper()

	store, err := sqlite.NewClient(&sqlite.Config{Path: ":memory:"})
	require.NoError(t, err)

	cfg := core.DefaultConfig()
	cfg.Storage.SQLitePath = ":memory:"
	cfg.Extraction = false

	client, err := core.NewAsyncClient(context.Background(), cfg,
		core.WithStore(store), core.WithEmbedderProvider(newFakeEmbedder()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestAddAsyncDeliversResult(t *testing.T) {
	client := newAsyncClient(t)

	result := <-client.AddAsync(context.Background(), storedText)
	require.NoError(t, result.Error)
	require.NotNil(t, result.Result)
	assert.True(t, result.Result.Stored)
	assert.NotEmpty(t, result.Result.ID)
}

func TestSearchAsyncDeliversResult(t *testing.T) {
	client := newAsyncClient(t)
	ctx := context.Background()

	added := <-client.AddAsync(ctx, storedText)
	require.NoError(t, added.Error)

	found := <-client.SearchAsync(ctx, storedText)
	require.NoError(t, found.Error)
	require.NotEmpty(t, found.Memories)
	assert.Equal(t, added.Result.ID, found.Memories[0].ID)
}

func TestAsyncWaitSettlesAllOperations(t *testing.T) {
	client := newAsyncClient(t)
	ctx := context.Background()

	channels := make([]<-chan *core.AsyncAddResult, 0, 5)
	texts := []string{
		"I renewed my gym membership for another year at the same studio.",
		"The pharmacy on Elm Street now stocks my usual allergy medication.",
		"My flight back from the conference lands on Thursday at noon.",
		"We decided to host the family reunion at the lake house in August.",
		"The car passed its inspection and the brakes were replaced last week.",
	}
	for _, text := range texts {
		channels = append(channels, client.AddAsync(ctx, text))
	}

	client.Wait()

	for _, ch := range channels {
		result := <-ch
		require.NoError(t, result.Error)
		assert.True(t, result.Result.Stored)
	}
}
