package core

import (
	"context"
	"sync"
)

// AsyncAddResult carries the outcome of an asynchronous Add.
type AsyncAddResult struct {
	// Result is the ingest outcome; nil when Error is set.
	Result *AddResult

	// Error is the ingest error, if any.
	Error error
}

// AsyncSearchResult carries the outcome of an asynchronous Search.
type AsyncSearchResult struct {
	// Memories are the matching memories; nil when Error is set.
	Memories []*Memory

	// Error is the search error, if any.
	Error error
}

// AsyncClient provides asynchronous graphmem operations.
//
// It wraps the synchronous Client and executes operations in separate
// goroutines, returning buffered channels that receive the result when
// the operation completes. The client tracks its goroutines; Wait blocks
// until every dispatched operation has finished.
//
// Example:
//
//	asyncClient, _ := core.NewAsyncClient(ctx, config)
//	defer asyncClient.Close()
//
//	resultChan := asyncClient.AddAsync(ctx, "I moved to Lisbon in March")
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// NewAsyncClient creates a new asynchronous graphmem client.
//
// Parameters:
//   - ctx: Context for backend initialization
//   - cfg: Configuration for storage, LLM, embedder and scheduling
//   - opts: Optional logger, metrics, and component overrides
//
// Returns:
//   - *AsyncClient: The asynchronous client instance
//   - error: Error if configuration is invalid or initialization fails
func NewAsyncClient(ctx context.Context, cfg *Config, opts ...ClientOption) (*AsyncClient, error) {
	client, err := NewClient(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	return &AsyncClient{
		Client: client,
	}, nil
}

// AddAsync ingests a text asynchronously.
//
// The operation executes in a separate goroutine and delivers its result
// on the returned channel, which is closed afterwards.
//
// Parameters:
//   - ctx: Context for cancellation
//   - text: Raw utterance to ingest
//   - opts: Optional role, agent id, category, importance, pin flag
//
// Returns:
//   - <-chan *AsyncAddResult: Channel that receives the ingest outcome
func (ac *AsyncClient) AddAsync(ctx context.Context, text string, opts ...AddOption) <-chan *AsyncAddResult {
	resultChan := make(chan *AsyncAddResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		result, err := ac.Add(ctx, text, opts...)
		resultChan <- &AsyncAddResult{
			Result: result,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// SearchAsync searches memories asynchronously.
//
// The operation executes in a separate goroutine and delivers its result
// on the returned channel, which is closed afterwards.
//
// Parameters:
//   - ctx: Context for cancellation
//   - query: Search query text
//   - opts: Optional agent id, limit, minimum score
//
// Returns:
//   - <-chan *AsyncSearchResult: Channel that receives the search results
func (ac *AsyncClient) SearchAsync(ctx context.Context, query string, opts ...SearchOption) <-chan *AsyncSearchResult {
	resultChan := make(chan *AsyncSearchResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		memories, err := ac.Search(ctx, query, opts...)
		resultChan <- &AsyncSearchResult{
			Memories: memories,
			Error:    err,
		}
		close(resultChan)
	}()

	return resultChan
}

// Wait blocks until all dispatched asynchronous operations complete.
//
// Call it before Close when results must not be dropped.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close waits for all asynchronous operations to complete, then closes
// the underlying client.
func (ac *AsyncClient) Close() error {
	ac.wg.Wait()
	return ac.Client.Close()
}
