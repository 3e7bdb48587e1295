package core

import (
	"context"
	"sync"
)

// batchWorkers bounds how many ingests run concurrently inside AddBatch.
// Each ingest may issue a blocking importance call, so the bound also
// caps outstanding LLM requests from one batch.
const batchWorkers = 4

// BatchResult carries the outcome of one text from AddBatch.
type BatchResult struct {
	// Index is the position of the text in the input slice.
	Index int

	// Text is the ingested text.
	Text string

	// Result is the ingest outcome; nil when Error is set.
	Result *AddResult

	// Error is the ingest error, if any.
	Error error
}

// AddBatch ingests multiple texts through a bounded worker pool.
//
// Results are delivered on the returned channel as each ingest finishes,
// so arrival order is not input order; use BatchResult.Index to
// correlate. The channel is closed once every text has been processed.
// Gate rejections appear as normal results with Stored false, exactly as
// in Add.
//
// Parameters:
//   - ctx: Context for cancellation; a cancelled context fails the
//     remaining ingests with the context error
//   - texts: Texts to ingest
//   - opts: Options applied to every ingest
//
// Returns a channel delivering one BatchResult per input text.
//
// Example:
//
//	for result := range client.AddBatch(ctx, texts, core.WithAgentID("agent_001")) {
//	    if result.Error != nil {
//	        log.Printf("text %d failed: %v", result.Index, result.Error)
//	    }
//	}
func (c *Client) AddBatch(ctx context.Context, texts []string, opts ...AddOption) <-chan *BatchResult {
	results := make(chan *BatchResult, len(texts))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := batchWorkers
	if len(texts) < workers {
		workers = len(texts)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result, err := c.Add(ctx, texts[idx], opts...)
				results <- &BatchResult{
					Index:  idx,
					Text:   texts[idx],
					Result: result,
					Error:  err,
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for idx := range texts {
			select {
			case jobs <- idx:
			case <-ctx.Done():
				results <- &BatchResult{
					Index: idx,
					Text:  texts[idx],
					Error: NewMemoryError("AddBatch", ctx.Err()),
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
