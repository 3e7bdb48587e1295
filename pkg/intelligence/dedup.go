package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/driftlab/graphmem/pkg/llm"
)

// VectorSimilarityFloor is the cosine similarity below which two texts
// are assumed distinct without consulting the LLM. Pairs under this
// floor are too far apart in embedding space for a semantic-duplicate
// verdict to be plausible, so the call is skipped.
const VectorSimilarityFloor = 0.80

// rawVerdict is the wire shape of a dedup verdict.
type rawVerdict struct {
	Verdict string `json:"verdict"`
}

// IsSemanticDuplicate asks the LLM whether two memory texts state the
// same fact.
//
// When vectorSim is non-nil and below VectorSimilarityFloor the pair is
// declared unique without an LLM call. Every failure mode fails open:
// an errored or unparseable call reports false, keeping both memories,
// because wrongly merging distinct memories loses information while
// keeping a duplicate only wastes space.
//
// Parameters:
//   - ctx: Context for cancellation
//   - newText: Text of the newer memory
//   - existingText: Text of the older memory
//   - vectorSim: Cosine similarity of the pair's embeddings, if known
//
// Returns true only on an explicit "duplicate" verdict.
func (e *Extractor) IsSemanticDuplicate(ctx context.Context, newText, existingText string, vectorSim *float64) bool {
	if vectorSim != nil && *vectorSim < VectorSimilarityFloor {
		return false
	}
	if !e.Enabled() {
		return false
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: dedupSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("EXISTING memory:\n%s\n\nNEW memory:\n%s", existingText, newText)},
	}

	start := time.Now()
	response, err := e.llm.Chat(ctx, messages, llm.WithMaxTokens(50))
	if err != nil {
		e.metrics.RecordLLMRequest(kindDedup, failureOutcome(llm.IsTransient(err)), time.Since(start).Seconds())
		e.logger.Warn("dedup call failed", zap.Error(err))
		return false
	}
	e.metrics.RecordLLMRequest(kindDedup, "ok", time.Since(start).Seconds())

	var raw rawVerdict
	if err := json.Unmarshal([]byte(cleanJSONResponse(response)), &raw); err != nil {
		e.logger.Warn("unparseable dedup response", zap.String("response", response))
		return false
	}
	return strings.EqualFold(strings.TrimSpace(raw.Verdict), "duplicate")
}
