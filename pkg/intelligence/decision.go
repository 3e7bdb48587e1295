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

// rawConflict is the wire shape of a conflict decision.
type rawConflict struct {
	Keep string `json:"keep"`
}

// ResolveConflict asks the LLM which of two potentially contradictory
// memories to keep.
//
// The verdict names a side to keep, keeps both, or skips the pair:
//   - VerdictKeepA: memory A wins, B should be invalidated
//   - VerdictKeepB: memory B wins, A should be invalidated
//   - VerdictKeepBoth: the memories do not actually conflict
//   - VerdictSkip: undecidable; touch nothing
//
// Any failure, a provider error, an unparseable reply, or a verdict
// outside the contract, resolves to VerdictSkip so that a flaky model
// can never invalidate memories.
//
// Parameters:
//   - ctx: Context for cancellation
//   - textA: Text of the first memory (typically the older one)
//   - textB: Text of the second memory
//
// Returns the verdict, never an error.
func (e *Extractor) ResolveConflict(ctx context.Context, textA, textB string) Verdict {
	if !e.Enabled() {
		return VerdictSkip
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: conflictSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Memory A:\n%s\n\nMemory B:\n%s", textA, textB)},
	}

	start := time.Now()
	response, err := e.llm.Chat(ctx, messages, llm.WithMaxTokens(50))
	if err != nil {
		e.metrics.RecordLLMRequest(kindConflict, failureOutcome(llm.IsTransient(err)), time.Since(start).Seconds())
		e.logger.Warn("conflict resolution call failed", zap.Error(err))
		return VerdictSkip
	}
	e.metrics.RecordLLMRequest(kindConflict, "ok", time.Since(start).Seconds())

	var raw rawConflict
	if err := json.Unmarshal([]byte(cleanJSONResponse(response)), &raw); err != nil {
		e.logger.Warn("unparseable conflict response", zap.String("response", response))
		return VerdictSkip
	}

	switch Verdict(strings.ToLower(strings.TrimSpace(raw.Keep))) {
	case VerdictKeepA:
		return VerdictKeepA
	case VerdictKeepB:
		return VerdictKeepB
	case VerdictKeepBoth:
		return VerdictKeepBoth
	default:
		return VerdictSkip
	}
}
