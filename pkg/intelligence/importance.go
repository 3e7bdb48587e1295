package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/driftlab/graphmem/pkg/llm"
	"github.com/driftlab/graphmem/pkg/storage"
)

// Importance scores live in [minImportance, 1.0] after normalisation so
// that even low-rated memories keep a nonzero retention window.
const (
	minImportance = 0.1
	maxRawScore   = 10.0
)

// numberPattern extracts a bare numeric answer from models that ignore
// the JSON instruction and reply with just "7" or "Score: 7.5".
var numberPattern = regexp.MustCompile(`\d+\.?\d*`)

// rawImportance is the wire shape of an importance rating.
type rawImportance struct {
	Score float64 `json:"score"`
}

// RateImportance asks the LLM to rate a memory text on the 1-10 rubric
// and normalises the answer to [0.1, 1.0].
//
// This is a blocking call. Every failure mode, whether the provider
// errors, the response is unparseable, or the extractor is disabled,
// yields the neutral default of 0.5 so that ingestion never stalls on
// a rating.
//
// Parameters:
//   - ctx: Context for cancellation
//   - text: Memory text to rate
//
// Returns a normalised importance in [0.1, 1.0].
func (e *Extractor) RateImportance(ctx context.Context, text string) float64 {
	if !e.Enabled() {
		return storage.DefaultImportance
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: importanceSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Memory text:\n%s", text)},
	}

	start := time.Now()
	response, err := e.llm.Chat(ctx, messages, llm.WithMaxTokens(100))
	if err != nil {
		e.metrics.RecordLLMRequest(kindImportance, failureOutcome(llm.IsTransient(err)), time.Since(start).Seconds())
		e.logger.Warn("importance rating call failed", zap.Error(err))
		return storage.DefaultImportance
	}
	e.metrics.RecordLLMRequest(kindImportance, "ok", time.Since(start).Seconds())

	score, ok := parseImportanceResponse(response)
	if !ok {
		e.logger.Warn("unparseable importance response", zap.String("response", response))
		return storage.DefaultImportance
	}
	return normalizeImportance(score)
}

// parseImportanceResponse pulls the raw 1-10 score out of an LLM reply.
// It tries the JSON contract first and falls back to the first number
// in the text.
func parseImportanceResponse(response string) (float64, bool) {
	cleaned := cleanJSONResponse(response)
	if strings.Contains(cleaned, "{") {
		var raw rawImportance
		if err := json.Unmarshal([]byte(cleaned), &raw); err == nil && raw.Score > 0 {
			return raw.Score, true
		}
	}

	if match := numberPattern.FindString(response); match != "" {
		var score float64
		if _, err := fmt.Sscanf(match, "%f", &score); err == nil {
			return score, true
		}
	}
	return 0, false
}

// normalizeImportance maps a 1-10 rubric score onto [0.1, 1.0].
func normalizeImportance(score float64) float64 {
	return clamp(score/maxRawScore, minImportance, 1.0)
}
