package intelligence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/driftlab/graphmem/pkg/storage"
)

// ParseExtractionResponse turns a raw LLM response into a sanitised
// ExtractionResult.
//
// The response is cleaned first (code fences stripped, the JSON object
// located), then unmarshalled, then validated record by record:
//   - unknown entity types collapse to "concept"
//   - an unknown category becomes unset
//   - an unknown relationship type drops the whole relationship
//   - names and aliases are lowercased and trimmed; empty names drop the
//     record
//   - confidence is clamped to [0, 1] and defaults to 0.7 when absent
//
// A response that cannot be parsed as the extraction schema is a permanent
// failure.
func ParseExtractionResponse(response string) (*ExtractionResult, error) {
	cleaned := cleanJSONResponse(response)
	if cleaned == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("invalid extraction JSON: %w", err)
	}
	return sanitizeExtraction(&raw), nil
}

// cleanJSONResponse strips markdown code fences and isolates the outermost
// JSON object. LLMs routinely wrap JSON in ```json fences or surround it
// with prose despite instructions.
func cleanJSONResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return response[start : end+1]
}

func sanitizeExtraction(raw *rawExtraction) *ExtractionResult {
	result := &ExtractionResult{}

	category := strings.ToLower(strings.TrimSpace(raw.Category))
	if storage.ValidCategories[category] {
		result.Category = category
	}

	for _, e := range raw.Entities {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if name == "" {
			continue
		}
		entityType := strings.ToLower(strings.TrimSpace(e.Type))
		if !storage.ValidEntityTypes[entityType] {
			entityType = storage.EntityConcept
		}

		var aliases []string
		for _, alias := range e.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias != "" && alias != name {
				aliases = append(aliases, alias)
			}
		}

		result.Entities = append(result.Entities, storage.EntityInput{
			Name:        name,
			Type:        entityType,
			Aliases:     aliases,
			Description: strings.TrimSpace(e.Description),
		})
	}

	for _, r := range raw.Relationships {
		source := strings.ToLower(strings.TrimSpace(r.Source))
		target := strings.ToLower(strings.TrimSpace(r.Target))
		if source == "" || target == "" {
			continue
		}
		relType := strings.ToUpper(strings.TrimSpace(r.Type))
		if !storage.ValidRelationshipTypes[relType] {
			continue
		}

		confidence := storage.DefaultConfidence
		if r.Confidence != nil {
			confidence = clamp(*r.Confidence, 0, 1)
		}

		result.Relationships = append(result.Relationships, storage.RelationshipInput{
			Source:     source,
			Target:     target,
			Type:       relType,
			Confidence: confidence,
		})
	}

	for _, tag := range raw.Tags {
		name := strings.ToLower(strings.TrimSpace(tag.Name))
		if name == "" {
			continue
		}
		category := strings.TrimSpace(tag.Category)
		if category == "" {
			category = "topic"
		}
		result.Tags = append(result.Tags, storage.TagInput{Name: name, Category: category})
	}

	return result
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
