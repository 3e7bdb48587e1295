package intelligence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/graphmem/pkg/intelligence"
	"github.com/driftlab/graphmem/pkg/storage"
)

func TestParseExtractionResponseFullResult(t *testing.T) {
	response := "```json\n" + `{
		"category": "fact",
		"entities": [
			{"name": "Maya Chen", "type": "person", "aliases": ["Maya", "maya chen"], "description": "The user's sister"},
			{"name": "Hillcrest Clinic", "type": "organization", "aliases": []}
		],
		"relationships": [
			{"source": "Maya Chen", "target": "Hillcrest Clinic", "type": "works_at", "confidence": 0.9}
		],
		"tags": [
			{"name": "Family", "category": "relationship"}
		]
	}` + "\n```"

	result, err := intelligence.ParseExtractionResponse(response)
	require.NoError(t, err)

	assert.Equal(t, storage.CategoryFact, result.Category)

	require.Len(t, result.Entities, 2)
	assert.Equal(t, "maya chen", result.Entities[0].Name)
	assert.Equal(t, storage.EntityPerson, result.Entities[0].Type)
	assert.Equal(t, []string{"maya"}, result.Entities[0].Aliases, "alias equal to the name is dropped")
	assert.Equal(t, "The user's sister", result.Entities[0].Description)
	assert.Equal(t, "hillcrest clinic", result.Entities[1].Name)

	require.Len(t, result.Relationships, 1)
	assert.Equal(t, "maya chen", result.Relationships[0].Source)
	assert.Equal(t, "hillcrest clinic", result.Relationships[0].Target)
	assert.Equal(t, storage.RelWorksAt, result.Relationships[0].Type)
	assert.InDelta(t, 0.9, result.Relationships[0].Confidence, 1e-9)

	require.Len(t, result.Tags, 1)
	assert.Equal(t, "family", result.Tags[0].Name)
	assert.Equal(t, "relationship", result.Tags[0].Category)
}

func TestParseExtractionResponseUnknownEntityTypeBecomesConcept(t *testing.T) {
	result, err := intelligence.ParseExtractionResponse(
		`{"entities": [{"name": "quantum computing", "type": "technology"}]}`)
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, storage.EntityConcept, result.Entities[0].Type)
}

func TestParseExtractionResponseUnknownCategoryUnset(t *testing.T) {
	result, err := intelligence.ParseExtractionResponse(`{"category": "musings"}`)
	require.NoError(t, err)
	assert.Empty(t, result.Category)
}

func TestParseExtractionResponseCoreCategoryRejected(t *testing.T) {
	// The LLM must not assign memories to the core tier; promotion is
	// the only way in.
	result, err := intelligence.ParseExtractionResponse(`{"category": "core"}`)
	require.NoError(t, err)
	assert.Empty(t, result.Category)
}

func TestParseExtractionResponseUnknownRelationshipTypeDropped(t *testing.T) {
	result, err := intelligence.ParseExtractionResponse(`{
		"relationships": [
			{"source": "alice", "target": "bob", "type": "ADMIRES"},
			{"source": "alice", "target": "acme", "type": "works_at"}
		]
	}`)
	require.NoError(t, err)
	require.Len(t, result.Relationships, 1)
	assert.Equal(t, storage.RelWorksAt, result.Relationships[0].Type)
}

func TestParseExtractionResponseEmptyNamesDropped(t *testing.T) {
	result, err := intelligence.ParseExtractionResponse(`{
		"entities": [
			{"name": "  ", "type": "person"},
			{"name": "bob", "type": "person"}
		],
		"relationships": [
			{"source": "", "target": "bob", "type": "KNOWS"}
		],
		"tags": [
			{"name": "", "category": "topic"},
			{"name": "Cooking"}
		]
	}`)
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "bob", result.Entities[0].Name)
	assert.Empty(t, result.Relationships)
	require.Len(t, result.Tags, 1)
	assert.Equal(t, "cooking", result.Tags[0].Name)
	assert.Equal(t, "topic", result.Tags[0].Category, "tag category defaults when absent")
}

func TestParseExtractionResponseConfidenceHandling(t *testing.T) {
	result, err := intelligence.ParseExtractionResponse(`{
		"relationships": [
			{"source": "a", "target": "b", "type": "KNOWS"},
			{"source": "c", "target": "d", "type": "KNOWS", "confidence": 1.7},
			{"source": "e", "target": "f", "type": "KNOWS", "confidence": -0.2}
		]
	}`)
	require.NoError(t, err)
	require.Len(t, result.Relationships, 3)
	assert.InDelta(t, storage.DefaultConfidence, result.Relationships[0].Confidence, 1e-9, "absent confidence defaults")
	assert.InDelta(t, 1.0, result.Relationships[1].Confidence, 1e-9)
	assert.InDelta(t, 0.0, result.Relationships[2].Confidence, 1e-9)
}

func TestParseExtractionResponseProseAroundJSON(t *testing.T) {
	result, err := intelligence.ParseExtractionResponse(
		`Here is the extraction you asked for: {"category": "preference", "tags": [{"name": "tea"}]} Hope that helps!`)
	require.NoError(t, err)
	assert.Equal(t, storage.CategoryPreference, result.Category)
	require.Len(t, result.Tags, 1)
}

func TestParseExtractionResponseMalformed(t *testing.T) {
	for _, response := range []string{
		"",
		"I could not process that.",
		`{"entities": [{]}`,
		`{"entities": "not an array"}`,
	} {
		result, err := intelligence.ParseExtractionResponse(response)
		assert.Error(t, err, "response %q should fail to parse", response)
		assert.Nil(t, result)
	}
}

func TestExtractionResultIsEmpty(t *testing.T) {
	var nilResult *intelligence.ExtractionResult
	assert.True(t, nilResult.IsEmpty())
	assert.True(t, (&intelligence.ExtractionResult{Category: "fact"}).IsEmpty())
	assert.False(t, (&intelligence.ExtractionResult{
		Tags: []storage.TagInput{{Name: "tea", Category: "topic"}},
	}).IsEmpty())
}
