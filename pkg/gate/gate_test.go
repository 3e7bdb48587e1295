package gate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftlab/graphmem/pkg/gate"
)

func TestUserGateRejectsNoise(t *testing.T) {
	assert.False(t, gate.PassesUserGate("ok thanks!"))
	assert.False(t, gate.PassesUserGate("ok"))
	assert.False(t, gate.PassesUserGate("lol"))
	assert.False(t, gate.PassesUserGate("🎉"))
}

func TestUserGateAcceptsSubstance(t *testing.T) {
	assert.True(t, gate.PassesUserGate("I have been using the new grocery-delivery service for three weeks and it works well."))
	assert.True(t, gate.PassesUserGate("My sister Maria moved to Lisbon last spring and she is working at a design studio there."))
}

func TestUserGateLengthBounds(t *testing.T) {
	assert.Equal(t, gate.ReasonLength, gate.UserRejectReason("hello there"))
	assert.Equal(t, gate.ReasonLength, gate.UserRejectReason(strings.Repeat("a", 2001)))

	// Exactly at the bounds passes the length check.
	long := strings.Repeat("word ", 400) // 2000 chars
	assert.NotEqual(t, gate.ReasonLength, gate.UserRejectReason(strings.TrimSpace(long)))
}

func TestUserGateWordCount(t *testing.T) {
	assert.Equal(t, gate.ReasonWordCount, gate.UserRejectReason("supercalifragilisticexpialidocious is a rather long word"))
}

func TestUserGateInjectedMarkers(t *testing.T) {
	text := "Here is the context block <relevant-memories> we injected into the prompt earlier today"
	assert.Equal(t, gate.ReasonInjectedMarker, gate.UserRejectReason(text))

	text = "The prompt included a <core-memory-refresh> section with all of the pinned facts in it"
	assert.Equal(t, gate.ReasonInjectedMarker, gate.UserRejectReason(text))
}

func TestUserGateNoisePatterns(t *testing.T) {
	cases := []string{
		"[slack message id: 187352.009182] user asked about the deployment window for tomorrow",
		"A new session was started via the mobile client after a long idle period yesterday",
		"[Scheduled Reminder] take the compliance training before the end of the quarter please",
		"[cron] nightly backup job finished without errors at three in the morning again",
	}
	for _, text := range cases {
		assert.Equal(t, gate.ReasonNoise, gate.UserRejectReason(text), "text: %s", text)
	}
}

func TestUserGateEmojiLimit(t *testing.T) {
	text := "Planning the trip itinerary for next month with friends 🎉🎉🎉🎉 so excited about it"
	assert.Equal(t, gate.ReasonEmoji, gate.UserRejectReason(text))

	// Three or fewer emoji are fine.
	text = "Planning the trip itinerary for next month with friends 🎉 so excited about it"
	assert.Equal(t, "", gate.UserRejectReason(text))
}

func TestAssistantGateRejectsProposals(t *testing.T) {
	assert.False(t, gate.PassesAssistantGate("Want me to submit that pull request for you?"))

	text := "I finished reviewing the changes, want me to submit the pull request for you now?"
	assert.Equal(t, gate.ReasonProposal, gate.AssistantRejectReason(text))

	text = "Everything is wired up on the staging cluster, should I promote the build to production?"
	assert.Equal(t, gate.ReasonProposal, gate.AssistantRejectReason(text))
}

func TestAssistantGateRejectsNarration(t *testing.T) {
	text := "Let me check the deployment logs and see what happened during the last release."
	assert.Equal(t, gate.ReasonNarration, gate.AssistantRejectReason(text))

	text = "Checking the database indexes now to understand why the query planner slowed down."
	assert.Equal(t, gate.ReasonNarration, gate.AssistantRejectReason(text))

	text = "[VOICE MODE] transcription quality was poor during the morning standup call today"
	assert.Equal(t, gate.ReasonNarration, gate.AssistantRejectReason(text))

	text = "Here's what changed after the refactor of the storage layer and its tests"
	assert.Equal(t, gate.ReasonNarration, gate.AssistantRejectReason(text))
}

func TestAssistantGateRejectsToolMarkup(t *testing.T) {
	text := "The command completed and returned the following <tool_result> block from the execution run"
	assert.Equal(t, gate.ReasonToolMarkup, gate.AssistantRejectReason(text))
}

func TestAssistantGateRejectsCodeDumps(t *testing.T) {
	text := "Here is the updated handler function for the service today:\n```go\n" +
		strings.Repeat("x", 200) + "\n```"
	assert.Equal(t, gate.ReasonFencedCode, gate.AssistantRejectReason(text))
}

func TestAssistantGateTighterBounds(t *testing.T) {
	// 1500 chars passes the user gate but not the assistant gate.
	text := strings.TrimSpace(strings.Repeat("word ", 300))
	assert.Equal(t, "", gate.UserRejectReason(text))
	assert.Equal(t, gate.ReasonLength, gate.AssistantRejectReason(text))

	// Nine words pass the user gate but not the assistant gate.
	nine := "the deployment window moved to tuesday morning next week"
	assert.Equal(t, "", gate.UserRejectReason(nine))
	assert.Equal(t, gate.ReasonWordCount, gate.AssistantRejectReason(nine))
}

func TestAssistantGateAcceptsSubstance(t *testing.T) {
	text := "Your preferred deployment window is Tuesday mornings, so the release pipeline now schedules builds accordingly."
	assert.True(t, gate.PassesAssistantGate(text))
}

func TestMatchesProposal(t *testing.T) {
	assert.True(t, gate.MatchesProposal("Ready to deploy the new version?"))
	assert.True(t, gate.MatchesProposal("Would you like me to rewrite the summary?"))
	assert.True(t, gate.MatchesProposal("should I keep both copies?"))
	assert.False(t, gate.MatchesProposal("The deployment is ready to go live tomorrow."))
	assert.False(t, gate.MatchesProposal("He asked whether the report was finished."))
}
