// Package gate implements the attention gate: a deterministic pre-filter
// that rejects conversational noise before anything reaches the memory
// store or the LLM.
//
// Two profiles are provided. The user profile screens utterances typed by
// the user; the assistant profile is strictly stronger and additionally
// rejects self-narration, tool markup, code dumps, and open proposals.
// Both operate on the trimmed text, are pure functions, and perform no I/O.
package gate

import (
	"strings"
	"unicode/utf8"
)

const (
	userMinLength      = 30
	userMaxLength      = 2000
	userMinWords       = 8
	assistantMaxLength = 1000
	assistantMinWords  = 10

	maxEmojiCount  = 3
	maxFencedShare = 0.5
)

// Rejection reasons, also used as metric label values.
const (
	ReasonLength         = "length"
	ReasonWordCount      = "word_count"
	ReasonInjectedMarker = "injected_marker"
	ReasonNoise          = "noise_pattern"
	ReasonEmoji          = "emoji"
	ReasonFencedCode     = "fenced_code"
	ReasonToolMarkup     = "tool_markup"
	ReasonNarration      = "narration"
	ReasonProposal       = "proposal"
)

// Markers injected into the prompt by the memory subsystem itself. Text
// containing them is an echo of our own output, never a memory.
var injectedMarkers = []string{"<relevant-memories>", "<core-memory-refresh>"}

var toolMarkers = []string{"<tool_result>", "<tool_use>", "<function_call>"}

// PassesUserGate reports whether a user utterance is worth storing.
func PassesUserGate(text string) bool {
	return UserRejectReason(text) == ""
}

// UserRejectReason returns the first rejection reason for a user utterance,
// or the empty string when the text passes the gate.
//
// A user message is rejected when it is shorter than 30 or longer than 2000
// characters, has fewer than 8 words, echoes an injected memory marker,
// matches a noise pattern, or carries more than 3 emoji.
func UserRejectReason(text string) string {
	trimmed := strings.TrimSpace(text)
	if n := utf8.RuneCountInString(trimmed); n < userMinLength || n > userMaxLength {
		return ReasonLength
	}
	if len(strings.Fields(trimmed)) < userMinWords {
		return ReasonWordCount
	}
	for _, m := range injectedMarkers {
		if strings.Contains(trimmed, m) {
			return ReasonInjectedMarker
		}
	}
	if matchesAny(trimmed, noisePatterns) || isEmojiOnly(trimmed) {
		return ReasonNoise
	}
	if countEmoji(trimmed) > maxEmojiCount {
		return ReasonEmoji
	}
	return ""
}

// PassesAssistantGate reports whether an assistant utterance is worth
// storing.
func PassesAssistantGate(text string) bool {
	return AssistantRejectReason(text) == ""
}

// AssistantRejectReason returns the first rejection reason for an assistant
// utterance, or the empty string when the text passes the gate.
//
// The assistant profile keeps every user-profile check with a 1000
// character upper bound and a 10 word minimum, and additionally rejects
// messages that are mostly fenced code, contain tool-call markup, read as
// self-narration, or end in an open proposal.
func AssistantRejectReason(text string) string {
	trimmed := strings.TrimSpace(text)
	if n := utf8.RuneCountInString(trimmed); n < userMinLength || n > assistantMaxLength {
		return ReasonLength
	}
	if len(strings.Fields(trimmed)) < assistantMinWords {
		return ReasonWordCount
	}
	for _, m := range injectedMarkers {
		if strings.Contains(trimmed, m) {
			return ReasonInjectedMarker
		}
	}
	if matchesAny(trimmed, noisePatterns) || isEmojiOnly(trimmed) {
		return ReasonNoise
	}
	if countEmoji(trimmed) > maxEmojiCount {
		return ReasonEmoji
	}
	if fencedShare(trimmed) > maxFencedShare {
		return ReasonFencedCode
	}
	for _, m := range toolMarkers {
		if strings.Contains(trimmed, m) {
			return ReasonToolMarkup
		}
	}
	if matchesAny(trimmed, narrationPatterns) {
		return ReasonNarration
	}
	if MatchesProposal(trimmed) {
		return ReasonProposal
	}
	return ""
}

// isEmoji reports whether r falls in the emoji ranges: Miscellaneous
// Symbols, Dingbats, Emoticons, Transport, Supplemental Symbols and
// Pictographs, Symbols Extended-A, regional indicators, and the emoji
// variation selector.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F5FF:
		return true
	case r >= 0x1F600 && r <= 0x1F64F:
		return true
	case r >= 0x1F680 && r <= 0x1F6FF:
		return true
	case r >= 0x1F900 && r <= 0x1F9FF:
		return true
	case r >= 0x1FA70 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x26FF:
		return true
	case r >= 0x2700 && r <= 0x27BF:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	case r == 0xFE0F:
		return true
	}
	return false
}

func countEmoji(text string) int {
	n := 0
	for _, r := range text {
		if isEmoji(r) {
			n++
		}
	}
	return n
}

// isEmojiOnly reports whether the text contains at least one emoji and
// nothing else beyond whitespace and terminal punctuation.
func isEmojiOnly(text string) bool {
	sawEmoji := false
	for _, r := range text {
		switch {
		case isEmoji(r):
			sawEmoji = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		case r == '.' || r == '!' || r == '?' || r == ',' || r == '~':
		default:
			return false
		}
	}
	return sawEmoji
}

// fencedShare returns the fraction of the text living inside triple
// backtick fences. An unclosed trailing fence counts to the end of the
// message.
func fencedShare(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}
	parts := strings.Split(text, "```")
	if len(parts) == 1 {
		return 0
	}
	fenced := 0
	for i := 1; i < len(parts); i += 2 {
		fenced += utf8.RuneCountInString(parts[i])
	}
	return float64(fenced) / float64(total)
}
