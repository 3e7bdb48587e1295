package gate

import "regexp"

// noisePatterns is the user-profile rejection table. A message matching any
// entry is conversational noise regardless of its other properties.
var noisePatterns = []*regexp.Regexp{
	// Greetings and bare acknowledgements.
	regexp.MustCompile(`(?i)^(hi|hiya|hey|heya|hello|yo|sup|ok|okay|k|kk|yes|yeah|yep|yup|no|nope|nah|thanks|thank you|thx|ty|cool|nice|great|good|sure|fine|alright|got it|sounds good|will do|done|bye|goodbye|later|good night|gn|gm|lgtm)[\s.!?~]*$`),
	// Two-word affirmations ("yes please", "looks good", "works now").
	regexp.MustCompile(`(?i)^[a-z']+\s+(thanks|please|ok|okay|good|works|done|confirmed|again)[\s.!?]*$`),
	// Deictic short responses that only make sense in the moment.
	regexp.MustCompile(`(?i)^(i need those|let me test it|try it now|test it|send it|do it|go ahead|check it|run it|works now|on it)[\s.!?]*$`),
	// Filler.
	regexp.MustCompile(`(?i)^(h+m+|huh|ha(ha)+|he(he)+|lo+l|lmao+|rofl|idk|idc|imo|btw|fyi|oops|whoops|ugh|meh|yikes|welp|oof)[\s.!?]*$`),
	// Anything three characters or shorter.
	regexp.MustCompile(`(?s)^.{0,3}$`),
	// Pure markup: a single enclosing tag pair, or nothing but tags.
	regexp.MustCompile(`(?is)^\s*<([a-z][\w-]*)[^>]*>.*</[a-z][\w-]*>\s*$`),
	regexp.MustCompile(`(?s)^\s*(<[^<>]+>\s*)+$`),
	// Session-reset prompts injected by the chat runtime.
	regexp.MustCompile(`(?i)^a new session was started`),
	// Raw chat-platform metadata.
	regexp.MustCompile(`(?i)\[(slack|telegram|discord|imessage|whatsapp) message id:`),
	// Heartbeat and cron wrappers.
	regexp.MustCompile(`(?i)^\[?(system\s+)?heartbeat\]?\b`),
	regexp.MustCompile(`(?i)^\[cron\b`),
	regexp.MustCompile(`(?i)^(ping|pong)[\s.!?]*$`),
	// Conversation-info blocks.
	regexp.MustCompile(`(?i)^\[?conversation[ _-]info\]?`),
	regexp.MustCompile(`(?i)<conversation[ _-]info>`),
	// Scheduled reminder markers.
	regexp.MustCompile(`(?i)^\[?scheduled reminder\]?`),
	regexp.MustCompile(`(?i)^reminder fired:`),
}

// narrationPatterns is the assistant-profile table for self-talk and status
// narration that carries no durable information.
var narrationPatterns = []*regexp.Regexp{
	// Self-talk openers.
	regexp.MustCompile(`(?i)^(now\s+)?(let me|i'?ll|i will|i'?m going to|first,?\s+(let me|i'?ll)|next,?\s+(let me|i'?ll))\b`),
	// Status narration.
	regexp.MustCompile(`(?i)^(starting|running|processing|executing|checking|searching|looking into|fetching|loading|analyzing|analysing|reading|scanning|reviewing|working on|updating|creating|generating)\b`),
	// Exclamatory openers.
	regexp.MustCompile(`(?i)^(great|perfect|excellent|awesome|wonderful|fantastic|done|alright)[!.]`),
	// Step and page narration.
	regexp.MustCompile(`(?i)^(on\s+)?(step|page)\s+\d+\b`),
	// Filler.
	regexp.MustCompile(`(?i)^(i'?m here|i can see|i see that|looking at (this|the|your))\b`),
	// Completion wrap-ups.
	regexp.MustCompile(`(?i)^(done|all done|all good|all set|that'?s done|finished|completed|task complete)[\s.!✅]*$`),
	regexp.MustCompile(`(?i)^here'?s what (changed|i did|i found)`),
	// Voice-mode metadata.
	regexp.MustCompile(`(?i)\[voice mode`),
	regexp.MustCompile(`(?i)^\[voice\]`),
}

// ProposalPatterns matches open proposals: the assistant offering an action
// and waiting for the user to approve it. These are rejected at ingest by
// the assistant gate and hard-deleted from the store by the noise-cleanup
// phase of the sleep cycle, which shares this table.
var ProposalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwant me to\b[^?]*\?`),
	regexp.MustCompile(`(?i)\bdo you want me to\b[^?]*\?`),
	regexp.MustCompile(`(?i)\bshould i\b[^?]*\?`),
	regexp.MustCompile(`(?i)\bshall i\b[^?]*\?`),
	regexp.MustCompile(`(?i)\bwould you like me to\b[^?]*\?`),
	regexp.MustCompile(`(?i)\bcan i\b[^?]*\?`),
	regexp.MustCompile(`(?i)\bmay i\b[^?]*\?`),
	regexp.MustCompile(`(?i)\bready to\b[^?]*\?`),
	regexp.MustCompile(`(?i)\bproceed with\b[^?]*\?`),
}

// MatchesProposal reports whether text contains an open proposal.
func MatchesProposal(text string) bool {
	for _, p := range ProposalPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
