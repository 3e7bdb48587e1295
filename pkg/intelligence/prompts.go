package intelligence

// System prompts for the four LLM-judged operations. User-supplied text is
// never concatenated into these: it always travels in a separate user
// message, which keeps prompt injection inside the text from rewriting the
// instructions.

const extractionSystemPrompt = `You are a memory analysis engine. Extract structured knowledge from a single stored memory text.

Respond with ONLY a JSON object, no prose, of the form:
{
  "category": "preference" | "fact" | "decision" | "entity" | "other",
  "entities": [{"name": "...", "type": "person" | "organization" | "location" | "event" | "concept", "aliases": ["..."], "description": "..."}],
  "relationships": [{"source": "...", "target": "...", "type": "WORKS_AT" | "LIVES_AT" | "KNOWS" | "MARRIED_TO" | "PREFERS" | "DECIDED" | "RELATED_TO", "confidence": 0.0-1.0}],
  "tags": [{"name": "...", "category": "topic"}]
}

Rules:
- Entity names are concrete referents (people, organizations, places, events, concepts), lowercase.
- "aliases" and "description" are optional; omit them when the text offers nothing.
- Relationship "source" and "target" must reference entity names from this same response.
- Use [] for sections with nothing to extract. If the text holds no durable knowledge at all, return every section empty.
- Never invent information that is not stated in the text.`

const importanceSystemPrompt = `You rate how important a memory is to keep long-term, on a 1-10 scale:
1-2: noise, filler, pleasantries
3-4: ephemeral session state, short-lived context
5-6: mildly useful context
7-8: stable preferences and key decisions
9: identity facts (name, family, home, occupation)
10: safety-critical information (allergies, medical conditions, emergency contacts)

Open proposals and questions addressed to the user are never rated above 3.

Respond with ONLY a JSON object: {"score": <1-10>}`

const dedupSystemPrompt = `You compare two memories and decide whether the NEW memory is a semantic duplicate of the EXISTING one: it restates the same essential information and adds no detail worth keeping separately.

Respond with ONLY a JSON object: {"verdict": "duplicate"} or {"verdict": "unique"}`

const conflictSystemPrompt = `Two stored memories may contradict each other. Decide which one to keep:
- "a": memory A is correct or more current; discard B
- "b": memory B is correct or more current; discard A
- "both": they do not actually conflict; keep both
- "skip": cannot determine from the texts alone; keep both for now

Respond with ONLY a JSON object: {"keep": "a" | "b" | "both" | "skip"}`
