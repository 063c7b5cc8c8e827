// Package agents implements the background agent workflows: email
// triage and calendar scheduling. Both follow one pattern — read
// pending items, ask the model for a structured decision, parse it
// defensively, perform a side-effecting action, and record completion
// so items are never reprocessed.
package agents

import (
	"encoding/json"
	"strings"
)

// Action is the tagged decision variant emitted by the model.
type Action string

const (
	ActionDraftReply Action = "draft_reply"
	ActionIgnore     Action = "ignore"
	ActionSchedule   Action = "schedule"
	ActionNone       Action = "none"
)

// Decision is the structured output of one model consultation. It is
// ephemeral: it exists only within a single task invocation.
type Decision struct {
	Action      Action `json:"action"`
	ReplyText   string `json:"reply_text,omitempty"`
	Title       string `json:"title,omitempty"`
	Time        string `json:"time,omitempty"`
	Description string `json:"description,omitempty"`
	MemoryID    string `json:"memory_id,omitempty"`
}

// ExtractDecision locates the first well-formed JSON object inside raw
// model output and parses it. Models are instructed to emit pure JSON
// but routinely wrap it in prose. Returns ok=false when no valid JSON
// object is present; an unknown or missing action is normalized to
// ActionNone rather than treated as an error. Never panics.
func ExtractDecision(raw string) (Decision, bool) {
	for start := 0; start < len(raw); start++ {
		if raw[start] != '{' {
			continue
		}
		end, found := matchBrace(raw, start)
		if !found {
			// No balanced close for this opener; later openers are
			// inside it and cannot close either.
			break
		}

		var d Decision
		if err := json.Unmarshal([]byte(raw[start:end+1]), &d); err != nil {
			start = end // skip past this malformed candidate
			continue
		}

		switch d.Action {
		case ActionDraftReply, ActionIgnore, ActionSchedule, ActionNone:
		default:
			d.Action = ActionNone
		}
		return d, true
	}
	return Decision{}, false
}

// matchBrace returns the index of the brace closing the object opened
// at start, honoring JSON string literals and escapes.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// isBulkSender reports whether an email sender matches known
// bulk-sender patterns that never warrant a reply.
func isBulkSender(sender string) bool {
	s := strings.ToLower(sender)
	return strings.Contains(s, "noreply") || strings.Contains(s, "newsletter")
}
