// Package tags decomposes raw Nexus output into typed, addressed event
// records. The responder marks up its text with bracketed tags such as
// [QUESTION:alice], [SYSTEM] or [FOR:bob]; everything else is plain
// broadcast text.
package tags

import "strings"

// Well-known event types. Tag names are open-ended: an unrecognized tag
// yields its lowercased name as the type rather than being rejected.
const (
	TypeMessage     = "message"
	TypeMulti       = "multi"
	TypeSystem      = "system"
	TypeQuestion    = "question"
	TypeChallenge   = "challenge"
	TypeInformation = "information"
	TypeWord        = "word"
	TypeStory       = "story"
)

// TargetAll addresses every player in the session.
const TargetAll = "all"

// Part is one addressed segment of a Nexus response.
type Part struct {
	Type    string `json:"type"`
	Target  string `json:"target"`
	Content string `json:"content"`
}

// Event is the normalized form of one raw responder output: either a single
// untagged broadcast (TypeMessage) or a TypeMulti envelope carrying the
// tagged parts in order.
type Event struct {
	Type    string `json:"type"`
	Target  string `json:"target,omitempty"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// Parse scans the raw text line by line, accumulating parts. A line opening
// with a tag closes the current part and starts a new one; any other line
// folds into the part currently open, or opens an implicit untagged part.
// Input with no recognizable tag at all collapses to a single TypeMessage
// event; anything tagged is wrapped in a TypeMulti event, even when only one
// part came out.
//
// A whole-string single tag takes a fast path that resolves the tag against
// the known vocabulary, so [FOR:bob] yields TypeInformation. Multi-line
// decomposition keeps literal lowercased tag names instead.
func Parse(raw string) Event {
	if single := strings.TrimSpace(raw); !strings.Contains(single, "\n") {
		if kind, target, rest, ok := classify(single); ok {
			if kind == "for" {
				kind = TypeInformation
			}
			return Event{Type: TypeMulti, Parts: []Part{{Type: kind, Target: target, Content: rest}}}
		}
	}

	var parts []Part
	var open *Part

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)

		if kind, target, rest, ok := classify(trimmed); ok {
			if open != nil {
				parts = append(parts, *open)
			}
			open = &Part{Type: kind, Target: target, Content: rest}
			continue
		}

		if open == nil {
			open = &Part{Type: TypeMessage, Target: TargetAll, Content: trimmed}
			continue
		}
		if trimmed == "" {
			continue
		}
		if open.Content == "" {
			open.Content = trimmed
		} else {
			open.Content += " " + trimmed
		}
	}

	if open != nil {
		parts = append(parts, *open)
	}

	if len(parts) == 1 && parts[0].Type == TypeMessage {
		return Event{Type: TypeMessage, Target: TargetAll, Content: strings.TrimSpace(raw)}
	}
	return Event{Type: TypeMulti, Parts: parts}
}

// classify splits a line that opens with a tag into its kind, target and
// trailing text. The tag body runs to the first ']'; a ':' inside the body
// separates kind from target (two-argument form), otherwise the tag
// addresses everyone. Lines that do not open with a well-formed tag are
// continuation text.
func classify(line string) (kind, target, rest string, ok bool) {
	if !strings.HasPrefix(line, "[") {
		return "", "", "", false
	}
	end := strings.Index(line, "]")
	if end < 0 {
		return "", "", "", false
	}

	body := line[1:end]
	rest = strings.TrimSpace(line[end+1:])

	if colon := strings.Index(body, ":"); colon >= 0 {
		kind = strings.ToLower(strings.TrimSpace(body[:colon]))
		target = strings.TrimSpace(body[colon+1:])
	} else {
		kind = strings.ToLower(strings.TrimSpace(body))
		target = TargetAll
	}
	if kind == "" {
		return "", "", "", false
	}
	return kind, target, rest, true
}
