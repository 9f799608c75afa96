package session

import "time"

// Kind classifies a transcript entry. User input is always KindUser; entries
// authored by the Nexus carry the kind of the tag they were parsed from, so
// the set is open-ended beyond the well-known values below.
type Kind string

const (
	KindUser        Kind = "user"
	KindSystem      Kind = "system"
	KindQuestion    Kind = "question"
	KindChallenge   Kind = "challenge"
	KindInformation Kind = "information"
	KindWord        Kind = "word"
	KindStory       Kind = "story"
)

// TargetAll addresses every player in the session.
const TargetAll = "all"

// SenderNexus is the responder's identity in the transcript. Entries with
// any other sender are player-authored.
const SenderNexus = "Nexus"

// Message persists individual turns for context reconstruction and audit.
// Messages are immutable once appended; transcript order is the single
// source of truth for turn order.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Kind      Kind      `json:"kind"`
	Target    string    `json:"target,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
