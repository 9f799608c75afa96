package session

import "time"

// State tracks the session lifecycle.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
)

// MaxPlayers caps session membership.
const MaxPlayers = 3

// Player is a connection-scoped identity: its ID is the websocket
// connection id and does not survive a reconnect.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// NexusContext holds the responder framing for one session. It is created
// lazily on the session's first responder turn.
type NexusContext struct {
	TemplateID string
	Template   string
	Phase      Phase
}

// Session captures a bounded group conversation: a host, up to MaxPlayers
// players in join order, and a lifecycle state. The transcript lives in the
// session service, keyed by session id.
type Session struct {
	ID        string    `json:"id"`
	Host      Player    `json:"host"`
	Players   []Player  `json:"players"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}
