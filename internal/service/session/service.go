package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/mkovach/nexus/backend/internal/model/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
	ErrAlreadyJoined   = errors.New("already in a session")
	ErrNotAMember      = errors.New("player not found in session")
)

// record is one session plus everything serialized under its own lock.
type record struct {
	mu       sync.Mutex
	session  model.Session
	messages []model.Message
	nexus    *model.NexusContext
	gone     bool // set when the record has been removed from the registry
}

// Service is the in-memory session registry. The registry lock guards only
// the two maps; each session record serializes its own operations under its
// private mutex, so unrelated sessions never block each other. Lock
// ordering: the registry lock may be held while acquiring a record lock,
// never the reverse.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*record
	byConn   map[string]string // connection id -> session id
}

// NewService bootstraps the in-memory session registry.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]*record),
		byConn:   make(map[string]string),
	}
}

// Create allocates a fresh session with the caller as both host and sole
// player. A connection already bound to a session cannot create another.
func (s *Service) Create(_ context.Context, connID, username string) (model.Session, error) {
	player := model.Player{ID: connID, Username: username}
	sess := model.Session{
		ID:        uuid.NewString(),
		Host:      player,
		Players:   []model.Player{player},
		State:     model.StateWaiting,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, bound := s.byConn[connID]; bound {
		return model.Session{}, ErrAlreadyJoined
	}
	s.sessions[sess.ID] = &record{
		session:  sess,
		messages: make([]model.Message, 0, 16),
	}
	s.byConn[connID] = sess.ID

	return snapshot(sess), nil
}

// Join appends the caller to an existing session. Capacity is checked
// exactly once, under the session's lock. The returned session carries the
// full current player list so the caller can announce roster state.
func (s *Service) Join(_ context.Context, sessionID, connID, username string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, bound := s.byConn[connID]; bound {
		return model.Session{}, ErrAlreadyJoined
	}
	rec, ok := s.sessions[sessionID]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.gone {
		return model.Session{}, ErrSessionNotFound
	}
	if len(rec.session.Players) >= model.MaxPlayers {
		return model.Session{}, ErrSessionFull
	}

	rec.session.Players = append(rec.session.Players, model.Player{ID: connID, Username: username})
	s.byConn[connID] = sessionID

	return snapshot(rec.session), nil
}

// Departure describes the outcome of removing a player from its session.
type Departure struct {
	SessionID string
	Player    model.Player
	Players   []model.Player // remaining players, empty when the session was deleted
	NewHost   *model.Player  // set only when host promotion occurred
	Deleted   bool
}

// Leave removes the connection's player from whichever session holds it.
// Removing the host promotes the earliest remaining joiner; removing the
// last player deletes the session entirely. Returns false when the
// connection was not bound to any session.
func (s *Service) Leave(_ context.Context, connID string) (Departure, bool) {
	s.mu.RLock()
	sessionID, bound := s.byConn[connID]
	rec := s.sessions[sessionID]
	s.mu.RUnlock()

	if !bound || rec == nil {
		return Departure{}, false
	}

	rec.mu.Lock()
	idx := -1
	for i, p := range rec.session.Players {
		if p.ID == connID {
			idx = i
			break
		}
	}
	if idx < 0 || rec.gone {
		rec.mu.Unlock()
		return Departure{}, false
	}

	dep := Departure{SessionID: sessionID, Player: rec.session.Players[idx]}
	rec.session.Players = append(rec.session.Players[:idx], rec.session.Players[idx+1:]...)

	if len(rec.session.Players) == 0 {
		rec.gone = true
		dep.Deleted = true
	} else {
		if rec.session.Host.ID == connID {
			rec.session.Host = rec.session.Players[0]
			host := rec.session.Host
			dep.NewHost = &host
		}
		dep.Players = append([]model.Player(nil), rec.session.Players...)
	}
	rec.mu.Unlock()

	s.mu.Lock()
	delete(s.byConn, connID)
	if dep.Deleted {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	return dep, true
}

// Find resolves a connection back to its session and player. Used by
// disconnect handling and input validation.
func (s *Service) Find(_ context.Context, connID string) (model.Session, model.Player, bool) {
	s.mu.RLock()
	sessionID, bound := s.byConn[connID]
	rec := s.sessions[sessionID]
	s.mu.RUnlock()

	if !bound || rec == nil {
		return model.Session{}, model.Player{}, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.gone {
		return model.Session{}, model.Player{}, false
	}
	for _, p := range rec.session.Players {
		if p.ID == connID {
			return snapshot(rec.session), p, true
		}
	}
	return model.Session{}, model.Player{}, false
}

// Member verifies the connection belongs to the given session and returns
// its player.
func (s *Service) Member(_ context.Context, sessionID, connID string) (model.Player, error) {
	rec, err := s.lookup(sessionID)
	if err != nil {
		return model.Player{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.gone {
		return model.Player{}, ErrSessionNotFound
	}
	for _, p := range rec.session.Players {
		if p.ID == connID {
			return p, nil
		}
	}
	return model.Player{}, ErrNotAMember
}

// AppendMessage appends messages to the session transcript in order. IDs
// and timestamps are filled in when absent.
func (s *Service) AppendMessage(_ context.Context, sessionID string, messages ...model.Message) error {
	rec, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.gone {
		return ErrSessionNotFound
	}

	for _, msg := range messages {
		msg.SessionID = sessionID
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		rec.messages = append(rec.messages, msg)
	}
	return nil
}

// Transcript returns a copy of the stored messages for the session.
func (s *Service) Transcript(_ context.Context, sessionID string) ([]model.Message, error) {
	rec, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.gone {
		return nil, ErrSessionNotFound
	}
	copied := make([]model.Message, len(rec.messages))
	copy(copied, rec.messages)
	return copied, nil
}

// Turn is the input for one responder invocation, captured atomically under
// the session's lock so the gateway can run without holding it.
type Turn struct {
	SessionID string
	Players   []string // usernames in join order
	Messages  []model.Message
	Template  string
	Phase     model.Phase
}

// BeginNexusTurn snapshots everything the responder needs and advances the
// phase when the latest transcript entry came from a player. The template
// picker runs at most once per session, on its first turn; the session
// leaves the waiting state here.
func (s *Service) BeginNexusTurn(_ context.Context, sessionID string, pickTemplate func() (id, system string)) (Turn, error) {
	rec, err := s.lookup(sessionID)
	if err != nil {
		return Turn{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.gone {
		return Turn{}, ErrSessionNotFound
	}

	if rec.nexus == nil {
		id, system := pickTemplate()
		rec.nexus = &model.NexusContext{TemplateID: id, Template: system}
	}

	lastFromPlayer := false
	if n := len(rec.messages); n > 0 {
		lastFromPlayer = rec.messages[n-1].Kind == model.KindUser
	}
	rec.nexus.Phase = model.NextPhase(rec.nexus.Phase, lastFromPlayer)

	if rec.session.State == model.StateWaiting {
		rec.session.State = model.StateActive
	}

	turn := Turn{
		SessionID: sessionID,
		Players:   make([]string, 0, len(rec.session.Players)),
		Messages:  make([]model.Message, len(rec.messages)),
		Template:  rec.nexus.Template,
		Phase:     rec.nexus.Phase,
	}
	for _, p := range rec.session.Players {
		turn.Players = append(turn.Players, p.Username)
	}
	copy(turn.Messages, rec.messages)
	return turn, nil
}

// Summary is the read-only listing row served by GET /api/sessions.
type Summary struct {
	ID          string      `json:"id"`
	PlayerCount int         `json:"playerCount"`
	State       model.State `json:"state"`
}

// Snapshot lists all live sessions.
func (s *Service) Snapshot(_ context.Context) []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0, len(s.sessions))
	for _, rec := range s.sessions {
		rec.mu.Lock()
		if !rec.gone {
			summaries = append(summaries, Summary{
				ID:          rec.session.ID,
				PlayerCount: len(rec.session.Players),
				State:       rec.session.State,
			})
		}
		rec.mu.Unlock()
	}
	return summaries
}

func (s *Service) lookup(sessionID string) (*record, error) {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rec, nil
}

func snapshot(sess model.Session) model.Session {
	out := sess
	out.Players = append([]model.Player(nil), sess.Players...)
	return out
}
