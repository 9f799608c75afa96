// Package ws is the connection router: it binds each live websocket to at
// most one (session, player) pair, dispatches inbound events, and fans
// resulting events out to the session's connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mkovach/nexus/backend/internal/analysis/tags"
	model "github.com/mkovach/nexus/backend/internal/model/session"
	sessionService "github.com/mkovach/nexus/backend/internal/service/session"
)

// Responder produces the Nexus's side of a turn. The ai service satisfies
// it; tests may substitute slower or canned implementations.
type Responder interface {
	PickTemplate() (id, system string)
	GenerateResponse(ctx context.Context, turn sessionService.Turn) string
}

// Handler upgrades connections and routes their events.
type Handler struct {
	sessions *sessionService.Service
	nexus    Responder
	hub      *Hub
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(sessions *sessionService.Service, nexus Responder) *Handler {
	return &Handler{
		sessions: sessions,
		nexus:    nexus,
		hub:      NewHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinPayload struct {
	Username  string `json:"username"`
	SessionID string `json:"sessionId"`
	IsHost    bool   `json:"isHost"`
}

type inputPayload struct {
	SessionID string `json:"sessionId"`
	Input     string `json:"input"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}

	c := newClient(uuid.NewString(), conn)
	go c.writeLoop()

	log.Printf("[websocket] new client connected: %s", c.id)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := r.Context()
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error on %s: %v", c.id, err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "join_session":
			h.handleJoin(ctx, c, msg.Data)
		case "player_input":
			h.handlePlayerInput(ctx, c, msg.Data)
		case "leave_session":
			h.leave(c)
		default:
			h.sendError(c, "unsupported message type: "+msg.Type)
		}
	}

	log.Printf("[websocket] client disconnected: %s", c.id)
	h.leave(c)
	close(c.send)
}

// handleJoin serves both create (isHost) and join intents. The reply goes
// only to the caller; existing members learn about a new joiner through a
// player_joined broadcast.
func (h *Handler) handleJoin(ctx context.Context, c *client, data json.RawMessage) {
	var payload joinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(c, "invalid join payload")
		return
	}
	if payload.Username == "" {
		h.sendError(c, "username is required")
		return
	}

	if payload.IsHost {
		sess, err := h.sessions.Create(ctx, c.id, payload.Username)
		if err != nil {
			h.sendError(c, errorMessage(err))
			return
		}

		h.hub.Add(sess.ID, c)
		h.send(c, "session_joined", map[string]any{
			"sessionId": sess.ID,
			"players":   sess.Players,
			"isHost":    true,
		})
		log.Printf("[websocket] new session created: %s by %s", sess.ID, payload.Username)
		return
	}

	sess, err := h.sessions.Join(ctx, payload.SessionID, c.id, payload.Username)
	if err != nil {
		h.sendError(c, errorMessage(err))
		return
	}

	h.hub.Add(sess.ID, c)
	h.send(c, "session_joined", map[string]any{
		"sessionId": sess.ID,
		"players":   sess.Players,
		"isHost":    false,
	})
	h.hub.BroadcastExcept(sess.ID, c.id, "player_joined", map[string]any{
		"id":       c.id,
		"username": payload.Username,
	})
	log.Printf("[websocket] %s joined session: %s", payload.Username, sess.ID)
}

// handlePlayerInput appends the player's message, runs the responder
// without holding the session's lock, and broadcasts the parsed result. A
// responder failure never surfaces here: the gateway substitutes the
// scripted fallback.
func (h *Handler) handlePlayerInput(ctx context.Context, c *client, data json.RawMessage) {
	var payload inputPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(c, "invalid input payload")
		return
	}

	player, err := h.sessions.Member(ctx, payload.SessionID, c.id)
	if err != nil {
		h.sendError(c, errorMessage(err))
		return
	}

	userMsg := model.Message{
		Sender:  player.Username,
		Content: payload.Input,
		Kind:    model.KindUser,
	}
	if err := h.sessions.AppendMessage(ctx, payload.SessionID, userMsg); err != nil {
		h.sendError(c, errorMessage(err))
		return
	}

	turn, err := h.sessions.BeginNexusTurn(ctx, payload.SessionID, h.nexus.PickTemplate)
	if err != nil {
		h.sendError(c, errorMessage(err))
		return
	}

	raw := h.nexus.GenerateResponse(ctx, turn)
	event := tags.Parse(raw)

	if err := h.sessions.AppendMessage(ctx, payload.SessionID, nexusMessages(event)...); err != nil {
		// Everyone left while the responder was thinking; nothing to deliver.
		log.Printf("[websocket] session %s gone before nexus response landed", payload.SessionID)
		return
	}
	h.hub.Broadcast(payload.SessionID, "nexus_response", event)
}

// leave removes the connection's player and notifies the survivors. Cleanup
// is best-effort: an unbound connection is a no-op, and a deleted session
// broadcasts nothing.
func (h *Handler) leave(c *client) {
	dep, ok := h.sessions.Leave(context.Background(), c.id)
	if !ok {
		return
	}

	h.hub.Remove(dep.SessionID, c.id)

	if dep.Deleted {
		log.Printf("[websocket] session %s removed (no players left)", dep.SessionID)
		return
	}

	data := map[string]any{
		"id":       dep.Player.ID,
		"username": dep.Player.Username,
	}
	if dep.NewHost != nil {
		data["newHost"] = dep.NewHost.Username
	}
	h.hub.Broadcast(dep.SessionID, "player_left", data)
}

// nexusMessages converts a parsed event into transcript entries, one per
// addressed part.
func nexusMessages(event tags.Event) []model.Message {
	if event.Type != tags.TypeMulti {
		return []model.Message{{
			Sender:  model.SenderNexus,
			Content: event.Content,
			Kind:    transcriptKind(event.Type),
			Target:  event.Target,
		}}
	}

	messages := make([]model.Message, 0, len(event.Parts))
	for _, part := range event.Parts {
		messages = append(messages, model.Message{
			Sender:  model.SenderNexus,
			Content: part.Content,
			Kind:    transcriptKind(part.Type),
			Target:  part.Target,
		})
	}
	return messages
}

// transcriptKind maps a parsed part type onto the transcript vocabulary.
// Unrecognized tag names pass through unchanged, so the transcript mirrors
// whatever markup the responder invented.
func transcriptKind(partType string) model.Kind {
	switch partType {
	case tags.TypeSystem:
		return model.KindSystem
	case tags.TypeQuestion:
		return model.KindQuestion
	case tags.TypeChallenge:
		return model.KindChallenge
	case tags.TypeInformation:
		return model.KindInformation
	case tags.TypeWord:
		return model.KindWord
	case tags.TypeStory:
		return model.KindStory
	default:
		return model.Kind(partType)
	}
}

// send delivers an event to the originating connection only.
func (h *Handler) send(c *client, eventType string, data any) {
	frame, err := json.Marshal(envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("[websocket] failed to encode %s event: %v", eventType, err)
		return
	}
	c.deliver(frame)
}

func (h *Handler) sendError(c *client, message string) {
	h.send(c, "error", map[string]string{"message": message})
}

// errorMessage maps store errors onto the client-facing strings.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, sessionService.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, sessionService.ErrSessionFull):
		return "Session is full"
	case errors.Is(err, sessionService.ErrNotAMember):
		return "Player not found in session"
	case errors.Is(err, sessionService.ErrAlreadyJoined):
		return "Already in a session"
	default:
		return "Error processing your input"
	}
}
