package session_test

import (
	"context"
	"errors"
	"testing"

	model "github.com/mkovach/nexus/backend/internal/model/session"
	session "github.com/mkovach/nexus/backend/internal/service/session"
)

func pickFixed() (string, string) { return "interrogation", "system prompt" }

func TestCreateSession(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, "conn-a", "Alice")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	if sess.ID == "" {
		t.Fatal("expected a session id")
	}
	if sess.Host.ID != "conn-a" || sess.Host.Username != "Alice" {
		t.Fatalf("unexpected host: %+v", sess.Host)
	}
	if len(sess.Players) != 1 {
		t.Fatalf("expected sole player, got %d", len(sess.Players))
	}
	if sess.State != model.StateWaiting {
		t.Fatalf("expected waiting state, got %s", sess.State)
	}
}

func TestJoinReturnsFullRoster(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "conn-a", "Alice")
	joined, err := svc.Join(ctx, sess.ID, "conn-b", "Bob")
	if err != nil {
		t.Fatalf("Join err: %v", err)
	}

	if len(joined.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(joined.Players))
	}
	if joined.Players[0].Username != "Alice" || joined.Players[1].Username != "Bob" {
		t.Fatalf("join order not preserved: %+v", joined.Players)
	}
	if joined.Host.ID != "conn-a" {
		t.Fatalf("host must not change on join, got %+v", joined.Host)
	}
}

func TestJoinNotFound(t *testing.T) {
	svc := session.NewService()

	if _, err := svc.Join(context.Background(), "missing", "conn-b", "Bob"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestFourthJoinFails(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "conn-a", "Alice")
	if _, err := svc.Join(ctx, sess.ID, "conn-b", "Bob"); err != nil {
		t.Fatalf("second join err: %v", err)
	}
	if _, err := svc.Join(ctx, sess.ID, "conn-c", "Cara"); err != nil {
		t.Fatalf("third join err: %v", err)
	}

	if _, err := svc.Join(ctx, sess.ID, "conn-d", "Dave"); !errors.Is(err, session.ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull, got %v", err)
	}

	// The rejected join must leave the session unchanged.
	got, _, ok := svc.Find(ctx, "conn-a")
	if !ok {
		t.Fatal("session vanished")
	}
	if len(got.Players) != 3 {
		t.Fatalf("expected 3 players after rejected join, got %d", len(got.Players))
	}
}

func TestCreateWhileBoundFails(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, "conn-a", "Alice"); err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if _, err := svc.Create(ctx, "conn-a", "Alice"); !errors.Is(err, session.ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}
}

func TestLeavePromotesEarliestJoiner(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "conn-a", "Alice")
	svc.Join(ctx, sess.ID, "conn-b", "Bob")
	svc.Join(ctx, sess.ID, "conn-c", "Cara")

	dep, ok := svc.Leave(ctx, "conn-a")
	if !ok {
		t.Fatal("expected a departure")
	}
	if dep.Deleted {
		t.Fatal("session must survive with players left")
	}
	if dep.NewHost == nil || dep.NewHost.Username != "Bob" {
		t.Fatalf("expected Bob promoted, got %+v", dep.NewHost)
	}

	dep, ok = svc.Leave(ctx, "conn-b")
	if !ok {
		t.Fatal("expected a departure")
	}
	if dep.NewHost == nil || dep.NewHost.Username != "Cara" {
		t.Fatalf("expected Cara promoted, got %+v", dep.NewHost)
	}
}

func TestLeaveNonHostKeepsHost(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "conn-a", "Alice")
	svc.Join(ctx, sess.ID, "conn-b", "Bob")

	dep, ok := svc.Leave(ctx, "conn-b")
	if !ok {
		t.Fatal("expected a departure")
	}
	if dep.NewHost != nil {
		t.Fatalf("no promotion expected, got %+v", dep.NewHost)
	}

	got, _, ok := svc.Find(ctx, "conn-a")
	if !ok || got.Host.Username != "Alice" {
		t.Fatalf("host must remain Alice, got %+v", got.Host)
	}
}

func TestLastLeaveDeletesSession(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "conn-a", "Alice")

	dep, ok := svc.Leave(ctx, "conn-a")
	if !ok || !dep.Deleted {
		t.Fatalf("expected session deletion, got %+v", dep)
	}

	if _, err := svc.Join(ctx, sess.ID, "conn-b", "Bob"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("deleted session must be unresolvable, got %v", err)
	}
	if err := svc.AppendMessage(ctx, sess.ID, model.Message{Sender: "Bob", Content: "hi", Kind: model.KindUser}); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("deleted session must reject appends, got %v", err)
	}
	if len(svc.Snapshot(ctx)) != 0 {
		t.Fatal("snapshot must be empty after deletion")
	}
}

func TestLeaveUnboundConnection(t *testing.T) {
	svc := session.NewService()

	if _, ok := svc.Leave(context.Background(), "nobody"); ok {
		t.Fatal("expected no-op for unbound connection")
	}
}

func TestMember(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "conn-a", "Alice")

	player, err := svc.Member(ctx, sess.ID, "conn-a")
	if err != nil {
		t.Fatalf("Member err: %v", err)
	}
	if player.Username != "Alice" {
		t.Fatalf("unexpected player: %+v", player)
	}

	if _, err := svc.Member(ctx, sess.ID, "conn-x"); !errors.Is(err, session.ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
	if _, err := svc.Member(ctx, "missing", "conn-a"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestTranscriptOrder(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "conn-a", "Alice")
	svc.AppendMessage(ctx, sess.ID, model.Message{Sender: "Alice", Content: "one", Kind: model.KindUser})
	svc.AppendMessage(ctx, sess.ID,
		model.Message{Sender: model.SenderNexus, Content: "two", Kind: model.KindSystem, Target: model.TargetAll},
		model.Message{Sender: model.SenderNexus, Content: "three", Kind: model.KindQuestion, Target: "Alice"},
	)

	transcript, err := svc.Transcript(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(transcript) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(transcript))
	}
	for i, want := range []string{"one", "two", "three"} {
		if transcript[i].Content != want {
			t.Fatalf("message %d out of order: %q", i, transcript[i].Content)
		}
		if transcript[i].ID == "" || transcript[i].CreatedAt.IsZero() {
			t.Fatalf("message %d missing id or timestamp", i)
		}
	}
}

func TestBeginNexusTurnAdvancesPhase(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "conn-a", "Alice")

	picks := 0
	pick := func() (string, string) {
		picks++
		return pickFixed()
	}

	svc.AppendMessage(ctx, sess.ID, model.Message{Sender: "Alice", Content: "hi", Kind: model.KindUser})
	turn, err := svc.BeginNexusTurn(ctx, sess.ID, pick)
	if err != nil {
		t.Fatalf("BeginNexusTurn err: %v", err)
	}
	if turn.Phase != model.PhaseIntro {
		t.Fatalf("first turn must be intro, got %s", turn.Phase)
	}
	if turn.Template != "system prompt" {
		t.Fatalf("unexpected template: %q", turn.Template)
	}
	if len(turn.Players) != 1 || turn.Players[0] != "Alice" {
		t.Fatalf("unexpected players: %v", turn.Players)
	}
	if len(turn.Messages) != 1 {
		t.Fatalf("expected transcript snapshot of 1, got %d", len(turn.Messages))
	}

	svc.AppendMessage(ctx, sess.ID, model.Message{Sender: "Alice", Content: "again", Kind: model.KindUser})
	turn, err = svc.BeginNexusTurn(ctx, sess.ID, pick)
	if err != nil {
		t.Fatalf("BeginNexusTurn err: %v", err)
	}
	if turn.Phase != model.PhaseQuestion {
		t.Fatalf("second turn must be question, got %s", turn.Phase)
	}

	if picks != 1 {
		t.Fatalf("template must be picked once per session, got %d picks", picks)
	}
}

func TestBeginNexusTurnStaysOnNexusMessage(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "conn-a", "Alice")
	svc.AppendMessage(ctx, sess.ID, model.Message{Sender: "Alice", Content: "hi", Kind: model.KindUser})
	svc.BeginNexusTurn(ctx, sess.ID, pickFixed)
	svc.AppendMessage(ctx, sess.ID, model.Message{Sender: model.SenderNexus, Content: "welcome", Kind: model.KindSystem})

	turn, err := svc.BeginNexusTurn(ctx, sess.ID, pickFixed)
	if err != nil {
		t.Fatalf("BeginNexusTurn err: %v", err)
	}
	if turn.Phase != model.PhaseIntro {
		t.Fatalf("phase must not advance after responder output, got %s", turn.Phase)
	}
}

func TestBeginNexusTurnActivatesSession(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "conn-a", "Alice")
	svc.AppendMessage(ctx, sess.ID, model.Message{Sender: "Alice", Content: "hi", Kind: model.KindUser})
	svc.BeginNexusTurn(ctx, sess.ID, pickFixed)

	summaries := svc.Snapshot(ctx)
	if len(summaries) != 1 {
		t.Fatalf("expected 1 session, got %d", len(summaries))
	}
	if summaries[0].State != model.StateActive {
		t.Fatalf("expected active state, got %s", summaries[0].State)
	}
	if summaries[0].PlayerCount != 1 {
		t.Fatalf("unexpected player count: %d", summaries[0].PlayerCount)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	svc := session.NewService()
	ctx := context.Background()

	first, _ := svc.Create(ctx, "conn-a", "Alice")
	second, _ := svc.Create(ctx, "conn-b", "Bob")

	if _, ok := svc.Leave(ctx, "conn-a"); !ok {
		t.Fatal("expected departure from first session")
	}

	if _, err := svc.Join(ctx, second.ID, "conn-c", "Cara"); err != nil {
		t.Fatalf("second session must be unaffected: %v", err)
	}
	if _, err := svc.Join(ctx, first.ID, "conn-d", "Dave"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("first session must be gone, got %v", err)
	}
}
