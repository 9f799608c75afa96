package ai

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	model "github.com/mkovach/nexus/backend/internal/model/session"
	sessionService "github.com/mkovach/nexus/backend/internal/service/session"
)

// Fallback produces the scripted Nexus turns used when no model is
// configured or a generation attempt fails. The randomness source is
// injected so tests can pin outputs with a fixed seed.
type Fallback struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallback seeds the scripted responder.
func NewFallback(seed int64) *Fallback {
	return &Fallback{rng: rand.New(rand.NewSource(seed))}
}

func (f *Fallback) intn(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rng.Intn(n)
}

// Respond returns the canned Nexus turn for the session's current phase.
func (f *Fallback) Respond(turn sessionService.Turn) string {
	players := turn.Players
	if len(players) == 0 {
		return "[QUESTION:all] What are your thoughts on our discussion so far?"
	}

	switch turn.Phase {
	case model.PhaseIntro:
		return strings.Join([]string{
			"[SYSTEM] Welcome to the Nexus! I'll be your guide through this experience.",
			fmt.Sprintf("[QUESTION:%s] %s, what brings you to the Nexus today?", players[0], players[0]),
		}, "\n")

	case model.PhaseQuestion:
		player := players[f.intn(len(players))]
		return fmt.Sprintf("[QUESTION:%s] Interesting perspective, %s. If you could connect to any knowledge source, what would it be?", player, player)

	case model.PhaseResponse:
		return strings.Join([]string{
			"[SYSTEM] I sense your curiosity. The Nexus is analyzing your inputs.",
			"[QUESTION:all] All of you, what pattern do you see forming in our conversation?",
		}, "\n")

	case model.PhaseChallenge:
		pieces := []string{"beginning", "middle", "end"}
		lines := []string{"[CHALLENGE] Now, I have a task for all of you. Each of you has a piece of the puzzle."}
		for i, player := range players {
			if i >= len(pieces) {
				break
			}
			lines = append(lines, fmt.Sprintf("[FOR:%s] Your piece is %q.", player, pieces[i]))
		}
		lines = append(lines, "[QUESTION:all] How do these pieces fit together?")
		return strings.Join(lines, "\n")

	case model.PhaseConclusion:
		return strings.Join([]string{
			"[SYSTEM] Excellent work! You've demonstrated how multiple perspectives can create a unified understanding.",
			"[QUESTION:all] Would you like to continue our exploration or try a different challenge?",
		}, "\n")

	default:
		return "[QUESTION:all] What are your thoughts on our discussion so far?"
	}
}
