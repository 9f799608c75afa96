package session

// Phase is one step in the fixed Nexus conversational cycle. It selects the
// framing of the responder's next turn.
type Phase string

const (
	PhaseIntro      Phase = "intro"
	PhaseQuestion   Phase = "question"
	PhaseResponse   Phase = "response"
	PhaseChallenge  Phase = "challenge"
	PhaseConclusion Phase = "conclusion"
)

var phaseCycle = []Phase{
	PhaseIntro,
	PhaseQuestion,
	PhaseResponse,
	PhaseChallenge,
	PhaseConclusion,
}

// NextPhase advances the cycle by exactly one step when the most recently
// appended transcript message was authored by a player; Nexus-authored
// entries never advance it. A phase outside the cycle (notably the zero
// Phase of a fresh NexusContext) advances to intro, so every session enters
// the cycle on its first player turn.
func NextPhase(current Phase, lastFromPlayer bool) Phase {
	if !lastFromPlayer {
		return current
	}
	idx := -1
	for i, p := range phaseCycle {
		if p == current {
			idx = i
			break
		}
	}
	return phaseCycle[(idx+1)%len(phaseCycle)]
}
