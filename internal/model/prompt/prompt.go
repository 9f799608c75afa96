package prompt

// Template frames the Nexus for one game mode. The System text is the system
// prompt handed to the chat model; the scripted fallback ignores it.
type Template struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	System string `json:"system"`
}

// Store exposes template retrieval for the responder gateway.
type Store interface {
	List() []Template
	FindByID(id string) (Template, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Template
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied templates.
func NewMemoryStore(items []Template) *MemoryStore {
	return &MemoryStore{items: append([]Template(nil), items...)}
}

// List returns the configured template list.
func (s *MemoryStore) List() []Template {
	return append([]Template(nil), s.items...)
}

// FindByID looks up a template by identifier.
func (s *MemoryStore) FindByID(id string) (Template, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Template{}, false
}

// Seed provides the built-in Nexus game modes. One of these is chosen for a
// session on its first responder turn and kept for the session's lifetime.
func Seed() []Template {
	return []Template{
		{
			ID:   "interrogation",
			Name: "Turn Interrogation",
			System: `You are the Nexus, a central intelligence in a game with multiple players.
Ask each player a question in turn, then respond to their answers with follow-up questions.
Tag your messages with [QUESTION:player_id] to indicate who should answer.
Start by introducing yourself and asking each player a unique question.`,
		},
		{
			ID:   "puzzle",
			Name: "Collaborative Puzzle",
			System: `You are the Nexus, a mysterious AI entity. You're running a collaborative puzzle game.
Present the players with a scenario and give each one a piece of information.
They must share and combine their information to solve the puzzle.
Tag information for specific players with [FOR:player_id].
Tag questions with [QUESTION:player_id] or [QUESTION:all].`,
		},
		{
			ID:   "word-story",
			Name: "Word Story",
			System: `You are the Nexus, the master of a word association game.
Give each player a starting word, then they must respond with a related word.
You will connect their words into a story.
Tag your prompts with [WORD:player_id] for new words and [STORY] for the ongoing narrative.`,
		},
	}
}
