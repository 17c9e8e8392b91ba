package models

// PartyStep is one of the three ordered phases of a party session.
type PartyStep string

const (
	StepPrompt PartyStep = "prompt"
	StepCopy   PartyStep = "copy"
	StepVote   PartyStep = "vote"
)

// StepIndex returns the position of s in the prompt→copy→vote order,
// or -1 for an unknown step. Used to enforce monotonic phase advancement.
func StepIndex(s PartyStep) int {
	switch s {
	case StepPrompt:
		return 0
	case StepCopy:
		return 1
	case StepVote:
		return 2
	default:
		return -1
	}
}

// PartyConfig is the per-session configuration negotiated at session start.
type PartyConfig struct {
	MinPlayers       int `json:"min_players"`
	MaxPlayers       int `json:"max_players"`
	PromptsPerPlayer int `json:"prompts_per_player"`
	CopiesPerPlayer  int `json:"copies_per_player"`
	VotesPerPlayer   int `json:"votes_per_player"`
}

// PartyProgress counts this player's submissions in the current phase.
type PartyProgress struct {
	PromptsSubmitted int `json:"prompts_submitted"`
	CopiesSubmitted  int `json:"copies_submitted"`
	VotesSubmitted   int `json:"votes_submitted"`
}

// SessionProgress counts how many participants are ready for the next phase.
type SessionProgress struct {
	Ready int `json:"ready"`
	Total int `json:"total"`
}

// PartySession is the client's view of a multiplayer session. CurrentStep
// only moves forward; it advances on server word, never on local submission
// success.
type PartySession struct {
	SessionID    string          `json:"session_id"`
	CurrentStep  PartyStep       `json:"current_step"`
	Config       PartyConfig     `json:"session_config"`
	Yours        PartyProgress   `json:"your_progress"`
	Progress     SessionProgress `json:"session_progress"`
	Participants []string        `json:"participants"`
}
