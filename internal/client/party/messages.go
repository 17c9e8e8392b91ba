package party

import (
	"encoding/json"
	"fmt"

	"github.com/quipflip/quipflip-go/internal/client/models"
)

// Message types pushed over the party socket.
const (
	msgPlayerProgress  = "player_progress"
	msgPhaseTransition = "phase_transition"
	msgSessionUpdate   = "session_update"
)

// Envelope is the tagged wire message. Data is decoded per Type and
// validated at the boundary; a payload missing its required shape is
// rejected wholesale rather than applied as a partial guess.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type playerProgressPayload struct {
	Progress *models.PartyProgress   `json:"progress"`
	Session  *models.SessionProgress `json:"session_progress"`
}

func (p playerProgressPayload) validate() error {
	if p.Progress == nil {
		return fmt.Errorf("player_progress without progress object")
	}
	if p.Session == nil {
		return fmt.Errorf("player_progress without session_progress object")
	}
	return nil
}

type phaseTransitionPayload struct {
	Step models.PartyStep `json:"step"`
}

func (p phaseTransitionPayload) validate() error {
	if models.StepIndex(p.Step) < 0 {
		return fmt.Errorf("phase_transition with unknown step %q", p.Step)
	}
	return nil
}

type sessionUpdatePayload struct {
	Participants []string                `json:"participants"`
	Progress     *models.SessionProgress `json:"progress"`
}

func (p sessionUpdatePayload) validate() error {
	if p.Participants == nil {
		return fmt.Errorf("session_update without participants array")
	}
	if p.Progress == nil {
		return fmt.Errorf("session_update without progress object")
	}
	return nil
}
