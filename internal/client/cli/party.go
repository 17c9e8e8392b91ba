package cli

import (
	"context"
	"fmt"

	"github.com/quipflip/quipflip-go/internal/client/api"
	"github.com/quipflip/quipflip-go/internal/client/models"
)

// Party joins a party session: the coordinator keeps the phase state in
// sync over WebSocket (with REST fallback) in the background, and phase
// changes are announced on the console as they land.
func (a *App) Party(ctx context.Context, sessionID string) error {
	var last models.PartyStep
	unsub := a.party.State().Subscribe(func(s *models.PartySession) {
		if s == nil || s.CurrentStep == last {
			return
		}
		last = s.CurrentStep
		printlnFn(fmt.Sprintf("\nParty phase: %s (%d/%d ready)", s.CurrentStep, s.Progress.Ready, s.Progress.Total))
	})
	a.startParty(ctx, sessionID, unsub)

	printlnFn("Joined party session", sessionID)
	printlnFn("Play rounds as usual; 'leave' exits the session")
	return nil
}

// LeaveParty leaves the current party session. A server-side "already
// started" conflict still counts as having left.
func (a *App) LeaveParty(ctx context.Context) error {
	id := a.stopParty()
	if id == "" {
		printlnFn("Not in a party session")
		return nil
	}
	if err := a.party.Leave(ctx, id); err != nil {
		printlnFn("Could not leave party:", api.Humanize(err.Error()))
		return err
	}
	printlnFn("Left party session", id)
	return nil
}
