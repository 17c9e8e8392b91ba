package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/quipflip/quipflip-go/internal/client/api"
)

// Results prints newly finished phrasesets and unclaimed payouts.
func (a *App) Results(ctx context.Context) error {
	d := a.poller.State().Get()
	if d != nil {
		fresh := a.results.FilterNew(ctx, d.PendingResults)
		if len(fresh) > 0 {
			printlnFn("New results:")
			for _, r := range fresh {
				printlnFn("  -", r.PromptText, "("+r.PhrasesetID+")")
			}
		}
	}

	unclaimed, err := a.results.Unclaimed(ctx)
	if err != nil {
		printlnFn("Could not fetch unclaimed results:", api.Humanize(err.Error()))
		return err
	}
	if len(unclaimed) == 0 {
		printlnFn("Nothing to claim")
		return nil
	}

	printlnFn("Unclaimed payouts:")
	for _, r := range unclaimed {
		printlnFn(fmt.Sprintf("  - %s (%s): %d points", r.PromptText, r.PhrasesetID, r.Payout))
	}
	printlnFn("Use 'claim <phraseset-id>' to collect")
	return nil
}

// Claim collects the payout for a finalized phraseset and refreshes the
// dashboard so the balance updates.
func (a *App) Claim(ctx context.Context, phrasesetID string) error {
	payout, err := a.results.Claim(ctx, phrasesetID)
	if err != nil {
		printlnFn("Could not claim:", api.Humanize(err.Error()))
		return err
	}
	printlnFn(fmt.Sprintf("Claimed %d points", payout))
	a.poller.RequestRefresh()
	return nil
}

// Presence prints who is online right now. The realtime channel keeps an
// observable copy too; this command always asks the server for a fresh
// list.
func (a *App) Presence(ctx context.Context) error {
	online, err := a.api.Presence(ctx)
	if err != nil {
		printlnFn("Could not fetch presence:", api.Humanize(err.Error()))
		return err
	}
	if len(online) == 0 {
		printlnFn("Nobody online")
		return nil
	}
	printlnFn("Online:", strings.Join(online, ", "))
	return nil
}
