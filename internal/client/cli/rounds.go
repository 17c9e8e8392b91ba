package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/quipflip/quipflip-go/internal/client/api"
	"github.com/quipflip/quipflip-go/internal/client/models"
	"github.com/quipflip/quipflip-go/internal/client/round"
)

// Dashboard fetches and prints the aggregate player snapshot.
func (a *App) Dashboard(ctx context.Context) error {
	if err := a.poller.Refresh(ctx); err != nil {
		printlnFn("Could not refresh dashboard:", api.Humanize(err.Error()))
		return err
	}

	d := a.poller.State().Get()
	if d == nil {
		printlnFn("No dashboard data yet")
		return nil
	}

	printlnFn(fmt.Sprintf("%s: %d points", d.Player.Username, d.Player.Balance))
	printlnFn(fmt.Sprintf("Phrasesets: %d in voting, %d finalized", d.PhrasesetSummary.InVoting, d.PhrasesetSummary.Finalized))

	var avail []string
	if d.Availability.Prompt {
		avail = append(avail, "prompt")
	}
	if d.Availability.Copy {
		avail = append(avail, "copy")
	}
	if d.Availability.Vote {
		avail = append(avail, "vote")
	}
	if len(avail) > 0 {
		printlnFn("Rounds available:", strings.Join(avail, ", "))
	} else {
		printlnFn("No rounds available right now")
	}

	if cur := a.tracker.Current(); cur != nil && cur.Status == models.StatusActive {
		printlnFn(fmt.Sprintf("Active %s round, %ds left", cur.Type, a.timer.Remaining()))
	}

	if fresh := a.results.FilterNew(ctx, d.PendingResults); len(fresh) > 0 {
		printlnFn(fmt.Sprintf("%d new result(s) ready, type 'results' to view", len(fresh)))
	}
	if len(d.UnclaimedResults) > 0 {
		printlnFn(fmt.Sprintf("%d unclaimed payout(s), type 'results' to view", len(d.UnclaimedResults)))
	}
	return nil
}

// Play starts a round of the given type and walks the interactive
// submission flow for it.
func (a *App) Play(ctx context.Context, typ string) error {
	var rt models.RoundType
	switch typ {
	case "prompt":
		rt = models.RoundPrompt
	case "copy":
		rt = models.RoundCopy
	case "vote":
		rt = models.RoundVote
	default:
		printlnFn("Unknown round type:", typ)
		return nil
	}

	r, err := a.api.StartRound(ctx, rt)
	if err != nil {
		printlnFn("Could not start round:", api.Humanize(err.Error()))
		return err
	}
	a.tracker.SetActive(r)

	switch rt {
	case models.RoundPrompt:
		return a.playPrompt(ctx, r)
	case models.RoundCopy:
		return a.playCopy(ctx, r)
	default:
		return a.playVote(ctx, r)
	}
}

func (a *App) playPrompt(ctx context.Context, r *models.ActiveRound) error {
	screen := round.NewPromptScreen(a.roundAPI, a.tracker)

	if r.Prompt != nil {
		printlnFn("Prompt:", r.Prompt.PromptText)
	}
	printlnFn(fmt.Sprintf("You have %ds. Empty line abandons the round.", a.timer.Remaining()))

	phrase, err := a.readPhrase(ctx, screen.Submit)
	if err != nil {
		return err
	}
	if phrase == "" {
		return a.abandonWith(ctx, screen.Abandon)
	}

	printlnFn("Phrase submitted!")
	screen.DismissSuccess()
	a.afterSubmission(models.StepPrompt)
	return nil
}

func (a *App) playCopy(ctx context.Context, r *models.ActiveRound) error {
	screen := round.NewCopyScreen(a.roundAPI, a.tracker)

	if r.Copy != nil {
		printlnFn("Original phrase:", r.Copy.OriginalPhrase)
		if r.Copy.DiscountActive {
			printlnFn("(discounted entry)")
		}
	}
	printlnFn(fmt.Sprintf("Write a convincing decoy. You have %ds. Empty line abandons the round.", a.timer.Remaining()))

	phrase, err := a.readPhrase(ctx, screen.Submit)
	if err != nil {
		return err
	}
	if phrase == "" {
		return a.abandonWith(ctx, screen.Abandon)
	}

	printlnFn("Decoy submitted!")
	a.afterSubmission(models.StepCopy)

	if offer := screen.SecondChanceOffer(); offer != nil {
		ans, err := getSimpleText(a.reader, fmt.Sprintf("Second copy attempt for %d points? (y/n)", offer.Cost), os.Stdout)
		if err != nil {
			return err
		}
		if strings.EqualFold(ans, "y") || strings.EqualFold(ans, "yes") {
			if err := screen.AcceptSecondChance(ctx); err != nil {
				printlnFn("Could not start second attempt:", api.Humanize(err.Error()))
				screen.DeclineSecondChance()
				return err
			}
			return a.playCopy(ctx, a.tracker.Current())
		}
		screen.DeclineSecondChance()
		return nil
	}

	screen.DismissSuccess()
	return nil
}

func (a *App) playVote(ctx context.Context, r *models.ActiveRound) error {
	screen := round.NewVoteScreen(a.roundAPI, a.tracker)

	if r.Vote == nil {
		printlnFn("Vote round has no candidates yet, try again shortly")
		return nil
	}

	printlnFn("Prompt:", r.Vote.PromptText)
	printlnFn("Which phrase is the original?")
	for i, c := range r.Vote.Choices {
		printlnFn(fmt.Sprintf("  %d. %s", i+1, c))
	}

	ans, err := getSimpleText(a.reader, fmt.Sprintf("Enter a number (1-%d), empty line abandons", len(r.Vote.Choices)), os.Stdout)
	if err != nil {
		return err
	}
	if ans == "" {
		return a.abandonWith(ctx, screen.Abandon)
	}

	n, err := strconv.Atoi(ans)
	if err != nil || n < 1 || n > len(r.Vote.Choices) {
		printlnFn("Not a valid choice")
		return nil
	}

	res, err := screen.Submit(ctx, r.Vote.Choices[n-1])
	if err != nil {
		printlnFn("Vote failed:", api.Humanize(err.Error()))
		return err
	}

	if res.Correct {
		printlnFn(fmt.Sprintf("Correct! You earned %d points", res.Payout))
	} else {
		printlnFn("Wrong guess, no payout this time")
	}
	screen.DismissSuccess()
	a.afterSubmission(models.StepVote)
	return nil
}

// readPhrase loops until the submission succeeds, the user gives up with an
// empty line, or input fails. Validation errors re-prompt instead of
// aborting.
func (a *App) readPhrase(ctx context.Context, submit func(context.Context, string) error) (string, error) {
	for {
		phrase, err := getSimpleText(a.reader, "Your phrase", os.Stdout)
		if err != nil {
			return "", err
		}
		if phrase == "" {
			return "", nil
		}
		if err := submit(ctx, phrase); err != nil {
			printlnFn(api.Humanize(err.Error()))
			continue
		}
		return phrase, nil
	}
}

func (a *App) abandonWith(ctx context.Context, abandon func(context.Context) error) error {
	if err := abandon(ctx); err != nil {
		printlnFn("Could not abandon round:", api.Humanize(err.Error()))
		return err
	}
	printlnFn("Round abandoned")
	return nil
}

// afterSubmission bumps local party progress when a party session is
// running; solo play is a no-op.
func (a *App) afterSubmission(step models.PartyStep) {
	a.mu.Lock()
	inParty := a.partyID != ""
	a.mu.Unlock()
	if inParty {
		a.party.RecordLocalSubmission(step)
	}
}
