package round

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/quipflip/quipflip-go/internal/client/models"
	"github.com/quipflip/quipflip-go/internal/common"
)

// API is the slice of the REST client the round screens use.
type API interface {
	StartRound(ctx context.Context, typ models.RoundType) (*models.ActiveRound, error)
	SubmitPhrase(ctx context.Context, roundID, phrase string) (*models.SubmitResult, error)
	SubmitVote(ctx context.Context, phrasesetID, choice string) (*models.VoteResult, error)
	AbandonRound(ctx context.Context, roundID string) error
}

// screenBase carries what every round screen shares: the submission guard
// (no two submissions for the same round in flight) and the success-message
// flag that defers redirects so a confirmation isn't yanked away mid-read.
type screenBase struct {
	kind    models.RoundType
	api     API
	tracker *Tracker

	mu             sync.Mutex
	submitting     bool
	successShowing bool
}

func (b *screenBase) beginSubmit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitting {
		return false
	}
	b.submitting = true
	return true
}

func (b *screenBase) endSubmit() {
	b.mu.Lock()
	b.submitting = false
	b.mu.Unlock()
}

func (b *screenBase) showSuccess() {
	b.mu.Lock()
	b.successShowing = true
	b.mu.Unlock()
}

// SuccessShowing reports whether the post-submission confirmation is still
// on screen.
func (b *screenBase) SuccessShowing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.successShowing
}

// DismissSuccess clears the confirmation; the next ShouldRedirect call may
// then navigate away.
func (b *screenBase) DismissSuccess() {
	b.mu.Lock()
	b.successShowing = false
	b.mu.Unlock()
}

// ShouldRedirect reports whether the screen must navigate away given the
// current round: the round is gone, belongs to a different screen, or has
// reached a terminal state. While the success message is showing the
// redirect is deferred; that suppression is a deliberate contract, not a
// timing artifact.
func (b *screenBase) ShouldRedirect(cur *models.ActiveRound) bool {
	if b.SuccessShowing() {
		return false
	}
	if cur == nil || cur.Type != b.kind {
		return true
	}
	switch cur.Status {
	case models.StatusSubmitted, models.StatusAbandoned:
		return true
	}
	return false
}

// Abandon gives up the current round.
func (b *screenBase) Abandon(ctx context.Context) error {
	cur := b.tracker.Current()
	if cur == nil || cur.Type != b.kind {
		return fmt.Errorf("no %s round to abandon: %w", b.kind, common.ErrRoundNotFound)
	}
	if err := b.api.AbandonRound(ctx, cur.RoundID); err != nil {
		return err
	}
	b.tracker.MarkAbandoned(cur.RoundID)
	return nil
}

func (b *screenBase) activeRound() (*models.ActiveRound, error) {
	cur := b.tracker.Current()
	if cur == nil || cur.Type != b.kind {
		return nil, fmt.Errorf("no active %s round: %w", b.kind, common.ErrRoundNotFound)
	}
	if cur.Status != models.StatusActive && cur.Status != models.StatusExpired {
		return nil, fmt.Errorf("%s round already %s: %w", b.kind, cur.Status, common.ErrConflict)
	}
	return cur, nil
}

// ---- prompt ----

type PromptScreen struct {
	screenBase
}

func NewPromptScreen(api API, tracker *Tracker) *PromptScreen {
	return &PromptScreen{screenBase{kind: models.RoundPrompt, api: api, tracker: tracker}}
}

// Submit sends the player's phrase for the prompt. Validation failures are
// returned before any network call.
func (p *PromptScreen) Submit(ctx context.Context, phrase string) error {
	if err := ValidatePhrase(phrase); err != nil {
		return err
	}
	if !p.beginSubmit() {
		return fmt.Errorf("submission already in flight: %w", common.ErrConflict)
	}
	defer p.endSubmit()

	cur, err := p.activeRound()
	if err != nil {
		return err
	}
	if _, err := p.api.SubmitPhrase(ctx, cur.RoundID, phrase); err != nil {
		return err
	}

	p.tracker.MarkSubmitted(cur.RoundID)
	p.showSuccess()
	return nil
}

// ---- copy ----

// SecondChance is the transient offer of a second copy attempt against the
// same original. It lives only on the screen, never in ActiveRound, and
// does not survive a reload.
type SecondChance struct {
	Cost int
}

type CopyScreen struct {
	screenBase

	scMu   sync.Mutex
	second *SecondChance
}

func NewCopyScreen(api API, tracker *Tracker) *CopyScreen {
	return &CopyScreen{screenBase: screenBase{kind: models.RoundCopy, api: api, tracker: tracker}}
}

// Submit sends the decoy phrase. When the response offers a second copy
// attempt, the offer is held as transient state and the screen must not
// auto-navigate until the player accepts or declines.
func (c *CopyScreen) Submit(ctx context.Context, phrase string) error {
	if err := ValidatePhrase(phrase); err != nil {
		return err
	}
	if !c.beginSubmit() {
		return fmt.Errorf("submission already in flight: %w", common.ErrConflict)
	}
	defer c.endSubmit()

	cur, err := c.activeRound()
	if err != nil {
		return err
	}
	res, err := c.api.SubmitPhrase(ctx, cur.RoundID, phrase)
	if err != nil {
		return err
	}

	c.tracker.MarkSubmitted(cur.RoundID)
	c.showSuccess()

	if res.EligibleForSecondCopy {
		c.scMu.Lock()
		c.second = &SecondChance{Cost: res.SecondCopyCost}
		c.scMu.Unlock()
	}
	return nil
}

// SecondChanceOffer returns the pending offer, or nil.
func (c *CopyScreen) SecondChanceOffer() *SecondChance {
	c.scMu.Lock()
	defer c.scMu.Unlock()
	return c.second
}

// AcceptSecondChance pays for and starts another copy round against the
// same original.
func (c *CopyScreen) AcceptSecondChance(ctx context.Context) error {
	c.scMu.Lock()
	offer := c.second
	c.scMu.Unlock()
	if offer == nil {
		return fmt.Errorf("no second chance offered: %w", common.ErrConflict)
	}

	r, err := c.api.StartRound(ctx, models.RoundCopy)
	if err != nil {
		return err
	}

	c.scMu.Lock()
	c.second = nil
	c.scMu.Unlock()
	c.DismissSuccess()
	c.tracker.SetActive(r)
	return nil
}

// DeclineSecondChance drops the offer and finalizes the redirect.
func (c *CopyScreen) DeclineSecondChance() {
	c.scMu.Lock()
	c.second = nil
	c.scMu.Unlock()
	c.DismissSuccess()
}

// ---- vote ----

type VoteScreen struct {
	screenBase
}

func NewVoteScreen(api API, tracker *Tracker) *VoteScreen {
	return &VoteScreen{screenBase{kind: models.RoundVote, api: api, tracker: tracker}}
}

// Submit casts the vote for the phrase the player believes is the original
// and returns correctness plus payout.
func (v *VoteScreen) Submit(ctx context.Context, choice string) (*models.VoteResult, error) {
	if !v.beginSubmit() {
		return nil, fmt.Errorf("submission already in flight: %w", common.ErrConflict)
	}
	defer v.endSubmit()

	cur, err := v.activeRound()
	if err != nil {
		return nil, err
	}
	if cur.Vote == nil {
		return nil, fmt.Errorf("vote round missing payload: %w", common.ErrConflict)
	}
	if !slices.Contains(cur.Vote.Choices, choice) {
		return nil, fmt.Errorf("choice is not one of the candidates: %w", common.ErrValidation)
	}

	res, err := v.api.SubmitVote(ctx, cur.Vote.PhrasesetID, choice)
	if err != nil {
		return nil, err
	}

	v.tracker.MarkSubmitted(cur.RoundID)
	v.showSuccess()
	return res, nil
}
