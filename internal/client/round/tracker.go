// Package round tracks the player's current round: the server-authoritative
// round snapshot, the optimistic local countdown, and the per-screen
// submission flows. The local countdown and the server round status are two
// cooperating machines: the countdown only ever raises a local expired
// flag and asks for a dashboard refresh; resolution stays server-owned.
package round

import (
	"context"
	"sync"
	"time"

	"github.com/quipflip/quipflip-go/internal/client/models"
	"github.com/quipflip/quipflip-go/internal/client/store"
	"github.com/quipflip/quipflip-go/internal/logging"
)

// expiredRefreshDelay is how long after a local expiry the tracker waits
// before asking for a dashboard refresh, giving the server time to resolve
// the round (including any grace period).
const expiredRefreshDelay = 1500 * time.Millisecond

// Tracker is the single source of truth for "what round is the player in".
// The held *ActiveRound is replaced wholesale on every change; nothing
// patches fields in place.
type Tracker struct {
	store          *store.Store[*models.ActiveRound]
	log            logging.Logger
	requestRefresh func()

	mu      sync.Mutex
	pending *time.Timer
}

// NewTracker builds a tracker. requestRefresh is invoked (possibly from a
// timer goroutine) whenever the tracker wants the dashboard re-synced; the
// poller supplies it during wiring.
func NewTracker(log logging.Logger, requestRefresh func()) *Tracker {
	if requestRefresh == nil {
		requestRefresh = func() {}
	}
	return &Tracker{
		store:          store.New[*models.ActiveRound](nil),
		log:            log.With("component", "round"),
		requestRefresh: requestRefresh,
	}
}

// Current returns the current round, or nil when the player is not in one.
func (t *Tracker) Current() *models.ActiveRound {
	return t.store.Get()
}

// Subscribe registers fn for round replacements.
func (t *Tracker) Subscribe(fn func(*models.ActiveRound)) (unsubscribe func()) {
	return t.store.Subscribe(fn)
}

// SetActive installs a freshly started round.
func (t *Tracker) SetActive(r *models.ActiveRound) {
	if r == nil {
		return
	}
	copied := *r
	copied.Status = models.StatusActive
	t.store.Set(&copied)
}

// MarkSubmitted records a successful submission for the given round. A
// mismatched id means the store has already moved on; the event is dropped.
func (t *Tracker) MarkSubmitted(roundID string) {
	t.transition(roundID, models.StatusSubmitted)
}

// MarkAbandoned records a successful abandon call.
func (t *Tracker) MarkAbandoned(roundID string) {
	t.transition(roundID, models.StatusAbandoned)
}

// MarkExpiredLocally flags the round as expired from the local countdown's
// point of view and schedules a delayed dashboard refresh. The server may
// still accept a submission inside its grace period; this is a UI signal,
// not a resolution.
func (t *Tracker) MarkExpiredLocally(roundID string) {
	t.transition(roundID, models.StatusExpired)

	t.mu.Lock()
	if t.pending != nil {
		t.pending.Stop()
	}
	t.pending = time.AfterFunc(expiredRefreshDelay, t.requestRefresh)
	t.mu.Unlock()

	t.log.Debug(context.Background(), "round expired locally", "round_id", roundID)
}

// ApplyDashboard reconciles against a dashboard snapshot: the server's view
// replaces the local one wholesale. A nil round clears any terminal (or
// active) local state; the server has resolved it.
func (t *Tracker) ApplyDashboard(r *models.ActiveRound) {
	if r == nil {
		if t.store.Get() != nil {
			t.store.Set(nil)
		}
		return
	}
	copied := *r
	if copied.Status == "" {
		copied.Status = models.StatusActive
	}
	if cur := t.store.Get(); cur != nil &&
		cur.RoundID == copied.RoundID &&
		cur.ExpiresAt.Equal(copied.ExpiresAt) &&
		cur.Status == copied.Status {
		return
	}
	t.store.Set(&copied)
}

// Close cancels any scheduled refresh.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Tracker) transition(roundID string, status models.RoundStatus) {
	cur := t.store.Get()
	if cur == nil || cur.RoundID != roundID {
		return
	}
	copied := *cur
	copied.Status = status
	t.store.Set(&copied)
}
