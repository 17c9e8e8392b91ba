// Package dashboard keeps the aggregate player snapshot fresh: fetch on
// start, on regained visibility (debounced), and on a fixed interval, with
// field-by-field change detection so subscribers only re-render when a
// tracked field actually changed.
package dashboard

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/quipflip/quipflip-go/internal/client/models"
	"github.com/quipflip/quipflip-go/internal/client/store"
	"github.com/quipflip/quipflip-go/internal/logging"
)

const (
	// DefaultInterval is the background re-sync cadence.
	DefaultInterval = 60 * time.Second
	// visibilityDebounce skips the visibility-triggered fetch when a
	// successful one happened this recently.
	visibilityDebounce = 5 * time.Second
)

// Fetcher is the slice of the REST client the poller uses.
type Fetcher interface {
	Dashboard(ctx context.Context) (*models.Dashboard, error)
}

// Poller owns the dashboard snapshot store and the refresh policy.
type Poller struct {
	fetch    Fetcher
	state    *store.Store[*models.Dashboard]
	log      logging.Logger
	interval time.Duration

	// roundSink receives the snapshot's current round on every successful
	// fetch; wired to the round tracker's ApplyDashboard.
	roundSink func(*models.ActiveRound)

	mu          sync.Mutex
	lastSuccess time.Time
	cancelPrev  context.CancelFunc
	now         func() time.Time
}

func NewPoller(fetch Fetcher, log logging.Logger) *Poller {
	return &Poller{
		fetch:    fetch,
		state:    store.New[*models.Dashboard](nil),
		log:      log.With("component", "dashboard"),
		interval: DefaultInterval,
		now:      time.Now,
	}
}

// State is the observable dashboard snapshot.
func (p *Poller) State() *store.Store[*models.Dashboard] {
	return p.state
}

// SetInterval overrides the background re-sync cadence. Call before Run.
func (p *Poller) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// SetRoundSink wires where the snapshot's current round is delivered.
func (p *Poller) SetRoundSink(fn func(*models.ActiveRound)) {
	p.roundSink = fn
}

// Refresh fetches immediately. Errors are returned so user-initiated
// refreshes (mount, manual) can be surfaced.
func (p *Poller) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.cancelPrev != nil {
		// A fresher fetch supersedes the in-flight one.
		p.cancelPrev()
	}
	p.cancelPrev = cancel
	p.mu.Unlock()

	d, err := p.fetch.Dashboard(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.lastSuccess = p.now()
	p.mu.Unlock()

	p.apply(d)
	return nil
}

// RequestRefresh is the fire-and-forget hook handed to the round tracker
// for post-expiry reconciliation. Failures are background failures.
func (p *Poller) RequestRefresh() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.Refresh(ctx); err != nil {
			p.log.Warn(ctx, "scheduled dashboard refresh failed", "error", err)
		}
	}()
}

// NotifyVisible handles the tab-regained-focus signal: refresh unless a
// successful fetch happened within the debounce window.
func (p *Poller) NotifyVisible(ctx context.Context) error {
	p.mu.Lock()
	recent := p.now().Sub(p.lastSuccess) < visibilityDebounce
	p.mu.Unlock()
	if recent {
		return nil
	}
	return p.Refresh(ctx)
}

// Run re-syncs on the fixed interval until ctx is canceled. Interval
// failures are logged, never surfaced, so one transient error doesn't
// flicker the UI.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Warn(ctx, "interval dashboard refresh failed", "error", err)
			}
		}
	}
}

func (p *Poller) apply(d *models.Dashboard) {
	if p.roundSink != nil {
		p.roundSink(d.CurrentRound)
	}
	if changed(p.state.Get(), d) {
		p.state.Set(d)
	}
}

// changed compares only the tracked fields; a difference anywhere else does
// not trigger an update.
func changed(old, new *models.Dashboard) bool {
	if old == nil || new == nil {
		return old != new
	}
	if old.Player.Balance != new.Player.Balance || old.Player.Username != new.Player.Username {
		return true
	}
	if roundIdentityChanged(old.CurrentRound, new.CurrentRound) {
		return true
	}
	if !slices.Equal(pendingIDs(old.PendingResults), pendingIDs(new.PendingResults)) {
		return true
	}
	if old.PhrasesetSummary != new.PhrasesetSummary {
		return true
	}
	if old.Availability != new.Availability {
		return true
	}
	return false
}

func roundIdentityChanged(a, b *models.ActiveRound) bool {
	if a == nil || b == nil {
		return a != b
	}
	return a.RoundID != b.RoundID || !a.ExpiresAt.Equal(b.ExpiresAt)
}

func pendingIDs(rs []models.PendingResult) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.PhrasesetID
	}
	return ids
}
