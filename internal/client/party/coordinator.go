// Package party layers the shared multi-player phase machine on top of the
// single-player round flow. The phase only ever advances on the server's
// word (a WebSocket push or a REST status fetch), never on local
// submission success, so every participant stays in step. WebSocket pushes
// are the optimistic path; the REST status endpoint is the ground truth and
// the fallback whenever a push is malformed or the connection is down.
package party

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/quipflip/quipflip-go/internal/client/localstate"
	"github.com/quipflip/quipflip-go/internal/client/models"
	"github.com/quipflip/quipflip-go/internal/client/store"
	"github.com/quipflip/quipflip-go/internal/common"
	"github.com/quipflip/quipflip-go/internal/logging"
)

// API is the slice of the REST client the coordinator uses.
type API interface {
	PartyStatus(ctx context.Context, sessionID string) (*models.PartySession, error)
	PartyLeave(ctx context.Context, sessionID string) error
	WSToken(ctx context.Context) (string, error)
	PartyWSURL(sessionID, token string) string
}

// Conn is the subset of *websocket.Conn the read loop needs.
type Conn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

// DialFunc opens the party socket. The default uses gorilla's dialer.
type DialFunc func(ctx context.Context, url string) (Conn, error)

func gorillaDial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	return conn, err
}

// Coordinator tracks one party session.
type Coordinator struct {
	api  API
	dial DialFunc
	repo localstate.Repository
	log  logging.Logger

	state *store.Store[*models.PartySession]

	// Tuning knobs, overridable in tests.
	backoffBase       time.Duration
	backoffCap        time.Duration
	rateLimitCooldown time.Duration
	pollInterval      time.Duration

	mu sync.Mutex
}

func NewCoordinator(api API, repo localstate.Repository, log logging.Logger) *Coordinator {
	return &Coordinator{
		api:               api,
		dial:              gorillaDial,
		repo:              repo,
		log:               log.With("component", "party"),
		state:             store.New[*models.PartySession](nil),
		backoffBase:       time.Second,
		backoffCap:        30 * time.Second,
		rateLimitCooldown: 60 * time.Second,
		pollInterval:      10 * time.Second,
	}
}

// State is the observable party session; nil when not in a session.
func (c *Coordinator) State() *store.Store[*models.PartySession] {
	return c.state
}

// ResumeSessionID returns the persisted session id from a previous run, so
// a reload can rejoin mid-session.
func (c *Coordinator) ResumeSessionID(ctx context.Context) (string, error) {
	id, err := c.repo.Get(ctx, localstate.KeyPartySession)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// Run drives the session until ctx is canceled: REST status first (ground
// truth), then the socket with reconnect backoff, polling the status
// endpoint while disconnected so the session still advances.
func (c *Coordinator) Run(ctx context.Context, sessionID string) error {
	if err := c.refetch(ctx, sessionID); err != nil {
		return err
	}

	backoff := c.newBackoff()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := c.connect(ctx, sessionID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := c.nextDelay(backoff, err)
			c.log.Warn(ctx, "party socket unavailable, polling", "error", err, "retry_in", delay)
			if err := c.pollUntil(ctx, sessionID, delay); err != nil {
				return err
			}
			continue
		}

		// Connected: socket payloads may have raced the dial, so re-ground.
		backoff = c.newBackoff()
		if err := c.refetch(ctx, sessionID); err != nil {
			c.log.Warn(ctx, "party status refetch failed", "error", err)
		}

		c.readLoop(ctx, conn, sessionID)
		_ = conn.Close()
	}
}

// RecordLocalSubmission bumps this player's progress counters after a
// successful round submission. It never advances CurrentStep; that call is
// the server's alone.
func (c *Coordinator) RecordLocalSubmission(step models.PartyStep) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.state.Get()
	if cur == nil {
		return
	}
	next := *cur
	switch step {
	case models.StepPrompt:
		next.Yours.PromptsSubmitted++
	case models.StepCopy:
		next.Yours.CopiesSubmitted++
	case models.StepVote:
		next.Yours.VotesSubmitted++
	default:
		return
	}
	c.state.Set(&next)
}

// Leave tells the server we are out and clears local session state. Once a
// session has started a player can only disconnect, so "session already
// started" comes back as a conflict and is not an error.
func (c *Coordinator) Leave(ctx context.Context, sessionID string) error {
	err := c.api.PartyLeave(ctx, sessionID)
	if err != nil && !errors.Is(err, common.ErrConflict) {
		return err
	}
	c.clearLocal(ctx)
	return nil
}

// End clears local session state after the server reports the session over.
func (c *Coordinator) End(ctx context.Context) {
	c.clearLocal(ctx)
}

// ---- internals ----

func (c *Coordinator) connect(ctx context.Context, sessionID string) (Conn, error) {
	token, err := c.api.WSToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.dial(ctx, c.api.PartyWSURL(sessionID, token))
}

func (c *Coordinator) readLoop(ctx context.Context, conn Conn, sessionID string) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn(ctx, "party socket read failed", "error", err)
			}
			return
		}
		if err := c.applyMessage(data); err != nil {
			// Partial or malformed push: never guess, re-ground instead.
			c.log.Warn(ctx, "discarding malformed party payload", "error", err)
			if err := c.refetch(ctx, sessionID); err != nil {
				c.log.Warn(ctx, "party status refetch failed", "error", err)
			}
		}
	}
}

// applyMessage validates and applies one pushed payload. An error means
// nothing was mutated and the caller must refetch.
func (c *Coordinator) applyMessage(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.state.Get()
	if cur == nil {
		return nil
	}

	switch env.Type {
	case msgPlayerProgress:
		var p playerProgressPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		next := *cur
		next.Yours = *p.Progress
		next.Progress = *p.Session
		c.state.Set(&next)

	case msgPhaseTransition:
		var p phaseTransitionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		// Monotonic: a regression push is stale, drop it.
		if models.StepIndex(p.Step) <= models.StepIndex(cur.CurrentStep) {
			return nil
		}
		next := *cur
		next.CurrentStep = p.Step
		c.state.Set(&next)
		c.persistLocked(next.SessionID, next.CurrentStep)

	case msgSessionUpdate:
		var p sessionUpdatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		next := *cur
		next.Participants = p.Participants
		next.Progress = *p.Progress
		c.state.Set(&next)

	default:
		// Unknown types are forward-compatibility, not errors.
	}
	return nil
}

// refetch replaces local belief with the server's status. Steps still never
// regress: a stale status response cannot pull participants backwards.
func (c *Coordinator) refetch(ctx context.Context, sessionID string) error {
	s, err := c.api.PartyStatus(ctx, sessionID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.state.Get()
	if cur != nil && cur.SessionID == s.SessionID &&
		models.StepIndex(s.CurrentStep) < models.StepIndex(cur.CurrentStep) {
		c.log.Warn(ctx, "ignoring regressed party step from status",
			"got", s.CurrentStep, "have", cur.CurrentStep)
		kept := *s
		kept.CurrentStep = cur.CurrentStep
		s = &kept
	}
	c.state.Set(s)
	c.persistLocked(s.SessionID, s.CurrentStep)
	return nil
}

// pollUntil polls the status endpoint as the degraded path while the
// socket is down, for at least the given reconnect delay.
func (c *Coordinator) pollUntil(ctx context.Context, sessionID string, delay time.Duration) error {
	deadline := time.After(delay)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return nil
		case <-ticker.C:
			if err := c.refetch(ctx, sessionID); err != nil {
				c.log.Warn(ctx, "party status poll failed", "error", err)
			}
		}
	}
}

func (c *Coordinator) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(c.backoffCap, retry.NewExponential(c.backoffBase))
}

// nextDelay picks the reconnect delay: rate limiting gets the fixed
// cooldown instead of the exponential schedule.
func (c *Coordinator) nextDelay(backoff retry.Backoff, err error) time.Duration {
	if errors.Is(err, common.ErrRateLimited) {
		return c.rateLimitCooldown
	}
	d, _ := backoff.Next()
	return d
}

func (c *Coordinator) persistLocked(sessionID string, step models.PartyStep) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.repo.SetMany(ctx, map[string][]byte{
		localstate.KeyPartySession: []byte(sessionID),
		localstate.KeyPartyStep:    []byte(step),
	})
	if err != nil {
		c.log.Warn(ctx, "failed to persist party session", "error", err)
	}
}

func (c *Coordinator) clearLocal(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Set(nil)
	if err := c.repo.Delete(ctx, localstate.KeyPartySession); err != nil {
		c.log.Warn(ctx, "failed to clear party session", "error", err)
	}
	if err := c.repo.Delete(ctx, localstate.KeyPartyStep); err != nil {
		c.log.Warn(ctx, "failed to clear party step", "error", err)
	}
}
