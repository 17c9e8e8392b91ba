// Package realtime is the best-effort live channel: notifications and
// online-presence over a WebSocket, authenticated with a short-lived
// exchange token. It must never degrade gameplay; every failure here is
// silent, reconnection backs off exponentially, and a 10s REST poll keeps
// presence flowing while the socket is down.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/quipflip/quipflip-go/internal/client/store"
	"github.com/quipflip/quipflip-go/internal/common"
	"github.com/quipflip/quipflip-go/internal/logging"
)

// API is the slice of the REST client the channel uses.
type API interface {
	WSToken(ctx context.Context) (string, error)
	NotificationsWSURL(token string) string
	Presence(ctx context.Context) ([]string, error)
}

// Conn is the subset of *websocket.Conn the read loop needs.
type Conn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

type DialFunc func(ctx context.Context, url string) (Conn, error)

func gorillaDial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	return conn, err
}

// Notification is one pushed user-facing event.
type Notification struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	msgNotification = "notification"
	msgPresence     = "presence"
)

type presencePayload struct {
	Online []string `json:"online"`
}

// Channel owns the socket lifecycle and the presence store.
type Channel struct {
	api  API
	dial DialFunc
	log  logging.Logger

	presence *store.Store[[]string]

	mu     sync.Mutex
	subs   map[int]func(Notification)
	nextID int

	backoffBase       time.Duration
	backoffCap        time.Duration
	rateLimitCooldown time.Duration
	pollInterval      time.Duration
}

func NewChannel(api API, log logging.Logger) *Channel {
	return &Channel{
		api:               api,
		dial:              gorillaDial,
		log:               log.With("component", "realtime"),
		presence:          store.New[[]string](nil),
		subs:              map[int]func(Notification){},
		backoffBase:       time.Second,
		backoffCap:        30 * time.Second,
		rateLimitCooldown: 60 * time.Second,
		pollInterval:      10 * time.Second,
	}
}

// SetPollInterval overrides the REST presence poll cadence used while the
// socket is down. Call before Run.
func (c *Channel) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// Presence is the observable online-user list.
func (c *Channel) Presence() *store.Store[[]string] {
	return c.presence
}

// OnNotification registers fn for pushed notifications. The returned
// function removes the subscription.
func (c *Channel) OnNotification(fn func(Notification)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Run keeps the channel alive until ctx is canceled (logout/teardown). On
// cancel everything (socket, reconnect schedule, poll ticker) stops
// deterministically. Run never reports errors; this whole subsystem is
// best effort.
func (c *Channel) Run(ctx context.Context) {
	backoff := c.newBackoff()
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := c.nextDelay(backoff, err)
			c.log.Debug(ctx, "notification socket unavailable", "error", err, "retry_in", delay)
			c.pollUntil(ctx, delay)
			continue
		}

		backoff = c.newBackoff()
		c.readLoop(ctx, conn)
		_ = conn.Close()
	}
}

func (c *Channel) connect(ctx context.Context) (Conn, error) {
	token, err := c.api.WSToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.dial(ctx, c.api.NotificationsWSURL(token))
}

func (c *Channel) readLoop(ctx context.Context, conn Conn) {
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
				c.log.Debug(ctx, "notification socket read failed", "error", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Channel) handle(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Debug(context.Background(), "discarding malformed realtime payload", "error", err)
		return
	}

	switch env.Type {
	case msgPresence:
		var p presencePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Online == nil {
			c.log.Debug(context.Background(), "discarding malformed presence payload")
			return
		}
		c.presence.Set(p.Online)

	case msgNotification:
		var n Notification
		if err := json.Unmarshal(env.Data, &n); err != nil {
			c.log.Debug(context.Background(), "discarding malformed notification payload")
			return
		}
		c.emit(n)
	}
}

func (c *Channel) emit(n Notification) {
	c.mu.Lock()
	fns := make([]func(Notification), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(n)
	}
}

// pollUntil is the degraded path: fetch presence over REST while the
// socket is down, for at least the reconnect delay.
func (c *Channel) pollUntil(ctx context.Context, delay time.Duration) {
	deadline := time.After(delay)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			online, err := c.api.Presence(ctx)
			if err != nil {
				c.log.Debug(ctx, "presence poll failed", "error", err)
				continue
			}
			c.presence.Set(online)
		}
	}
}

func (c *Channel) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(c.backoffCap, retry.NewExponential(c.backoffBase))
}

func (c *Channel) nextDelay(backoff retry.Backoff, err error) time.Duration {
	if errors.Is(err, common.ErrRateLimited) {
		return c.rateLimitCooldown
	}
	d, _ := backoff.Next()
	return d
}
