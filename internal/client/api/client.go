// Package api is the REST client for the Quipflip platform. It owns the
// HTTP transport (credential attachment, 401 refresh-and-replay), maps
// responses onto the shared error taxonomy, and exposes one typed method
// per endpoint the client core consumes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quipflip/quipflip-go/internal/client/models"
	"github.com/quipflip/quipflip-go/internal/client/session"
	"github.com/quipflip/quipflip-go/internal/common"
	"github.com/quipflip/quipflip-go/internal/logging"
)

// Options configures the API client.
type Options struct {
	BaseURL   string
	WSBaseURL string
	Timeout   time.Duration
}

type Client struct {
	baseURL   string
	wsBaseURL string
	http      *http.Client
	session   *session.Manager
	log       logging.Logger
}

// New builds the client and wires the session manager's refresh call to the
// /auth/refresh endpoint. The refresh credential itself lives in a
// server-set cookie, so the client carries a cookie jar.
func New(opts Options, sess *session.Manager, log logging.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		wsBaseURL: strings.TrimRight(opts.WSBaseURL, "/"),
		session:   sess,
		log:       log.With("component", "api"),
	}
	c.http = &http.Client{
		Timeout: opts.Timeout,
		Jar:     jar,
		Transport: &authTransport{
			base:    http.DefaultTransport,
			session: sess,
			log:     c.log,
		},
	}

	sess.SetRefreshFunc(c.refreshGrant)
	return c, nil
}

// ---- auth ----

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token grant. Bypasses the auth
// interceptor: there is no credential to attach yet.
func (c *Client) Login(ctx context.Context, username, password string) (session.TokenGrant, error) {
	var grant session.TokenGrant
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{username, password}, &grant, true, nil)
	if err != nil {
		return session.TokenGrant{}, err
	}
	if grant.Username == "" {
		grant.Username = username
	}
	return grant, nil
}

// Register creates an account and returns the initial grant.
func (c *Client) Register(ctx context.Context, username, password string) (session.TokenGrant, error) {
	var grant session.TokenGrant
	err := c.do(ctx, http.MethodPost, "/auth/register", loginRequest{username, password}, &grant, true, nil)
	if err != nil {
		return session.TokenGrant{}, err
	}
	if grant.Username == "" {
		grant.Username = username
	}
	return grant, nil
}

// Logout invalidates the server-side refresh credential. Best effort; the
// caller clears local session state regardless.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, true, nil)
}

// refreshGrant is installed as the session manager's RefreshFunc. It rides
// on the refresh cookie, not the access token, so it bypasses the
// interceptor too.
func (c *Client) refreshGrant(ctx context.Context) (session.TokenGrant, error) {
	var grant session.TokenGrant
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &grant, true, nil); err != nil {
		return session.TokenGrant{}, err
	}
	return grant, nil
}

// WSToken fetches a short-lived exchange token for WebSocket dials. The
// long-lived access token never appears in a socket URL.
func (c *Client) WSToken(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/ws-token", nil, &out, false, nil); err != nil {
		return "", err
	}
	return out.Token, nil
}

// ---- dashboard ----

func (c *Client) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	var d models.Dashboard
	if err := c.do(ctx, http.MethodGet, "/player/dashboard", nil, &d, false, nil); err != nil {
		return nil, err
	}
	return &d, nil
}

// ---- rounds ----

// StartRound begins a round of the given type. The response is the full
// round payload including expiry and cost.
func (c *Client) StartRound(ctx context.Context, typ models.RoundType) (*models.ActiveRound, error) {
	var r models.ActiveRound
	if err := c.do(ctx, http.MethodPost, "/rounds/"+string(typ), nil, &r, false, nil); err != nil {
		return nil, err
	}
	if r.Status == "" {
		r.Status = models.StatusActive
	}
	return &r, nil
}

type submitRequest struct {
	Phrase string `json:"phrase"`
}

// SubmitPhrase submits the player's phrase for a prompt or copy round. An
// idempotency key guards against the request being retried server-side.
func (c *Client) SubmitPhrase(ctx context.Context, roundID, phrase string) (*models.SubmitResult, error) {
	var res models.SubmitResult
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	if err := c.do(ctx, http.MethodPost, "/rounds/"+roundID+"/submit", submitRequest{phrase}, &res, false, headers); err != nil {
		return nil, err
	}
	return &res, nil
}

type voteRequest struct {
	Choice string `json:"choice"`
}

// SubmitVote submits a vote for the phrase the player believes is the
// original.
func (c *Client) SubmitVote(ctx context.Context, phrasesetID, choice string) (*models.VoteResult, error) {
	var res models.VoteResult
	if err := c.do(ctx, http.MethodPost, "/phrasesets/"+phrasesetID+"/vote", voteRequest{choice}, &res, false, nil); err != nil {
		return nil, err
	}
	return &res, nil
}

// AbandonRound gives up the active round.
func (c *Client) AbandonRound(ctx context.Context, roundID string) error {
	return c.do(ctx, http.MethodPost, "/rounds/"+roundID+"/abandon", nil, nil, false, nil)
}

// ---- party ----

func (c *Client) PartyStatus(ctx context.Context, sessionID string) (*models.PartySession, error) {
	var s models.PartySession
	if err := c.do(ctx, http.MethodGet, "/party/"+sessionID+"/status", nil, &s, false, nil); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) PartyLeave(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/party/"+sessionID+"/leave", nil, nil, false, nil)
}

// ---- results ----

func (c *Client) UnclaimedResults(ctx context.Context) ([]models.UnclaimedResult, error) {
	var out struct {
		Results []models.UnclaimedResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/results/unclaimed", nil, &out, false, nil); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) ClaimResult(ctx context.Context, phrasesetID string) (int, error) {
	var out struct {
		Payout int `json:"payout"`
	}
	if err := c.do(ctx, http.MethodPost, "/results/"+phrasesetID+"/claim", nil, &out, false, nil); err != nil {
		return 0, err
	}
	return out.Payout, nil
}

// ---- presence (polling fallback for the realtime channel) ----

func (c *Client) Presence(ctx context.Context) ([]string, error) {
	var out struct {
		Online []string `json:"online"`
	}
	if err := c.do(ctx, http.MethodGet, "/presence", nil, &out, false, nil); err != nil {
		return nil, err
	}
	return out.Online, nil
}

// ---- websocket URLs ----

func (c *Client) NotificationsWSURL(token string) string {
	return c.wsBaseURL + "/notifications/ws?token=" + url.QueryEscape(token)
}

func (c *Client) PartyWSURL(sessionID, token string) string {
	return c.wsBaseURL + "/party/" + url.PathEscape(sessionID) + "/ws?token=" + url.QueryEscape(token)
}

// ---- plumbing ----

func (c *Client) do(ctx context.Context, method, path string, in, out any, skipAuth bool, headers map[string]string) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if skipAuth {
		req.Header.Set(HeaderSkipAuth, "1")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("malformed response for %s %s: %w", method, path, err)
		}
	}
	return nil
}
