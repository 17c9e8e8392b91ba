// Package session owns the client's credential lifecycle: it stores the
// short-lived access token with a locally computed expiry, persists it and
// the username across restarts, and performs deduplicated refreshes so
// concurrent callers never race each other into parallel refresh calls.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/quipflip/quipflip-go/internal/client/localstate"
	"github.com/quipflip/quipflip-go/internal/client/models"
	"github.com/quipflip/quipflip-go/internal/logging"
)

// ExpiryBuffer is subtracted from the server-reported lifetime so the
// client treats a token as expired slightly before the server does.
const ExpiryBuffer = 5 * time.Second

// TokenGrant is the credential material returned by login, register, or
// refresh. ExpiresIn is in seconds; Username is only set on login/register.
type TokenGrant struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Username    string `json:"username,omitempty"`
}

// RefreshFunc performs the network refresh call. It must bypass the
// credential-attaching transport to avoid a circular dependency.
type RefreshFunc func(ctx context.Context) (TokenGrant, error)

// Manager is the single owner of the credential and username. All other
// components read tokens through EnsureAccessToken and never mutate
// credential state directly.
type Manager struct {
	mu       sync.Mutex
	cred     models.Credential
	username string

	store   localstate.Repository
	refresh RefreshFunc
	group   singleflight.Group
	log     logging.Logger
	now     func() time.Time
}

func NewManager(store localstate.Repository, log logging.Logger) *Manager {
	return &Manager{store: store, log: log.With("component", "session"), now: time.Now}
}

// SetRefreshFunc wires the refresh call. Set once during app wiring, before
// any requests are made; the API client depends on the manager and the
// manager's refresh depends on the API client's bare transport.
func (m *Manager) SetRefreshFunc(fn RefreshFunc) {
	m.refresh = fn
}

// Restore loads the persisted credential and username at boot.
func (m *Manager) Restore(ctx context.Context) error {
	token, err := m.store.Get(ctx, localstate.KeyAccessToken)
	if err != nil {
		return err
	}
	expiryRaw, err := m.store.Get(ctx, localstate.KeyTokenExpiry)
	if err != nil {
		return err
	}
	username, err := m.store.Get(ctx, localstate.KeyUsername)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.username = string(username)
	if len(token) == 0 || len(expiryRaw) == 0 {
		return nil
	}

	millis, err := strconv.ParseInt(string(expiryRaw), 10, 64)
	if err != nil {
		return fmt.Errorf("corrupt stored expiry: %w", err)
	}
	m.cred = models.Credential{
		AccessToken: string(token),
		ExpiresAt:   time.UnixMilli(millis),
	}
	return nil
}

// Username returns the persisted username, or "" if the player has never
// logged in on this device.
func (m *Manager) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username
}

// Credential returns a copy of the current credential.
func (m *Manager) Credential() models.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// BeginSession installs a fresh grant after login or registration and
// persists it together with the username.
func (m *Manager) BeginSession(ctx context.Context, grant TokenGrant) error {
	cred, err := m.credentialFromGrant(grant)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.cred = cred
	if grant.Username != "" {
		m.username = grant.Username
	}
	username := m.username
	m.mu.Unlock()

	return m.store.SetMany(ctx, map[string][]byte{
		localstate.KeyAccessToken: []byte(cred.AccessToken),
		localstate.KeyTokenExpiry: []byte(strconv.FormatInt(cred.ExpiresAt.UnixMilli(), 10)),
		localstate.KeyUsername:    []byte(username),
	})
}

// EnsureAccessToken returns a token valid as of now, refreshing if needed.
//
// Returns "" (with nil error) when the caller should proceed
// unauthenticated: either no prior login is recorded on this device, so a
// refresh would only earn a 401 from the server, or the refresh itself
// failed.
func (m *Manager) EnsureAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	cred := m.cred
	username := m.username
	m.mu.Unlock()

	if cred.Valid(m.now()) {
		return cred.AccessToken, nil
	}
	if username == "" {
		return "", nil
	}

	token, err := m.ForceRefresh(ctx)
	if err != nil {
		m.log.Warn(ctx, "token refresh failed", "error", err)
		return "", nil
	}
	return token, nil
}

// ForceRefresh performs exactly one network refresh regardless of how many
// callers arrive concurrently; all of them observe the same token or the
// same error. A failed refresh clears the whole session, since the server
// has rejected our last evidence of identity.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	v, err, _ := m.group.Do("refresh", func() (any, error) {
		if m.refresh == nil {
			return nil, fmt.Errorf("no refresh func configured")
		}

		grant, err := m.refresh(ctx)
		if err != nil {
			m.clear(ctx)
			return nil, err
		}

		cred, err := m.credentialFromGrant(grant)
		if err != nil {
			m.clear(ctx)
			return nil, err
		}

		m.mu.Lock()
		m.cred = cred
		m.mu.Unlock()

		if err := m.store.SetMany(ctx, map[string][]byte{
			localstate.KeyAccessToken: []byte(cred.AccessToken),
			localstate.KeyTokenExpiry: []byte(strconv.FormatInt(cred.ExpiresAt.UnixMilli(), 10)),
		}); err != nil {
			m.log.Warn(ctx, "failed to persist refreshed credential", "error", err)
		}

		return cred.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Clear wipes the in-memory credential/username and everything persisted,
// returning the client to the never-logged-in state.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.cred = models.Credential{}
	m.username = ""
	m.mu.Unlock()

	return m.store.Clear(ctx)
}

func (m *Manager) clear(ctx context.Context) {
	if err := m.Clear(ctx); err != nil {
		m.log.Warn(ctx, "failed to clear session state", "error", err)
	}
}

// credentialFromGrant computes the buffered expiry. When the server omits
// expires_in, the token's registered exp claim is decoded (unverified,
// the server remains the authority, we only need the timestamp).
func (m *Manager) credentialFromGrant(grant TokenGrant) (models.Credential, error) {
	if grant.AccessToken == "" {
		return models.Credential{}, fmt.Errorf("grant without access token")
	}

	var expiresAt time.Time
	if grant.ExpiresIn > 0 {
		expiresAt = m.now().Add(time.Duration(grant.ExpiresIn)*time.Second - ExpiryBuffer)
	} else {
		claims := jwt.RegisteredClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(grant.AccessToken, &claims); err != nil {
			return models.Credential{}, fmt.Errorf("grant without expiry and token not parseable: %w", err)
		}
		exp, err := claims.GetExpirationTime()
		if err != nil || exp == nil {
			return models.Credential{}, fmt.Errorf("grant without expiry and token has no exp claim")
		}
		expiresAt = exp.Time.Add(-ExpiryBuffer)
	}

	return models.Credential{AccessToken: grant.AccessToken, ExpiresAt: expiresAt}, nil
}
