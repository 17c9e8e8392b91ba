package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quipflip/quipflip-go/internal/client/session"
	"github.com/quipflip/quipflip-go/internal/common"
	"github.com/quipflip/quipflip-go/internal/logging"
)

// ---- in-memory localstate ----

type memRepo struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemRepo() *memRepo { return &memRepo{data: map[string][]byte{}} }

func (s *memRepo) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memRepo) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memRepo) SetMany(ctx context.Context, values map[string][]byte) error {
	for k, v := range values {
		if err := s.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *memRepo) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memRepo) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string][]byte{}
	return nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func newClientAndSession(t *testing.T, srvURL string) (*Client, *session.Manager) {
	t.Helper()
	sess := session.NewManager(newMemRepo(), testLogger())
	c, err := New(Options{BaseURL: srvURL, WSBaseURL: "ws://example", Timeout: 5 * time.Second}, sess, testLogger())
	require.NoError(t, err)
	return c, sess
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

// ---- tests ----

func TestDo_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(t, w, http.StatusOK, map[string]any{"player": map[string]any{"username": "alice", "balance": 100}})
	}))
	defer srv.Close()

	c, sess := newClientAndSession(t, srv.URL)
	require.NoError(t, sess.BeginSession(context.Background(), session.TokenGrant{
		AccessToken: "tok-1", ExpiresIn: 3600, Username: "alice",
	}))

	_, err := c.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-1", gotAuth)
}

func TestDo_SkipAuthStripsHeaderAndBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		require.Empty(t, r.Header.Get(HeaderSkipAuth))
		writeJSON(t, w, http.StatusOK, session.TokenGrant{AccessToken: "tok", ExpiresIn: 3600})
	}))
	defer srv.Close()

	c, sess := newClientAndSession(t, srv.URL)
	require.NoError(t, sess.BeginSession(context.Background(), session.TokenGrant{
		AccessToken: "should-not-appear", ExpiresIn: 3600, Username: "alice",
	}))

	_, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
}

func TestDo_401RefreshesAndReplaysOnce(t *testing.T) {
	var refreshes atomic.Int32
	var dashboardCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		writeJSON(t, w, http.StatusOK, session.TokenGrant{AccessToken: "fresh", ExpiresIn: 3600})
	})
	mux.HandleFunc("/player/dashboard", func(w http.ResponseWriter, r *http.Request) {
		dashboardCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(t, w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"player": map[string]any{"username": "alice", "balance": 7}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, sess := newClientAndSession(t, srv.URL)
	// Token looks valid locally but the server has already revoked it.
	require.NoError(t, sess.BeginSession(context.Background(), session.TokenGrant{
		AccessToken: "stale", ExpiresIn: 3600, Username: "alice",
	}))

	d, err := c.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, d.Player.Balance)
	require.Equal(t, int32(1), refreshes.Load())
	require.Equal(t, int32(2), dashboardCalls.Load())
}

func TestDo_SecondUnauthorizedIsTerminal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, session.TokenGrant{AccessToken: "fresh", ExpiresIn: 3600})
	})
	mux.HandleFunc("/player/dashboard", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, sess := newClientAndSession(t, srv.URL)
	require.NoError(t, sess.BeginSession(context.Background(), session.TokenGrant{
		AccessToken: "stale", ExpiresIn: 3600, Username: "alice",
	}))

	_, err := c.Dashboard(context.Background())
	require.ErrorIs(t, err, common.ErrUnauthorized)
	require.Empty(t, sess.Username())
}

func TestDo_401WithoutStoredUsername_NoReplay(t *testing.T) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		writeJSON(t, w, http.StatusOK, session.TokenGrant{AccessToken: "fresh", ExpiresIn: 3600})
	})
	mux.HandleFunc("/player/dashboard", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := newClientAndSession(t, srv.URL)

	_, err := c.Dashboard(context.Background())
	require.ErrorIs(t, err, common.ErrUnauthorized)
	require.Equal(t, int32(0), refreshes.Load())
}

func TestStatusError_Taxonomy(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusUnauthorized, `{"error":"unauthorized"}`, common.ErrUnauthorized},
		{http.StatusConflict, `{"error":"round already submitted"}`, common.ErrConflict},
		{http.StatusNotFound, `{"error":"round not found"}`, common.ErrRoundNotFound},
		{http.StatusNotFound, `{"error":"no such phraseset"}`, common.ErrConflict},
		{http.StatusUnprocessableEntity, `{"detail":"phrase too long"}`, common.ErrValidation},
		{http.StatusTooManyRequests, `{"error":"rate limit exceeded"}`, common.ErrRateLimited},
		{http.StatusInternalServerError, ``, common.ErrUnavailable},
	}

	for _, tc := range tests {
		err := statusError(tc.status, []byte(tc.body))
		require.ErrorIs(t, err, tc.want, "status %d body %q", tc.status, tc.body)
	}
}

func TestHumanize(t *testing.T) {
	require.Equal(t, "You don't have enough coins for that.", Humanize("insufficient funds for copy round"))
	require.Equal(t, "Looks like that one was already taken.", Humanize("phrase already exists in set"))
	require.Equal(t, "some unknown failure", Humanize("some unknown failure"))
}

func TestSubmitPhrase_SetsIdempotencyKey(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		writeJSON(t, w, http.StatusOK, map[string]any{"accepted": true})
	}))
	defer srv.Close()

	c, sess := newClientAndSession(t, srv.URL)
	require.NoError(t, sess.BeginSession(context.Background(), session.TokenGrant{
		AccessToken: "tok", ExpiresIn: 3600, Username: "alice",
	}))

	_, err := c.SubmitPhrase(context.Background(), "r1", "witty phrase")
	require.NoError(t, err)
	_, err = c.SubmitPhrase(context.Background(), "r1", "witty phrase")
	require.NoError(t, err)

	require.Len(t, keys, 2)
	require.NotEmpty(t, keys[0])
	require.NotEqual(t, keys[0], keys[1])
}
