package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/quipflip/quipflip-go/internal/client/localstate"
	"github.com/quipflip/quipflip-go/internal/logging"
)

// ---- fake store ----

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) SetMany(ctx context.Context, values map[string][]byte) error {
	for k, v := range values {
		if err := s.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string][]byte{}
	return nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func newTestManager(t *testing.T, store localstate.Repository) *Manager {
	t.Helper()
	if store == nil {
		store = newMemStore()
	}
	return NewManager(store, testLogger())
}

// ---- tests ----

func TestEnsureAccessToken_NoUsername_NoNetworkCall(t *testing.T) {
	m := newTestManager(t, nil)

	var calls atomic.Int32
	m.SetRefreshFunc(func(ctx context.Context) (TokenGrant, error) {
		calls.Add(1)
		return TokenGrant{AccessToken: "tok", ExpiresIn: 3600}, nil
	})

	token, err := m.EnsureAccessToken(context.Background())
	require.NoError(t, err)
	require.Empty(t, token)
	require.Equal(t, int32(0), calls.Load())
}

func TestEnsureAccessToken_ValidToken_NoRefresh(t *testing.T) {
	m := newTestManager(t, nil)

	var calls atomic.Int32
	m.SetRefreshFunc(func(ctx context.Context) (TokenGrant, error) {
		calls.Add(1)
		return TokenGrant{}, nil
	})

	require.NoError(t, m.BeginSession(context.Background(), TokenGrant{
		AccessToken: "tok-1", ExpiresIn: 3600, Username: "alice",
	}))

	token, err := m.EnsureAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)
	require.Equal(t, int32(0), calls.Load())
}

func TestBeginSession_AppliesExpiryBuffer(t *testing.T) {
	m := newTestManager(t, nil)

	start := time.Now()
	require.NoError(t, m.BeginSession(context.Background(), TokenGrant{
		AccessToken: "tok", ExpiresIn: 3600, Username: "alice",
	}))

	want := start.Add(3600*time.Second - ExpiryBuffer)
	got := m.Credential().ExpiresAt
	require.WithinDuration(t, want, got, time.Second)
}

func TestEnsureAccessToken_ExpiredToken_TriggersRefresh(t *testing.T) {
	m := newTestManager(t, nil)

	var calls atomic.Int32
	m.SetRefreshFunc(func(ctx context.Context) (TokenGrant, error) {
		calls.Add(1)
		return TokenGrant{AccessToken: "tok-2", ExpiresIn: 3600}, nil
	})

	require.NoError(t, m.BeginSession(context.Background(), TokenGrant{
		AccessToken: "tok-1", ExpiresIn: 3600, Username: "alice",
	}))
	m.now = func() time.Time { return time.Now().Add(time.Hour + time.Second) }

	token, err := m.EnsureAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-2", token)
	require.Equal(t, int32(1), calls.Load())
}

func TestForceRefresh_Deduplicated(t *testing.T) {
	m := newTestManager(t, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	m.SetRefreshFunc(func(ctx context.Context) (TokenGrant, error) {
		calls.Add(1)
		<-release
		return TokenGrant{AccessToken: "shared", ExpiresIn: 3600}, nil
	})

	require.NoError(t, m.BeginSession(context.Background(), TokenGrant{
		AccessToken: "old", ExpiresIn: 3600, Username: "alice",
	}))
	// Push the clock past expiry so every caller needs a refresh.
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.EnsureAccessToken(context.Background())
			require.NoError(t, err)
			results[i] = tok
		}(i)
	}

	// Let all goroutines pile up on the in-flight refresh, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, tok := range results {
		require.Equal(t, "shared", tok)
	}
}

func TestForceRefresh_FailureClearsSession(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)

	m.SetRefreshFunc(func(ctx context.Context) (TokenGrant, error) {
		return TokenGrant{}, context.DeadlineExceeded
	})

	require.NoError(t, m.BeginSession(context.Background(), TokenGrant{
		AccessToken: "tok", ExpiresIn: 3600, Username: "alice",
	}))
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	token, err := m.EnsureAccessToken(context.Background())
	require.NoError(t, err)
	require.Empty(t, token)

	require.Empty(t, m.Username())
	v, err := store.Get(context.Background(), localstate.KeyAccessToken)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestCredentialFromGrant_ExpClaimFallback(t *testing.T) {
	m := newTestManager(t, nil)

	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	cred, err := m.credentialFromGrant(TokenGrant{AccessToken: signed})
	require.NoError(t, err)
	require.Equal(t, exp.Add(-ExpiryBuffer), cred.ExpiresAt)
}

func TestRestore_RoundTrip(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)

	require.NoError(t, m.BeginSession(context.Background(), TokenGrant{
		AccessToken: "tok", ExpiresIn: 3600, Username: "alice",
	}))
	want := m.Credential()

	m2 := newTestManager(t, store)
	require.NoError(t, m2.Restore(context.Background()))
	require.Equal(t, "alice", m2.Username())
	require.Equal(t, want.AccessToken, m2.Credential().AccessToken)
	require.Equal(t, want.ExpiresAt.UnixMilli(), m2.Credential().ExpiresAt.UnixMilli())
}
