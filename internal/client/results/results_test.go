package results

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quipflip/quipflip-go/internal/client/localstate"
	"github.com/quipflip/quipflip-go/internal/client/models"
	"github.com/quipflip/quipflip-go/internal/logging"
)

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

type fakeAPI struct {
	unclaimed []models.UnclaimedResult
	payout    int
	lastClaim string
}

func (f *fakeAPI) UnclaimedResults(ctx context.Context) ([]models.UnclaimedResult, error) {
	return f.unclaimed, nil
}

func (f *fakeAPI) ClaimResult(ctx context.Context, phrasesetID string) (int, error) {
	f.lastClaim = phrasesetID
	return f.payout, nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func TestFilterNew_SkipsServerViewedAndLocallySeen(t *testing.T) {
	s := NewService(&fakeAPI{}, newMemRepo(), testLogger())
	ctx := context.Background()

	pending := []models.PendingResult{
		{PhrasesetID: "ps1", ResultViewed: true},
		{PhrasesetID: "ps2"},
		{PhrasesetID: "ps3"},
	}

	fresh := s.FilterNew(ctx, pending)
	require.Len(t, fresh, 2)

	// Second pass with the same input: nothing new.
	fresh = s.FilterNew(ctx, pending)
	require.Empty(t, fresh)
}

func TestFilterNew_ViewedSetSurvivesRestart(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()

	s := NewService(&fakeAPI{}, repo, testLogger())
	s.FilterNew(ctx, []models.PendingResult{{PhrasesetID: "ps1"}})

	s2 := NewService(&fakeAPI{}, repo, testLogger())
	require.NoError(t, s2.Restore(ctx))

	fresh := s2.FilterNew(ctx, []models.PendingResult{{PhrasesetID: "ps1"}, {PhrasesetID: "ps2"}})
	require.Len(t, fresh, 1)
	require.Equal(t, "ps2", fresh[0].PhrasesetID)
}

func TestRestore_CorruptSetIsDiscarded(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, localstate.KeyViewedResults, []byte("{not json")))

	s := NewService(&fakeAPI{}, repo, testLogger())
	require.NoError(t, s.Restore(ctx))

	fresh := s.FilterNew(ctx, []models.PendingResult{{PhrasesetID: "ps1"}})
	require.Len(t, fresh, 1)
}

func TestClaim_PassesThrough(t *testing.T) {
	api := &fakeAPI{payout: 45}
	s := NewService(api, newMemRepo(), testLogger())

	payout, err := s.Claim(context.Background(), "ps7")
	require.NoError(t, err)
	require.Equal(t, 45, payout)
	require.Equal(t, "ps7", api.lastClaim)
}
