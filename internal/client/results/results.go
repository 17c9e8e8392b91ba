// Package results handles finalized-round results: claiming payouts and
// deciding which pending results are new enough to notify about. The
// server's result_viewed flag is merged with a locally persisted viewed-id
// set so a result is never announced twice, even across restarts.
package results

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/quipflip/quipflip-go/internal/client/localstate"
	"github.com/quipflip/quipflip-go/internal/client/models"
	"github.com/quipflip/quipflip-go/internal/logging"
)

// API is the slice of the REST client the service uses.
type API interface {
	UnclaimedResults(ctx context.Context) ([]models.UnclaimedResult, error)
	ClaimResult(ctx context.Context, phrasesetID string) (int, error)
}

type Service struct {
	api  API
	repo localstate.Repository
	log  logging.Logger

	mu     sync.Mutex
	viewed map[string]struct{}
}

func NewService(api API, repo localstate.Repository, log logging.Logger) *Service {
	return &Service{
		api:    api,
		repo:   repo,
		log:    log.With("component", "results"),
		viewed: map[string]struct{}{},
	}
}

// Restore loads the persisted viewed-id set.
func (s *Service) Restore(ctx context.Context) error {
	raw, err := s.repo.Get(ctx, localstate.KeyViewedResults)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		// Corrupt set just means some results may re-notify once.
		s.log.Warn(ctx, "discarding corrupt viewed-results set", "error", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.viewed[id] = struct{}{}
	}
	return nil
}

// FilterNew returns the pending results worth announcing: not flagged
// viewed by the server and not in the local viewed set. The returned
// results are added to the set so the next dashboard refresh stays quiet.
func (s *Service) FilterNew(ctx context.Context, pending []models.PendingResult) []models.PendingResult {
	s.mu.Lock()
	var fresh []models.PendingResult
	for _, r := range pending {
		if r.ResultViewed {
			continue
		}
		if _, seen := s.viewed[r.PhrasesetID]; seen {
			continue
		}
		s.viewed[r.PhrasesetID] = struct{}{}
		fresh = append(fresh, r)
	}
	ids := make([]string, 0, len(s.viewed))
	for id := range s.viewed {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	if len(fresh) > 0 {
		s.persist(ctx, ids)
	}
	return fresh
}

// Unclaimed lists results with payouts awaiting the player.
func (s *Service) Unclaimed(ctx context.Context) ([]models.UnclaimedResult, error) {
	return s.api.UnclaimedResults(ctx)
}

// Claim collects the payout for one result.
func (s *Service) Claim(ctx context.Context, phrasesetID string) (int, error) {
	return s.api.ClaimResult(ctx, phrasesetID)
}

func (s *Service) persist(ctx context.Context, ids []string) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := s.repo.Set(ctx, localstate.KeyViewedResults, raw); err != nil {
		s.log.Warn(ctx, "failed to persist viewed-results set", "error", err)
	}
}
