// Package localstate persists the small amount of client state that must
// survive restarts: the access credential and its computed expiry, the
// last-known username, the party session id/step, and the viewed-result id
// set. Everything lives in one key/value table and is cleared together on
// logout.
package localstate

import "context"

// Well-known keys. All values are opaque bytes to the repository.
const (
	KeyAccessToken   = "access_token"
	KeyTokenExpiry   = "token_expiry"
	KeyUsername      = "username"
	KeyPartySession  = "party_session_id"
	KeyPartyStep     = "party_step"
	KeyViewedResults = "viewed_results"
)

// Repository is a persistent string-keyed byte store.
//
// Get returns (nil, nil) when the key is absent, so callers can treat a
// missing value and an empty value the same way.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
