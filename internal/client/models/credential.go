// Package models defines the client-side data model: credentials, rounds,
// the dashboard snapshot, and party sessions. Values here are plain data;
// all mutation goes through the owning stores.
package models

import "time"

// Credential is the short-lived access token plus its locally computed
// expiry. ExpiresAt already includes the safety buffer, so consumers treat
// the token as expired slightly before the server does.
type Credential struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the credential can still be attached to requests
// as of now.
func (c Credential) Valid(now time.Time) bool {
	return c.AccessToken != "" && now.Before(c.ExpiresAt)
}
