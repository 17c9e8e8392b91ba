package models

// Player is the per-player slice of the dashboard snapshot.
type Player struct {
	Username string `json:"username"`
	Balance  int    `json:"balance"`
}

// PendingResult is a finalized phraseset awaiting the player's viewing.
// Read-only projection; the only client-side state is a locally tracked
// viewed-id set merged with ResultViewed.
type PendingResult struct {
	PhrasesetID  string `json:"phraseset_id"`
	PromptText   string `json:"prompt_text"`
	ResultViewed bool   `json:"result_viewed"`
}

// UnclaimedResult is a finalized phraseset with a payout the player has
// not claimed yet.
type UnclaimedResult struct {
	PhrasesetID string `json:"phraseset_id"`
	PromptText  string `json:"prompt_text"`
	Payout      int    `json:"payout"`
}

// PhrasesetSummary aggregates the player's phrasesets by stage.
type PhrasesetSummary struct {
	InVoting  int `json:"in_voting"`
	Finalized int `json:"finalized"`
}

// RoundAvailability reports which round types the player may start.
type RoundAvailability struct {
	Prompt bool `json:"prompt"`
	Copy   bool `json:"copy"`
	Vote   bool `json:"vote"`
}

// Dashboard is the aggregate per-player snapshot returned by the server.
type Dashboard struct {
	Player           Player            `json:"player"`
	CurrentRound     *ActiveRound      `json:"current_round"`
	PendingResults   []PendingResult   `json:"pending_results"`
	PhrasesetSummary PhrasesetSummary  `json:"phraseset_summary"`
	UnclaimedResults []UnclaimedResult `json:"unclaimed_results"`
	Availability     RoundAvailability `json:"round_availability"`
}
