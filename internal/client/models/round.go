package models

import "time"

// RoundType identifies which of the three timed gameplay units a round is.
type RoundType string

const (
	RoundPrompt RoundType = "prompt"
	RoundCopy   RoundType = "copy"
	RoundVote   RoundType = "vote"
)

// RoundStatus tracks the client-observed lifecycle of an active round.
//
// The server is authoritative for resolution; StatusExpired only records
// that the local countdown hit zero, not that the server has resolved the
// round.
type RoundStatus string

const (
	StatusActive    RoundStatus = "active"
	StatusSubmitted RoundStatus = "submitted"
	StatusExpired   RoundStatus = "expired"
	StatusAbandoned RoundStatus = "abandoned"
)

// PromptState carries the payload of an active prompt round.
type PromptState struct {
	PromptText string `json:"prompt_text"`
}

// CopyState carries the payload of an active copy round: the original
// phrase the player must write a decoy for.
type CopyState struct {
	OriginalPhrase string `json:"original_phrase"`
	DiscountActive bool   `json:"discount_active"`
}

// VoteState carries the payload of an active vote round.
type VoteState struct {
	PhrasesetID string   `json:"phraseset_id"`
	PromptText  string   `json:"prompt_text"`
	Choices     []string `json:"choices"`
}

// ActiveRound is the player's current round as reported by the server,
// plus the locally observed status. At most one of Prompt/Copy/Vote is
// non-nil, matching Type. The struct is always replaced wholesale, never
// partially patched.
type ActiveRound struct {
	RoundID   string       `json:"round_id"`
	Type      RoundType    `json:"round_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	Status    RoundStatus  `json:"status"`
	Prompt    *PromptState `json:"prompt_state,omitempty"`
	Copy      *CopyState   `json:"copy_state,omitempty"`
	Vote      *VoteState   `json:"vote_state,omitempty"`
}

// SubmitResult is the server's answer to a phrase submission. For copy
// rounds it may offer a second attempt against the same original.
type SubmitResult struct {
	Accepted              bool   `json:"accepted"`
	Message               string `json:"message"`
	EligibleForSecondCopy bool   `json:"eligible_for_second_copy"`
	SecondCopyCost        int    `json:"second_copy_cost"`
}

// VoteResult is the server's answer to a vote submission.
type VoteResult struct {
	Correct bool `json:"correct"`
	Payout  int  `json:"payout"`
}
