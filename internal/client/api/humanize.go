package api

import "strings"

// rewrites maps substrings of raw server messages to friendlier phrasings.
// First match wins; order is most-specific first.
var rewrites = []struct {
	substr   string
	friendly string
}{
	{"insufficient funds", "You don't have enough coins for that."},
	{"insufficient balance", "You don't have enough coins for that."},
	{"already exists", "Looks like that one was already taken."},
	{"already submitted", "You already submitted for this round."},
	{"round not found", "That round is gone. Refresh and try again."},
	{"round expired", "Time ran out on that round."},
	{"session already started", "The party has already started."},
	{"rate limit", "Slow down a little and try again shortly."},
}

// Humanize rewrites a raw server error message into player-facing copy,
// falling back to the raw message when nothing matches.
func Humanize(msg string) string {
	lower := strings.ToLower(msg)
	for _, r := range rewrites {
		if strings.Contains(lower, r.substr) {
			return r.friendly
		}
	}
	return msg
}
