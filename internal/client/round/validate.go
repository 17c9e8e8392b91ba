package round

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/quipflip/quipflip-go/internal/common"
)

// Phrase constraints mirroring the server's, so most validation failures
// are caught before a submission ever leaves the client.
const (
	maxPhraseWords = 8
	maxPhraseChars = 100
)

// ValidatePhrase checks a phrase against the server's format rules. The
// returned error wraps common.ErrValidation and carries a per-field message
// suitable for inline display.
func ValidatePhrase(phrase string) error {
	trimmed := strings.TrimSpace(phrase)
	if trimmed == "" {
		return fmt.Errorf("phrase must not be empty: %w", common.ErrValidation)
	}
	if len(trimmed) > maxPhraseChars {
		return fmt.Errorf("phrase must be at most %d characters: %w", maxPhraseChars, common.ErrValidation)
	}
	if words := len(strings.Fields(trimmed)); words > maxPhraseWords {
		return fmt.Errorf("phrase must be at most %d words: %w", maxPhraseWords, common.ErrValidation)
	}
	if !strings.ContainsFunc(trimmed, unicode.IsLetter) {
		return fmt.Errorf("phrase must contain at least one letter: %w", common.ErrValidation)
	}
	return nil
}
