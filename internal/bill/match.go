package bill

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// matchThreshold is the largest edit distance, relative to the longer name, still read as a match
const matchThreshold = 0.4

// MatchType returns the catalogue type closest to a free-text category,
// tolerating case, accents and small spelling differences.
func MatchType(category string) (string, bool) {
	guess := strings.ToLower(strings.TrimSpace(category))
	if guess == "" {
		return "", false
	}

	best, bestScore := "", 1.0
	for _, t := range Types {
		candidate := strings.ToLower(t)
		if candidate == guess {
			return t, true
		}
		longest := max(utf8.RuneCountInString(candidate), utf8.RuneCountInString(guess))
		score := float64(levenshtein.ComputeDistance(candidate, guess)) / float64(longest)
		if score < bestScore {
			best, bestScore = t, score
		}
	}
	if bestScore >= matchThreshold {
		return "", false
	}
	return best, true
}
