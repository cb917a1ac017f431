package game

import "strings"

// NormalizeGuess lowercases and trims a guess for comparison and storage.
func NormalizeGuess(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// AcceptedAnswers splits a pipe-separated answer into its normalized, non-empty parts.
func AcceptedAnswers(answer string) []string {
	parts := strings.Split(answer, "|")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if normalized := NormalizeGuess(part); normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}

// IsCorrect reports whether guess exactly matches one accepted answer after normalization.
func IsCorrect(answer, guess string) bool {
	normalized := NormalizeGuess(guess)
	if normalized == "" {
		return false
	}
	for _, accepted := range AcceptedAnswers(answer) {
		if accepted == normalized {
			return true
		}
	}
	return false
}
