package llmgateway

import (
	"strconv"
	"strings"
)

// parseScore extracts the first integer in s and clamps it to [1,10],
// defaulting to 5 (neutral) when nothing parses — the LM is asked for a
// bare integer but free-form completions sometimes wrap it in text.
func parseScore(s string) float64 {
	s = strings.TrimSpace(s)
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			continue
		}
		if digits.Len() > 0 {
			break
		}
	}
	if digits.Len() == 0 {
		return 5
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 5
	}
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}
	return float64(n)
}
