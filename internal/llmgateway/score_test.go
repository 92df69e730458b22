package llmgateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
	}{
		{"7", 7},
		{"  9  ", 9},
		{"Score: 8", 8},
		{"0", 1},
		{"15", 10},
		{"no digits here", 5},
		{"", 5},
	}
	for _, c := range cases {
		require.Equal(t, c.want, parseScore(c.in), "input=%q", c.in)
	}
}
