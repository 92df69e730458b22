package planning

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyAction(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want ActionKind
	}{
		{"walk to the cafe", ActionMove},
		{"go to the market", ActionMove},
		{"talk to Maria about the party", ActionCommunicate},
		{"greet the neighbor", ActionCommunicate},
		{"open the fridge", ActionInteract},
		{"pick up the book", ActionInteract},
		{"watch the sunset", ActionObserve},
		{"think about the day ahead", ActionGeneral},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ClassifyAction(c.text), "text=%q", c.text)
	}
}

func TestEvaluateReplan_DisruptionMarkerTriggersMinuteReplan(t *testing.T) {
	t.Parallel()

	d := EvaluateReplan("an unexpected delivery blocked the road", "walk to the cafe")
	require.True(t, d.Replan)
	require.False(t, d.ReplanHourly)
}

func TestEvaluateReplan_SignificantChangeAlsoTriggersHourlyReplan(t *testing.T) {
	t.Parallel()

	d := EvaluateReplan("emergency evacuation, changed location", "attend the meeting")
	require.True(t, d.Replan)
	require.True(t, d.ReplanHourly)
}

func TestEvaluateReplan_NoMarkersNoReplan(t *testing.T) {
	t.Parallel()

	d := EvaluateReplan("the weather is pleasant today", "walk to the cafe")
	require.False(t, d.Replan)
	require.False(t, d.ReplanHourly)
}

// TestEvaluateReplan_CafeCancelledScenario mirrors the spec's reactive
// replan scenario: a planned "walk to the cafe" step invalidated by an
// observation that the cafe is cancelled for the day.
func TestEvaluateReplan_CafeCancelledScenario(t *testing.T) {
	t.Parallel()

	d := EvaluateReplan("the cafe is cancelled for today", "walk to the cafe")
	require.True(t, d.Replan)
}

func TestSplitNonEmptyLines(t *testing.T) {
	t.Parallel()

	got := splitNonEmptyLines("first line\n\n  second line  \nthird\n")
	require.Equal(t, []string{"first line", "second line", "third"}, got)
}
