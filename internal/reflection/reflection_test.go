package reflection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"genworld/internal/llmgateway"
	"genworld/internal/memorystream"
	"genworld/internal/store/memtest"
	"genworld/internal/worldmodel"
)

type scriptedProvider struct {
	completions []string
	embedding   []float32
}

func (p *scriptedProvider) Complete(ctx context.Context, systemPrompt, prompt, model string) (string, error) {
	if len(p.completions) == 0 {
		return "", nil
	}
	out := p.completions[0]
	p.completions = p.completions[1:]
	return out, nil
}

func (p *scriptedProvider) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = p.embedding
	}
	return out, nil
}

func TestShouldTrigger_DefaultThreshold(t *testing.T) {
	t.Parallel()

	e := New(nil, nil, 0)
	require.False(t, e.ShouldTrigger(150))
	require.True(t, e.ShouldTrigger(151))
}

// TestReflectionTrigger_TwentyImportantObservations mirrors the spec
// scenario: 20 observations of importance 8 sum to 160, which crosses the
// default threshold of 150.
func TestReflectionTrigger_TwentyImportantObservations(t *testing.T) {
	t.Parallel()

	e := New(nil, nil, 150)
	sum := 0.0
	for i := 0; i < 20; i++ {
		sum += 8
	}
	require.True(t, e.ShouldTrigger(sum))
}

func TestRun_ProducesReflectionMemoryFromEvidence(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{
		embedding: []float32{1, 0},
		completions: []string{
			"What does this person value?", // generateQuestions
			"They value their morning routine (because of statement 1)", // synthesize
		},
	}
	gw := llmgateway.New(provider, 4, "embed-model", "completion-model", 1)
	st := memtest.New()
	stream := memorystream.New(st, gw, nil, 2000, 100000, 24, memorystream.Callbacks{})

	seed := []*worldmodel.Memory{{ID: "seed-1", AgentID: "agent-1", Description: "woke up early and went for a run"}}
	err := st.Memories.Put(context.Background(), seed[0])
	require.NoError(t, err)

	e := New(gw, stream, 1)
	produced, err := e.Run(context.Background(), "world-1", "agent-1", seed)
	require.NoError(t, err)
	require.NotEmpty(t, produced)
	require.Equal(t, worldmodel.MemoryReflection, produced[0].Kind)
}

func TestRun_EmptySeedProducesNothing(t *testing.T) {
	t.Parallel()

	e := New(nil, nil, 150)
	produced, err := e.Run(context.Background(), "world-1", "agent-1", nil)
	require.NoError(t, err)
	require.Empty(t, produced)
}
