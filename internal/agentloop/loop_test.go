package agentloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"genworld/internal/events"
	"genworld/internal/llmgateway"
	"genworld/internal/memorystream"
	"genworld/internal/planning"
	"genworld/internal/reflection"
	"genworld/internal/store/memtest"
	"genworld/internal/worldmodel"
)

type scriptedProvider struct {
	embedding []float32
}

func (p *scriptedProvider) Complete(ctx context.Context, systemPrompt, prompt, model string) (string, error) {
	if systemPrompt == "" {
		return "5", nil
	}
	switch {
	case contains(systemPrompt, "single integer"):
		return "5", nil
	case contains(systemPrompt, "daily goal"):
		return "go about the day\n9:00-17:00: tend the garden", nil
	default:
		return "", nil
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func (p *scriptedProvider) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = p.embedding
	}
	return out, nil
}

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	st := memtest.New()
	provider := &scriptedProvider{embedding: []float32{1, 0}}
	gw := llmgateway.New(provider, 4, "embed-model", "completion-model", 1)
	stream := memorystream.New(st, gw, nil, 2000, 100000, 24, memorystream.Callbacks{})
	refl := reflection.New(gw, stream, 150)
	plan := planning.New(gw, stream)
	evProc := events.New(st, nil)
	return New(st, stream, refl, plan, evProc)
}

func TestStep_GeneratesPlanOnFirstCall(t *testing.T) {
	t.Parallel()

	loop := newTestLoop(t)
	world := &worldmodel.World{ID: "world-1", CurrentTime: time.Now().UTC()}
	agent := &worldmodel.Agent{ID: "agent-1", WorldID: "world-1", Name: "Mina", Persona: "a gardener"}

	action, err := loop.Step(context.Background(), world, agent, Perception{})
	require.NoError(t, err)
	require.NotNil(t, action)

	plan, ok := loop.CurrentPlan("agent-1")
	require.True(t, ok)
	require.NotEmpty(t, plan.DailyGoal)
}

func TestStep_AddressedConversationRespondsWithCommunicateAction(t *testing.T) {
	t.Parallel()

	loop := newTestLoop(t)
	world := &worldmodel.World{ID: "world-1", CurrentTime: time.Now().UTC()}
	agent := &worldmodel.Agent{ID: "agent-1", WorldID: "world-1", Name: "Mina", Persona: "a gardener"}

	action, err := loop.Step(context.Background(), world, agent, Perception{AddressedBy: "agent-2", AddressedMsg: "hello there"})
	require.NoError(t, err)
	require.NotNil(t, action)
	require.Equal(t, planning.ActionCommunicate, action.Kind)
	require.Equal(t, "agent-2", action.Target)
}

func TestStep_DisruptionObservationClearsMinuteQueue(t *testing.T) {
	t.Parallel()

	loop := newTestLoop(t)
	world := &worldmodel.World{ID: "world-1", CurrentTime: time.Now().UTC()}
	agent := &worldmodel.Agent{ID: "agent-1", WorldID: "world-1", Name: "Mina", Persona: "a gardener"}

	_, err := loop.Step(context.Background(), world, agent, Perception{})
	require.NoError(t, err)

	disruptive := &worldmodel.Event{
		WorldID: "world-1",
		Kind:    worldmodel.EventObservation,
		Source:  "world",
		Payload: map[string]any{"description": "an unexpected storm blocked the path"},
	}
	action, err := loop.Step(context.Background(), world, agent, Perception{Events: []*worldmodel.Event{disruptive}})
	require.NoError(t, err)
	require.NotNil(t, action)
}
