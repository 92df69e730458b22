package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"genworld/internal/store/memtest"
	"genworld/internal/worldmodel"
)

func TestProcess_PersistsAndAssignsIDAndTimestamp(t *testing.T) {
	t.Parallel()

	st := memtest.New()
	p := New(st, nil)

	ev := &worldmodel.Event{WorldID: "world-1", Kind: worldmodel.EventObservation, Source: "world"}
	err := p.Process(context.Background(), ev)
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)
	require.False(t, ev.CreatedAt.IsZero())
}

func TestProcess_BroadcastsToSubscribersByKind(t *testing.T) {
	t.Parallel()

	st := memtest.New()
	p := New(st, nil)

	sub := p.Subscribe("world-1", worldmodel.EventObservation)
	defer sub.Close()

	other := p.Subscribe("world-1", worldmodel.EventAction)
	defer other.Close()

	err := p.Process(context.Background(), &worldmodel.Event{WorldID: "world-1", Kind: worldmodel.EventObservation, Source: "world"})
	require.NoError(t, err)

	select {
	case ev := <-sub.C():
		require.Equal(t, worldmodel.EventObservation, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected event on matching-kind subscription")
	}

	select {
	case <-other.C():
		t.Fatal("unexpected event on non-matching-kind subscription")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProcess_AppliesConsequenceRuleRecursively(t *testing.T) {
	t.Parallel()

	st := memtest.New()
	err := st.Agents.Put(context.Background(), &worldmodel.Agent{ID: "agent-1", WorldID: "world-1", CurrentArea: "plaza"})
	require.NoError(t, err)

	p := New(st, nil, AreaObservationRule)

	sub := p.Subscribe("world-1", worldmodel.EventObservation)
	defer sub.Close()

	err = p.Process(context.Background(), &worldmodel.Event{
		WorldID: "world-1",
		Kind:    worldmodel.EventWorldChange,
		Source:  "world",
		Payload: map[string]any{"area": "plaza", "description": "a fountain turned on"},
	})
	require.NoError(t, err)

	select {
	case ev := <-sub.C():
		require.Equal(t, "agent-1", ev.Payload["agent_id"])
	case <-time.After(time.Second):
		t.Fatal("expected a consequence observation event for the agent in the area")
	}
}

func TestSubscribe_CloseStopsDelivery(t *testing.T) {
	t.Parallel()

	st := memtest.New()
	p := New(st, nil)

	sub := p.Subscribe("world-1", "")
	sub.Close()

	err := p.Process(context.Background(), &worldmodel.Event{WorldID: "world-1", Kind: worldmodel.EventObservation})
	require.NoError(t, err)

	_, ok := <-sub.C()
	require.False(t, ok)
}
