package memtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"genworld/internal/apperr"
	"genworld/internal/worldmodel"
)

func TestWorldStore_PutGet_RoundTrips(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	w := &worldmodel.World{ID: "world-1", Name: "Oakhaven"}
	require.NoError(t, st.Worlds.Put(ctx, w))
	require.Equal(t, int64(1), w.Version)

	got, err := st.Worlds.Get(ctx, "world-1")
	require.NoError(t, err)
	require.Equal(t, "Oakhaven", got.Name)
}

func TestWorldStore_Get_NotFound(t *testing.T) {
	t.Parallel()

	st := New()
	_, err := st.Worlds.Get(context.Background(), "missing")
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestWorldStore_Put_OptimisticConcurrencyConflict(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	w := &worldmodel.World{ID: "world-1"}
	require.NoError(t, st.Worlds.Put(ctx, w)) // version becomes 1

	stale := &worldmodel.World{ID: "world-1", Version: 0}
	stale.Version = 1
	require.NoError(t, st.Worlds.Put(ctx, stale)) // matches current version, succeeds

	reallyStale := &worldmodel.World{ID: "world-1", Version: 1}
	err := st.Worlds.Put(ctx, reallyStale)
	require.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestAgentStore_ListByWorld_FiltersByWorld(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	require.NoError(t, st.Agents.Put(ctx, &worldmodel.Agent{ID: "a1", WorldID: "world-1"}))
	require.NoError(t, st.Agents.Put(ctx, &worldmodel.Agent{ID: "a2", WorldID: "world-2"}))

	agents, err := st.Agents.ListByWorld(ctx, "world-1")
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, "a1", agents[0].ID)
}

func TestMemoryStore_ListByAgent_BoundsByLimit(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, st.Memories.Put(ctx, &worldmodel.Memory{ID: string(rune('a' + i)), AgentID: "agent-1"}))
	}

	out, err := st.Memories.ListByAgent(ctx, "agent-1", 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
}

func TestConversationStore_FindActive_MatchesEitherOrdering(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	require.NoError(t, st.Conversations.Put(ctx, &worldmodel.Conversation{
		ID: "c1", WorldID: "world-1", AgentAID: "a1", AgentBID: "a2",
	}))

	got, err := st.Conversations.FindActive(ctx, "world-1", "a2", "a1")
	require.NoError(t, err)
	require.Equal(t, "c1", got.ID)
}
