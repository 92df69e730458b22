package memorystream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"genworld/internal/llmgateway"
	"genworld/internal/store"
	"genworld/internal/store/memtest"
	"genworld/internal/worldmodel"
)

func putMemory(t *testing.T, st *store.Store, id string, evidenceIDs []string) {
	t.Helper()
	err := st.Memories.Put(context.Background(), &worldmodel.Memory{
		ID:          id,
		WorldID:     "world-1",
		AgentID:     "agent-1",
		Kind:        worldmodel.MemoryReflection,
		Description: id,
		EvidenceIDs: evidenceIDs,
	})
	require.NoError(t, err)
}

func TestGetMemoryChain_WalksEvidenceChain(t *testing.T) {
	t.Parallel()

	st := memtest.New()
	putMemory(t, st, "m1", nil)
	putMemory(t, st, "m2", nil)
	putMemory(t, st, "reflection", []string{"m1", "m2"})

	provider := &fakeProvider{embedding: []float32{1}, importance: "5"}
	gw := llmgateway.New(provider, 4, "embed-model", "completion-model", 1)
	stream := New(st, gw, nil, 2000, 100000, 24, Callbacks{})

	chain, err := stream.GetMemoryChain(context.Background(), "reflection", 2)
	require.NoError(t, err)
	require.Len(t, chain, 3)
}

func TestGetMemoryChain_CycleDetectionTerminates(t *testing.T) {
	t.Parallel()

	st := memtest.New()
	putMemory(t, st, "a", []string{"b"})
	putMemory(t, st, "b", []string{"a"})

	provider := &fakeProvider{embedding: []float32{1}, importance: "5"}
	gw := llmgateway.New(provider, 4, "embed-model", "completion-model", 1)
	stream := New(st, gw, nil, 2000, 100000, 24, Callbacks{})

	chain, err := stream.GetMemoryChain(context.Background(), "a", 10)
	require.NoError(t, err)
	require.Len(t, chain, 2)
}
