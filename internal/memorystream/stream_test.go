package memorystream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"genworld/internal/llmgateway"
	"genworld/internal/store/memtest"
	"genworld/internal/worldmodel"
)

type fakeProvider struct {
	embedding  []float32
	importance string
}

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, prompt, model string) (string, error) {
	return f.importance, nil
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.embedding
	}
	return out, nil
}

func newTestStream(t *testing.T) (*Stream, *fakeProvider) {
	t.Helper()
	st := memtest.New()
	provider := &fakeProvider{embedding: []float32{1, 0, 0}, importance: "5"}
	gw := llmgateway.New(provider, 4, "embed-model", "completion-model", 1)
	return New(st, gw, nil, 2000, 100000, 24, Callbacks{}), provider
}

func TestAddMemory_PersistsWithImportanceAndEmbedding(t *testing.T) {
	t.Parallel()

	stream, _ := newTestStream(t)
	m, err := stream.AddMemory(context.Background(), "world-1", "agent-1", worldmodel.MemoryObservation, "saw a sunset", nil)
	require.NoError(t, err)
	require.Equal(t, 5.0, m.Importance)
	require.Equal(t, []float32{1, 0, 0}, m.Embedding)
	require.False(t, m.LastAccessedAt.IsZero())
}

func TestRetrieveRelevant_RanksByBlendedScore(t *testing.T) {
	t.Parallel()

	stream, provider := newTestStream(t)
	ctx := context.Background()

	provider.importance = "9"
	_, err := stream.AddMemory(ctx, "world-1", "agent-1", worldmodel.MemoryObservation, "important old memory", nil)
	require.NoError(t, err)

	provider.importance = "2"
	_, err = stream.AddMemory(ctx, "world-1", "agent-1", worldmodel.MemoryObservation, "trivial memory", nil)
	require.NoError(t, err)

	results, err := stream.RetrieveRelevant(ctx, "world-1", "agent-1", "anything", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Both memories have identical embeddings and near-identical recency;
	// the higher-importance one must rank first.
	require.Equal(t, "important old memory", results[0].Memory.Description)
}

func TestRetrieveRelevant_TouchesLastAccessedSynchronously(t *testing.T) {
	t.Parallel()

	stream, _ := newTestStream(t)
	ctx := context.Background()

	_, err := stream.AddMemory(ctx, "world-1", "agent-1", worldmodel.MemoryObservation, "a memory", nil)
	require.NoError(t, err)

	before := time.Now().UTC()
	results, err := stream.RetrieveRelevant(ctx, "world-1", "agent-1", "a memory", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// The invariant: every returned memory's lastAccessed equals the
	// retrieval time, which must hold by the time RetrieveRelevant returns.
	require.True(t, !results[0].Memory.LastAccessedAt.Before(before))
}

func TestRetrieveRelevant_TiesBrokenByNewerThenLexicographicID(t *testing.T) {
	t.Parallel()

	stream, _ := newTestStream(t)
	ctx := context.Background()

	// Two memories with identical relevance/recency/importance; the tie
	// must be broken by newer CreatedAt, then lexicographic ID.
	older, err := stream.AddMemory(ctx, "world-1", "agent-1", worldmodel.MemoryObservation, "first", nil)
	require.NoError(t, err)
	newer, err := stream.AddMemory(ctx, "world-1", "agent-1", worldmodel.MemoryObservation, "second", nil)
	require.NoError(t, err)

	results, err := stream.RetrieveRelevant(ctx, "world-1", "agent-1", "anything", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	if newer.CreatedAt.After(older.CreatedAt) {
		require.Equal(t, newer.ID, results[0].Memory.ID)
	}
}
