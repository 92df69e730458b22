package llmgateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	completeCalls atomic.Int32
	completeResp  string
	completeErr   error
	embedResp     [][]float32
	embedErr      error
}

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, prompt, model string) (string, error) {
	f.completeCalls.Add(1)
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.completeResp, nil
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedResp, nil
}

func TestGateway_Complete_IdenticalCallsReturnSameResult(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{completeResp: "an insight"}
	gw := New(provider, 4, "embed-model", "completion-model", 1)

	out1, err := gw.Complete(context.Background(), "world-1", "sys", "prompt")
	require.NoError(t, err)
	require.Equal(t, "an insight", out1)

	out2, err := gw.Complete(context.Background(), "world-1", "sys", "prompt")
	require.NoError(t, err)
	require.Equal(t, out1, out2)
}

func TestGateway_Embed_ReturnsProviderVectors(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{embedResp: [][]float32{{0.1, 0.2}}}
	gw := New(provider, 4, "embed-model", "completion-model", 1)

	vecs, err := gw.Embed(context.Background(), "world-1", []string{"hello"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{0.1, 0.2}}, vecs)
}

func TestGateway_Complete_FailsAfterRetriesExhausted(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{completeErr: errors.New("boom")}
	gw := New(provider, 4, "embed-model", "completion-model", 2)

	_, err := gw.Complete(context.Background(), "world-1", "sys", "prompt")
	require.Error(t, err)
}

func TestGateway_ScoreImportance_ParsesIntegerResponse(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{completeResp: "8"}
	gw := New(provider, 4, "embed-model", "completion-model", 1)

	score, err := gw.ScoreImportance(context.Background(), "world-1", "the house is on fire")
	require.NoError(t, err)
	require.Equal(t, 8.0, score)
}
