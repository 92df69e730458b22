package memorystream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	require.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.Equal(t, 0.0, cosineSimilarity(nil, []float32{1}))
	require.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestRecencyScore_HalfLife(t *testing.T) {
	t.Parallel()

	// At exactly one half-life, the score must have decayed to one half.
	require.InDelta(t, 1.0, recencyScore(0, 24), 1e-9)
	require.InDelta(t, 0.5, recencyScore(24, 24), 1e-6)
	require.InDelta(t, 0.25, recencyScore(48, 24), 1e-6)
}

func TestRecencyScore_DefaultsOnInvalidInputs(t *testing.T) {
	t.Parallel()

	require.InDelta(t, recencyScore(0, 24), recencyScore(-5, 24), 1e-9)
	require.InDelta(t, recencyScore(10, 24), recencyScore(10, 0), 1e-9)
}

func TestNormalizeImportance_Clamps(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 0.1, normalizeImportance(0), 1e-9)
	require.InDelta(t, 1.0, normalizeImportance(20), 1e-9)
	require.InDelta(t, 0.5, normalizeImportance(5), 1e-9)
}

func TestBlendedScore_EqualWeightsIsMean(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	got := blendedScore(0.9, 0.6, 0.3, w)
	require.InDelta(t, 0.6, got, 1e-9)
}

func TestBlendedScore_PerCallWeightsOverrideDefault(t *testing.T) {
	t.Parallel()

	// Weighting relevance alone should reduce to the relevance factor.
	w := Weights{Relevance: 1, Recency: 0, Importance: 0}
	got := blendedScore(0.8, 0.1, 0.1, w)
	require.InDelta(t, 0.8, got, 1e-9)
}

func TestBlendedScore_ZeroWeightsIsZero(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0.0, blendedScore(1, 1, 1, Weights{}))
}

// TestMemoryScoringExample exercises the M1-vs-M2 example from the
// retrieval scenario: a less-recent but highly important and relevant
// memory can outrank a more-recent, less important one once blended.
func TestMemoryScoringExample(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()

	m1Relevance, m1RecencyHours, m1Importance := 0.9, 20.0, 9.0
	m2Relevance, m2RecencyHours, m2Importance := 0.95, 1.0, 2.0

	m1Score := blendedScore(m1Relevance, recencyScore(m1RecencyHours, 24), normalizeImportance(m1Importance), w)
	m2Score := blendedScore(m2Relevance, recencyScore(m2RecencyHours, 24), normalizeImportance(m2Importance), w)

	require.Greater(t, m1Score, m2Score)
}
