package rag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/advisor/internal/config"
	"github.com/xxxsen/advisor/internal/model"
)

func testGate() *Gate {
	return NewGate(config.EvidenceConfig{
		MinRelevance: 0.5,
		StrongMargin: 0.2,
		HighStrong:   2,
		MediumWeak:   3,
	})
}

func scored(scores ...float64) []model.ScoredChunk {
	out := make([]model.ScoredChunk, 0, len(scores))
	for i, s := range scores {
		out = append(out, model.ScoredChunk{
			Chunk:       model.Chunk{ID: string(rune('a' + i))},
			RerankScore: s,
		})
	}
	return out
}

func TestGateEmptyCandidates(t *testing.T) {
	a := testGate().Evaluate(nil)
	require.False(t, a.Sufficient)
	require.Equal(t, model.ConfidenceLow, a.Confidence)
	require.Empty(t, a.Usable)
}

func TestGateAllBelowMinimum(t *testing.T) {
	a := testGate().Evaluate(scored(0.49, 0.3, 0.1))
	require.False(t, a.Sufficient)
	require.Empty(t, a.Usable)
}

func TestGateBoundaryScoreCounts(t *testing.T) {
	a := testGate().Evaluate(scored(0.5))
	require.True(t, a.Sufficient)
	require.Len(t, a.Usable, 1)
	require.Equal(t, model.ConfidenceLow, a.Confidence)
}

func TestGateFiltersUnusable(t *testing.T) {
	a := testGate().Evaluate(scored(0.9, 0.2, 0.6, 0.1))
	require.True(t, a.Sufficient)
	require.Len(t, a.Usable, 2)
	for _, c := range a.Usable {
		require.GreaterOrEqual(t, c.RerankScore, 0.5)
	}
}

func TestGateConfidenceLevels(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   model.Confidence
	}{
		{"two strong is high", []float64{0.75, 0.71}, model.ConfidenceHigh},
		{"one strong is medium", []float64{0.8, 0.55}, model.ConfidenceMedium},
		{"three weak is medium", []float64{0.55, 0.52, 0.5}, model.ConfidenceMedium},
		{"two weak is low", []float64{0.55, 0.52}, model.ConfidenceLow},
		{"single weak is low", []float64{0.6}, model.ConfidenceLow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := testGate().Evaluate(scored(tc.scores...))
			require.True(t, a.Sufficient)
			require.Equal(t, tc.want, a.Confidence)
		})
	}
}

// Raising any single score never lowers the verdict.
func TestGateMonotonicity(t *testing.T) {
	rank := map[model.Confidence]int{
		model.ConfidenceLow:    0,
		model.ConfidenceMedium: 1,
		model.ConfidenceHigh:   2,
	}
	base := []float64{0.55, 0.52, 0.4}
	before := testGate().Evaluate(scored(base...))
	for i := range base {
		bumped := append([]float64(nil), base...)
		bumped[i] += 0.3
		after := testGate().Evaluate(scored(bumped...))
		require.GreaterOrEqual(t, rank[after.Confidence], rank[before.Confidence])
		if before.Sufficient {
			require.True(t, after.Sufficient)
		}
	}
}

func TestGateDeterministic(t *testing.T) {
	in := scored(0.9, 0.6, 0.4, 0.72)
	a := testGate().Evaluate(in)
	b := testGate().Evaluate(in)
	require.Equal(t, a, b)
}
