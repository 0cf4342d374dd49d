package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/advisor/internal/model"
)

type stubScorer struct {
	scores []float64
	err    error
}

func (s *stubScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	return s.scores, s.err
}

func (s *stubScorer) ModelName() string { return "stub-rerank" }

func rawScored(scores ...float64) []model.ScoredChunk {
	out := make([]model.ScoredChunk, 0, len(scores))
	for i, s := range scores {
		out = append(out, model.ScoredChunk{
			Chunk:    model.Chunk{ID: string(rune('a' + i))},
			RawScore: s,
		})
	}
	return out
}

func TestRerankAssignsScoresAndSorts(t *testing.T) {
	r := NewReranker(&stubScorer{scores: []float64{0.1, 0.9, 0.5}}, 10)
	out := r.Rerank(context.Background(), "q", rawScored(0.8, 0.7, 0.6))
	require.Len(t, out, 3)
	require.Equal(t, "b", out[0].Chunk.ID)
	require.Equal(t, "c", out[1].Chunk.ID)
	require.Equal(t, "a", out[2].Chunk.ID)
	require.Equal(t, 0.9, out[0].RerankScore)
}

func TestRerankTruncatesToTopN(t *testing.T) {
	r := NewReranker(&stubScorer{scores: []float64{0.5, 0.4, 0.3, 0.2}}, 2)
	out := r.Rerank(context.Background(), "q", rawScored(0.1, 0.2, 0.3, 0.4))
	require.Len(t, out, 2)
}

func TestRerankNoScorerPassthrough(t *testing.T) {
	r := NewReranker(nil, 10)
	out := r.Rerank(context.Background(), "q", rawScored(0.2, 0.9, 0.5))
	require.Len(t, out, 3)
	require.Equal(t, "b", out[0].Chunk.ID)
	// raw similarity becomes the relevance score downstream policy reads
	require.Equal(t, 0.9, out[0].RerankScore)
	require.Equal(t, 0.9, out[0].RawScore)
}

func TestRerankScorerErrorFallsBack(t *testing.T) {
	r := NewReranker(&stubScorer{err: errors.New("cohere down")}, 10)
	out := r.Rerank(context.Background(), "q", rawScored(0.3, 0.6))
	require.Len(t, out, 2)
	require.Equal(t, "b", out[0].Chunk.ID)
	require.Equal(t, 0.6, out[0].RerankScore)
}

func TestRerankLengthMismatchFallsBack(t *testing.T) {
	r := NewReranker(&stubScorer{scores: []float64{0.9}}, 10)
	out := r.Rerank(context.Background(), "q", rawScored(0.3, 0.6))
	require.Len(t, out, 2)
	require.Equal(t, "b", out[0].Chunk.ID)
}

func TestRerankEmptyInput(t *testing.T) {
	r := NewReranker(nil, 10)
	require.Empty(t, r.Rerank(context.Background(), "q", nil))
}

func TestRerankDoesNotMutateInput(t *testing.T) {
	in := rawScored(0.1, 0.9)
	r := NewReranker(nil, 10)
	_ = r.Rerank(context.Background(), "q", in)
	require.Equal(t, "a", in[0].Chunk.ID)
	require.Equal(t, 0.0, in[0].RerankScore)
}
