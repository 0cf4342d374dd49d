package rag

import (
	"context"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/advisor/internal/ai"
	"github.com/xxxsen/advisor/internal/model"
)

// Reranker reorders an already tenant-scoped candidate set, so isolation is
// preserved by construction. When no scorer is configured or the scorer
// fails, it degrades to retrieval order truncated to topN.
type Reranker struct {
	scorer ai.IReranker
	topN   int
}

func NewReranker(scorer ai.IReranker, topN int) *Reranker {
	if topN <= 0 {
		topN = 10
	}
	return &Reranker{scorer: scorer, topN: topN}
}

func (r *Reranker) ModelName() string {
	if r.scorer == nil {
		return ""
	}
	return r.scorer.ModelName()
}

func (r *Reranker) Rerank(ctx context.Context, query string, candidates []model.ScoredChunk) []model.ScoredChunk {
	if len(candidates) == 0 {
		return nil
	}
	if r.scorer == nil {
		return passthrough(candidates, r.topN)
	}
	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Chunk.Content
	}
	scores, err := r.scorer.Score(ctx, query, passages)
	if err != nil || len(scores) != len(candidates) {
		logutil.GetLogger(ctx).Warn("rerank failed, keeping retrieval order", zap.Error(err))
		return passthrough(candidates, r.topN)
	}
	out := make([]model.ScoredChunk, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].RerankScore = scores[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})
	return truncate(out, r.topN)
}

// passthrough keeps retrieval order and reuses the raw similarity as the
// relevance score, matching the contract that downstream policy reads
// RerankScore only.
func passthrough(candidates []model.ScoredChunk, topN int) []model.ScoredChunk {
	out := make([]model.ScoredChunk, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RawScore > out[j].RawScore
	})
	for i := range out {
		out[i].RerankScore = out[i].RawScore
	}
	return truncate(out, topN)
}

func truncate(items []model.ScoredChunk, n int) []model.ScoredChunk {
	if len(items) > n {
		return items[:n]
	}
	return items
}
