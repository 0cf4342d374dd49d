package rag

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/pkg/errs"
	"github.com/xxxsen/advisor/internal/repo"
)

// Embedder is the capability contract the retriever needs from the embedding
// side. Satisfied by *CachedEmbedder and by plain ai.IEmbedder wrappers.
type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

// ChunkSearcher is the corpus-store capability: a tenant-scoped
// nearest-neighbor search. Satisfied by *repo.ChunkRepo.
type ChunkSearcher interface {
	Search(ctx context.Context, embedding []float32, params repo.SearchParams) ([]model.ScoredChunk, error)
}

type RetrieveRequest struct {
	Query       string
	TenantID    string
	ClientID    string
	DocTypes    []string
	CompanyLike string
	TopK        int
}

type Retriever struct {
	embedder Embedder
	searcher ChunkSearcher
	topK     int
}

func NewRetriever(embedder Embedder, searcher ChunkSearcher, topK int) *Retriever {
	if topK <= 0 {
		topK = 30
	}
	return &Retriever{embedder: embedder, searcher: searcher, topK: topK}
}

// Retrieve embeds the query and runs a scoped similarity search. A missing
// tenant is a scope violation, never a broadened search.
func (r *Retriever) Retrieve(ctx context.Context, req RetrieveRequest) ([]model.ScoredChunk, error) {
	if req.TenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	topK := req.TopK
	if topK <= 0 {
		topK = r.topK
	}
	embedding, err := r.embedder.Embed(ctx, req.Query, TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := r.searcher.Search(ctx, embedding, repo.SearchParams{
		TenantID:    req.TenantID,
		ClientID:    req.ClientID,
		DocTypes:    req.DocTypes,
		CompanyLike: req.CompanyLike,
		TopK:        topK,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logutil.GetLogger(ctx).Debug("retrieval done",
		zap.String("tenant_id", req.TenantID),
		zap.Int("candidates", len(results)),
	)
	return results, nil
}
