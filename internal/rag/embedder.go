package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/advisor/internal/ai"
	"github.com/xxxsen/advisor/internal/pkg/timeutil"
	"github.com/xxxsen/advisor/internal/repo"
)

const (
	TaskTypeQuery    = "RETRIEVAL_QUERY"
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
)

// CachedEmbedder fronts the embedding capability with a process LRU and a
// shared DB cache, both keyed by (model, task type, content hash). Keys
// include the model name, so a model upgrade naturally misses the old
// entries instead of mixing embedding versions.
type CachedEmbedder struct {
	inner ai.IEmbedder
	lru   *expirable.LRU[string, []float32]
	store *repo.EmbeddingCacheRepo
}

func NewCachedEmbedder(inner ai.IEmbedder, store *repo.EmbeddingCacheRepo, lruSize int) *CachedEmbedder {
	if lruSize <= 0 {
		lruSize = 10000
	}
	return &CachedEmbedder{
		inner: inner,
		lru:   expirable.NewLRU[string, []float32](lruSize, nil, 2*time.Hour),
		store: store,
	}
}

func (e *CachedEmbedder) ModelName() string {
	return e.inner.ModelName()
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	hash := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(hash[:])
	key := e.inner.ModelName() + ":" + taskType + ":" + contentHash

	if cached, ok := e.lru.Get(key); ok {
		return cached, nil
	}
	if e.store != nil {
		cached, ok, err := e.store.Get(ctx, e.inner.ModelName(), taskType, contentHash)
		if err != nil {
			logutil.GetLogger(ctx).Warn("embedding cache read failed", zap.Error(err))
		} else if ok {
			e.lru.Add(key, cached)
			return cached, nil
		}
	}

	embedding, err := e.inner.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	e.lru.Add(key, embedding)
	if e.store != nil {
		if err := e.store.Save(ctx, e.inner.ModelName(), taskType, contentHash, embedding, timeutil.NowUnix()); err != nil {
			logutil.GetLogger(ctx).Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return embedding, nil
}
