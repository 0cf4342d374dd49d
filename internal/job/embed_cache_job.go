package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/advisor/internal/repo"
)

// EmbedCacheCleanupJob drops persisted embedding cache rows older than the
// configured window. The in-memory LRU ages out on its own.
type EmbedCacheCleanupJob struct {
	cache *repo.EmbeddingCacheRepo
	days  int
}

func NewEmbedCacheCleanupJob(cache *repo.EmbeddingCacheRepo, days int) *EmbedCacheCleanupJob {
	return &EmbedCacheCleanupJob{cache: cache, days: days}
}

func (j *EmbedCacheCleanupJob) Name() string {
	return "embed_cache_cleanup"
}

func (j *EmbedCacheCleanupJob) Run(ctx context.Context) error {
	if j.days <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -j.days).Unix()
	deleted, err := j.cache.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("pruned embedding cache", zap.Int64("deleted", deleted))
	}
	return nil
}
