package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/advisor/internal/repo"
)

// RetentionJob prunes idle conversations past the retention window. Audit
// records are intentionally untouched; they are the permanent trail.
type RetentionJob struct {
	convs *repo.ConversationRepo
	days  int
}

func NewRetentionJob(convs *repo.ConversationRepo, days int) *RetentionJob {
	return &RetentionJob{convs: convs, days: days}
}

func (j *RetentionJob) Name() string {
	return "conversation_retention"
}

func (j *RetentionJob) Run(ctx context.Context) error {
	if j.days <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -j.days).Unix()
	deleted, err := j.convs.DeleteIdleBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("pruned idle conversations", zap.Int64("deleted", deleted))
	}
	return nil
}
