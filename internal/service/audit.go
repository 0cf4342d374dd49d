package service

import (
	"context"
	"time"

	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/repo"
)

const defaultStatsWindow = 7 * 24 * time.Hour

// AuditStore is the audit read contract; satisfied by *repo.AuditRepo.
type AuditStore interface {
	Get(ctx context.Context, tenantID, id string) (*model.AuditLogEntry, error)
	List(ctx context.Context, tenantID string, filter repo.AuditFilter) ([]model.AuditLogEntry, int, error)
	Stats(ctx context.Context, tenantID string, since int64) (*repo.AuditStats, error)
}

// AuditService is the read side of the audit trail. Writes happen only inside
// the workflow engine; nothing here can mutate a record.
type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

func (s *AuditService) Get(ctx context.Context, tenantID, id string) (*model.AuditLogEntry, error) {
	return s.store.Get(ctx, tenantID, id)
}

func (s *AuditService) List(ctx context.Context, tenantID string, filter repo.AuditFilter) ([]model.AuditLogEntry, int, error) {
	return s.store.List(ctx, tenantID, filter)
}

func (s *AuditService) Stats(ctx context.Context, tenantID string, since int64) (*repo.AuditStats, error) {
	if since <= 0 {
		since = time.Now().Add(-defaultStatsWindow).Unix()
	}
	return s.store.Stats(ctx, tenantID, since)
}
