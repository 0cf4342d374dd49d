package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/pkg/dbutil"
	"github.com/xxxsen/advisor/internal/pkg/errs"
)

var conversationFields = []string{"id", "tenant_id", "client_id", "user_id", "title", "ctime", "mtime"}

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	data := map[string]interface{}{
		"id":        conv.ID,
		"tenant_id": conv.TenantID,
		"client_id": conv.ClientID,
		"user_id":   conv.UserID,
		"title":     conv.Title,
		"ctime":     conv.Ctime,
		"mtime":     conv.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("conversations", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ConversationRepo) Get(ctx context.Context, tenantID, convID string) (*model.Conversation, error) {
	if tenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	where := map[string]interface{}{
		"id":        convID,
		"tenant_id": tenantID,
	}
	sqlStr, args, err := builder.BuildSelect("conversations", where, conversationFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var conv model.Conversation
	if err := row.Scan(&conv.ID, &conv.TenantID, &conv.ClientID, &conv.UserID, &conv.Title, &conv.Ctime, &conv.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepo) List(ctx context.Context, tenantID string, limit uint) ([]model.Conversation, error) {
	if tenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	if limit == 0 {
		limit = 50
	}
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"_orderby":  "mtime desc",
		"_limit":    []uint{limit},
	}
	sqlStr, args, err := builder.BuildSelect("conversations", where, conversationFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var convs []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.TenantID, &conv.ClientID, &conv.UserID, &conv.Title, &conv.Ctime, &conv.Mtime); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

func (r *ConversationRepo) Touch(ctx context.Context, tenantID, convID string, mtime int64) error {
	if tenantID == "" {
		return errs.ErrScopeViolation
	}
	sqlStr, args := dbutil.Finalize(
		`UPDATE conversations SET mtime = ? WHERE id = ? AND tenant_id = ?`,
		[]interface{}{mtime, convID, tenantID},
	)
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// DeleteIdleBefore prunes conversations whose last activity predates the
// cutoff. Audit records are kept; they reference conversations by ID only.
func (r *ConversationRepo) DeleteIdleBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args := dbutil.Finalize(
		`DELETE FROM conversations WHERE mtime < ?`,
		[]interface{}{cutoff},
	)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
