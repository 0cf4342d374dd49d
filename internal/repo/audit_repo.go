package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/pkg/errs"
)

// AuditRepo persists the compliance record of record. Rows are append-only:
// there is no update or delete path, by contract.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Insert(ctx context.Context, entry *model.AuditLogEntry) error {
	if entry.TenantID == "" {
		return errs.ErrScopeViolation
	}
	chunkIDs, err := json.Marshal(entry.ChunkIDs)
	if err != nil {
		return err
	}
	scores, err := json.Marshal(entry.Scores)
	if err != nil {
		return err
	}
	citations, err := json.Marshal(entry.Citations)
	if err != nil {
		return err
	}
	flags, err := json.Marshal(entry.Flags)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO audit_logs (id, tenant_id, conversation_id, user_query, workflow,
			chunk_ids, scores, model_name, response_text, citations,
			confidence, flags, flagged, latency_ms, error, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.TenantID, entry.ConversationID, entry.UserQuery,
		string(entry.Workflow), chunkIDs, scores, entry.ModelName,
		entry.ResponseText, citations, string(entry.Confidence), flags,
		entry.Flags.Any(), entry.LatencyMs, entry.Error, entry.Ctime,
	)
	return err
}

type AuditFilter struct {
	Workflow    string
	Confidence  string
	FlaggedOnly bool
	Since       int64
	Until       int64
	Page        int
	PerPage     int
}

func (r *AuditRepo) Get(ctx context.Context, tenantID, id string) (*model.AuditLogEntry, error) {
	if tenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	const query = auditSelect + ` WHERE tenant_id = $1 AND id = $2`
	row := r.db.QueryRowContext(ctx, query, tenantID, id)
	entry, err := scanAudit(row)
	if err == sql.ErrNoRows {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *AuditRepo) List(ctx context.Context, tenantID string, filter AuditFilter) ([]model.AuditLogEntry, int, error) {
	if tenantID == "" {
		return nil, 0, errs.ErrScopeViolation
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 50
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	where, args := buildAuditWhere(tenantID, filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := auditSelect + where +
		` ORDER BY ctime DESC LIMIT ` + strconv.Itoa(filter.PerPage) +
		` OFFSET ` + strconv.Itoa((filter.Page-1)*filter.PerPage)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []model.AuditLogEntry
	for rows.Next() {
		entry, err := scanAudit(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *entry)
	}
	return entries, total, rows.Err()
}

// Stats aggregates audit records since the given time.
type AuditStats struct {
	TotalQueries int            `json:"total_queries"`
	AvgLatencyMs float64        `json:"avg_latency_ms"`
	FlaggedCount int            `json:"flagged_count"`
	ByConfidence map[string]int `json:"by_confidence"`
}

func (r *AuditRepo) Stats(ctx context.Context, tenantID string, since int64) (*AuditStats, error) {
	if tenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	const query = `
		SELECT confidence, COUNT(*), COALESCE(AVG(latency_ms), 0),
		       COUNT(*) FILTER (WHERE flagged)
		FROM audit_logs
		WHERE tenant_id = $1 AND ctime >= $2
		GROUP BY confidence
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &AuditStats{ByConfidence: map[string]int{}}
	var weightedLatency float64
	for rows.Next() {
		var confidence string
		var count, flagged int
		var avgLatency float64
		if err := rows.Scan(&confidence, &count, &avgLatency, &flagged); err != nil {
			return nil, err
		}
		stats.ByConfidence[confidence] = count
		stats.TotalQueries += count
		stats.FlaggedCount += flagged
		weightedLatency += avgLatency * float64(count)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if stats.TotalQueries > 0 {
		stats.AvgLatencyMs = weightedLatency / float64(stats.TotalQueries)
	}
	return stats, nil
}

const auditSelect = `
	SELECT id, tenant_id, conversation_id, user_query, workflow, chunk_ids,
	       scores, model_name, response_text, citations, confidence, flags,
	       latency_ms, error, ctime
	FROM audit_logs`

func buildAuditWhere(tenantID string, filter AuditFilter) (string, []interface{}) {
	conds := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	argn := 2
	next := func() string {
		s := "$" + strconv.Itoa(argn)
		argn++
		return s
	}
	if filter.Workflow != "" {
		conds = append(conds, "workflow = "+next())
		args = append(args, filter.Workflow)
	}
	if filter.Confidence != "" {
		conds = append(conds, "confidence = "+next())
		args = append(args, filter.Confidence)
	}
	if filter.FlaggedOnly {
		conds = append(conds, "flagged = TRUE")
	}
	if filter.Since > 0 {
		conds = append(conds, "ctime >= "+next())
		args = append(args, filter.Since)
	}
	if filter.Until > 0 {
		conds = append(conds, "ctime < "+next())
		args = append(args, filter.Until)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanAudit(row rowScanner) (*model.AuditLogEntry, error) {
	var entry model.AuditLogEntry
	var workflow, confidence string
	var chunkIDs, scores, citations, flags []byte
	if err := row.Scan(
		&entry.ID, &entry.TenantID, &entry.ConversationID, &entry.UserQuery,
		&workflow, &chunkIDs, &scores, &entry.ModelName, &entry.ResponseText,
		&citations, &confidence, &flags, &entry.LatencyMs, &entry.Error, &entry.Ctime,
	); err != nil {
		return nil, err
	}
	entry.Workflow = model.Intent(workflow)
	entry.Confidence = model.Confidence(confidence)
	if err := json.Unmarshal(chunkIDs, &entry.ChunkIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scores, &entry.Scores); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(citations, &entry.Citations); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(flags, &entry.Flags); err != nil {
		return nil, err
	}
	return &entry, nil
}
