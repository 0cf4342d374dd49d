package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/pkg/dbutil"
	"github.com/xxxsen/advisor/internal/pkg/errs"
)

var documentFields = []string{
	"id", "tenant_id", "client_id", "title", "source_type", "source_url",
	"sha256", "company_name", "filing_type", "filing_date", "ctime",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":           doc.ID,
		"tenant_id":    doc.TenantID,
		"client_id":    doc.ClientID,
		"title":        doc.Title,
		"source_type":  doc.SourceType,
		"source_url":   doc.SourceURL,
		"sha256":       doc.SHA256,
		"company_name": doc.CompanyName,
		"filing_type":  doc.FilingType,
		"filing_date":  doc.FilingDate,
		"ctime":        doc.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return errs.ErrConflict
		}
		return err
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, tenantID, docID string) (*model.Document, error) {
	if tenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	where := map[string]interface{}{
		"id":        docID,
		"tenant_id": tenantID,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepo) GetBySHA256(ctx context.Context, tenantID, sha256 string) (*model.Document, error) {
	if tenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"sha256":    sha256,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepo) List(ctx context.Context, tenantID, clientID string, limit uint) ([]model.Document, error) {
	if tenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"_orderby":  "ctime desc",
	}
	if clientID != "" {
		where["client_id"] = clientID
	}
	if limit > 0 {
		where["_limit"] = []uint{limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Delete removes the document; its chunks go with it via the cascade on
// chunks.document_id.
func (r *DocumentRepo) Delete(ctx context.Context, tenantID, docID string) error {
	if tenantID == "" {
		return errs.ErrScopeViolation
	}
	sqlStr, args := dbutil.Finalize(
		`DELETE FROM documents WHERE id = ? AND tenant_id = ?`,
		[]interface{}{docID, tenantID},
	)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	if err := row.Scan(
		&doc.ID, &doc.TenantID, &doc.ClientID, &doc.Title, &doc.SourceType,
		&doc.SourceURL, &doc.SHA256, &doc.CompanyName, &doc.FilingType,
		&doc.FilingDate, &doc.Ctime,
	); err != nil {
		return nil, err
	}
	return &doc, nil
}
