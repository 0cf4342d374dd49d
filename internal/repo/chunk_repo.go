package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/pkg/errs"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch writes all chunks of a document in one transaction so a
// partially ingested document is never searchable.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO chunks (id, document_id, tenant_id, client_id, chunk_index, content, token_count, metadata, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, item := range chunks {
		meta, err := json.Marshal(item.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query,
			item.ID, item.DocumentID, item.TenantID, item.ClientID,
			item.ChunkIndex, item.Content, item.TokenCount, meta,
			pgvector.NewVector(item.Embedding), item.Ctime,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SearchParams scope a nearest-neighbor search. TenantID is mandatory; the
// repo refuses to run an unscoped search.
type SearchParams struct {
	TenantID    string
	ClientID    string
	DocTypes    []string
	CompanyLike string
	TopK        int
}

// Search returns the TopK nearest chunks by cosine similarity, ties broken by
// most recent document first.
func (r *ChunkRepo) Search(ctx context.Context, embedding []float32, params SearchParams) ([]model.ScoredChunk, error) {
	if params.TenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	if params.TopK <= 0 {
		params.TopK = 30
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT c.id, c.document_id, c.tenant_id, c.client_id, c.chunk_index,
		       c.content, c.token_count, c.metadata, c.ctime,
		       1 - (c.embedding <=> $1) AS score,
		       d.title, d.source_url
		FROM chunks c
		JOIN documents d ON c.document_id = d.id
		WHERE c.tenant_id = $2
	`)
	args := []interface{}{pgvector.NewVector(embedding), params.TenantID}
	argn := 3

	if params.ClientID != "" {
		sb.WriteString(" AND c.client_id = " + placeholder(argn))
		args = append(args, params.ClientID)
		argn++
	}
	if len(params.DocTypes) > 0 {
		sb.WriteString(" AND d.filing_type = ANY(" + placeholder(argn) + ")")
		args = append(args, pq.Array(params.DocTypes))
		argn++
	}
	if params.CompanyLike != "" {
		sb.WriteString(" AND d.company_name ILIKE " + placeholder(argn))
		args = append(args, "%"+params.CompanyLike+"%")
		argn++
	}

	sb.WriteString(" ORDER BY c.embedding <=> $1, d.ctime DESC LIMIT " + placeholder(argn))
	args = append(args, params.TopK)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ScoredChunk
	for rows.Next() {
		var item model.ScoredChunk
		var meta []byte
		if err := rows.Scan(
			&item.Chunk.ID, &item.Chunk.DocumentID, &item.Chunk.TenantID,
			&item.Chunk.ClientID, &item.Chunk.ChunkIndex, &item.Chunk.Content,
			&item.Chunk.TokenCount, &meta, &item.Chunk.Ctime,
			&item.RawScore, &item.DocTitle, &item.SourceURL,
		); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &item.Chunk.Metadata); err != nil {
				return nil, err
			}
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func (r *ChunkRepo) CountByDocument(ctx context.Context, tenantID, docID string) (int, error) {
	if tenantID == "" {
		return 0, errs.ErrScopeViolation
	}
	const query = `SELECT COUNT(*) FROM chunks WHERE tenant_id = $1 AND document_id = $2`
	var count int
	if err := r.db.QueryRowContext(ctx, query, tenantID, docID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
