package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/advisor/internal/chunk"
	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/pkg/errs"
	"github.com/xxxsen/advisor/internal/pkg/timeutil"
	"github.com/xxxsen/advisor/internal/rag"
	"github.com/xxxsen/advisor/internal/redact"
)

// DocumentStore and ChunkStore are the persistence contracts ingestion
// writes through. Satisfied by *repo.DocumentRepo and *repo.ChunkRepo.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, tenantID, docID string) (*model.Document, error)
	GetBySHA256(ctx context.Context, tenantID, sha256 string) (*model.Document, error)
	List(ctx context.Context, tenantID, clientID string, limit uint) ([]model.Document, error)
	Delete(ctx context.Context, tenantID, docID string) error
}

type ChunkStore interface {
	InsertBatch(ctx context.Context, chunks []*model.Chunk) error
	CountByDocument(ctx context.Context, tenantID, docID string) (int, error)
}

type IngestRequest struct {
	TenantID    string
	ClientID    string
	Title       string
	SourceType  string
	SourceURL   string
	CompanyName string
	FilingType  string
	FilingDate  int64
	Content     string
}

type IngestResult struct {
	Document    *model.Document `json:"document"`
	ChunkCount  int             `json:"chunk_count"`
	PIIRedacted bool            `json:"pii_redacted"`
}

// IngestService runs the document pipeline: redact, dedup, chunk, embed,
// persist. Redaction comes first so nothing downstream, including the
// embedding cache, ever sees raw PII.
type IngestService struct {
	redactor *redact.Redactor
	chunker  *chunk.Chunker
	embedder rag.Embedder
	docs     DocumentStore
	chunks   ChunkStore
}

func NewIngestService(redactor *redact.Redactor, chunker *chunk.Chunker,
	embedder rag.Embedder, docs DocumentStore, chunks ChunkStore) *IngestService {
	return &IngestService{
		redactor: redactor,
		chunker:  chunker,
		embedder: embedder,
		docs:     docs,
		chunks:   chunks,
	}
}

func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.TenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("empty content: %w", errs.ErrInvalid)
	}
	if req.Title == "" {
		return nil, fmt.Errorf("title is required: %w", errs.ErrInvalid)
	}
	if req.SourceType == "" {
		req.SourceType = model.SourceTypeUpload
	}

	content, redacted := s.redactor.Redact(req.Content)
	sum := sha256.Sum256([]byte(content))
	contentHash := hex.EncodeToString(sum[:])

	// Dedup is per tenant over the redacted content, so re-uploading the same
	// document is deterministic regardless of who uploads it.
	if existing, err := s.docs.GetBySHA256(ctx, req.TenantID, contentHash); err == nil {
		return nil, fmt.Errorf("document already ingested as %s: %w", existing.ID, errs.ErrConflict)
	} else if !errs.IsNotFound(err) {
		return nil, err
	}

	pieces := s.chunker.Split(content)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("no extractable text: %w", errs.ErrInvalid)
	}

	doc := &model.Document{
		ID:          uuid.NewString(),
		TenantID:    req.TenantID,
		ClientID:    req.ClientID,
		Title:       req.Title,
		SourceType:  req.SourceType,
		SourceURL:   req.SourceURL,
		SHA256:      contentHash,
		CompanyName: req.CompanyName,
		FilingType:  req.FilingType,
		FilingDate:  req.FilingDate,
		ChunkCount:  len(pieces),
		Ctime:       timeutil.NowUnix(),
	}

	records := make([]*model.Chunk, 0, len(pieces))
	for _, p := range pieces {
		embedding, err := s.embedder.Embed(ctx, p.Content, rag.TaskTypeDocument)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", p.Index, err)
		}
		records = append(records, &model.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			TenantID:   req.TenantID,
			ClientID:   req.ClientID,
			ChunkIndex: p.Index,
			Content:    p.Content,
			TokenCount: p.TokenCount,
			Metadata:   p.Meta,
			Embedding:  embedding,
			Ctime:      doc.Ctime,
		})
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.chunks.InsertBatch(ctx, records); err != nil {
		// Roll the document back so a failed ingest leaves no searchable
		// residue; the delete cascades over any chunks that did land.
		if derr := s.docs.Delete(ctx, req.TenantID, doc.ID); derr != nil && !errs.IsNotFound(derr) {
			logutil.GetLogger(ctx).Error("rollback after chunk insert failure failed",
				zap.String("document_id", doc.ID), zap.Error(derr))
		}
		return nil, err
	}

	logutil.GetLogger(ctx).Info("document ingested",
		zap.String("tenant_id", req.TenantID),
		zap.String("document_id", doc.ID),
		zap.Int("chunks", len(records)),
		zap.Bool("pii_redacted", redacted),
	)
	return &IngestResult{Document: doc, ChunkCount: len(records), PIIRedacted: redacted}, nil
}

func (s *IngestService) Get(ctx context.Context, tenantID, docID string) (*model.Document, error) {
	doc, err := s.docs.GetByID(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	count, err := s.chunks.CountByDocument(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	doc.ChunkCount = count
	return doc, nil
}

func (s *IngestService) List(ctx context.Context, tenantID, clientID string, limit uint) ([]model.Document, error) {
	return s.docs.List(ctx, tenantID, clientID, limit)
}

func (s *IngestService) Delete(ctx context.Context, tenantID, docID string) error {
	if err := s.docs.Delete(ctx, tenantID, docID); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("document deleted",
		zap.String("tenant_id", tenantID), zap.String("document_id", docID))
	return nil
}
