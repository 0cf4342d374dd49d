package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/advisor/internal/config"
	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/pkg/errs"
	"github.com/xxxsen/advisor/internal/rag"
	"github.com/xxxsen/advisor/internal/redact"
)

type fixedClassifier struct{ intent model.Intent }

func (f fixedClassifier) Classify(ctx context.Context, query string) model.Intent { return f.intent }

type stubRetriever struct {
	chunks []model.ScoredChunk
	err    error
}

func (s *stubRetriever) Retrieve(ctx context.Context, req rag.RetrieveRequest) ([]model.ScoredChunk, error) {
	if req.TenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	return s.chunks, s.err
}

type stubAnswerer struct {
	answer string
	err    error
	calls  int
}

func (s *stubAnswerer) Generate(ctx context.Context, query string, intent model.Intent, evidence []model.ScoredChunk) (string, error) {
	s.calls++
	return s.answer, s.err
}

func (s *stubAnswerer) ModelName() string { return "test-model" }

type recordingAuditor struct {
	entries []*model.AuditLogEntry
	err     error
}

func (r *recordingAuditor) Insert(ctx context.Context, entry *model.AuditLogEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func evidenceChunks(scores ...float64) []model.ScoredChunk {
	out := make([]model.ScoredChunk, 0, len(scores))
	for i, s := range scores {
		out = append(out, model.ScoredChunk{
			Chunk: model.Chunk{
				ID:      string(rune('a' + i)),
				Content: "passage content for testing citation quotes",
				Metadata: model.ChunkMetadata{
					Section: "Risk Factors",
					Page:    3,
				},
			},
			DocTitle: "10-K 2025",
			RawScore: s,
		})
	}
	return out
}

// deadlineAuditor fails like database/sql does when the caller's context has
// already expired by the time the insert runs.
type deadlineAuditor struct {
	recordingAuditor
}

func (a *deadlineAuditor) Insert(ctx context.Context, entry *model.AuditLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.recordingAuditor.Insert(ctx, entry)
}

type engineFixture struct {
	engine    *Engine
	generator *stubAnswerer
	auditor   AuditRecorder
}

func newFixture(t *testing.T, retriever Retriever, gen *stubAnswerer, auditor AuditRecorder) engineFixture {
	t.Helper()
	redactor, err := redact.New(config.DefaultPIIPatterns())
	require.NoError(t, err)
	flagger, err := rag.NewFlagger(redactor, config.DefaultAdvicePatterns())
	require.NoError(t, err)
	gate := rag.NewGate(config.EvidenceConfig{
		MinRelevance: 0.5,
		StrongMargin: 0.2,
		HighStrong:   2,
		MediumWeak:   3,
	})
	engine := NewEngine(
		fixedClassifier{intent: model.IntentQA},
		retriever,
		rag.NewReranker(nil, 10),
		gate,
		gen,
		flagger,
		auditor,
	)
	return engineFixture{engine: engine, generator: gen, auditor: auditor}
}

func baseInput() Input {
	return Input{
		TenantID:       "tenant-1",
		ClientID:       "client-1",
		ConversationID: "conv-1",
		Query:          "what risks did the company disclose",
	}
}

func TestRunAnsweredTurn(t *testing.T) {
	gen := &stubAnswerer{answer: "Currency risk is disclosed [1] alongside supply risk [2]."}
	auditor := &recordingAuditor{}
	fix := newFixture(t, &stubRetriever{chunks: evidenceChunks(0.9, 0.8)}, gen, auditor)

	result, err := fix.engine.Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.Equal(t, gen.answer, result.ResponseText)
	require.Equal(t, model.ConfidenceHigh, result.Confidence)
	require.Equal(t, model.IntentQA, result.Intent)
	require.False(t, result.Flags.Any())
	require.Len(t, result.Citations, 2)
	require.Equal(t, "a", result.Citations[0].ChunkID)
	require.Equal(t, "10-K 2025", result.Citations[0].DocTitle)
	require.Equal(t, "Risk Factors", result.Citations[0].Section)

	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	require.Equal(t, "tenant-1", entry.TenantID)
	require.Equal(t, "conv-1", entry.ConversationID)
	require.Equal(t, "test-model", entry.ModelName)
	require.ElementsMatch(t, []string{"a", "b"}, entry.ChunkIDs)
	require.Equal(t, 0.9, entry.Scores["a"].Raw)
	require.Equal(t, model.ConfidenceHigh, entry.Confidence)
	require.Empty(t, entry.Error)
}

// Every citation must come from the usable evidence set the generator saw.
func TestRunCitationsBoundToEvidence(t *testing.T) {
	gen := &stubAnswerer{answer: "Claim [1], repeated [1], and a stray [7] marker."}
	fix := newFixture(t, &stubRetriever{chunks: evidenceChunks(0.9, 0.8)}, gen, &recordingAuditor{})

	result, err := fix.engine.Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.Len(t, result.Citations, 1)
	require.Equal(t, "a", result.Citations[0].ChunkID)
}

func TestRunRefusesOnWeakEvidence(t *testing.T) {
	gen := &stubAnswerer{answer: "should never be used"}
	auditor := &recordingAuditor{}
	fix := newFixture(t, &stubRetriever{chunks: evidenceChunks(0.3, 0.2)}, gen, auditor)

	result, err := fix.engine.Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.Equal(t, rag.RefusalText, result.ResponseText)
	require.Empty(t, result.Citations)
	require.Equal(t, model.ConfidenceLow, result.Confidence)
	require.True(t, result.Flags.LowEvidence)
	require.Zero(t, gen.calls)
	require.Len(t, auditor.entries, 1)
}

func TestRunRefusesAdviceDespiteStrongEvidence(t *testing.T) {
	gen := &stubAnswerer{answer: "should never be used"}
	auditor := &recordingAuditor{}
	fix := newFixture(t, &stubRetriever{chunks: evidenceChunks(0.95, 0.9)}, gen, auditor)

	in := baseInput()
	in.Query = "should I buy this stock now?"
	result, err := fix.engine.Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, rag.RefusalText, result.ResponseText)
	require.True(t, result.Flags.AdviceRefused)
	require.Zero(t, gen.calls)
	require.Len(t, auditor.entries, 1)
	require.True(t, auditor.entries[0].Flags.AdviceRefused)
}

func TestRunGenerationFailureAuditsThenErrors(t *testing.T) {
	gen := &stubAnswerer{err: errors.New("provider 500")}
	auditor := &recordingAuditor{}
	fix := newFixture(t, &stubRetriever{chunks: evidenceChunks(0.9, 0.8)}, gen, auditor)

	result, err := fix.engine.Run(context.Background(), baseInput())
	require.Nil(t, result)
	require.ErrorIs(t, err, errs.ErrUnavailable)
	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	require.True(t, entry.Flags.GenerationFailed)
	require.Empty(t, entry.ResponseText)
	require.Empty(t, entry.Citations)
}

func TestRunAuditFailureIsFatal(t *testing.T) {
	gen := &stubAnswerer{answer: "fine answer [1]"}
	fix := newFixture(t, &stubRetriever{chunks: evidenceChunks(0.9, 0.8)}, gen, &recordingAuditor{err: errors.New("db down")})

	result, err := fix.engine.Run(context.Background(), baseInput())
	require.Nil(t, result)
	require.ErrorIs(t, err, errs.ErrAuditWrite)
}

func TestRunMissingTenantIsFatalButAudited(t *testing.T) {
	gen := &stubAnswerer{}
	auditor := &recordingAuditor{}
	fix := newFixture(t, &stubRetriever{chunks: evidenceChunks(0.9)}, gen, auditor)

	in := baseInput()
	in.TenantID = ""
	result, err := fix.engine.Run(context.Background(), in)
	require.Nil(t, result)
	require.ErrorIs(t, err, errs.ErrScopeViolation)
	require.Len(t, auditor.entries, 1)
	require.True(t, auditor.entries[0].Flags.WorkflowError)
	require.NotEmpty(t, auditor.entries[0].Error)
}

func TestRunRetrievalFailureDegradesToRefusal(t *testing.T) {
	gen := &stubAnswerer{}
	auditor := &recordingAuditor{}
	fix := newFixture(t, &stubRetriever{err: errors.New("pgvector timeout")}, gen, auditor)

	result, err := fix.engine.Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.Equal(t, rag.RefusalText, result.ResponseText)
	require.Zero(t, gen.calls)
	require.Len(t, auditor.entries, 1)
	require.Contains(t, auditor.entries[0].Error, "pgvector timeout")
}

// A caller deadline that expires mid-turn must not take the audit record down
// with it: the insert runs detached from the request context.
func TestRunExpiredDeadlineStillWritesAudit(t *testing.T) {
	gen := &stubAnswerer{err: context.DeadlineExceeded}
	auditor := &deadlineAuditor{}
	fix := newFixture(t, &stubRetriever{chunks: evidenceChunks(0.9, 0.8)}, gen, auditor)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	result, err := fix.engine.Run(ctx, baseInput())
	require.Nil(t, result)
	require.ErrorIs(t, err, errs.ErrUnavailable)
	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	require.True(t, entry.Flags.GenerationFailed)
	require.True(t, entry.Flags.Timeout)
}

func TestRunEveryTurnWritesExactlyOneAudit(t *testing.T) {
	scenarios := []struct {
		name      string
		retriever Retriever
		gen       *stubAnswerer
		wantErr   bool
	}{
		{"answered", &stubRetriever{chunks: evidenceChunks(0.9, 0.8)}, &stubAnswerer{answer: "ok [1]"}, false},
		{"refused", &stubRetriever{chunks: evidenceChunks(0.1)}, &stubAnswerer{}, false},
		{"generation failed", &stubRetriever{chunks: evidenceChunks(0.9, 0.8)}, &stubAnswerer{err: errors.New("x")}, true},
	}
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			auditor := &recordingAuditor{}
			fix := newFixture(t, sc.retriever, sc.gen, auditor)
			_, err := fix.engine.Run(context.Background(), baseInput())
			if sc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Len(t, auditor.entries, 1)
		})
	}
}
