package workflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/pkg/errs"
	"github.com/xxxsen/advisor/internal/pkg/timeutil"
	"github.com/xxxsen/advisor/internal/rag"
)

// Capability contracts the engine composes. Kept as local interfaces so tests
// can substitute any stage without touching the others.
type (
	IntentClassifier interface {
		Classify(ctx context.Context, query string) model.Intent
	}
	Retriever interface {
		Retrieve(ctx context.Context, req rag.RetrieveRequest) ([]model.ScoredChunk, error)
	}
	Reranker interface {
		Rerank(ctx context.Context, query string, candidates []model.ScoredChunk) []model.ScoredChunk
	}
	EvidenceGate interface {
		Evaluate(candidates []model.ScoredChunk) rag.Assessment
	}
	Generator interface {
		Generate(ctx context.Context, query string, intent model.Intent, evidence []model.ScoredChunk) (string, error)
		ModelName() string
	}
	Flagger interface {
		IsAdviceSeeking(query string) bool
		Flag(in rag.FlagInput) model.Flags
	}
	AuditRecorder interface {
		Insert(ctx context.Context, entry *model.AuditLogEntry) error
	}
)

// Engine drives a query turn through the fixed state order. Every transition
// is an explicit method; there is no callback graph and no way for a turn to
// skip the audit write.
type Engine struct {
	classifier IntentClassifier
	retriever  Retriever
	reranker   Reranker
	gate       EvidenceGate
	generator  Generator
	flagger    Flagger
	auditor    AuditRecorder
}

func NewEngine(classifier IntentClassifier, retriever Retriever, reranker Reranker,
	gate EvidenceGate, generator Generator, flagger Flagger, auditor AuditRecorder) *Engine {
	return &Engine{
		classifier: classifier,
		retriever:  retriever,
		reranker:   reranker,
		gate:       gate,
		generator:  generator,
		flagger:    flagger,
		auditor:    auditor,
	}
}

// Run executes one turn. It returns an error only for fatal conditions: scope
// violations, retrieval scope failures, or an audit write failure. Degraded
// conditions (classifier down, reranker down, generation failed) complete the
// turn with the corresponding flag set instead.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	t := &turn{in: in, state: StateReceived, start: time.Now()}
	for t.state != StateResponded {
		next, err := e.step(ctx, t)
		if err != nil {
			e.auditFailure(ctx, t, err)
			return nil, err
		}
		logutil.GetLogger(ctx).Debug("workflow transition",
			zap.String("from", t.state.String()),
			zap.String("to", next.String()),
		)
		t.state = next
	}
	// The audit record is already written at this point; a failed generation
	// surfaces as a capability error, never as an empty success.
	if t.flags.GenerationFailed {
		return nil, fmt.Errorf("generation failed: %w", errs.ErrUnavailable)
	}
	return e.result(t), nil
}

func (e *Engine) step(ctx context.Context, t *turn) (State, error) {
	switch t.state {
	case StateReceived:
		return e.classify(ctx, t)
	case StateIntentClassified:
		return e.retrieve(ctx, t)
	case StateRetrieved:
		return e.rerank(ctx, t)
	case StateReranked:
		return e.checkEvidence(ctx, t)
	case StateEvidenceChecked:
		return e.answer(ctx, t)
	case StateRefused, StateGenerated:
		return e.flag(t)
	case StateFlagged:
		return e.audit(ctx, t)
	case StateAudited:
		return StateResponded, nil
	default:
		return t.state, fmt.Errorf("workflow in unexpected state %s: %w", t.state, errs.ErrInternal)
	}
}

func (e *Engine) classify(ctx context.Context, t *turn) (State, error) {
	if t.in.TenantID == "" {
		return t.state, errs.ErrScopeViolation
	}
	t.intent = e.classifier.Classify(ctx, t.in.Query)
	return StateIntentClassified, nil
}

func (e *Engine) retrieve(ctx context.Context, t *turn) (State, error) {
	candidates, err := e.retriever.Retrieve(ctx, rag.RetrieveRequest{
		Query:       t.in.Query,
		TenantID:    t.in.TenantID,
		ClientID:    t.in.ClientID,
		DocTypes:    t.in.DocTypes,
		CompanyLike: t.in.CompanyFilter,
	})
	if err != nil {
		if errs.IsScopeViolation(err) {
			return t.state, err
		}
		// Degrade to an empty candidate set; the evidence gate will refuse
		// and the audit record carries the cause.
		logutil.GetLogger(ctx).Error("retrieval failed, continuing with no candidates", zap.Error(err))
		t.degradedErr = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			t.flags.Timeout = true
		}
		candidates = nil
	}
	t.candidates = candidates
	return StateRetrieved, nil
}

func (e *Engine) rerank(ctx context.Context, t *turn) (State, error) {
	t.reranked = e.reranker.Rerank(ctx, t.in.Query, t.candidates)
	return StateReranked, nil
}

// checkEvidence applies the two refusal policies in order: the advice policy
// refuses regardless of how good the evidence is, then the gate decides on
// evidence strength.
func (e *Engine) checkEvidence(ctx context.Context, t *turn) (State, error) {
	t.assessment = e.gate.Evaluate(t.reranked)
	if e.flagger.IsAdviceSeeking(t.in.Query) {
		t.adviceRefused = true
		t.refused = true
		t.assessment.Confidence = model.ConfidenceLow
	} else if !t.assessment.Sufficient {
		t.refused = true
	}
	return StateEvidenceChecked, nil
}

func (e *Engine) answer(ctx context.Context, t *turn) (State, error) {
	t.modelName = e.generator.ModelName()
	if t.refused {
		t.answer = rag.RefusalText
		t.citations = nil
		return StateRefused, nil
	}
	answer, err := e.generator.Generate(ctx, t.in.Query, t.intent, t.assessment.Usable)
	if err != nil {
		logutil.GetLogger(ctx).Error("generation failed", zap.Error(err))
		t.flags.GenerationFailed = true
		t.degradedErr = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			t.flags.Timeout = true
		}
		t.answer = ""
		t.citations = nil
		return StateGenerated, nil
	}
	t.answer = answer
	t.citations = extractCitations(answer, t.assessment.Usable)
	return StateGenerated, nil
}

func (e *Engine) flag(t *turn) (State, error) {
	computed := e.flagger.Flag(rag.FlagInput{
		Query:         t.in.Query,
		Sufficient:    t.assessment.Sufficient && !t.refused,
		Confidence:    t.assessment.Confidence,
		AdviceRefused: t.adviceRefused,
		Answer:        t.answer,
		HasCitations:  len(t.citations) > 0,
	})
	computed.GenerationFailed = t.flags.GenerationFailed
	computed.Timeout = t.flags.Timeout
	t.flags = computed
	return StateFlagged, nil
}

// audit persists the turn record synchronously. A failed write fails the
// whole turn: an unaudited answer must never reach the caller. The insert runs
// detached from the caller's deadline, so a turn that timed out mid-stage
// still gets its record instead of the write failing on the expired context.
func (e *Engine) audit(ctx context.Context, t *turn) (State, error) {
	if err := e.auditor.Insert(context.WithoutCancel(ctx), e.buildEntry(t)); err != nil {
		logutil.GetLogger(ctx).Error("audit write failed", zap.Error(err))
		return t.state, fmt.Errorf("%w: %v", errs.ErrAuditWrite, err)
	}
	return StateAudited, nil
}

// auditFailure records fatal turns on a best-effort basis so even aborted
// queries leave a trace. Its own failure is logged and swallowed: the caller
// already gets the original error.
func (e *Engine) auditFailure(ctx context.Context, t *turn, cause error) {
	if errors.Is(cause, errs.ErrAuditWrite) {
		return
	}
	t.flags.WorkflowError = true
	if ctx.Err() == context.DeadlineExceeded {
		t.flags.Timeout = true
	}
	t.degradedErr = ""
	entry := e.buildEntry(t)
	entry.Error = cause.Error()
	entry.ResponseText = ""
	entry.Citations = nil
	entry.Confidence = model.ConfidenceLow
	if err := e.auditor.Insert(context.WithoutCancel(ctx), entry); err != nil {
		logutil.GetLogger(ctx).Error("best-effort audit of failed turn also failed", zap.Error(err))
	}
}

func (e *Engine) buildEntry(t *turn) *model.AuditLogEntry {
	chunkIDs := make([]string, 0, len(t.reranked))
	scores := make(map[string]model.ChunkScores, len(t.reranked))
	for _, c := range t.reranked {
		chunkIDs = append(chunkIDs, c.Chunk.ID)
		scores[c.Chunk.ID] = model.ChunkScores{Raw: c.RawScore, Rerank: c.RerankScore}
	}
	return &model.AuditLogEntry{
		ID:             uuid.NewString(),
		TenantID:       t.in.TenantID,
		ConversationID: t.in.ConversationID,
		UserQuery:      t.in.Query,
		Workflow:       t.intent,
		ChunkIDs:       chunkIDs,
		Scores:         scores,
		ModelName:      t.modelName,
		ResponseText:   t.answer,
		Citations:      t.citations,
		Confidence:     t.assessment.Confidence,
		Flags:          t.flags,
		LatencyMs:      time.Since(t.start).Milliseconds(),
		Error:          t.degradedErr,
		Ctime:          timeutil.NowUnix(),
	}
}

func (e *Engine) result(t *turn) *Result {
	return &Result{
		ResponseText:   t.answer,
		Citations:      t.citations,
		Confidence:     t.assessment.Confidence,
		Intent:         t.intent,
		Flags:          t.flags,
		LatencyMs:      time.Since(t.start).Milliseconds(),
		ConversationID: t.in.ConversationID,
	}
}

var citationRef = regexp.MustCompile(`\[(\d+)\]`)

const maxQuoteLen = 200

// extractCitations maps the [n] markers in the answer back onto the numbered
// evidence set the generator saw. Out-of-range markers are dropped; repeated
// references to the same chunk keep the first occurrence.
func extractCitations(answer string, evidence []model.ScoredChunk) []model.Citation {
	seen := make(map[string]struct{})
	var out []model.Citation
	for _, m := range citationRef.FindAllStringSubmatch(answer, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > len(evidence) {
			continue
		}
		c := evidence[idx-1]
		if _, ok := seen[c.Chunk.ID]; ok {
			continue
		}
		seen[c.Chunk.ID] = struct{}{}
		out = append(out, model.Citation{
			ChunkID:  c.Chunk.ID,
			DocTitle: c.DocTitle,
			Section:  c.Chunk.Metadata.Section,
			Quote:    truncateQuote(c.Chunk.Content),
			Page:     c.Chunk.Metadata.Page,
			URL:      c.SourceURL,
		})
	}
	return out
}

func truncateQuote(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxQuoteLen {
		return s
	}
	return string(runes[:maxQuoteLen]) + "..."
}
