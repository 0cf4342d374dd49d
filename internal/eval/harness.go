package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/advisor/internal/rag"
	"github.com/xxxsen/advisor/internal/service"
	"github.com/xxxsen/advisor/internal/workflow"
)

// Question is one fixture of the offline quality suite. ExpectedBehavior is
// "answer" or "refuse".
type Question struct {
	ID               string   `json:"id"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	ExpectedBehavior string   `json:"expected_behavior"`
	ExpectedKeywords []string `json:"expected_keywords"`
}

type Scope struct {
	TenantID string
	ClientID string
	UserID   string
}

type Outcome struct {
	ID         string  `json:"id"`
	Category   string  `json:"category"`
	Expected   string  `json:"expected"`
	Actual     string  `json:"actual"`
	Correct    bool    `json:"correct"`
	KeywordHit float64 `json:"keyword_hit"`
	Citations  int     `json:"citations"`
	LatencyMs  int64   `json:"latency_ms"`
}

type Summary struct {
	Timestamp     string             `json:"timestamp"`
	Total         int                `json:"total"`
	Accuracy      float64            `json:"accuracy"`
	AvgKeywordHit float64            `json:"avg_keyword_hit"`
	AvgLatencyMs  float64            `json:"avg_latency_ms"`
	ByCategory    map[string]float64 `json:"by_category"`
	Outcomes      []Outcome          `json:"outcomes"`
}

// QueryRunner is the chat entrypoint contract; satisfied by
// *service.QueryService. Each question runs in a fresh conversation.
type QueryRunner interface {
	Submit(ctx context.Context, req service.QueryRequest) (*workflow.Result, error)
}

type Harness struct {
	runner    QueryRunner
	questions []Question
}

func NewHarness(runner QueryRunner, questions []Question) *Harness {
	return &Harness{runner: runner, questions: questions}
}

func LoadQuestions(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	var wrapper struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if len(wrapper.Questions) == 0 {
		return nil, fmt.Errorf("no questions in %s", path)
	}
	return wrapper.Questions, nil
}

func (h *Harness) Run(ctx context.Context, scope Scope) Summary {
	outcomes := make([]Outcome, 0, len(h.questions))
	for _, q := range h.questions {
		outcome := h.evalOne(ctx, scope, q)
		outcomes = append(outcomes, outcome)
		logutil.GetLogger(ctx).Info("question evaluated",
			zap.String("id", outcome.ID),
			zap.String("actual", outcome.Actual),
			zap.Bool("correct", outcome.Correct),
		)
	}
	return summarize(outcomes)
}

func (h *Harness) evalOne(ctx context.Context, scope Scope, q Question) Outcome {
	outcome := Outcome{ID: q.ID, Category: q.Category, Expected: q.ExpectedBehavior}
	result, err := h.runner.Submit(ctx, service.QueryRequest{
		TenantID: scope.TenantID,
		ClientID: scope.ClientID,
		UserID:   scope.UserID,
		Query:    q.Question,
	})
	if err != nil {
		outcome.Actual = "error"
		return outcome
	}

	outcome.Actual = "answer"
	if result.ResponseText == rag.RefusalText {
		outcome.Actual = "refuse"
	}
	outcome.Correct = outcome.Actual == q.ExpectedBehavior
	outcome.Citations = len(result.Citations)
	outcome.LatencyMs = result.LatencyMs

	if len(q.ExpectedKeywords) > 0 {
		response := strings.ToLower(result.ResponseText)
		hits := 0
		for _, k := range q.ExpectedKeywords {
			if strings.Contains(response, strings.ToLower(k)) {
				hits++
			}
		}
		outcome.KeywordHit = float64(hits) / float64(len(q.ExpectedKeywords))
	}
	return outcome
}

func summarize(outcomes []Outcome) Summary {
	s := Summary{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Total:      len(outcomes),
		ByCategory: make(map[string]float64),
		Outcomes:   outcomes,
	}
	if s.Total == 0 {
		return s
	}

	correct := 0
	catTotal := make(map[string]int)
	catCorrect := make(map[string]int)
	for _, o := range outcomes {
		if o.Correct {
			correct++
			catCorrect[o.Category]++
		}
		catTotal[o.Category]++
		s.AvgKeywordHit += o.KeywordHit
		s.AvgLatencyMs += float64(o.LatencyMs)
	}
	s.Accuracy = float64(correct) / float64(s.Total)
	s.AvgKeywordHit /= float64(s.Total)
	s.AvgLatencyMs /= float64(s.Total)
	for cat, total := range catTotal {
		s.ByCategory[cat] = float64(catCorrect[cat]) / float64(total)
	}
	return s
}

func (s Summary) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s Summary) Report(w io.Writer) {
	fmt.Fprintf(w, "total=%d accuracy=%.1f%% keyword_hit=%.1f%% avg_latency=%.0fms\n",
		s.Total, s.Accuracy*100, s.AvgKeywordHit*100, s.AvgLatencyMs)
	cats := make([]string, 0, len(s.ByCategory))
	for cat := range s.ByCategory {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		fmt.Fprintf(w, "  %s: %.1f%%\n", cat, s.ByCategory[cat]*100)
	}
}
