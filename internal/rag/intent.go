package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/advisor/internal/ai"
	"github.com/xxxsen/advisor/internal/model"
)

// IntentClassifier asks the generation capability for a one-word label.
// Anything unexpected, including a capability failure, falls back to qa so a
// flaky classifier never aborts a turn.
type IntentClassifier struct {
	gen ai.IGenerator
}

func NewIntentClassifier(gen ai.IGenerator) *IntentClassifier {
	return &IntentClassifier{gen: gen}
}

func (c *IntentClassifier) Classify(ctx context.Context, query string) model.Intent {
	prompt := fmt.Sprintf(`Classify the intent of this request as exactly one of: qa, summary, risk, email.
Respond with the single word only.

REQUEST:
%s`, query)
	resp, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		logutil.GetLogger(ctx).Warn("intent classification failed, defaulting to qa", zap.Error(err))
		return model.IntentQA
	}
	switch model.Intent(strings.ToLower(strings.TrimSpace(resp))) {
	case model.IntentSummary:
		return model.IntentSummary
	case model.IntentRisk:
		return model.IntentRisk
	case model.IntentEmail:
		return model.IntentEmail
	default:
		return model.IntentQA
	}
}
