package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/advisor/internal/ai"
	"github.com/xxxsen/advisor/internal/model"
)

const systemPrompt = `You are a wealth advisor assistant helping financial advisors research regulatory filings and client documents.

RULES:
1. Use ONLY the provided sources. Never make up information.
2. If the sources do not contain the answer, say "I don't have enough information to answer this."
3. Cite sources inline using [1], [2], etc.
4. Never provide personalized investment advice.`

// RefusalText is the fixed response for turns refused on evidence or policy
// grounds.
const RefusalText = `I don't have enough information to answer this question.

Please specify which document or filing to reference, or provide more context about what you're looking for.`

var intentPrompts = map[model.Intent]string{
	model.IntentQA:      "Answer this question based on the sources:\n\nSOURCES:\n%s\n\nQUESTION: %s",
	model.IntentSummary: "Summarize based on these sources:\n\nSOURCES:\n%s\n\nSUMMARIZE: %s",
	model.IntentRisk:    "Analyze risks from these sources:\n\nSOURCES:\n%s\n\nANALYSIS: %s",
	model.IntentEmail:   "Draft a client email based on:\n\nSOURCES:\n%s\n\nREQUEST: %s\n\nInclude a disclaimer that the content is for educational purposes.",
}

// GroundedGenerator builds the per-intent prompt over the usable evidence set
// only and calls the generation capability. Every source the model may cite
// comes from that set; nothing else enters the prompt.
type GroundedGenerator struct {
	gen ai.IGenerator
}

func NewGroundedGenerator(gen ai.IGenerator) *GroundedGenerator {
	return &GroundedGenerator{gen: gen}
}

func (g *GroundedGenerator) ModelName() string {
	return g.gen.ModelName()
}

func (g *GroundedGenerator) Generate(ctx context.Context, query string, intent model.Intent, evidence []model.ScoredChunk) (string, error) {
	tpl, ok := intentPrompts[intent]
	if !ok {
		tpl = intentPrompts[model.IntentQA]
	}
	prompt := systemPrompt + "\n\n" + fmt.Sprintf(tpl, formatSources(evidence), query)
	return g.gen.Generate(ctx, prompt)
}

// formatSources numbers the evidence 1..n; the numbers are the citation
// anchors the answer refers back to.
func formatSources(evidence []model.ScoredChunk) string {
	parts := make([]string, 0, len(evidence))
	for i, c := range evidence {
		header := fmt.Sprintf("[%d] %s", i+1, c.DocTitle)
		if c.Chunk.Metadata.Section != "" {
			header += " - " + c.Chunk.Metadata.Section
		}
		if c.Chunk.Metadata.Page > 0 {
			header += fmt.Sprintf(" (p.%d)", c.Chunk.Metadata.Page)
		}
		parts = append(parts, header+"\n"+c.Chunk.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
