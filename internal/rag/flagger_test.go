package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/advisor/internal/config"
	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/redact"
)

func testFlagger(t *testing.T) *Flagger {
	t.Helper()
	r, err := redact.New(config.DefaultPIIPatterns())
	require.NoError(t, err)
	f, err := NewFlagger(r, config.DefaultAdvicePatterns())
	require.NoError(t, err)
	return f
}

func TestIsAdviceSeeking(t *testing.T) {
	f := testFlagger(t)
	require.True(t, f.IsAdviceSeeking("Should I buy AAPL right now?"))
	require.True(t, f.IsAdviceSeeking("what should i invest in this year"))
	require.False(t, f.IsAdviceSeeking("What did AAPL report as revenue?"))
	require.False(t, f.IsAdviceSeeking("Summarize the risk factors for TSLA"))
}

func TestFlagPIIInQuery(t *testing.T) {
	f := testFlagger(t)
	flags := f.Flag(FlagInput{
		Query:      "what does the filing say about client 123-45-6789",
		Sufficient: true,
		Confidence: model.ConfidenceHigh,
	})
	require.True(t, flags.PIIDetectedInQuery)
	require.False(t, flags.LowEvidence)
}

func TestFlagLowEvidence(t *testing.T) {
	f := testFlagger(t)
	flags := f.Flag(FlagInput{Query: "q", Sufficient: false, Confidence: model.ConfidenceLow})
	require.True(t, flags.LowEvidence)

	flags = f.Flag(FlagInput{Query: "q", Sufficient: true, Confidence: model.ConfidenceLow})
	require.True(t, flags.LowEvidence)

	flags = f.Flag(FlagInput{Query: "q", Sufficient: true, Confidence: model.ConfidenceMedium})
	require.False(t, flags.LowEvidence)
}

func TestFlagPossibleHallucination(t *testing.T) {
	f := testFlagger(t)
	claim := "the company reported substantially higher operating margins across all three segments this quarter"
	cited := "revenue grew twelve percent year over year according to the latest annual filing we indexed [1]"

	uncited := strings.Repeat(claim+". ", 4)
	flags := f.Flag(FlagInput{Query: "q", Sufficient: true, Confidence: model.ConfidenceHigh, Answer: uncited})
	require.True(t, flags.PossibleHallucination)

	mixed := strings.Repeat(cited+". ", 4)
	flags = f.Flag(FlagInput{Query: "q", Sufficient: true, Confidence: model.ConfidenceHigh, Answer: mixed})
	require.False(t, flags.PossibleHallucination)

	few := strings.Repeat(claim+". ", 3)
	flags = f.Flag(FlagInput{Query: "q", Sufficient: true, Confidence: model.ConfidenceHigh, Answer: few})
	require.False(t, flags.PossibleHallucination)
}

func TestFlagAdviceRefusedPassedThrough(t *testing.T) {
	f := testFlagger(t)
	flags := f.Flag(FlagInput{Query: "should i buy NVDA", Sufficient: true, Confidence: model.ConfidenceHigh, AdviceRefused: true})
	require.True(t, flags.AdviceRefused)
	require.True(t, flags.Any())
}

func TestFlagCleanTurnHasNoFlags(t *testing.T) {
	f := testFlagger(t)
	flags := f.Flag(FlagInput{
		Query:        "what were the reported risk factors",
		Sufficient:   true,
		Confidence:   model.ConfidenceHigh,
		Answer:       "The filing lists currency risk [1] and supply concentration [2].",
		HasCitations: true,
	})
	require.False(t, flags.Any())
}
