package rag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/redact"
)

// Flagger derives the compliance flag set from a turn's inputs and outputs.
// Flags are advisory for human review; the hallucination heuristic errs
// toward flagging rather than missing.
type Flagger struct {
	redactor *redact.Redactor
	advice   []*regexp.Regexp
}

func NewFlagger(redactor *redact.Redactor, advicePatterns []string) (*Flagger, error) {
	advice := make([]*regexp.Regexp, 0, len(advicePatterns))
	for _, p := range advicePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile advice pattern %q: %w", p, err)
		}
		advice = append(advice, re)
	}
	return &Flagger{redactor: redactor, advice: advice}, nil
}

// IsAdviceSeeking reports whether the query matches a personalized-advice
// pattern. The workflow refuses such queries before generation; the
// resulting advice_refused flag records that upstream decision.
func (f *Flagger) IsAdviceSeeking(query string) bool {
	for _, re := range f.advice {
		if re.MatchString(query) {
			return true
		}
	}
	return false
}

type FlagInput struct {
	Query         string
	Sufficient    bool
	Confidence    model.Confidence
	AdviceRefused bool
	Answer        string
	HasCitations  bool
}

func (f *Flagger) Flag(in FlagInput) model.Flags {
	flags := model.Flags{
		AdviceRefused: in.AdviceRefused,
	}
	if f.redactor != nil && f.redactor.Detect(in.Query) {
		flags.PIIDetectedInQuery = true
	}
	if !in.Sufficient || in.Confidence == model.ConfidenceLow {
		flags.LowEvidence = true
	}
	if in.Answer != "" && uncitedClaims(in.Answer) > 3 {
		flags.PossibleHallucination = true
	}
	return flags
}

var (
	sentenceSplit  = regexp.MustCompile(`[.!?]`)
	citationMarker = regexp.MustCompile(`\[\d+\]`)
)

// uncitedClaims counts sentences long enough to be declarative claims that
// carry no citation marker.
func uncitedClaims(answer string) int {
	count := 0
	for _, s := range sentenceSplit.Split(answer, -1) {
		s = strings.TrimSpace(s)
		if len(s) > 50 && !citationMarker.MatchString(s) {
			count++
		}
	}
	return count
}
