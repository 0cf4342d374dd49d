package rag

import (
	"github.com/xxxsen/advisor/internal/config"
	"github.com/xxxsen/advisor/internal/model"
)

// Assessment is the evidence gate's verdict for one candidate set.
type Assessment struct {
	Sufficient bool
	Confidence model.Confidence
	Usable     []model.ScoredChunk
}

// Gate converts reranked relevance scores into the deterministic
// answer-or-refuse decision. Same scores in, same verdict out: there is no
// randomness anywhere in this path.
type Gate struct {
	cfg config.EvidenceConfig
}

func NewGate(cfg config.EvidenceConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate requires at least one candidate at or above the minimum relevance
// for sufficiency. Confidence is monotonic in the qualifying-score multiset:
// high needs multiple strong candidates, medium one strong or several
// qualifying, low anything else that still clears the bar.
func (g *Gate) Evaluate(candidates []model.ScoredChunk) Assessment {
	strongBar := g.cfg.MinRelevance + g.cfg.StrongMargin

	var usable []model.ScoredChunk
	strong := 0
	for _, c := range candidates {
		if c.RerankScore < g.cfg.MinRelevance {
			continue
		}
		usable = append(usable, c)
		if c.RerankScore >= strongBar {
			strong++
		}
	}
	if len(usable) == 0 {
		return Assessment{Sufficient: false, Confidence: model.ConfidenceLow}
	}

	confidence := model.ConfidenceLow
	switch {
	case strong >= g.cfg.HighStrong:
		confidence = model.ConfidenceHigh
	case strong >= 1 || len(usable) >= g.cfg.MediumWeak:
		confidence = model.ConfidenceMedium
	}
	return Assessment{Sufficient: true, Confidence: confidence, Usable: usable}
}
