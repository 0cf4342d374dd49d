package workflow

import (
	"time"

	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/rag"
)

// State enumerates the fixed linear order of a query turn. Refused and
// Generated are the two exits of the evidence check; everything downstream is
// shared.
type State int

const (
	StateReceived State = iota
	StateIntentClassified
	StateRetrieved
	StateReranked
	StateEvidenceChecked
	StateRefused
	StateGenerated
	StateFlagged
	StateAudited
	StateResponded
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateIntentClassified:
		return "intent_classified"
	case StateRetrieved:
		return "retrieved"
	case StateReranked:
		return "reranked"
	case StateEvidenceChecked:
		return "evidence_checked"
	case StateRefused:
		return "refused"
	case StateGenerated:
		return "generated"
	case StateFlagged:
		return "flagged"
	case StateAudited:
		return "audited"
	case StateResponded:
		return "responded"
	default:
		return "unknown"
	}
}

type Input struct {
	TenantID       string
	ClientID       string
	UserID         string
	ConversationID string
	Query          string
	DocTypes       []string
	CompanyFilter  string
}

type Result struct {
	ResponseText   string           `json:"response"`
	Citations      []model.Citation `json:"citations"`
	Confidence     model.Confidence `json:"confidence"`
	Intent         model.Intent     `json:"intent"`
	Flags          model.Flags      `json:"flags"`
	LatencyMs      int64            `json:"latency_ms"`
	ConversationID string           `json:"conversation_id"`
}

// turn accumulates everything a query gathers on its way through the machine.
type turn struct {
	in    Input
	state State
	start time.Time

	intent        model.Intent
	candidates    []model.ScoredChunk
	reranked      []model.ScoredChunk
	assessment    rag.Assessment
	adviceRefused bool
	refused       bool
	degradedErr   string

	answer    string
	citations []model.Citation
	flags     model.Flags
	modelName string
}
