package model

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type Intent string

const (
	IntentQA      Intent = "qa"
	IntentSummary Intent = "summary"
	IntentRisk    Intent = "risk"
	IntentEmail   Intent = "email"
)

// Flags are advisory signals for human compliance review. advice_refused is
// the exception: it records an upstream refusal decision, not an inference.
type Flags struct {
	PIIDetectedInQuery    bool `json:"pii_detected_in_query,omitempty"`
	AdviceRefused         bool `json:"advice_refused,omitempty"`
	LowEvidence           bool `json:"low_evidence,omitempty"`
	PossibleHallucination bool `json:"possible_hallucination,omitempty"`
	GenerationFailed      bool `json:"generation_failed,omitempty"`
	Timeout               bool `json:"timeout,omitempty"`
	WorkflowError         bool `json:"workflow_error,omitempty"`
}

func (f Flags) Any() bool {
	return f.PIIDetectedInQuery || f.AdviceRefused || f.LowEvidence ||
		f.PossibleHallucination || f.GenerationFailed || f.Timeout || f.WorkflowError
}

type Citation struct {
	ChunkID  string `json:"chunk_id"`
	DocTitle string `json:"doc_title"`
	Section  string `json:"section,omitempty"`
	Quote    string `json:"quote"`
	Page     int    `json:"page,omitempty"`
	URL      string `json:"url,omitempty"`
}

// ChunkScores keeps the raw similarity and rerank score of one retrieved
// chunk side by side for the audit trail.
type ChunkScores struct {
	Raw    float64 `json:"raw"`
	Rerank float64 `json:"rerank"`
}

// AuditLogEntry is the write-once compliance record of one query turn. It is
// persisted for every turn, including refusals and failures.
type AuditLogEntry struct {
	ID             string                 `json:"id"`
	TenantID       string                 `json:"tenant_id"`
	ConversationID string                 `json:"conversation_id"`
	UserQuery      string                 `json:"user_query"`
	Workflow       Intent                 `json:"workflow"`
	ChunkIDs       []string               `json:"chunk_ids"`
	Scores         map[string]ChunkScores `json:"scores"`
	ModelName      string                 `json:"model_name"`
	ResponseText   string                 `json:"response_text"`
	Citations      []Citation             `json:"citations"`
	Confidence     Confidence             `json:"confidence"`
	Flags          Flags                  `json:"flags"`
	LatencyMs      int64                  `json:"latency_ms"`
	Error          string                 `json:"error,omitempty"`
	Ctime          int64                  `json:"ctime"`
}
