package model

const (
	SourceTypeUpload = "upload"
	SourceTypeFiling = "filing"
	SourceTypeManual = "manual"
)

type Document struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	ClientID    string `json:"client_id,omitempty"`
	Title       string `json:"title"`
	SourceType  string `json:"source_type"`
	SourceURL   string `json:"source_url,omitempty"`
	SHA256      string `json:"sha256"`
	CompanyName string `json:"company_name,omitempty"`
	FilingType  string `json:"filing_type,omitempty"`
	FilingDate  int64  `json:"filing_date,omitempty"`
	ChunkCount  int    `json:"chunk_count"`
	Ctime       int64  `json:"ctime"`
}
