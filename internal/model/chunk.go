package model

// ChunkMetadata carries the structural context a citation needs to point a
// reviewer back at the source passage.
type ChunkMetadata struct {
	Section     string   `json:"section,omitempty"`
	HeadingPath []string `json:"heading_path,omitempty"`
	Page        int      `json:"page,omitempty"`
	Anchor      string   `json:"anchor,omitempty"`
}

type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	TenantID   string        `json:"tenant_id"`
	ClientID   string        `json:"client_id,omitempty"`
	ChunkIndex int           `json:"chunk_index"`
	Content    string        `json:"content"`
	TokenCount int           `json:"token_count"`
	Metadata   ChunkMetadata `json:"metadata"`
	Embedding  []float32     `json:"-"`
	Ctime      int64         `json:"ctime"`
}

// ScoredChunk is a chunk inside a candidate set. RawScore comes from vector
// similarity; RerankScore from the rerank capability. The two live on
// different scales and are never averaged together.
type ScoredChunk struct {
	Chunk       Chunk   `json:"chunk"`
	DocTitle    string  `json:"doc_title"`
	SourceURL   string  `json:"source_url,omitempty"`
	RawScore    float64 `json:"raw_score"`
	RerankScore float64 `json:"rerank_score"`
}
