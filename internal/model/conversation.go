package model

type Conversation struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	ClientID string `json:"client_id,omitempty"`
	UserID   string `json:"user_id"`
	Title    string `json:"title,omitempty"`
	Ctime    int64  `json:"ctime"`
	Mtime    int64  `json:"mtime"`
}
