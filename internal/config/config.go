package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port            int              `json:"port"`
	ChatRateLimitMs int              `json:"chat_rate_limit_ms"`
	LogConfig       logger.LogConfig `json:"log_config"`
	Database        DatabaseConfig   `json:"database"`
	AI              AIConfig         `json:"ai"`
	RAG             RAGConfig        `json:"rag"`
	Compliance      ComplianceConfig `json:"compliance"`
	Retention       RetentionConfig  `json:"retention"`
	CORSOrigins     []string         `json:"cors_origins"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type AIConfig struct {
	Provider      string       `json:"provider"`
	APIKey        string       `json:"api_key"`
	BaseURL       string       `json:"base_url"`
	ChatModel     string       `json:"chat_model"`
	EmbedModel    string       `json:"embed_model"`
	EmbedDim      int          `json:"embed_dim"`
	MaxInputChars int          `json:"max_input_chars"`
	TimeoutSec    int          `json:"timeout_sec"`
	Rerank        RerankConfig `json:"rerank"`
}

type RerankConfig struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
	Model    string `json:"model"`
}

type RAGConfig struct {
	ChunkSize      int            `json:"chunk_size"`
	ChunkOverlap   int            `json:"chunk_overlap"`
	RetrievalTopK  int            `json:"retrieval_top_k"`
	RerankTopN     int            `json:"rerank_top_n"`
	Evidence       EvidenceConfig `json:"evidence"`
	EmbedCacheSize int            `json:"embed_cache_size"`
}

// EvidenceConfig holds the policy cutoffs for the evidence gate. These are
// tuning knobs, not contract: tests assert the refuse boundary and
// monotonicity, not the numbers.
type EvidenceConfig struct {
	MinRelevance float64 `json:"min_relevance"`
	StrongMargin float64 `json:"strong_margin"`
	HighStrong   int     `json:"high_strong"`
	MediumWeak   int     `json:"medium_weak"`
}

type ComplianceConfig struct {
	PIIPatterns    map[string]string `json:"pii_patterns"`
	AdvicePatterns []string          `json:"advice_patterns"`
}

type RetentionConfig struct {
	ConversationDays int    `json:"conversation_days"`
	EmbedCacheDays   int    `json:"embed_cache_days"`
	CleanupCron      string `json:"cleanup_cron"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.ChatModel == "" || cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.chat_model and ai.embed_model are required")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.ChatRateLimitMs == 0 {
		cfg.ChatRateLimitMs = 1000
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.AI.EmbedDim == 0 {
		cfg.AI.EmbedDim = 1536
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 100000
	}
	if cfg.AI.TimeoutSec == 0 {
		cfg.AI.TimeoutSec = 60
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 150
	}
	if cfg.RAG.RetrievalTopK == 0 {
		cfg.RAG.RetrievalTopK = 30
	}
	if cfg.RAG.RerankTopN == 0 {
		cfg.RAG.RerankTopN = 10
	}
	if cfg.RAG.EmbedCacheSize == 0 {
		cfg.RAG.EmbedCacheSize = 10000
	}
	if cfg.RAG.Evidence.MinRelevance == 0 {
		cfg.RAG.Evidence.MinRelevance = 0.5
	}
	if cfg.RAG.Evidence.StrongMargin == 0 {
		cfg.RAG.Evidence.StrongMargin = 0.2
	}
	if cfg.RAG.Evidence.HighStrong == 0 {
		cfg.RAG.Evidence.HighStrong = 2
	}
	if cfg.RAG.Evidence.MediumWeak == 0 {
		cfg.RAG.Evidence.MediumWeak = 3
	}
	if len(cfg.Compliance.PIIPatterns) == 0 {
		cfg.Compliance.PIIPatterns = DefaultPIIPatterns()
	}
	if len(cfg.Compliance.AdvicePatterns) == 0 {
		cfg.Compliance.AdvicePatterns = DefaultAdvicePatterns()
	}
	if cfg.Retention.ConversationDays == 0 {
		cfg.Retention.ConversationDays = 180
	}
	if cfg.Retention.EmbedCacheDays == 0 {
		cfg.Retention.EmbedCacheDays = 30
	}
	if cfg.Retention.CleanupCron == "" {
		cfg.Retention.CleanupCron = "30 3 * * *"
	}
}

// DefaultPIIPatterns covers the identifier shapes that must never reach the
// corpus or an audit record unmasked.
func DefaultPIIPatterns() map[string]string {
	return map[string]string{
		"email":       `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`,
		"phone":       `\b(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`,
		"ssn":         `\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`,
		"credit_card": `\b(?:\d{4}[-\s]?){3}\d{4}\b`,
	}
}

// DefaultAdvicePatterns matches personalized-advice-seeking queries that the
// workflow refuses before generation.
func DefaultAdvicePatterns() []string {
	return []string{
		`(?i)\bshould\s+i\s+(buy|sell|hold|invest|short)\b`,
		`(?i)\bwhat\s+should\s+i\s+(buy|sell|invest\s+in)\b`,
		`(?i)\bis\s+it\s+a\s+good\s+(time|idea)\s+to\s+(buy|sell|invest)\b`,
		`(?i)\brecommend\s+(a\s+)?(stock|fund|investment)s?\s+for\s+me\b`,
	}
}
