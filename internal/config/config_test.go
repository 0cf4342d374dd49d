package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"database": {"host": "localhost"},
		"ai": {"provider": "openai", "chat_model": "gpt-4o-mini", "embed_model": "text-embedding-3-small"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, 1000, cfg.ChatRateLimitMs)
	require.Equal(t, 1536, cfg.AI.EmbedDim)
	require.Equal(t, 60, cfg.AI.TimeoutSec)
	require.Equal(t, 1000, cfg.RAG.ChunkSize)
	require.Equal(t, 150, cfg.RAG.ChunkOverlap)
	require.Equal(t, 30, cfg.RAG.RetrievalTopK)
	require.Equal(t, 10, cfg.RAG.RerankTopN)
	require.Equal(t, 0.5, cfg.RAG.Evidence.MinRelevance)
	require.Equal(t, 0.2, cfg.RAG.Evidence.StrongMargin)
	require.NotEmpty(t, cfg.Compliance.PIIPatterns)
	require.NotEmpty(t, cfg.Compliance.AdvicePatterns)
	require.Equal(t, 180, cfg.Retention.ConversationDays)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing port", `{"database": {"host": "h"}, "ai": {"provider": "openai", "chat_model": "m", "embed_model": "e"}}`},
		{"missing database", `{"port": 1, "ai": {"provider": "openai", "chat_model": "m", "embed_model": "e"}}`},
		{"missing provider", `{"port": 1, "database": {"host": "h"}, "ai": {"chat_model": "m", "embed_model": "e"}}`},
		{"missing models", `{"port": 1, "database": {"host": "h"}, "ai": {"provider": "openai"}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"port": 9000,
		"database": {"dsn": "postgres://u:p@h/db"},
		"ai": {"provider": "openai", "chat_model": "m", "embed_model": "e"},
		"rag": {"chunk_size": 500, "evidence": {"min_relevance": 0.6}}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 500, cfg.RAG.ChunkSize)
	require.Equal(t, 0.6, cfg.RAG.Evidence.MinRelevance)
	require.Equal(t, 0.2, cfg.RAG.Evidence.StrongMargin)
}
