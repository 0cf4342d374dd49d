package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultCohereBaseURL = "https://api.cohere.com/v1"

type CohereRerankConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	TimeoutSec int    `json:"timeout_sec"`
}

type cohereReranker struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewCohereReranker returns nil when no API key is configured; callers treat
// a nil reranker as "keep retrieval order".
func NewCohereReranker(cfg CohereRerankConfig) IReranker {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCohereBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "rerank-english-v3.0"
	}
	return &cohereReranker{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  newHTTPClient(cfg.TimeoutSec),
	}
}

type cohereRerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type cohereRerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (r *cohereReranker) ModelName() string {
	return r.model
}

func (r *cohereReranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	endpoint := strings.TrimRight(r.baseURL, "/") + "/rerank"
	reqBody := cohereRerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: passages,
		TopN:      len(passages),
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	resp, err := doWithRetry(ctx, r.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cohere rerank failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out cohereRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	scores := make([]float64, len(passages))
	for _, item := range out.Results {
		if item.Index < 0 || item.Index >= len(passages) {
			return nil, fmt.Errorf("cohere rerank returned index out of range: %d", item.Index)
		}
		scores[item.Index] = item.RelevanceScore
	}
	return scores, nil
}
