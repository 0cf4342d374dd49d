package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func testProvider(baseURL string, maxInput int) *openAIProvider {
	return &openAIProvider{
		apiKey:   "test-key",
		baseURL:  baseURL,
		client:   newHTTPClient(5),
		maxInput: maxInput,
	}
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"pong"}}]}`))
	}))
	defer srv.Close()

	p := testProvider(srv.URL, 0)
	out, err := p.Generate(context.Background(), "gpt-test", "ping")
	require.NoError(t, err)
	require.Equal(t, "pong", out)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGenerateGivesUpAfterBoundedAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := testProvider(srv.URL, 0)
	_, err := p.Generate(context.Background(), "gpt-test", "ping")
	require.Error(t, err)
	require.EqualValues(t, maxAttempts, atomic.LoadInt32(&calls))
}

// 4xx other than 429 means the request itself is wrong; repeating it would
// only burn quota.
func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := testProvider(srv.URL, 0)
	_, err := p.Generate(context.Background(), "gpt-test", "ping")
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestEmbedClampsOversizedInput(t *testing.T) {
	var gotInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotInput = req.Input
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
	}))
	defer srv.Close()

	p := testProvider(srv.URL, 10)
	_, err := p.Embed(context.Background(), "embed-test", strings.Repeat("x", 50), "document")
	require.NoError(t, err)
	require.Len(t, gotInput, 10)
}

func TestClampInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"no limit", "hello", 0, "hello"},
		{"under limit", "hello", 10, "hello"},
		{"over limit", "hello world", 5, "hello"},
		{"rune boundary", "héllo", 2, "hé"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, clampInput(tc.in, tc.max))
		})
	}
}

type fixedVecProvider struct {
	vec []float32
}

func (f fixedVecProvider) Name() string { return "fixed" }

func (f fixedVecProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	return "", nil
}

func (f fixedVecProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	return f.vec, nil
}

func TestEmbedderEnforcesDimension(t *testing.T) {
	p := fixedVecProvider{vec: []float32{1, 2, 3}}

	_, err := NewEmbedder(p, "m", 4).Embed(context.Background(), "text", "document")
	require.Error(t, err)
	require.Contains(t, err.Error(), "dimensions")

	vec, err := NewEmbedder(p, "m", 3).Embed(context.Background(), "text", "document")
	require.NoError(t, err)
	require.Len(t, vec, 3)
}
