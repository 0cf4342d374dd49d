package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrUnavailable = errors.New("ai provider unavailable")

type IProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string) (string, error)
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
}

type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

// IReranker scores candidate passages against a query. Implementations are
// optional; callers fall back to retrieval order when none is configured.
type IReranker interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
	ModelName() string
}

type generator struct {
	provider IProvider
	model    string
}

func NewGenerator(p IProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.provider.Generate(ctx, g.model, prompt)
}

func (g *generator) ModelName() string {
	return g.model
}

type embedder struct {
	provider IProvider
	model    string
	dim      int
}

// NewEmbedder wraps a provider for one embedding model. A non-zero dim is
// enforced on every response, so a model/schema mismatch fails at the embed
// call instead of at vector insert time.
func NewEmbedder(p IProvider, model string, dim int) IEmbedder {
	return &embedder{provider: p, model: model, dim: dim}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	vec, err := e.provider.Embed(ctx, e.model, text, taskType)
	if err != nil {
		return nil, err
	}
	if e.dim > 0 && len(vec) != e.dim {
		return nil, fmt.Errorf("model %s returned %d dimensions, expected %d", e.model, len(vec), e.dim)
	}
	return vec, nil
}

func (e *embedder) ModelName() string {
	return e.model
}

type ProviderFactory func(args interface{}) (IProvider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}
