package ai

import (
	"context"
	"fmt"
	"strings"

	appErr "github.com/kalorin/webseek/internal/pkg/errors"
)

type IProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string) (string, error)
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
	EmbedBatch(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error)
}

type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// IEmbedder maps text to fixed-dimension vectors. EmbedBatch preserves the
// order and length of its input; a partial upstream failure fails the whole
// batch so indices stay aligned with the caller's.
type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
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

type embedder struct {
	provider IProvider
	model    string
}

func NewEmbedder(p IProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	vec, err := e.provider.Embed(ctx, e.model, text, taskType)
	if err != nil {
		return nil, wrapProviderErr(err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty embedding from %s", appErr.ErrProvider, e.provider.Name())
	}
	return vec, nil
}

func (e *embedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.provider.EmbedBatch(ctx, e.model, texts, taskType)
	if err != nil {
		return nil, wrapProviderErr(err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", appErr.ErrProvider, len(vecs), len(texts))
	}
	dim := len(vecs[0])
	for i, vec := range vecs {
		if len(vec) == 0 || len(vec) != dim {
			return nil, fmt.Errorf("%w: inconsistent embedding dimension at index %d", appErr.ErrProvider, i)
		}
	}
	return vecs, nil
}

func (e *embedder) ModelName() string {
	return e.model
}

func wrapProviderErr(err error) error {
	if err == nil {
		return nil
	}
	if err == ErrUnavailable {
		return err
	}
	return fmt.Errorf("%w: %v", appErr.ErrProvider, err)
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
