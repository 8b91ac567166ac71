// Package embedding turns text into vectors through a hosted embedding API.
package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/embeddings/jina"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mohammad-safakhou/newsrag/config"
	"github.com/mohammad-safakhou/newsrag/models"
)

// Embedder is satisfied by langchaingo embedders.
type Embedder interface {
	// EmbedDocuments returns one vector per text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// New builds the embedder selected by cfg.Provider. dimension is the vector
// size the collection was created with; it is requested from backends that
// support choosing it.
func New(ctx context.Context, cfg config.EmbeddingConfig, dimension int) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)
	switch cfg.Provider {
	case config.EmbeddingProviderJina:
		inner, err = newJina(cfg)
	case config.EmbeddingProviderOpenAI:
		inner, err = newOpenAI(cfg)
	case config.EmbeddingProviderOllama:
		inner, err = newOllama(cfg)
	case config.EmbeddingProviderGemini:
		inner, err = NewGemini(ctx, cfg, dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s embedder: %w", cfg.Provider, err)
	}
	return Checked(inner, dimension), nil
}

func newJina(cfg config.EmbeddingConfig) (Embedder, error) {
	opts := []jina.Option{
		jina.WithAPIKey(cfg.APIKey),
		jina.WithModel(cfg.Model),
	}
	if cfg.BatchSize > 0 {
		opts = append(opts, jina.WithBatchSize(cfg.BatchSize))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, jina.WithAPIBaseURL(cfg.BaseURL))
	}
	return jina.NewJina(opts...)
}

func newOpenAI(cfg config.EmbeddingConfig) (Embedder, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm, batchOption(cfg)...)
}

func newOllama(cfg config.EmbeddingConfig) (Embedder, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm, batchOption(cfg)...)
}

func batchOption(cfg config.EmbeddingConfig) []embeddings.Option {
	if cfg.BatchSize <= 0 {
		return nil
	}
	return []embeddings.Option{embeddings.WithBatchSize(cfg.BatchSize)}
}

// Checked wraps an embedder so a response with the wrong number of vectors,
// an empty vector or, when dimension is positive, a vector of another length
// is reported as an error instead of flowing downstream.
func Checked(inner Embedder, dimension int) Embedder {
	if c, ok := inner.(checked); ok {
		c.dimension = dimension
		return c
	}
	return checked{inner: inner, dimension: dimension}
}

type checked struct {
	inner     Embedder
	dimension int
}

func (c checked) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := c.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %d texts, %d vectors", models.ErrEmbeddingCountMismatch, len(texts), len(vectors))
	}
	for i, v := range vectors {
		if err := c.verify(v); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}
	return vectors, nil
}

func (c checked) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.verify(v); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return v, nil
}

func (c checked) verify(v []float32) error {
	if len(v) == 0 {
		return models.ErrEmptyEmbedding
	}
	if c.dimension > 0 && len(v) != c.dimension {
		return fmt.Errorf("%w: got %d, want %d", models.ErrEmbeddingDimension, len(v), c.dimension)
	}
	return nil
}
