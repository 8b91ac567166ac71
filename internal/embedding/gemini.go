package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/mohammad-safakhou/newsrag/config"
)

// geminiMaxBatch is the request limit of batchEmbedContents.
const geminiMaxBatch = 100

// Gemini embeds through the Gemini API.
type Gemini struct {
	client    *genai.Client
	model     string
	dimension int32
	batchSize int
}

// NewGemini creates a Gemini embedder producing vectors of the given size.
func NewGemini(ctx context.Context, cfg config.EmbeddingConfig, dimension int) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	batch := cfg.BatchSize
	if batch <= 0 || batch > geminiMaxBatch {
		batch = geminiMaxBatch
	}
	return &Gemini{client: client, model: cfg.Model, dimension: int32(dimension), batchSize: batch}, nil
}

func (g *Gemini) embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}
	cfg := &genai.EmbedContentConfig{}
	if g.dimension > 0 {
		cfg.OutputDimensionality = genai.Ptr(g.dimension)
	}
	result, err := g.client.Models.EmbedContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	out := make([][]float32, 0, len(result.Embeddings))
	for _, e := range result.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

// EmbedDocuments embeds texts in batches, preserving order.
func (g *Gemini) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		vectors, err := g.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// EmbedQuery embeds a single query.
func (g *Gemini) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}
