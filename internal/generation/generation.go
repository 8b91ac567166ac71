// Package generation streams answers from a hosted generative model.
package generation

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/mohammad-safakhou/newsrag/config"
	"github.com/mohammad-safakhou/newsrag/models"
)

// Generator produces a model reply to a conversation whose last message is
// the user turn to answer.
type Generator interface {
	// Stream yields text fragments as they arrive. A non-nil error is the
	// final element of the sequence.
	Stream(ctx context.Context, history []models.Message) iter.Seq2[string, error]
}

// Collect drains a stream into the full reply text. A stream that ends
// without any non-blank text yields models.ErrEmptyGeneration.
func Collect(stream iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for fragment, err := range stream {
		if err != nil {
			return "", err
		}
		b.WriteString(fragment)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", models.ErrEmptyGeneration
	}
	return b.String(), nil
}

// New builds the generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.GenerationConfig) (Generator, error) {
	switch cfg.Provider {
	case config.GenerationProviderGemini:
		return NewGemini(ctx, cfg)
	case config.GenerationProviderOpenAI:
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", cfg.Provider)
	}
}
