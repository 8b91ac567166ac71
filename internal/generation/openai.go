package generation

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mohammad-safakhou/newsrag/config"
	"github.com/mohammad-safakhou/newsrag/models"
)

var errConsumerStopped = errors.New("stream consumer stopped")

// OpenAI streams from any OpenAI-compatible chat completions endpoint
// through langchaingo.
type OpenAI struct {
	llm         llms.Model
	temperature float64
}

// NewOpenAI creates an OpenAI-compatible generator.
func NewOpenAI(cfg config.GenerationConfig) (*OpenAI, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	return &OpenAI{llm: llm, temperature: cfg.Temperature}, nil
}

func toMessageContents(history []models.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Role == models.RoleModel {
			role = llms.ChatMessageTypeAI
		}
		parts := make([]llms.ContentPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			parts = append(parts, llms.TextContent{Text: p.Text})
		}
		out = append(out, llms.MessageContent{Role: role, Parts: parts})
	}
	return out
}

// Stream adapts langchaingo's streaming callback to an iterator. Fragments
// are yielded from inside the callback, so the consumer runs on the calling
// goroutine.
func (o *OpenAI) Stream(ctx context.Context, history []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stopped := false
		_, err := o.llm.GenerateContent(ctx, toMessageContents(history),
			llms.WithTemperature(o.temperature),
			llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				if !yield(string(chunk), nil) {
					stopped = true
					return errConsumerStopped
				}
				return nil
			}),
		)
		if err != nil && !stopped {
			yield("", fmt.Errorf("openai stream: %w", err))
		}
	}
}
