package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/newsrag/config"
	"github.com/mohammad-safakhou/newsrag/models"
)

type stubEmbedder struct {
	docs  [][]float32
	query []float32
	err   error
	calls int
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, _ []string) ([][]float32, error) {
	s.calls++
	return s.docs, s.err
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	return s.query, s.err
}

func TestCheckedDetectsCountMismatch(t *testing.T) {
	e := Checked(&stubEmbedder{docs: [][]float32{{1, 2}}}, 0)
	_, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, models.ErrEmbeddingCountMismatch)
}

func TestCheckedDetectsEmptyVectors(t *testing.T) {
	e := Checked(&stubEmbedder{docs: [][]float32{{1}, {}}, query: nil}, 0)
	_, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, models.ErrEmptyEmbedding)

	_, err = e.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, models.ErrEmptyEmbedding)
}

func TestCheckedSkipsEmptyInput(t *testing.T) {
	inner := &stubEmbedder{}
	vectors, err := Checked(inner, 0).EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, inner.calls)
}

func TestCheckedPassesThroughErrors(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := Checked(&stubEmbedder{err: boom}, 0).EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}

func TestCheckedIsIdempotent(t *testing.T) {
	once := Checked(&stubEmbedder{}, 3)
	assert.Equal(t, once, Checked(once, 3))
}

func TestCheckedEnforcesDimension(t *testing.T) {
	ctx := context.Background()
	e := Checked(&stubEmbedder{docs: [][]float32{{1, 2, 3}, {1, 2}}, query: []float32{1, 2}}, 3)

	_, err := e.EmbedDocuments(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, models.ErrEmbeddingDimension)
	_, err = e.EmbedQuery(ctx, "q")
	assert.ErrorIs(t, err, models.ErrEmbeddingDimension)

	ok := Checked(&stubEmbedder{docs: [][]float32{{1, 2, 3}}, query: []float32{4, 5, 6}}, 3)
	vectors, err := ok.EmbedDocuments(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}}, vectors)
	v, err := ok.EmbedQuery(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 6}, v)
}

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()
	for _, provider := range []string{
		config.EmbeddingProviderJina,
		config.EmbeddingProviderOpenAI,
		config.EmbeddingProviderOllama,
		config.EmbeddingProviderGemini,
	} {
		e, err := New(ctx, config.EmbeddingConfig{Provider: provider, Model: "m", APIKey: "k", BatchSize: 8}, 1024)
		require.NoError(t, err, provider)
		assert.NotNil(t, e, provider)
	}

	_, err := New(ctx, config.EmbeddingConfig{Provider: "word2vec"}, 1024)
	assert.Error(t, err)
}
