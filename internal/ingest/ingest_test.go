package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/newsrag/internal/chunker"
	"github.com/mohammad-safakhou/newsrag/internal/vectorstore"
	"github.com/mohammad-safakhou/newsrag/models"
)

type staticSource struct {
	articles []models.Article
	err      error
}

func (s staticSource) Articles(context.Context) ([]models.Article, error) {
	return s.articles, s.err
}

type fakeEmbedder struct {
	calls int
	drop  int
	err   error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for i := range texts[f.drop:] {
		out = append(out, []float32{float32(i), 1})
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type recordingStore struct {
	upserts [][]vectorstore.Point
	err     error
}

func (r *recordingStore) EnsureCollection(context.Context, int) error { return nil }

func (r *recordingStore) Upsert(_ context.Context, points []vectorstore.Point) error {
	r.upserts = append(r.upserts, points)
	return r.err
}

func (r *recordingStore) Search(context.Context, []float32, int) ([]vectorstore.Hit, error) {
	return nil, nil
}

func newService(t *testing.T, src staticSource, emb *fakeEmbedder, vs *recordingStore, reg prometheus.Registerer) *Service {
	t.Helper()
	splitter, err := chunker.New(64, 8)
	require.NoError(t, err)
	svc, err := New(Deps{Source: src, Splitter: splitter, Embedder: emb, Vectors: vs, Logger: zerolog.Nop(), Registerer: reg})
	require.NoError(t, err)
	return svc
}

func corpus() []models.Article {
	return []models.Article{
		{ID: "a1", Title: "Chips", URL: "https://news.example.com/chips", Content: strings.Repeat("Chip supply is tight. ", 10)},
		{ID: "a2", Title: "Rates", URL: "https://news.example.com/rates", Content: "Rates held steady."},
	}
}

func TestRunWritesOnePointPerChunk(t *testing.T) {
	reg := prometheus.NewRegistry()
	emb := &fakeEmbedder{}
	vs := &recordingStore{}
	svc := newService(t, staticSource{articles: corpus()}, emb, vs, reg)

	res, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 1, emb.calls)
	require.Len(t, vs.upserts, 1)

	points := vs.upserts[0]
	assert.Equal(t, res.Chunks, len(points))
	assert.Greater(t, len(points), 2)

	seen := map[string]bool{}
	for _, p := range points {
		assert.False(t, seen[p.ID], "duplicate point id %s", p.ID)
		seen[p.ID] = true
		assert.Equal(t, PointID(p.Payload.ArticleID, p.Payload.ChunkID), p.ID)
		assert.NotEmpty(t, p.Payload.Text)
		assert.NotEmpty(t, p.Payload.SourceURL)
	}
	last := points[len(points)-1]
	assert.Equal(t, "a2", last.Payload.ArticleID)
	assert.Equal(t, 0, last.Payload.ChunkID)
	assert.Equal(t, "Rates held steady.", last.Payload.Text)

	assert.Equal(t, float64(res.Chunks), testutil.ToFloat64(svc.metrics.chunks))
}

func TestRunEmptyCorpusTouchesNothing(t *testing.T) {
	emb := &fakeEmbedder{}
	vs := &recordingStore{}
	svc := newService(t, staticSource{}, emb, vs, nil)

	res, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Zero(t, emb.calls)
	assert.Empty(t, vs.upserts)
}

func TestRunCountMismatchWritesNothing(t *testing.T) {
	emb := &fakeEmbedder{drop: 1}
	vs := &recordingStore{}
	svc := newService(t, staticSource{articles: corpus()}, emb, vs, nil)

	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, models.ErrEmbeddingCountMismatch)
	assert.Empty(t, vs.upserts)
}

func TestRunPropagatesAdapterErrors(t *testing.T) {
	boom := errors.New("upstream unavailable")

	_, err := newService(t, staticSource{err: boom}, &fakeEmbedder{}, &recordingStore{}, nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)

	vs := &recordingStore{}
	_, err = newService(t, staticSource{articles: corpus()}, &fakeEmbedder{err: boom}, vs, nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, vs.upserts)

	_, err = newService(t, staticSource{articles: corpus()}, &fakeEmbedder{}, &recordingStore{err: boom}, nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunIsIdempotentOnPointIDs(t *testing.T) {
	vs := &recordingStore{}
	svc := newService(t, staticSource{articles: corpus()}, &fakeEmbedder{}, vs, nil)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	_, err = svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, vs.upserts, 2)

	for i := range vs.upserts[0] {
		assert.Equal(t, vs.upserts[0][i].ID, vs.upserts[1][i].ID)
	}
}

func TestPointIDIsStableUUID(t *testing.T) {
	id := PointID("a1", 0)
	assert.Len(t, id, 36)
	assert.Equal(t, id, PointID("a1", 0))
	assert.NotEqual(t, id, PointID("a1", 1))
	assert.NotEqual(t, PointID("a1", 10), PointID("a11", 0))
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	newService(t, staticSource{}, &fakeEmbedder{}, &recordingStore{}, reg)

	splitter, err := chunker.New(64, 8)
	require.NoError(t, err)
	_, err = New(Deps{Source: staticSource{}, Splitter: splitter, Embedder: &fakeEmbedder{}, Vectors: &recordingStore{}, Registerer: reg})
	assert.Error(t, err)
}
