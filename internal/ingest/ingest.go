// Package ingest indexes the news corpus into the vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mohammad-safakhou/newsrag/internal/embedding"
	"github.com/mohammad-safakhou/newsrag/internal/vectorstore"
	"github.com/mohammad-safakhou/newsrag/models"
	"github.com/mohammad-safakhou/newsrag/news"
)

// pointNamespace scopes point ids so they never collide with UUIDs minted
// elsewhere from the same article ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("newsrag:chunks"))

// PointID returns the stable vector point id for a chunk. Re-ingesting the
// same article overwrites its points instead of duplicating them.
func PointID(articleID string, chunkID int) string {
	return uuid.NewSHA1(pointNamespace, []byte(articleID+"_"+strconv.Itoa(chunkID))).String()
}

// Splitter cuts an article into chunks.
type Splitter interface {
	SplitArticle(a models.Article) []models.Chunk
}

// Deps are the collaborators of the ingestion pipeline.
type Deps struct {
	Source     news.Source
	Splitter   Splitter
	Embedder   embedding.Embedder
	Vectors    vectorstore.Store
	Logger     zerolog.Logger
	Registerer prometheus.Registerer
}

// Result summarises one ingestion run.
type Result struct {
	Documents int `json:"documents_processed"`
	Chunks    int `json:"vectors_stored"`
}

// Service runs the load, split, embed and upsert pipeline.
type Service struct {
	source   news.Source
	splitter Splitter
	embedder embedding.Embedder
	vectors  vectorstore.Store
	log      zerolog.Logger
	metrics  *metrics
}

// New validates deps and registers the ingestion metrics.
func New(d Deps) (*Service, error) {
	if d.Source == nil || d.Splitter == nil || d.Embedder == nil || d.Vectors == nil {
		return nil, errors.New("ingest: source, splitter, embedder and vector store are required")
	}
	m, err := newMetrics(d.Registerer)
	if err != nil {
		return nil, err
	}
	return &Service{
		source:   d.Source,
		splitter: d.Splitter,
		embedder: d.Embedder,
		vectors:  d.Vectors,
		log:      d.Logger.With().Str("component", "ingest").Logger(),
		metrics:  m,
	}, nil
}

// Run indexes the whole corpus. Any failure aborts the run; nothing is
// written unless every chunk was embedded.
func (s *Service) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res, err := s.run(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.duration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Error().Err(err).Msg("ingestion failed")
		return Result{}, err
	}
	s.metrics.chunks.Add(float64(res.Chunks))
	s.log.Info().
		Int("documents", res.Documents).
		Int("chunks", res.Chunks).
		Dur("elapsed", time.Since(start)).
		Msg("ingestion complete")
	return res, nil
}

func (s *Service) run(ctx context.Context) (Result, error) {
	articles, err := s.source.Articles(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load articles: %w", err)
	}
	if len(articles) == 0 {
		s.log.Warn().Msg("corpus is empty, nothing to ingest")
		return Result{}, nil
	}

	var chunks []models.Chunk
	for _, a := range articles {
		chunks = append(chunks, s.splitter.SplitArticle(a)...)
	}
	s.log.Debug().Int("documents", len(articles)).Int("chunks", len(chunks)).Msg("corpus split")
	if len(chunks) == 0 {
		return Result{Documents: len(articles)}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return Result{}, fmt.Errorf("%w: %d chunks, %d vectors", models.ErrEmbeddingCountMismatch, len(chunks), len(vectors))
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vectorstore.Point{
			ID:      PointID(c.ArticleID, c.ChunkID),
			Vector:  vectors[i],
			Payload: c.Payload(),
		}
	}
	if err := s.vectors.Upsert(ctx, points); err != nil {
		return Result{}, fmt.Errorf("upsert points: %w", err)
	}
	return Result{Documents: len(articles), Chunks: len(points)}, nil
}

type metrics struct {
	chunks   prometheus.Counter
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsrag_ingested_chunks_total",
			Help: "Chunks embedded and written to the vector store.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsrag_ingest_duration_seconds",
			Help:    "Wall time of ingestion runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"outcome"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.chunks, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register ingest metrics: %w", err)
		}
	}
	return m, nil
}
