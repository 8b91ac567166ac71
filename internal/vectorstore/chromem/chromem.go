// Package chromem is an embedded vector store backed by chromem-go, used for
// local runs and tests where no Qdrant server is available.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/mohammad-safakhou/newsrag/internal/vectorstore"
	"github.com/mohammad-safakhou/newsrag/models"
)

const (
	metaArticleID = "articleId"
	metaSourceURL = "sourceUrl"
	metaChunkID   = "chunkId"
	metaTitle     = "title"
)

var errNoEmbeddingFunc = errors.New("chromem: embeddings must be supplied by the caller")

// noEmbedding keeps chromem from falling back to its default OpenAI client;
// every document and query arrives with a precomputed vector.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// Store is a vectorstore.Store over one chromem collection.
type Store struct {
	db   *chromem.DB
	name string

	mu         sync.Mutex
	collection *chromem.Collection
}

var _ vectorstore.Store = (*Store)(nil)

// New opens an in-memory database when path is empty, otherwise a
// persistent one rooted at path.
func New(path, collection string) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	return &Store{db: db, name: collection}, nil
}

// EnsureCollection creates or loads the collection. chromem always uses
// cosine similarity and infers the dimension from the first document.
func (s *Store) EnsureCollection(_ context.Context, _ int) error {
	_, err := s.ensure()
	return err
}

func (s *Store) ensure() (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection != nil {
		return s.collection, nil
	}
	c, err := s.db.GetOrCreateCollection(s.name, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", s.name, err)
	}
	s.collection = c
	return c, nil
}

// Upsert adds the points; an existing id is overwritten.
func (s *Store) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	c, err := s.ensure()
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, chromem.Document{
			ID:        p.ID,
			Content:   p.Payload.Text,
			Embedding: p.Vector,
			Metadata: map[string]string{
				metaArticleID: p.Payload.ArticleID,
				metaSourceURL: p.Payload.SourceURL,
				metaChunkID:   strconv.Itoa(p.Payload.ChunkID),
				metaTitle:     p.Payload.Title,
			},
		})
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add %d documents: %w", len(docs), err)
	}
	return nil
}

// Search returns at most k hits; k is clamped to the collection size since
// chromem rejects larger result counts.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]vectorstore.Hit, error) {
	c, err := s.ensure()
	if err != nil {
		return nil, err
	}
	if n := c.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}
	results, err := c.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", s.name, err)
	}
	hits := make([]vectorstore.Hit, 0, len(results))
	for _, r := range results {
		chunkID, err := strconv.Atoi(r.Metadata[metaChunkID])
		if err != nil {
			return nil, fmt.Errorf("document %s: bad chunk id %q: %w", r.ID, r.Metadata[metaChunkID], err)
		}
		hits = append(hits, vectorstore.Hit{
			ID:    r.ID,
			Score: r.Similarity,
			Payload: models.ChunkPayload{
				ArticleID: r.Metadata[metaArticleID],
				SourceURL: r.Metadata[metaSourceURL],
				Text:      r.Content,
				ChunkID:   chunkID,
				Title:     r.Metadata[metaTitle],
			},
		})
	}
	return hits, nil
}
