package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mohammad-safakhou/newsrag/config"
	"github.com/mohammad-safakhou/newsrag/internal/chat"
	"github.com/mohammad-safakhou/newsrag/internal/chunker"
	"github.com/mohammad-safakhou/newsrag/internal/embedding"
	"github.com/mohammad-safakhou/newsrag/internal/generation"
	"github.com/mohammad-safakhou/newsrag/internal/ingest"
	"github.com/mohammad-safakhou/newsrag/internal/store"
	"github.com/mohammad-safakhou/newsrag/internal/vectorstore"
	"github.com/mohammad-safakhou/newsrag/internal/vectorstore/chromem"
	"github.com/mohammad-safakhou/newsrag/internal/vectorstore/qdrant"
	"github.com/mohammad-safakhou/newsrag/news"
	"github.com/mohammad-safakhou/newsrag/repository"
	"github.com/mohammad-safakhou/newsrag/repository/redis_repository"
)

// App holds the process-wide clients and the services built on them.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry

	Store    *store.Store
	Redis    *redis.Client
	Vectors  vectorstore.Store
	Embedder embedding.Embedder

	Ingest *ingest.Service
	Chat   *chat.Service

	closers []func() error
}

// Build connects to every dependency and assembles the ingestion and chat
// services. Connections are retried per cfg.Startup; the first dependency
// that stays unreachable aborts the build.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app := newApp(cfg, log)
	if err := app.openIndex(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := app.openState(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	generator, err := generation.New(ctx, cfg.Generation)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Chat, err = chat.New(chat.Deps{
		Embedder:     app.Embedder,
		Vectors:      app.Vectors,
		Generator:    generator,
		Interactions: app.Store,
		Sessions: repository.NewSessionRepository(app.Redis, repository.SessionOptions{
			TTL:         cfg.Chat.SessionTTL,
			MaxMessages: cfg.Chat.HistoryMaxMessages,
		}),
		Config:     cfg.Chat,
		Logger:     log,
		Registerer: app.Registry,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// BuildIngest assembles only what an offline ingestion run needs: the
// vector store and the embedding API.
func BuildIngest(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	for _, v := range []interface{ Validate() error }{cfg.Vector, cfg.Embedding, cfg.Ingest} {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	app := newApp(cfg, log)
	if err := app.openIndex(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func newApp(cfg *config.Config, log zerolog.Logger) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &App{Config: cfg, Logger: log, Registry: reg}
}

// openIndex prepares the vector collection, the embedder and the ingestion
// pipeline.
func (a *App) openIndex(ctx context.Context) error {
	cfg := a.Config
	vectors, err := openVectors(cfg.Vector)
	if err != nil {
		return err
	}
	a.Vectors = vectors
	err = Retry(ctx, cfg.Startup, a.Logger, "vector store", func(ctx context.Context) error {
		return vectors.EnsureCollection(ctx, cfg.Vector.Dimension)
	})
	if err != nil {
		return fmt.Errorf("ensure collection %s: %w", cfg.Vector.Collection, err)
	}

	a.Embedder, err = embedding.New(ctx, cfg.Embedding, cfg.Vector.Dimension)
	if err != nil {
		return err
	}
	splitter, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return err
	}
	a.Ingest, err = ingest.New(ingest.Deps{
		Source:     news.NewCorpus(cfg.Ingest.CorpusPath),
		Splitter:   splitter,
		Embedder:   a.Embedder,
		Vectors:    a.Vectors,
		Logger:     a.Logger,
		Registerer: a.Registry,
	})
	return err
}

// openState connects the interaction log and the session cache.
func (a *App) openState(ctx context.Context) error {
	cfg := a.Config
	dsn, err := BuildPostgresDSN(cfg)
	if err != nil {
		return err
	}
	err = Retry(ctx, cfg.Startup, a.Logger, "postgres", func(ctx context.Context) error {
		st, err := store.NewWithDSN(ctx, dsn)
		if err != nil {
			return err
		}
		a.Store = st
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	r := cfg.Storage.Redis
	err = Retry(ctx, cfg.Startup, a.Logger, "redis", func(ctx context.Context) error {
		client, err := redis_repository.Conn(ctx, r.Host, r.Port, r.Password, r.DB, r.Timeout)
		if err != nil {
			return err
		}
		a.Redis = client
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect redis %s:%s: %w", r.Host, r.Port, err)
	}
	a.closers = append(a.closers, a.Redis.Close)
	a.Logger.Info().Msg("postgres and redis connected")
	return nil
}

func openVectors(cfg config.VectorConfig) (vectorstore.Store, error) {
	switch cfg.Provider {
	case config.VectorProviderQdrant:
		return qdrant.New(qdrant.Config{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: cfg.Collection,
			Timeout:    cfg.Timeout,
		}), nil
	case config.VectorProviderChromem:
		return chromem.New(cfg.Path, cfg.Collection)
	default:
		return nil, fmt.Errorf("unsupported vector provider %q", cfg.Provider)
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
