// Package chat answers questions over the indexed news corpus and manages
// per-session conversation state.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/newsrag/config"
	"github.com/mohammad-safakhou/newsrag/internal/embedding"
	"github.com/mohammad-safakhou/newsrag/internal/generation"
	"github.com/mohammad-safakhou/newsrag/internal/store"
	"github.com/mohammad-safakhou/newsrag/internal/vectorstore"
	"github.com/mohammad-safakhou/newsrag/models"
	"github.com/mohammad-safakhou/newsrag/repository"
)

// InteractionLog is the durable record of answered questions.
type InteractionLog interface {
	SaveInteraction(ctx context.Context, rec store.Interaction) (store.Interaction, error)
	ListInteractions(ctx context.Context, sessionID string) ([]store.Interaction, error)
	DeleteInteractions(ctx context.Context, sessionID string) (int64, error)
}

// Deps are the collaborators of the chat pipeline.
type Deps struct {
	Embedder     embedding.Embedder
	Vectors      vectorstore.Store
	Generator    generation.Generator
	Interactions InteractionLog
	Sessions     repository.SessionRepository
	Config       config.ChatConfig
	Logger       zerolog.Logger
	Registerer   prometheus.Registerer
}

// Service runs the retrieve, augment and generate pipeline.
type Service struct {
	embedder     embedding.Embedder
	vectors      vectorstore.Store
	generator    generation.Generator
	interactions InteractionLog
	sessions     repository.SessionRepository
	cfg          config.ChatConfig
	log          zerolog.Logger
	latency      *prometheus.HistogramVec
}

// ClearResult reports how much state a session clear removed.
type ClearResult struct {
	LogsDeleted      int64 `json:"logs_deleted"`
	CacheKeysDeleted int64 `json:"cache_keys_deleted"`
}

// New validates deps and registers the chat metrics.
func New(d Deps) (*Service, error) {
	if d.Embedder == nil || d.Vectors == nil || d.Generator == nil || d.Interactions == nil || d.Sessions == nil {
		return nil, errors.New("chat: embedder, vector store, generator, interaction log and sessions are required")
	}
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsrag_chat_duration_seconds",
		Help:    "Time from retrieval to a fully generated answer.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	if d.Registerer != nil {
		if err := d.Registerer.Register(latency); err != nil {
			return nil, fmt.Errorf("register chat metrics: %w", err)
		}
	}
	return &Service{
		embedder:     d.Embedder,
		vectors:      d.Vectors,
		generator:    d.Generator,
		interactions: d.Interactions,
		sessions:     d.Sessions,
		cfg:          d.Config.Normalize(),
		log:          d.Logger.With().Str("component", "chat").Logger(),
		latency:      latency,
	}, nil
}

// Answer runs the full pipeline for one question and returns the model's
// reply. The interaction is logged before returning; the session cache
// update is best effort.
func (s *Service) Answer(ctx context.Context, sessionID, query string) (string, error) {
	log := s.log.With().Str("session_id", sessionID).Logger()

	history, err := s.sessions.GetHistory(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Msg("session history unavailable, starting fresh")
		history = nil
	}

	start := time.Now()
	reply, userTurn, err := s.generate(ctx, history, query)
	elapsed := time.Since(start)
	if err != nil {
		s.latency.WithLabelValues("error").Observe(elapsed.Seconds())
		return "", err
	}
	s.latency.WithLabelValues("success").Observe(elapsed.Seconds())

	rec, err := s.interactions.SaveInteraction(ctx, store.Interaction{
		SessionID:    sessionID,
		UserQuery:    query,
		LLMResponse:  reply,
		ResponseTime: store.ResponseSeconds(elapsed),
	})
	if err != nil {
		return "", fmt.Errorf("log interaction: %w", err)
	}

	modelTurn := models.NewTextMessage(models.RoleModel, reply)
	if err := s.sessions.AppendTurns(ctx, sessionID, userTurn, modelTurn); err != nil {
		log.Error().Err(err).Int64("interaction_id", rec.ID).Msg("session history not updated")
	}

	log.Info().
		Int64("interaction_id", rec.ID).
		Float64("response_time", rec.ResponseTime).
		Msg("query answered")
	return reply, nil
}

func (s *Service) generate(ctx context.Context, history []models.Message, query string) (string, models.Message, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", models.Message{}, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.vectors.Search(ctx, vec, s.cfg.TopK)
	if err != nil {
		return "", models.Message{}, fmt.Errorf("search context: %w", err)
	}
	s.log.Debug().Int("hits", len(hits)).Msg("context retrieved")

	userTurn := models.NewTextMessage(models.RoleUser, BuildPrompt(query, hits))
	request := append(s.window(history), userTurn)

	reply, err := generation.Collect(s.generator.Stream(ctx, request))
	if err != nil {
		return "", models.Message{}, fmt.Errorf("generate answer: %w", err)
	}
	return reply, userTurn, nil
}

// window caps prior history so that it plus the new user turn fit within
// the configured message limit.
func (s *Service) window(history []models.Message) []models.Message {
	switch limit := s.cfg.HistoryMaxMessages; {
	case limit <= 0:
		return append([]models.Message(nil), history...)
	case limit == 1:
		return nil
	default:
		return append([]models.Message(nil), models.TrimHistory(history, limit-1)...)
	}
}

// History returns the logged interactions of a session, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]store.Interaction, error) {
	records, err := s.interactions.ListInteractions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return records, nil
}

// Clear deletes the session's logged interactions and cached history
// concurrently. On failure the counts of whichever side succeeded are still
// reported.
func (s *Service) Clear(ctx context.Context, sessionID string) (ClearResult, error) {
	var (
		res ClearResult
		g   errgroup.Group
	)
	g.Go(func() error {
		n, err := s.interactions.DeleteInteractions(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("delete interactions: %w", err)
		}
		res.LogsDeleted = n
		return nil
	})
	g.Go(func() error {
		n, err := s.sessions.DeleteHistory(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("delete session history: %w", err)
		}
		res.CacheKeysDeleted = n
		return nil
	})
	err := g.Wait()
	s.log.Info().
		Str("session_id", sessionID).
		Int64("logs_deleted", res.LogsDeleted).
		Int64("cache_keys_deleted", res.CacheKeysDeleted).
		AnErr("error", err).
		Msg("session cleared")
	return res, err
}
