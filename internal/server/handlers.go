package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/newsrag/internal/chat"
	"github.com/mohammad-safakhou/newsrag/internal/ingest"
	"github.com/mohammad-safakhou/newsrag/internal/store"
)

// Ingester runs the ingestion pipeline.
type Ingester interface {
	Run(ctx context.Context) (ingest.Result, error)
}

// Chatter answers questions and manages session state.
type Chatter interface {
	Answer(ctx context.Context, sessionID, query string) (string, error)
	History(ctx context.Context, sessionID string) ([]store.Interaction, error)
	Clear(ctx context.Context, sessionID string) (chat.ClearResult, error)
}

const msgMissingChatFields = "Missing required fields: sessionId and query."

type IngestHandler struct {
	Ingester Ingester
}

func (h *IngestHandler) Register(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.POST("/ingest", h.ingest, mw...)
}

func (h *IngestHandler) ingest(c echo.Context) error {
	res, err := h.Ingester.Run(c.Request().Context())
	if err != nil {
		return apiError(http.StatusInternalServerError, "Internal Server Error: Failed to complete the ingestion pipeline.", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":              "success",
		"message":             fmt.Sprintf("Ingestion successful. Processed documents and stored %d vectors in Qdrant.", res.Chunks),
		"documents_processed": res.Documents,
		"vectors_stored":      res.Chunks,
	})
}

type ChatHandler struct {
	Chat Chatter
}

func (h *ChatHandler) Register(g *echo.Group, chatMW ...echo.MiddlewareFunc) {
	g.POST("/chat", h.chat, chatMW...)
	g.GET("/history/:sessionId", h.history)
	g.DELETE("/history/:sessionId", h.clear)
}

type chatRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Query     string `json:"query" validate:"required"`
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingChatFields).SetInternal(err)
	}
	// Blank fields count as missing, but the session id is used as sent.
	check := chatRequest{SessionID: strings.TrimSpace(req.SessionID), Query: strings.TrimSpace(req.Query)}
	if err := c.Validate(&check); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingChatFields).SetInternal(err)
	}

	reply, err := h.Chat.Answer(c.Request().Context(), req.SessionID, req.Query)
	if err != nil {
		return apiError(http.StatusInternalServerError, "Internal Server Error during RAG pipeline execution.", err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"sessionId": req.SessionID,
		"response":  reply,
	})
}

func (h *ChatHandler) history(c echo.Context) error {
	sessionID := c.Param("sessionId")
	records, err := h.Chat.History(c.Request().Context(), sessionID)
	if err != nil {
		return apiError(http.StatusInternalServerError, "Failed to retrieve history.", err)
	}
	if records == nil {
		records = []store.Interaction{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessionId": sessionID,
		"history":   records,
	})
}

func (h *ChatHandler) clear(c echo.Context) error {
	sessionID := c.Param("sessionId")
	res, err := h.Chat.Clear(c.Request().Context(), sessionID)
	if err != nil {
		// Either store may already have been cleared; report what was removed.
		return echo.NewHTTPError(http.StatusInternalServerError, map[string]interface{}{
			"message":            "Failed to clear session history.",
			"logs_deleted":       res.LogsDeleted,
			"cache_keys_deleted": res.CacheKeysDeleted,
		}).SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":             "success",
		"message":            fmt.Sprintf("Session %s cleared. Deleted %d SQL logs and %d Redis keys.", sessionID, res.LogsDeleted, res.CacheKeysDeleted),
		"logs_deleted":       res.LogsDeleted,
		"cache_keys_deleted": res.CacheKeysDeleted,
	})
}
