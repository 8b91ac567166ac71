package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/mohammad-safakhou/newsrag/config"
)

type limiters struct {
	global echo.MiddlewareFunc
	chat   echo.MiddlewareFunc
	ingest echo.MiddlewareFunc
}

func (l limiters) chatChain() []echo.MiddlewareFunc {
	if l.chat == nil {
		return nil
	}
	return []echo.MiddlewareFunc{l.chat}
}

func (l limiters) ingestChain() []echo.MiddlewareFunc {
	if l.ingest == nil {
		return nil
	}
	return []echo.MiddlewareFunc{l.ingest}
}

// newLimiters builds per-client token buckets that allow requests bursts of
// up to the budget and refill it evenly over the window.
func newLimiters(cfg config.RateLimitConfig) limiters {
	if !cfg.Enabled {
		return limiters{}
	}
	return limiters{
		global: limiter(cfg.GlobalRequests, cfg.GlobalWindow,
			"Too many requests from this IP, please try again later.",
			func(c echo.Context) bool { return c.Request().URL.Path == "/" },
			ipKey),
		chat: limiter(cfg.ChatRequests, cfg.ChatWindow,
			fmt.Sprintf("Too many chat requests. Maximum %d requests per %s.", cfg.ChatRequests, humanWindow(cfg.ChatWindow)),
			nil, sessionKey),
		ingest: limiter(cfg.IngestRequests, cfg.IngestWindow,
			fmt.Sprintf("Too many ingestion requests. Maximum %d requests per %s.", cfg.IngestRequests, humanWindow(cfg.IngestWindow)),
			nil, ipKey),
	}
}

func limiter(budget int, per time.Duration, message string, skip middleware.Skipper, key middleware.Extractor) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(budget) / per.Seconds()),
		Burst:     budget,
		ExpiresIn: per,
	})
	deny := func(c echo.Context, _ string, _ error) error {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"status": "error", "message": message})
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper:             skip,
		Store:               store,
		IdentifierExtractor: key,
		DenyHandler:         deny,
		ErrorHandler: func(_ echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusBadRequest, "Malformed request body.").SetInternal(err)
		},
	})
}

func ipKey(c echo.Context) (string, error) {
	return c.RealIP(), nil
}

// sessionKey keys chat requests by their sessionId so that clients behind
// one address do not share a budget. The body is restored for the handler.
func sessionKey(c echo.Context) (string, error) {
	req := c.Request()
	if req.Body == nil {
		return ipKey(c)
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return "", err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	var probe struct {
		SessionID string `json:"sessionId"`
	}
	if json.Unmarshal(body, &probe) == nil && probe.SessionID != "" {
		return "session:" + probe.SessionID, nil
	}
	return ipKey(c)
}

func humanWindow(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
