package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mohammad-safakhou/newsrag/config"
)

const serviceName = "Scalable RAG API for News Intelligence"

// Options configures the HTTP layer.
type Options struct {
	General  config.GeneralConfig
	Server   config.ServerConfig
	Logger   zerolog.Logger
	Registry *prometheus.Registry
}

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func (r *requestValidator) Validate(i interface{}) error {
	return r.v.Struct(i)
}

// New builds the echo instance with middleware and every route mounted.
func New(opts Options, ingester Ingester, chat Chatter) (*echo.Echo, error) {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	httpLog := opts.Logger.With().Str("component", "http").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New()}
	e.HTTPErrorHandler = errorHandler(opts.General.IsProduction(), httpLog)

	metrics, err := newHTTPMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			ev := httpLog.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = httpLog.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Str("remote_ip", v.RemoteIP).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(metrics.middleware())
	e.Use(middleware.BodyLimit("1M"))
	origins := opts.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	limits := newLimiters(opts.Server.RateLimit)
	if limits.global != nil {
		e.Use(limits.global)
	}

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
	})
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{Registry: opts.Registry})))

	api := e.Group("/api")
	ih := &IngestHandler{Ingester: ingester}
	ih.Register(api, limits.ingestChain()...)
	ch := &ChatHandler{Chat: chat}
	ch.Register(api, limits.chatChain()...)

	return e, nil
}

// errorHandler renders every error as the JSON envelope
// {status:"error", message[, details][, path]}. Details of server errors are
// only exposed outside production.
func errorHandler(production bool, log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		req := c.Request()
		code := http.StatusInternalServerError
		body := map[string]interface{}{"status": "error", "message": http.StatusText(code)}
		cause := err

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch msg := he.Message.(type) {
			case nil:
			case map[string]interface{}:
				for k, v := range msg {
					body[k] = v
				}
			default:
				body["message"] = fmt.Sprint(msg)
			}
			if he.Internal != nil {
				cause = he.Internal
			}
		}

		switch {
		case code == http.StatusNotFound || code == http.StatusMethodNotAllowed:
			code = http.StatusNotFound
			body["message"] = "Endpoint Not Found"
			body["path"] = req.URL.RequestURI()
		case code >= http.StatusInternalServerError:
			log.Error().Err(cause).Str("method", req.Method).Str("path", req.URL.Path).Msg("request failed")
			if !production {
				body["details"] = cause.Error()
			}
		}

		if req.Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.Error().Err(err).Msg("write error response")
		}
	}
}

// apiError attaches the underlying cause to a client-facing message.
func apiError(code int, message string, cause error) *echo.HTTPError {
	return echo.NewHTTPError(code, message).SetInternal(cause)
}

// Run serves e on addr until ctx is cancelled, then drains in-flight
// requests for at most shutdownTimeout.
func Run(ctx context.Context, e *echo.Echo, addr string, shutdownTimeout time.Duration, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
