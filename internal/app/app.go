// Package app contains the HTTP API.
package app

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/stolasapp/cfgram/internal/account"
	"github.com/stolasapp/cfgram/internal/config"
	"github.com/stolasapp/cfgram/internal/oauth"
	"github.com/stolasapp/cfgram/internal/places"
	"github.com/stolasapp/cfgram/internal/sec"
	"github.com/stolasapp/cfgram/internal/storage"
)

// bodyLimit caps the size of request bodies.
const bodyLimit = "64K"

// New creates the API server.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	store storage.Store,
	providers oauth.Providers,
) *echo.Echo {
	srv := echo.New()

	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)
	srv.HTTPErrorHandler = errorHandler(logger)

	if cfg.DevMode {
		srv.Debug = true
		srv.Use(logRequests(logger))
	}

	srv.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Secure(),
		middleware.BodyLimit(bodyLimit),
	)

	tokens := sec.NewTokens([]byte(cfg.AppSecret), cfg.TokenTTL, store)
	handler{
		clientURL: cfg.ClientURL,
		logger:    logger,
		tokens:    tokens,
		accounts:  account.NewService(logger, store, tokens),
		places:    places.NewService(logger, store),
		providers: providers,
	}.register(srv)
	return srv
}

func logRequests(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("uri", req.RequestURI),
				slog.String("route", c.Path()),
				slog.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				slog.Duration("latency", latency),
				slog.Int("status", res.Status),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.LogAttrs(
				req.Context(),
				slog.LevelDebug,
				"request handled",
				attrs...,
			)
			return err
		}
	}
}
