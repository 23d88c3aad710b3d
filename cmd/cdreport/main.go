package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cdreport/cdreport/internal/api"
	"github.com/cdreport/cdreport/internal/catalog"
	"github.com/cdreport/cdreport/internal/config"
	"github.com/cdreport/cdreport/internal/engine"
	"github.com/cdreport/cdreport/internal/ingest"
	"github.com/cdreport/cdreport/internal/platform/auth"
	"github.com/cdreport/cdreport/internal/platform/middleware"
	"github.com/cdreport/cdreport/internal/platform/telemetry"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cdreport",
		Short:        "Chronic disease quality indicator reports",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(evaluateCmd())
	root.AddCommand(indicatorsCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(tokenCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the indicator API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// newLogger writes JSON to w, or console output in development. An unknown
// level falls back to info.
func newLogger(w io.Writer, env, level string) zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// newCatalog builds the catalog with the parameter overrides from
// PARAMS_FILE applied.
func newCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	cat := catalog.New()
	overrides, err := config.LoadParamOverrides(cfg.ParamsFile)
	if err != nil {
		return nil, err
	}
	if err := cat.ApplyOverrides(overrides); err != nil {
		return nil, fmt.Errorf("apply parameter overrides: %w", err)
	}
	return cat, nil
}

func newServer(cfg *config.Config, logger zerolog.Logger) (*echo.Echo, error) {
	cat, err := newCatalog(cfg)
	if err != nil {
		return nil, err
	}
	sessions := engine.NewSessionStore(engine.Session{EMR: cfg.DefaultEMR(), RosteredOnly: cfg.RosteredOnly})
	tp := telemetry.NewProvider(cfg.MetricsEnabled)
	h := api.NewHandler(cat, engine.New(logger), ingest.NewLoader(logger), sessions, logger).WithRecorder(tp)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(tp.MetricsMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.MaxUploadSize))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.GET("/health", h.Health)
	e.GET("/metrics", tp.PrometheusHandler())

	apiV1 := e.Group("/api/v1")
	apiV1.GET("/health", h.Health)
	h.RegisterRoutes(apiV1, middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	return e, nil
}

func runServer() error {
	// Logger
	logger := newLogger(os.Stdout, os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = newLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	e, err := newServer(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("emr", string(cfg.DefaultEMR())).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
