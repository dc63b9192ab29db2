package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"voice-chat-proxy/internal/client"
	"voice-chat-proxy/internal/config"
	"voice-chat-proxy/internal/handler"
	"voice-chat-proxy/internal/metrics"
	"voice-chat-proxy/internal/middleware"
	"voice-chat-proxy/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	ctx := kong.Parse(&cli,
		kong.Name("voice-proxy"),
		kong.Description("Forwarding proxy and chat backend for the voice chat client."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	if strings.HasPrefix(ctx.Command(), "invoke") {
		if err := runInvoke(&cli); err != nil {
			fmt.Fprintln(os.Stderr, "voice-proxy:", err)
			os.Exit(1)
		}
		return
	}

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			newMetrics,
			newEcho,
			client.NewBackendClient,
			client.NewChatClient,
			service.NewProxyService,
			service.NewChatService,
			handler.NewProxyHandler,
			handler.NewChatHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, logStartup, startServer),
	).Run()
}

// runInvoke handles one event without starting the server. Logs go to stderr
// so stdout carries only the response JSON.
func runInvoke(cli *config.CLI) error {
	cfg, err := config.Load(cli)
	if err != nil {
		return err
	}
	logger := newLoggerTo(cfg, os.Stderr)
	cfg.WarnPermissions(logger)

	var in io.Reader = os.Stdin
	if cli.Invoke.Event != "" {
		f, err := os.Open(cli.Invoke.Event)
		if err != nil {
			return fmt.Errorf("open event: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bc := client.NewBackendClient(cfg, logger, nil)
	svc := service.NewProxyService(bc, cfg, logger, nil)
	return handler.Invoke(ctx, svc, in, os.Stdout)
}

func newLogger(cfg *config.Config) *slog.Logger {
	return newLoggerTo(cfg, os.Stdout)
}

func newLoggerTo(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h)
}

func newMetrics(cfg *config.Config) *metrics.Metrics {
	return metrics.New(cfg.Backend.MountPrefix)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = 30 * time.Second
	// Replays have no deadline unless backend.timeout_seconds is set, so the
	// write side is left unbounded too.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLogger(logger))
	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsWithConfig(middleware.MetricsConfig{
			Metrics: m,
			Skipper: func(c echo.Context) bool { return c.Path() == cfg.Metrics.Path },
		}))
	}
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders())

	return e
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func logStartup(cfg *config.Config, logger *slog.Logger) {
	if cfg.Backend.Origin == "" {
		logger.Warn("backend origin is not set; proxied requests will fail until BACKEND_URL is configured",
			"mount_prefix", cfg.Backend.MountPrefix,
		)
	}
	if cfg.Chat.Enabled && cfg.Chat.APIKey == "" {
		logger.Warn("chat is enabled without an API key; /chat will fail",
			"provider", cfg.Chat.Provider,
		)
	}
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server",
				"addr", addr,
				"version", version,
				"mount_prefix", cfg.Backend.MountPrefix,
				"chat", cfg.Chat.Enabled,
				"ui", cfg.UI.Enabled,
			)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
