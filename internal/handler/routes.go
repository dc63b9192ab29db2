package handler

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voice-chat-proxy/internal/config"
	"voice-chat-proxy/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(
	e *echo.Echo,
	cfg *config.Config,
	m *metrics.Metrics,
	proxy *ProxyHandler,
	chat *ChatHandler,
	health *HealthHandler,
) error {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	mount := cfg.Backend.MountPrefix
	e.Any(mount, proxy.Handle)
	e.Any(mount+"/*", proxy.Handle)

	if cfg.Chat.Enabled {
		e.GET("/models", chat.Models)
		e.POST("/chat", chat.Chat)
	}

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	if cfg.UI.Enabled {
		if err := RegisterUI(e); err != nil {
			return fmt.Errorf("register ui: %w", err)
		}
	}
	return nil
}
