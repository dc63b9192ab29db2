package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"voice-chat-proxy/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// StatusResponse is the body of GET /proxy/status.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	// BackendOrigin is empty when no origin is configured, in which case
	// every proxied request fails with a 500.
	BackendOrigin string `json:"backend_origin"`
	MountPrefix   string `json:"mount_prefix"`
	ChatEnabled   bool   `json:"chat_enabled"`
	ChatProvider  string `json:"chat_provider,omitempty"`
}

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports the build version and where proxied requests are sent.
func (h *HealthHandler) Status(c echo.Context) error {
	resp := &StatusResponse{
		Status:        "ok",
		Version:       string(h.version),
		BackendOrigin: h.cfg.Backend.Origin,
		MountPrefix:   h.cfg.Backend.MountPrefix,
		ChatEnabled:   h.cfg.Chat.Enabled,
	}
	if resp.ChatEnabled {
		resp.ChatProvider = h.cfg.Chat.Provider
	}
	return c.JSON(http.StatusOK, resp)
}
