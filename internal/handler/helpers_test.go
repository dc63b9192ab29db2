package handler

import (
	"io"
	"log/slog"

	"voice-chat-proxy/internal/client"
	"voice-chat-proxy/internal/config"
	"voice-chat-proxy/internal/metrics"
	"voice-chat-proxy/internal/service"
)

const testMount = config.DefaultMountPrefix

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(origin, chatBase string) *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{
			Origin:          origin,
			MountPrefix:     testMount,
			IdleConnections: 10,
		},
		Chat: config.ChatConfig{
			Enabled:        true,
			Provider:       config.ProviderOpenAI,
			APIBase:        chatBase,
			APIKey:         "sk-test",
			DefaultModel:   "gpt-3.5-turbo",
			AllowedModels:  []string{"gpt-3.5-turbo", "gpt-4o-mini"},
			SystemPrompt:   "You are Jarvis, a helpful AI assistant.",
			MaxTokens:      512,
			TimeoutSeconds: 10,
		},
		UI:      config.UIConfig{Enabled: true},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestProxyService(cfg *config.Config, m *metrics.Metrics) *service.ProxyService {
	logger := discardLogger()
	return service.NewProxyService(client.NewBackendClient(cfg, logger, m), cfg, logger, m)
}

func newTestChatService(cfg *config.Config) *service.ChatService {
	logger := discardLogger()
	return service.NewChatService(client.NewChatClient(cfg, logger, nil), cfg, logger)
}
