package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"voice-chat-proxy/internal/client"
	"voice-chat-proxy/internal/config"
	"voice-chat-proxy/internal/model"
)

// Request validation errors surfaced to the browser client as 400s.
var (
	ErrEmptyMessage    = errors.New("message is required")
	ErrModelNotAllowed = errors.New("model is not allowed")
)

// ChatService answers single-turn chat messages through the configured provider.
type ChatService struct {
	client *client.ChatClient
	cfg    *config.ChatConfig
	logger *slog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(c *client.ChatClient, cfg *config.Config, logger *slog.Logger) *ChatService {
	return &ChatService{
		client: c,
		cfg:    &cfg.Chat,
		logger: logger.With("component", "chat_service"),
	}
}

// Models returns the provider name and the models a client may request.
func (s *ChatService) Models() *model.ModelsResponse {
	return &model.ModelsResponse{
		Provider:      s.cfg.Provider,
		AllowedModels: slices.Clone(s.cfg.AllowedModels),
	}
}

// ResolveModel returns the model to use for name, falling back to the
// default when name is empty.
func (s *ChatService) ResolveModel(name string) (string, error) {
	if name == "" {
		return s.cfg.DefaultModel, nil
	}
	if !slices.Contains(s.cfg.AllowedModels, name) {
		return "", fmt.Errorf("%w: %q", ErrModelNotAllowed, name)
	}
	return name, nil
}

// Chat sends message to the provider with the configured system prompt.
func (s *ChatService) Chat(ctx context.Context, req *model.ChatRequest) (string, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	name, err := s.ResolveModel(req.Model)
	if err != nil {
		return "", err
	}

	reply, err := s.client.Complete(ctx, &model.CompletionRequest{
		Model: name,
		Messages: []model.ChatMessage{
			{Role: "system", Content: s.cfg.SystemPrompt},
			{Role: "user", Content: message},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.SamplingTemperature(),
	})
	if err != nil {
		s.logger.Error("chat completion failed", "model", name, "err", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return reply, nil
}
