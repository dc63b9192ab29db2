package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"voice-chat-proxy/internal/model"
	"voice-chat-proxy/internal/service"
)

// ChatHandler serves the chat backend the browser client talks to through
// the proxy.
type ChatHandler struct {
	service *service.ChatService
	logger  *slog.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(svc *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  logger.With("component", "chat_handler"),
	}
}

// Models lists the provider and the models the client may pick from.
func (h *ChatHandler) Models(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Models())
}

// Chat answers a single message.
func (h *ChatHandler) Chat(c echo.Context) error {
	var req model.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, &model.ChatResponse{
			Status: model.ChatStatusError,
			Error:  "invalid JSON body",
		})
	}

	reply, err := h.service.Chat(c.Request().Context(), &req)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, &model.ChatResponse{
		Status:   model.ChatStatusSuccess,
		Response: reply,
	})
}

func (h *ChatHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrEmptyMessage) || errors.Is(err, service.ErrModelNotAllowed) {
		return c.JSON(http.StatusBadRequest, &model.ChatResponse{
			Status: model.ChatStatusError,
			Error:  err.Error(),
		})
	}

	h.logger.Error("chat failed", "err", err, "path", c.Request().URL.Path)
	return c.JSON(http.StatusInternalServerError, &model.ChatResponse{
		Status: model.ChatStatusError,
		Error:  err.Error(),
	})
}
