package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/registry"
)

// OnlineHandler exposes the registry's connection index.
type OnlineHandler struct {
	registry *registry.Registry
}

// NewOnlineHandler creates the handler.
func NewOnlineHandler(reg *registry.Registry) *OnlineHandler {
	return &OnlineHandler{registry: reg}
}

// GetOnlineUsers returns the currently connected users as JSON.
func (h *OnlineHandler) GetOnlineUsers(c echo.Context) error {
	users := h.registry.OnlineUsers()
	return c.JSON(http.StatusOK, map[string]any{
		"online_users": users,
		"count":        len(users),
	})
}
