package api

import (
	"github.com/gofiber/fiber/v2"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Conversations int    `json:"conversations"`
	Model         string `json:"model"`
	UserWindow    int    `json:"user_window"`
	HistoryWindow int    `json:"history_window"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStatus reports the live conversation count and context settings.
// Conversations never expire, so the count only grows until a restart or reset.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	user, history := s.status.Windows()
	return c.JSON(StatusResponse{
		Conversations: s.status.Conversations(),
		Model:         s.status.Model(),
		UserWindow:    user,
		HistoryWindow: history,
	})
}
