package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/upbeatlab/chatrelay/pkg/storage"
)

// handleListTranscripts returns a user's stored turns, oldest first.
func (s *Server) handleListTranscripts(c *fiber.Ctx) error {
	if s.driver == nil {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "transcripts are not stored"})
	}

	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "user_id is required"})
	}

	transcripts, err := s.driver.ListByConversation(c.Context(), userID)
	if err != nil {
		s.logger.Error("failed to list transcripts", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to list transcripts"})
	}

	return c.JSON(transcripts)
}

// handleGetTranscript returns a single stored turn.
func (s *Server) handleGetTranscript(c *fiber.Ctx) error {
	if s.driver == nil {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "transcripts are not stored"})
	}

	id := c.Params("id")
	t, err := s.driver.Get(c.Context(), id)
	if err != nil {
		var notFound storage.ErrNotFound
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: notFound.Error()})
		}
		s.logger.Error("failed to get transcript", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to get transcript"})
	}

	return c.JSON(t)
}
