package server

import (
	"bytes"
	"io"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// handleChat forwards a non-streaming completion request to the backend and
// returns its answer unchanged.
func (s *Server) handleChat(c *fiber.Ctx) error {
	target, err := url.JoinPath(s.config.BackendURL, s.config.ChatPath)
	if err != nil {
		s.logger.Error("invalid backend url", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
	}

	httpReq, err := http.NewRequestWithContext(c.Context(), http.MethodPost, target, bytes.NewReader(c.Body()))
	if err != nil {
		s.logger.Error("failed to create backend request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
	}

	s.headerHandler.SetBackendRequestHeaders(c, httpReq)
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		s.logger.Error("backend request failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "backend request failed"})
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		s.logger.Error("failed to read backend response", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "failed to read backend response"})
	}

	s.headerHandler.SetClientResponseHeaders(c, httpResp)

	return c.Status(httpResp.StatusCode).Send(respBody)
}
