package server

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	"github.com/upbeatlab/chatrelay/pkg/chat"
	"github.com/upbeatlab/chatrelay/pkg/relay"
	"github.com/upbeatlab/chatrelay/pkg/sse"
	"github.com/upbeatlab/chatrelay/pkg/storage"
	"github.com/upbeatlab/chatrelay/pkg/transport"
	"github.com/upbeatlab/chatrelay/pkg/utils"
	"github.com/upbeatlab/chatrelay/server/worker"
)

// handleStream relays one chat turn as an SSE stream.
func (s *Server) handleStream(c *fiber.Ctx) error {
	// The turn outlives the handler; fasthttp reuses the query buffer.
	req := transport.Request{
		UserID:  fiberutils.CopyString(c.Query("user_id")),
		Message: fiberutils.CopyString(c.Query("message")),
	}
	if req.UserID == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing user_id or message parameters")
	}

	startedAt := time.Now()

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the stream is relayed in a
	// separate goroutine and needs the backend connection to remain open.
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := s.selector.Open(ctx, req)
	if err != nil {
		cancel()
		s.logger.Error("streaming and fallback both failed to open",
			"user_id", req.UserID,
			"error", err,
		)
		s.metrics.ObserveStream(string(s.selector.Primary()), "unavailable", false, 0, time.Since(startedAt))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
			Error: "Both streaming and fallback approaches failed",
		})
	}

	s.headerHandler.SetStreamHeaders(c, stream.Strategy, stream.FellBack)

	s.logger.Debug("relaying chat stream",
		"user_id", req.UserID,
		"message", utils.Truncate(req.Message, 80),
		"strategy", stream.Strategy,
		"fell_back", stream.FellBack,
	)

	// io.Pipe gives direct backpressure: pw.Write blocks until fasthttp has
	// read the frame and flushed it to the socket.
	pr, pw := io.Pipe()
	go s.relayStream(ctx, cancel, stream, pw, req, startedAt)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// relayStream forwards stream to pw event by event while reducing it, then
// records the finished turn.
func (s *Server) relayStream(ctx context.Context, cancel context.CancelFunc, stream *transport.Stream, pw *io.PipeWriter, req transport.Request, startedAt time.Time) {
	defer cancel()
	defer stream.Close()

	session := chat.NewSession(req.UserID, string(stream.Strategy))
	err := relay.Drive(ctx, stream, pw, session, nil)

	outcome := storage.OutcomeCompleted
	switch {
	case errors.Is(err, io.ErrClosedPipe):
		// The client went away; fasthttp closed the read side.
		outcome = storage.OutcomeCancelled
		s.logger.Debug("client disconnected mid-stream", "user_id", req.UserID)

	case err != nil:
		// Transports report failures in-band, so this is unexpected. Close the
		// client's stream the same way.
		s.logger.Warn("chat stream broke", "user_id", req.UserID, "error", err)
		session.Reduce(chat.Error(err.Error()))
		w := sse.NewWriter(pw)
		if werr := w.WriteError(err.Error()); werr == nil {
			_ = w.WriteDone()
		}
		outcome = storage.OutcomeError

	case session.Failed():
		// Drive stops at the error event, so the terminal frame behind it was
		// never forwarded.
		_ = sse.NewWriter(pw).WriteDone()
		outcome = storage.OutcomeError
	}

	completedAt := time.Now()
	s.metrics.ObserveStream(string(stream.Strategy), string(outcome), stream.FellBack, session.Snapshots(), completedAt.Sub(startedAt))

	s.logger.Info("chat stream finished",
		"user_id", req.UserID,
		"strategy", stream.Strategy,
		"fell_back", stream.FellBack,
		"outcome", outcome,
		"snapshots", session.Snapshots(),
		"duration", completedAt.Sub(startedAt),
	)

	// Enqueue before closing the pipe so the turn is queued by the time the
	// client sees the end of the stream.
	defer pw.Close()
	if s.workerPool == nil {
		return
	}

	s.workerPool.Enqueue(worker.Job{Transcript: &storage.Transcript{
		ID:             uuid.NewString(),
		ConversationID: req.UserID,
		UserMessage:    req.Message,
		Response:       session.Snapshot(),
		Strategy:       string(stream.Strategy),
		FellBack:       stream.FellBack,
		Outcome:        outcome,
		Snapshots:      session.Snapshots(),
		StartedAt:      startedAt.UTC(),
		CompletedAt:    completedAt.UTC(),
	}})
}
