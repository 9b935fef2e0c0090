package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/topicrelay/internal/middleware"
)

// HandlerConfig tunes the per-connection transport.
type HandlerConfig struct {
	// SendBuffer is the number of outbound messages queued per connection.
	SendBuffer int
	// WriteTimeout bounds a single outbound write.
	WriteTimeout time.Duration
	// ReadLimit is the largest inbound frame in bytes.
	ReadLimit int64
	// OriginPatterns restricts cross-origin upgrades. Empty accepts any origin.
	OriginPatterns []string
}

// Handler upgrades requests to WebSocket connections and runs them against a Relay.
type Handler struct {
	relay  *Relay
	cfg    HandlerConfig
	logger *slog.Logger

	// base outlives individual requests; cancelling it closes every connection.
	base   context.Context
	active sync.WaitGroup
}

// NewHandler creates a handler. Connections stay open until the client
// leaves or base is cancelled.
func NewHandler(base context.Context, relay *Relay, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		relay:  relay,
		cfg:    cfg,
		logger: logger.With("component", "relay_handler"),
		base:   base,
	}
}

// Serve is the echo handler for the relay endpoint.
func (h *Handler) Serve(c echo.Context) error {
	opts := &websocket.AcceptOptions{}
	if len(h.cfg.OriginPatterns) == 0 {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.cfg.OriginPatterns
	}

	reqLogger := middleware.FromContext(c.Request().Context(), h.logger)

	conn, err := websocket.Accept(c.Response(), c.Request(), opts)
	if err != nil {
		// Accept has already written the HTTP error response.
		reqLogger.Warn("Failed to upgrade connection to WebSocket", "remote_addr", c.RealIP(), "error", err)
		return nil
	}
	if h.cfg.ReadLimit > 0 {
		conn.SetReadLimit(h.cfg.ReadLimit)
	}

	h.active.Add(1)
	defer h.active.Done()

	// Reads and writes must not be bound to base: coder/websocket drops the
	// TCP connection without a close frame when an operation's context ends.
	// Cancelling base runs the going-away handshake instead.
	ctx := context.WithoutCancel(h.base)
	goingAway := make(chan struct{})
	stopShutdown := context.AfterFunc(h.base, func() {
		defer close(goingAway)
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	})

	sock := newSocket(conn, h.cfg.SendBuffer, h.cfg.WriteTimeout)
	client := h.relay.Open(ctx, sock, c.RealIP())
	logger := reqLogger.With("connection_id", client.ID())

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		sock.writePump(ctx, logger)
	}()

	reason := h.readLoop(ctx, client, conn, logger)

	h.relay.Close(ctx, client, reason)
	sock.Close()
	if reason != ReasonServerShutdown {
		conn.Close(websocket.StatusNormalClosure, "")
	}
	<-pumpDone
	if !stopShutdown() {
		<-goingAway
	}
	return nil
}

// Wait blocks until every connection served so far has been cleaned up and
// its write pump has stopped, or ctx ends.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop handles frames until the connection ends and returns why it ended.
func (h *Handler) readLoop(ctx context.Context, client *Connection, conn *websocket.Conn, logger *slog.Logger) string {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			reason := closeReason(h.base, err)
			switch reason {
			case ReasonClientClosed, ReasonServerShutdown:
				logger.Info("WebSocket closed", "reason", reason)
			default:
				logger.Warn("WebSocket read error", "reason", reason, "error", err)
			}
			return reason
		}

		// Malformed frames are reported inside HandleFrame and do not end the connection.
		_, _ = h.relay.HandleFrame(ctx, client, data)
	}
}

// closeReason classifies a read error. shutdown is the handler's base context.
func closeReason(shutdown context.Context, err error) string {
	if errors.Is(err, websocket.ErrMessageTooBig) {
		return ReasonReadLimit
	}
	if shutdown.Err() != nil {
		return ReasonServerShutdown
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return ReasonClientClosed
	case websocket.StatusMessageTooBig:
		return ReasonReadLimit
	}
	if errors.Is(err, io.EOF) {
		return ReasonClientClosed
	}
	return ReasonTransportError
}
