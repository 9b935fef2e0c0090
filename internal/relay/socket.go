package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// socket is the Channel for one WebSocket connection. Payloads are queued on
// send and written by writePump so a slow client never blocks a sender.
type socket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.RWMutex
	send   chan []byte
	closed bool
}

func newSocket(conn *websocket.Conn, buffer int, writeTimeout time.Duration) *socket {
	return &socket{
		conn:         conn,
		writeTimeout: writeTimeout,
		send:         make(chan []byte, buffer),
	}
}

// Send queues payload without blocking.
func (s *socket) Send(payload []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrChannelClosed
	}

	select {
	case s.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write pump. Safe to call more than once.
func (s *socket) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// writePump drains the queue until Close. A failed write closes the
// connection, which ends the read loop and with it the registry entry.
func (s *socket) writePump(ctx context.Context, logger *slog.Logger) {
	for msg := range s.send {
		err := s.write(ctx, msg)
		if err != nil {
			logger.Warn("WebSocket write error", "error", err)
			s.Close()
			s.conn.Close(websocket.StatusInternalError, "write failed")
			return
		}
	}
}

func (s *socket) write(ctx context.Context, msg []byte) error {
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}
	return s.conn.Write(ctx, websocket.MessageText, msg)
}
