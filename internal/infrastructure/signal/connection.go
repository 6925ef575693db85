package signal

import (
	"sync"
	"time"

	"studyhub/internal/core/domain"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Connection is one client socket. Its read loop is the only goroutine
// that dispatches events for it; its write pump is the only writer.
type Connection struct {
	id       domain.ConnectionID
	userID   domain.UserID
	userName string

	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter

	closeOnce   sync.Once
	cleanupOnce sync.Once
	openedAt    time.Time
}

func newConnection(id domain.ConnectionID, ws *websocket.Conn, sendBuffer int, limiter *rate.Limiter) *Connection {
	return &Connection{
		id:       id,
		ws:       ws,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		limiter:  limiter,
		openedAt: time.Now(),
	}
}

func (c *Connection) ID() domain.ConnectionID {
	return c.id
}

// UserID is the authenticated user, or empty when auth is disabled.
func (c *Connection) UserID() domain.UserID {
	return c.userID
}

func (c *Connection) authenticate(userID domain.UserID, name string) {
	c.userID = userID
	c.userName = name
}

// TrySend enqueues a frame without blocking.
func (c *Connection) TrySend(frame []byte) error {
	select {
	case <-c.done:
		return domain.ErrConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return domain.ErrConnectionClosed
	default:
		return domain.ErrSendBufferFull
	}
}

// Close stops the write pump and closes the socket. Safe to call many times.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// closeWithReason sends a close frame before closing the socket.
func (c *Connection) closeWithReason(code int, text string, timeout time.Duration) {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(timeout))
	c.Close()
}

func (c *Connection) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *Connection) writePump(pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
