package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/playscope/internal/core/observability/log"
)

// WebsocketHost is a Host reached over a websocket: outbound messages are
// written as text frames and inbound frames are fed to a Bridge.
type WebsocketHost struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	closeOnce    sync.Once
	writeTimeout time.Duration
	logger       log.Log
}

// DialHost connects to a host endpoint such as ws://localhost:8080/platform.
func DialHost(ctx context.Context, url string, logger log.Log) (*WebsocketHost, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: dial %s: %w", url, err)
	}
	return NewWebsocketHost(conn, logger), nil
}

func NewWebsocketHost(conn *websocket.Conn, logger log.Log) *WebsocketHost {
	if logger == nil {
		logger = log.NewNop()
	}
	return &WebsocketHost{
		conn:         conn,
		writeTimeout: 5 * time.Second,
		logger:       logger.With(log.String("component", "platform-host")),
	}
}

func (h *WebsocketHost) Send(msg []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := h.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("platform: write: %w", err)
	}
	return nil
}

// Pump hands inbound frames to deliver, typically Bridge.Receive, until the
// connection closes or ctx ends. deliver runs on the calling goroutine.
// Malformed messages are logged and skipped.
func (h *WebsocketHost) Pump(ctx context.Context, deliver func(raw []byte) error) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = h.Close()
		case <-done:
		}
	}()

	for {
		typ, data, err := h.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("platform: read: %w", err)
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if err := deliver(data); err != nil {
			if errors.Is(err, ErrBadMessage) {
				h.logger.Warn("malformed platform message", log.Error(err))
				continue
			}
			h.logger.Warn("platform event handlers failed", log.Error(err))
		}
	}
}

// Close sends a close frame and closes the connection. It is safe to call
// more than once.
func (h *WebsocketHost) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game closed")
		_ = h.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		h.writeMu.Unlock()
		err = h.conn.Close()
	})
	return err
}
