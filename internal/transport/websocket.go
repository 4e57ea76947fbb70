package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// wsConn wraps a single gorilla connection. Reads happen on one goroutine and
// writes on another, which is the concurrency gorilla supports.
type wsConn struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

func dial(ctx context.Context, endpoint string, handshakeTimeout time.Duration, logger *slog.Logger) (*wsConn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid URL scheme %q", u.Scheme)
	}

	logger.Debug("Connecting to WebSocket", slog.String("url", u.String()))

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	logger.Info("WebSocket connected", slog.String("url", u.String()))
	return &wsConn{conn: conn, logger: logger}, nil
}

// readMessage blocks for the next data message.
func (c *wsConn) readMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	return data, nil
}

func (c *wsConn) writeMessage(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// close sends a normal closure frame and tears the connection down.
func (c *wsConn) close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
