package pushchan

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// Conn is one duplex push-channel connection.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, raw []byte) error
	Close() error
}

// Dialer establishes push-channel connections. Tests inject a scripted
// implementation; production uses WebsocketDialer.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials the push channel over a websocket.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial push channel %s: %w", url, err)
	}
	c.SetReadLimit(1 << 20)
	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, raw, err := w.conn.Read(ctx)
	return raw, err
}

func (w *wsConn) Write(ctx context.Context, raw []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, raw)
}

func (w *wsConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}
