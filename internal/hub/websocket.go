package hub

import (
	"context"

	"github.com/coder/websocket"
)

// WebSocketConn adapts a server-side websocket connection to Conn. The
// caller must keep a reader running on c (for example via CloseRead) so
// that pongs are processed.
type WebSocketConn struct {
	c *websocket.Conn
}

func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{c: c}
}

func (w *WebSocketConn) Send(ctx context.Context, msg []byte) error {
	return w.c.Write(ctx, websocket.MessageText, msg)
}

func (w *WebSocketConn) Ping(ctx context.Context) error {
	return w.c.Ping(ctx)
}

func (w *WebSocketConn) Close(reason string) error {
	return w.c.Close(websocket.StatusGoingAway, reason)
}
