package client

import (
	"context"

	"github.com/coder/websocket"
)

// Stream is one open subscription to the gateway.
type Stream interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a Stream to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Stream, error)
}

// WebSocketDialer subscribes over the gateway's websocket endpoint.
type WebSocketDialer struct {
	// ReadLimit caps a single message. Defaults to 64 KiB.
	ReadLimit int64
}

func (d WebSocketDialer) Dial(ctx context.Context, url string) (Stream, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = 64 << 10
	}
	c.SetReadLimit(limit)
	return wsStream{c: c}, nil
}

type wsStream struct {
	c *websocket.Conn
}

func (s wsStream) Read(ctx context.Context) ([]byte, error) {
	_, data, err := s.c.Read(ctx)
	return data, err
}

func (s wsStream) Close() error {
	return s.c.Close(websocket.StatusNormalClosure, "")
}
