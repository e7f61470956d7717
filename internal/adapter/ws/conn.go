// Package ws implements the WebSocket connection to the fleet backend.
package ws

import (
	"context"

	"github.com/coder/websocket"
)

// readLimit bounds a single inbound frame. Bulk status reports for large
// fleets exceed the library's 32KiB default.
const readLimit = 4 << 20

// Conn is one established backend connection.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens a connection to url. ctx bounds the handshake only.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Dial is the default Dialer backed by github.com/coder/websocket.
func Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(readLimit)
	return &wsConn{ws: c}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}
