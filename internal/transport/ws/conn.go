// Package ws provides the websocket transport built on nhooyr.io/websocket.
package ws

import (
	"context"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"
)

// Conn adapts nhooyr.io/websocket to transport.Conn.
type Conn struct {
	conn       *websocket.Conn
	remoteAddr string
}

// NewConn wraps a websocket.Conn with empty remote address.
func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// NewConnWithAddr wraps a websocket.Conn with the specified remote address.
func NewConnWithAddr(conn *websocket.Conn, addr string) *Conn {
	return &Conn{conn: conn, remoteAddr: addr}
}

// Dial connects to a websocket server. A positive readLimit replaces the
// library's 32 KiB default.
func Dial(ctx context.Context, url string, readLimit int64) (*Conn, error) {
	conn, resp, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}

	addr := url
	if resp != nil && resp.Request != nil {
		addr = resp.Request.URL.Host
	}
	return NewConnWithAddr(conn, addr), nil
}

// Accept upgrades an HTTP request to a websocket connection. A positive
// readLimit replaces the library's 32 KiB default.
func Accept(w http.ResponseWriter, r *http.Request, readLimit int64) (*Conn, error) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to accept websocket connection: %w", err)
	}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return NewConnWithAddr(conn, r.RemoteAddr), nil
}

// Read implements transport.Conn.
// Reads a text or binary message from the WebSocket connection.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

// Write implements transport.Conn.
// Writes a text message; DDP frames are JSON.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Close implements transport.Conn.
func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// RemoteAddr implements transport.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}
