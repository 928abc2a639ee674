// Package gobwas provides the websocket transport built on github.com/gobwas/ws.
package gobwas

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn adapts a client-side gobwas websocket to transport.Conn.
type Conn struct {
	conn      net.Conn
	r         io.Reader
	w         *lockedWriter
	readLimit int64
}

// lockedWriter serializes frame writes from callers and from the
// control frame handler answering pings.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// NewConn wraps an upgraded client connection. br holds bytes the server
// sent right after the handshake and may be nil.
func NewConn(conn net.Conn, br io.Reader, readLimit int64) *Conn {
	r := io.Reader(conn)
	if br != nil {
		r = io.MultiReader(br, conn)
	}
	return &Conn{
		conn:      conn,
		r:         r,
		w:         &lockedWriter{w: conn},
		readLimit: readLimit,
	}
}

// Dial connects to a websocket server. A positive readLimit caps the
// size of a single inbound frame.
func Dial(ctx context.Context, url string, readLimit int64) (*Conn, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	// A nil *bufio.Reader must not become a non-nil io.Reader.
	if br != nil {
		return NewConn(conn, br, readLimit), nil
	}
	return NewConn(conn, nil, readLimit), nil
}

// Read implements transport.Conn.
// Control frames are answered in place; the first data message is returned.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	controlHandler := wsutil.ControlFrameHandler(c.w, ws.StateClientSide)
	rd := wsutil.Reader{
		Source:         c.r,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		MaxFrameSize:   c.readLimit,
		OnIntermediate: controlHandler,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := controlHandler(hdr, &rd); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return io.ReadAll(&rd)
	}
}

// Write implements transport.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteClientText(c.w, data)
}

// Close implements transport.Conn.
func (c *Conn) Close() error {
	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
	_ = wsutil.WriteClientMessage(c.w, ws.OpClose, body)
	return c.conn.Close()
}

// RemoteAddr implements transport.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
