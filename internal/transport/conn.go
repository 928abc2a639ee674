// Package transport abstracts the websocket connection carrying DDP frames.
package transport

import (
	"context"
	"fmt"

	"github.com/HappyTetrahedron/rocketchat-async/internal/transport/gobwas"
	"github.com/HappyTetrahedron/rocketchat-async/internal/transport/ws"
)

// Conn is a bidirectional connection exchanging one DDP frame per message.
type Conn interface {
	// Read reads a single frame.
	// Returns an error once the connection is closed.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Kind names a websocket implementation.
type Kind string

const (
	KindNhooyr Kind = "nhooyr"
	KindGobwas Kind = "gobwas"
)

// Options tune a dialed connection.
type Options struct {
	// ReadLimit caps the size of an inbound frame in bytes. Zero keeps
	// the implementation default.
	ReadLimit int64
}

// Dial opens a websocket connection to url using the given implementation.
func Dial(ctx context.Context, kind Kind, url string, opts Options) (Conn, error) {
	switch kind {
	case KindNhooyr, "":
		conn, err := ws.Dial(ctx, url, opts.ReadLimit)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case KindGobwas:
		conn, err := gobwas.Dial(ctx, url, opts.ReadLimit)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}
