package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/HappyTetrahedron/rocketchat-async/internal/transport"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

const outgoingBuffer = 256

type streamKey struct {
	name      string
	eventName string
}

// Session is one connected DDP client.
type Session struct {
	ID string

	conn     transport.Conn
	outgoing chan []byte
	logger   *slog.Logger

	mu     sync.Mutex
	userID string
	subs   map[string]streamKey
	closed bool
}

func newSession(id string, conn transport.Conn, logger *slog.Logger) *Session {
	return &Session{
		ID:       id,
		conn:     conn,
		outgoing: make(chan []byte, outgoingBuffer),
		logger:   logger,
		subs:     make(map[string]streamKey),
	}
}

// UserID returns the user logged in on the session, empty before login.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// SetUserID marks the session as logged in.
func (s *Session) SetUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}

// Subscribed reports whether the session listens to stream/eventName.
func (s *Session) Subscribed(stream, eventName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.subs {
		if k == (streamKey{name: stream, eventName: eventName}) {
			return true
		}
	}
	return false
}

func (s *Session) subscribe(id, stream, eventName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id] = streamKey{name: stream, eventName: eventName}
}

func (s *Session) unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// push sends a stream event if the session is subscribed to it.
func (s *Session) push(stream, eventName string, args []any) bool {
	if !s.Subscribed(stream, eventName) {
		return false
	}

	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			s.logger.Warn("dropping unencodable event argument", "stream", stream, "error", err)
			return false
		}
		raw = append(raw, data)
	}

	return s.send(protocol.Message{
		Msg:        protocol.TagChanged,
		Collection: stream,
		ID:         "id",
		Fields:     &protocol.Fields{EventName: eventName, Args: raw},
	})
}

// send queues a frame for the write loop. Frames to a closed or saturated
// session are dropped.
func (s *Session) send(msg protocol.Message) bool {
	data, err := msg.Encode()
	if err != nil {
		s.logger.Warn("failed to encode frame", "session", s.ID, "error", err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.outgoing <- data:
		return true
	default:
		s.logger.Warn("session outgoing queue full, dropping frame", "session", s.ID, "tag", msg.Msg)
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.outgoing)
	}
}
