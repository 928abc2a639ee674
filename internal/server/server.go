// Package server is an in-process realtime server speaking DDP. It backs
// the tests of the client stack and local development through cmd/fakeserver.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/HappyTetrahedron/rocketchat-async/internal/transport/ws"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

// Path is where the server accepts websocket connections.
const Path = "/websocket"

const maxFrameSize = 1 << 20

// MethodFunc answers a method call. A non-nil error is sent back as the
// call's error object.
type MethodFunc func(s *Session, params []json.RawMessage) (any, *protocol.Error)

// Server accepts DDP sessions and dispatches their calls to registered methods.
type Server struct {
	address  string
	listener net.Listener
	server   *http.Server
	hub      *Hub
	logger   *slog.Logger

	mu      sync.RWMutex
	methods map[string]MethodFunc

	sessionSeq atomic.Uint64
	wg         sync.WaitGroup
}

// New creates a server that will listen on address.
func New(address string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address: address,
		hub:     NewHub(),
		logger:  logger,
		methods: make(map[string]MethodFunc),
	}
}

// Handle registers fn for a method name, replacing any previous handler.
func (s *Server) Handle(method string, fn MethodFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = fn
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	s.server = &http.Server{Handler: mux}
	return nil
}

// Serve accepts connections until Stop is called.
func (s *Server) Serve() error {
	s.logger.Info("realtime server started", "addr", s.Addr())
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop closes the listener and every session.
func (s *Server) Stop() {
	if s.server != nil {
		s.server.Shutdown(context.Background())
	}
	s.hub.CloseAll()
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// URL returns the websocket URL clients dial.
func (s *Server) URL() string {
	return "ws://" + s.Addr() + Path
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	return s.hub.SessionCount()
}

// Publish pushes a stream event to every session subscribed to stream with
// the given event name and returns how many received it.
func (s *Server) Publish(stream, eventName string, args ...any) int {
	return s.hub.Publish(stream, eventName, args...)
}

func (s *Server) method(name string) (MethodFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.methods[name]
	return fn, ok
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, maxFrameSize)
	if err != nil {
		s.logger.Warn("failed to accept websocket connection", "error", err)
		return
	}

	session := newSession(fmt.Sprintf("session-%d", s.sessionSeq.Add(1)), conn, s.logger)
	s.hub.Register(session)

	s.wg.Add(2)
	go s.handleSession(session)
	go s.writeLoop(session)
}

func (s *Server) handleSession(session *Session) {
	defer s.wg.Done()
	defer s.hub.Unregister(session)
	defer session.close()

	for {
		data, err := session.conn.Read(context.Background())
		if err != nil {
			s.logger.Debug("session closed", "session", session.ID, "error", err)
			return
		}

		var msg protocol.Message
		if err := msg.Decode(data); err != nil {
			session.send(protocol.Message{Msg: protocol.TagError, Reason: "Bad request"})
			continue
		}
		s.dispatch(session, &msg)
	}
}

func (s *Server) writeLoop(session *Session) {
	defer s.wg.Done()
	for data := range session.outgoing {
		if err := session.conn.Write(context.Background(), data); err != nil {
			s.logger.Debug("failed to write to session", "session", session.ID, "error", err)
			session.conn.Close()
			for range session.outgoing {
			}
			return
		}
	}
	session.conn.Close()
}
