// Package ddp implements the Dispatcher of the realtime catalog over a
// single DDP connection: it correlates replies with pending calls, routes
// stream events to subscriptions, and answers server heartbeats.
package ddp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/HappyTetrahedron/rocketchat-async/internal/transport"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/realtime"
)

var (
	// ErrClosed is returned once the connection is gone.
	ErrClosed = errors.New("connection closed")

	// ErrHandshakeFailed is returned when the server rejects the protocol version.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrSubscriptionEnded is returned when the server answers a sub with a
	// nosub that carries no error.
	ErrSubscriptionEnded = errors.New("subscription ended")
)

const defaultEventBuffer = 256

var _ realtime.Dispatcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimit throttles outgoing calls to r frames per second with the
// given burst. Heartbeat replies are never throttled.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithEventBuffer sets how many stream events may queue before the receive
// loop blocks. A handler that issues awaited calls while the queue is full
// stalls the connection.
func WithEventBuffer(n int) Option {
	return func(c *Client) { c.eventBuffer = n }
}

type subscription struct {
	id         string
	collection string
	eventName  string
	adapter    realtime.EventAdapter
}

type event struct {
	sub *subscription
	msg *protocol.Message
}

// Client is a DDP session over a transport.Conn.
type Client struct {
	conn        transport.Conn
	logger      *slog.Logger
	limiter     *rate.Limiter
	eventBuffer int

	writeMu sync.Mutex

	mu           sync.Mutex
	pending      map[string]chan *protocol.Message
	subs         map[string]*subscription
	readiness    map[string]chan error
	session      string
	handshakeErr error
	err          error

	connected     chan struct{}
	connectedOnce sync.Once
	events        chan event
	done          chan struct{}
	doneOnce      sync.Once
	closeOnce     sync.Once
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// New starts a DDP session on conn. The handshake itself is sent by the
// caller through CallMethod.
func New(conn transport.Conn, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:        conn,
		logger:      slog.Default(),
		eventBuffer: defaultEventBuffer,
		pending:     make(map[string]chan *protocol.Message),
		subs:        make(map[string]*subscription),
		readiness:   make(map[string]chan error),
		connected:   make(chan struct{}),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, o := range opts {
		o(c)
	}
	c.events = make(chan event, c.eventBuffer)

	c.wg.Add(2)
	go c.receiveMessages()
	go c.deliverEvents()

	return c
}

// CallMethod implements realtime.Dispatcher.
func (c *Client) CallMethod(ctx context.Context, msg protocol.Message, id string) (*protocol.Message, error) {
	if id == "" {
		if err := c.send(ctx, msg); err != nil {
			return nil, err
		}
		if msg.Msg == protocol.TagUnsub {
			c.removeSubscription(msg.ID)
		}
		return nil, nil
	}

	reply := make(chan *protocol.Message, 1)
	if err := c.addPending(id, reply); err != nil {
		return nil, err
	}
	defer c.removePending(id)

	if err := c.send(ctx, msg); err != nil {
		return nil, err
	}

	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.Err()
	}
}

// CreateSubscription implements realtime.Dispatcher. Push frames are routed
// by the publication name and the first parameter of msg. It returns once
// the server answers with ready, or with the server's error on nosub.
func (c *Client) CreateSubscription(ctx context.Context, msg protocol.Message, id string, adapter realtime.EventAdapter) error {
	sub := &subscription{
		id:         id,
		collection: msg.Name,
		adapter:    adapter,
	}
	if len(msg.Params) > 0 {
		sub.eventName, _ = msg.Params[0].(string)
	}
	ready := make(chan error, 1)

	c.mu.Lock()
	if c.isDone() {
		c.mu.Unlock()
		return c.Err()
	}
	if _, ok := c.subs[id]; ok {
		c.mu.Unlock()
		return fmt.Errorf("duplicate subscription id %q", id)
	}
	c.subs[id] = sub
	c.readiness[id] = ready
	c.mu.Unlock()

	if err := c.send(ctx, msg); err != nil {
		c.removeSubscription(id)
		return err
	}

	select {
	case err := <-ready:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		c.removeSubscription(id)
		return ctx.Err()
	case <-c.done:
		c.removeSubscription(id)
		return c.Err()
	}

	c.logger.Debug("subscription ready", "sub_id", id, "collection", sub.collection, "event", sub.eventName)
	return nil
}

// WaitConnected blocks until the server acknowledges the handshake and
// returns the session id.
func (c *Client) WaitConnected(ctx context.Context) (string, error) {
	select {
	case <-c.connected:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handshakeErr != nil {
		return "", c.handshakeErr
	}
	return c.session, nil
}

// Subscriptions returns the ids of the active subscriptions.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Keys(c.subs)
}

// Done is closed when the session ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the session ended, or nil while it is alive.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close ends the session and closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.shutdown(ErrClosed)
		c.cancel()
		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}

func (c *Client) send(ctx context.Context, msg protocol.Message) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}
	return c.write(ctx, msg)
}

func (c *Client) write(ctx context.Context, msg protocol.Message) error {
	select {
	case <-c.done:
		return c.Err()
	default:
	}

	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *Client) addPending(id string, reply chan *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isDone() {
		return c.err
	}
	if _, ok := c.pending[id]; ok {
		return fmt.Errorf("duplicate correlation id %q", id)
	}
	c.pending[id] = reply
	return nil
}

func (c *Client) removePending(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Client) removeSubscription(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
	delete(c.readiness, id)
}

// settleSubscription wakes the CreateSubscription waiting on id, if any.
func (c *Client) settleSubscription(id string, err error) {
	c.mu.Lock()
	ready, ok := c.readiness[id]
	delete(c.readiness, id)
	if err != nil {
		delete(c.subs, id)
	}
	c.mu.Unlock()

	if ok {
		ready <- err
	}
}

// isDone must be called with mu held.
func (c *Client) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// shutdown records the first terminal error and wakes every waiter.
func (c *Client) shutdown(reason error) {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		c.err = reason
		if c.handshakeErr == nil && c.session == "" {
			c.handshakeErr = reason
		}
		close(c.done)
		c.mu.Unlock()
		c.signalConnected()
	})
}

func (c *Client) signalConnected() {
	c.connectedOnce.Do(func() { close(c.connected) })
}
