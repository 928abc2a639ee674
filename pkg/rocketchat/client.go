// Package rocketchat is a session-level client for the Rocket.Chat realtime
// API. It dials a websocket, performs the handshake and login, and exposes
// the typed operations of the realtime catalog with a per-call timeout.
package rocketchat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/HappyTetrahedron/rocketchat-async/internal/ddp"
	"github.com/HappyTetrahedron/rocketchat-async/internal/transport"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/realtime"
)

const defaultCallTimeout = 30 * time.Second

// Options tune a Client. The zero value is usable.
type Options struct {
	// Transport selects the websocket implementation.
	Transport transport.Kind
	// CallTimeout bounds every blocking call. Zero means 30s.
	CallTimeout time.Duration
	// SendRate limits outgoing frames per second. Zero disables limiting.
	SendRate  float64
	SendBurst int
	// MaxMessageSize caps inbound frames in bytes.
	MaxMessageSize int64
	Logger         *slog.Logger
}

// Client is one logged-in realtime session.
type Client struct {
	conn    *ddp.Client
	catalog *realtime.Catalog
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	session string
	userID  string
}

// Dial connects to url. Call Start before any other operation.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	defer cancel()

	conn, err := transport.Dial(dialCtx, opts.Transport, url, transport.Options{ReadLimit: opts.MaxMessageSize})
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	ddpOpts := []ddp.Option{ddp.WithLogger(opts.Logger)}
	if opts.SendRate > 0 {
		burst := max(opts.SendBurst, 1)
		ddpOpts = append(ddpOpts, ddp.WithRateLimit(rate.Limit(opts.SendRate), burst))
	}
	dispatcher := ddp.New(conn, ddpOpts...)

	return &Client{
		conn:    dispatcher,
		catalog: realtime.New(dispatcher, realtime.NewIDAllocator()),
		timeout: opts.CallTimeout,
		logger:  opts.Logger,
	}, nil
}

// Start performs the handshake and logs in.
func (c *Client) Start(ctx context.Context, creds realtime.Credentials) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.catalog.Connect(ctx); err != nil {
		return err
	}
	session, err := c.conn.WaitConnected(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", realtime.OpConnect, err)
	}

	userID, err := c.catalog.Login(ctx, creds)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = session
	c.userID = userID
	c.mu.Unlock()

	c.logger.Info("logged in", "session", session, "user_id", userID)
	return nil
}

// UserID returns the logged-in user, empty before Start succeeds.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Session returns the server-assigned session id.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) GetChannels(ctx context.Context) ([]realtime.Channel, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.catalog.GetChannels(ctx)
}

// SendMessage posts text to a channel and returns the message id. Extra
// fields are merged into the message and override the generated ones.
func (c *Client) SendMessage(ctx context.Context, channelID, text string, extra map[string]any) (string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.catalog.SendMessage(ctx, text, channelID, extra)
}

func (c *Client) SendReaction(ctx context.Context, messageID string, emoji protocol.Emoji) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.catalog.SendReaction(ctx, messageID, emoji)
}

// SendTyping announces the logged-in user as typing, or not, in a channel.
func (c *Client) SendTyping(ctx context.Context, channelID, username string, typing bool) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.catalog.SendTypingEvent(ctx, channelID, username, typing)
}

func (c *Client) SubscribeToChannelMessages(ctx context.Context, channelID string, handler realtime.MessageHandler) (string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.catalog.SubscribeToChannelMessages(ctx, channelID, handler)
}

// SubscribeToChannelChanges watches the channel list of the logged-in user.
func (c *Client) SubscribeToChannelChanges(ctx context.Context, handler realtime.ChannelChangeHandler) (string, error) {
	userID := c.UserID()
	if userID == "" {
		return "", fmt.Errorf("%s: not logged in", realtime.OpSubscribeToChannelChanges)
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.catalog.SubscribeToChannelChanges(ctx, userID, handler)
}

func (c *Client) Unsubscribe(ctx context.Context, subscriptionID string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.catalog.Unsubscribe(ctx, subscriptionID)
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.conn.Done()
}

// Err returns why the connection ended.
func (c *Client) Err() error {
	return c.conn.Err()
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}
