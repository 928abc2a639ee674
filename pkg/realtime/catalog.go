// Package realtime is the operation catalog of the Rocket.Chat realtime API.
//
// Every operation builds its outgoing frame, allocates the correlation id
// matching the reply, and interprets the reply or push events. Sending,
// correlation and delivery are left to a Dispatcher.
package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

// Catalog issues the realtime operations through a Dispatcher.
type Catalog struct {
	dispatcher Dispatcher
	ids        *IDAllocator
	now        func() time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithClock sets the clock used to derive outgoing message identities.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// New creates a Catalog sending through d. A nil ids gets a fresh allocator.
func New(d Dispatcher, ids *IDAllocator, opts ...Option) *Catalog {
	if ids == nil {
		ids = NewIDAllocator()
	}
	c := &Catalog{
		dispatcher: d,
		ids:        ids,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect sends the handshake. Its acknowledgement is the Dispatcher's concern.
func (c *Catalog) Connect(ctx context.Context) error {
	if _, err := c.dispatcher.CallMethod(ctx, BuildConnect(), ""); err != nil {
		return fmt.Errorf("%s: %w", OpConnect, err)
	}
	return nil
}

// Login authenticates the session and returns the user id.
func (c *Catalog) Login(ctx context.Context, creds Credentials) (string, error) {
	id := c.ids.Next()
	reply, err := c.dispatcher.CallMethod(ctx, BuildLogin(id, creds), id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", OpLogin, err)
	}
	userID, err := ParseLogin(reply)
	if err != nil {
		return "", fmt.Errorf("%s: %w", OpLogin, err)
	}
	return userID, nil
}

// GetChannels lists the channels the user is a member of.
func (c *Catalog) GetChannels(ctx context.Context) ([]Channel, error) {
	id := c.ids.Next()
	reply, err := c.dispatcher.CallMethod(ctx, BuildGetChannels(id), id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpGetChannels, err)
	}
	channels, err := ParseGetChannels(reply)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpGetChannels, err)
	}
	return channels, nil
}

// SendMessage posts text to a channel and waits for the server's
// acknowledgement. It returns the identity given to the message.
func (c *Catalog) SendMessage(ctx context.Context, text, channelID string, extra map[string]any) (string, error) {
	id := c.ids.Next()
	msg, messageID := BuildSendMessage(id, channelID, text, extra, c.now())
	reply, err := c.dispatcher.CallMethod(ctx, msg, id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", OpSendMessage, err)
	}
	if err := replyError(reply); err != nil {
		return "", fmt.Errorf("%s: %w", OpSendMessage, err)
	}
	return messageID, nil
}

// SendReaction reacts to a message. It does not wait for a reply.
func (c *Catalog) SendReaction(ctx context.Context, messageID string, emoji protocol.Emoji) error {
	msg := BuildSendReaction(c.ids.Next(), messageID, emoji)
	if _, err := c.dispatcher.CallMethod(ctx, msg, ""); err != nil {
		return fmt.Errorf("%s: %w", OpSendReaction, err)
	}
	return nil
}

// SendTypingEvent tells a channel whether username is typing. It does not
// wait for a reply.
func (c *Catalog) SendTypingEvent(ctx context.Context, channelID, username string, typing bool) error {
	msg := BuildSendTypingEvent(c.ids.Next(), channelID, username, typing)
	if _, err := c.dispatcher.CallMethod(ctx, msg, ""); err != nil {
		return fmt.Errorf("%s: %w", OpSendTypingEvent, err)
	}
	return nil
}

// SubscribeToChannelMessages delivers every message posted to a channel to
// handler and returns the subscription id.
func (c *Catalog) SubscribeToChannelMessages(ctx context.Context, channelID string, handler MessageHandler) (string, error) {
	id := c.ids.Next()
	msg := BuildSubscribeToChannelMessages(id, channelID)
	if err := c.dispatcher.CreateSubscription(ctx, msg, id, ChannelMessagesAdapter(handler)); err != nil {
		return "", fmt.Errorf("%s: %w", OpSubscribeToChannelMessages, err)
	}
	return id, nil
}

// SubscribeToChannelChanges delivers additions and updates of the user's
// channels to handler and returns the subscription id.
func (c *Catalog) SubscribeToChannelChanges(ctx context.Context, userID string, handler ChannelChangeHandler) (string, error) {
	id := c.ids.Next()
	msg := BuildSubscribeToChannelChanges(id, userID)
	if err := c.dispatcher.CreateSubscription(ctx, msg, id, ChannelChangesAdapter(handler)); err != nil {
		return "", fmt.Errorf("%s: %w", OpSubscribeToChannelChanges, err)
	}
	return id, nil
}

// Unsubscribe cancels a subscription. Events already in flight may still
// reach its handler.
func (c *Catalog) Unsubscribe(ctx context.Context, subscriptionID string) error {
	if _, err := c.dispatcher.CallMethod(ctx, BuildUnsubscribe(subscriptionID), ""); err != nil {
		return fmt.Errorf("%s: %w", OpUnsubscribe, err)
	}
	return nil
}
