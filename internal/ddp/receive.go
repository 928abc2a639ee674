package ddp

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

// receiveMessages continuously reads frames until the connection fails.
func (c *Client) receiveMessages() {
	defer c.wg.Done()

	for {
		data, err := c.conn.Read(c.ctx)
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("ddp connection lost", "remote", c.conn.RemoteAddr(), "error", err)
			}
			c.shutdown(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}

		var msg protocol.Message
		if err := msg.Decode(data); err != nil {
			c.logger.Warn("failed to decode frame", "error", err)
			continue
		}

		if !c.handle(&msg) {
			return
		}
	}
}

// handle processes one inbound frame. It returns false once the session is done.
func (c *Client) handle(msg *protocol.Message) bool {
	switch msg.Msg {
	case protocol.TagConnected:
		c.mu.Lock()
		c.session = msg.Session
		c.mu.Unlock()
		c.signalConnected()
		c.logger.Info("ddp session established", "session", msg.Session)

	case protocol.TagFailed:
		c.mu.Lock()
		c.handshakeErr = fmt.Errorf("%w: server proposes version %q", ErrHandshakeFailed, msg.Version)
		c.mu.Unlock()
		c.signalConnected()
		c.logger.Error("ddp handshake failed", "version", msg.Version)

	case protocol.TagPing:
		if err := c.write(c.ctx, protocol.Message{Msg: protocol.TagPong, ID: msg.ID}); err != nil {
			c.logger.Warn("failed to answer ping", "error", err)
		}

	case protocol.TagResult:
		c.resolve(msg)

	case protocol.TagChanged:
		return c.route(msg)

	case protocol.TagReady:
		c.logger.Debug("subscriptions ready", "subs", msg.Subs)
		for _, id := range msg.Subs {
			c.settleSubscription(id, nil)
		}

	case protocol.TagNosub:
		if msg.Error != nil {
			c.logger.Warn("subscription rejected", "sub_id", msg.ID, "error", msg.Error)
			c.settleSubscription(msg.ID, msg.Error)
		} else {
			c.logger.Debug("subscription ended", "sub_id", msg.ID)
			c.settleSubscription(msg.ID, ErrSubscriptionEnded)
		}

	case protocol.TagError:
		c.logger.Warn("server reported protocol error", "reason", msg.Reason)

	default:
		c.logger.Debug("ignoring frame", "tag", msg.Msg, "id", msg.ID)
	}
	return true
}

// resolve hands a result frame to the call waiting on its id.
func (c *Client) resolve(msg *protocol.Message) {
	c.mu.Lock()
	reply, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("reply without pending call", "id", msg.ID)
		return
	}
	reply <- msg
}

// route queues a stream event for every subscription it belongs to.
func (c *Client) route(msg *protocol.Message) bool {
	if msg.Fields == nil {
		c.logger.Debug("changed frame without fields", "collection", msg.Collection)
		return true
	}

	c.mu.Lock()
	targets := lo.Filter(lo.Values(c.subs), func(s *subscription, _ int) bool {
		return s.collection == msg.Collection && s.eventName == msg.Fields.EventName
	})
	c.mu.Unlock()

	if len(targets) == 0 {
		c.logger.Debug("event without subscription", "collection", msg.Collection, "event", msg.Fields.EventName)
		return true
	}

	for _, sub := range targets {
		select {
		case c.events <- event{sub: sub, msg: msg}:
		case <-c.done:
			return false
		}
	}
	return true
}

// deliverEvents runs subscription adapters in arrival order.
func (c *Client) deliverEvents() {
	defer c.wg.Done()

	for {
		select {
		case ev := <-c.events:
			if err := ev.sub.adapter(ev.msg); err != nil {
				c.logger.Warn("failed to handle event", "sub_id", ev.sub.id, "collection", ev.sub.collection, "error", err)
			}
		case <-c.done:
			return
		}
	}
}
