package realtime

import (
	"encoding/json"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

// MessageEvent is a chat message pushed on a channel's message stream.
type MessageEvent struct {
	ChannelID string
	SenderID  string
	MessageID string

	// Optional fields, empty when the server omits them.
	Text           string
	Qualifier      string
	SenderUsername string

	// Raw is the full message object as received.
	Raw json.RawMessage
}

// IsUserRemoval reports whether the message announces a user leaving the channel.
func (e MessageEvent) IsUserRemoval() bool {
	return e.Qualifier == protocol.MessageQualifierRemoveUser
}

// MessageHandler receives messages of a channel subscription.
type MessageHandler func(MessageEvent)

// ChannelChange reports a channel the user was added to or whose metadata changed.
type ChannelChange struct {
	Action      string
	ChannelID   string
	ChannelType string
}

// ChannelChangeHandler receives changes of a user's channel list.
type ChannelChangeHandler func(ChannelChange)

// Channel is an entry of the user's channel list.
type Channel struct {
	ID   string
	Type string
}

// IsDirect reports whether the channel is a direct message conversation.
func (c Channel) IsDirect() bool {
	return c.Type == protocol.ChannelQualifierDirectMessage
}
