package realtime

import "github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"

// Operation enumerates the supported realtime calls.
type Operation int

const (
	OpConnect Operation = iota
	OpLogin
	OpGetChannels
	OpSendMessage
	OpSendReaction
	OpSendTypingEvent
	OpSubscribeToChannelMessages
	OpSubscribeToChannelChanges
	OpUnsubscribe
)

// Operations lists every operation of the catalog.
func Operations() []Operation {
	return []Operation{
		OpConnect,
		OpLogin,
		OpGetChannels,
		OpSendMessage,
		OpSendReaction,
		OpSendTypingEvent,
		OpSubscribeToChannelMessages,
		OpSubscribeToChannelChanges,
		OpUnsubscribe,
	}
}

// String returns the string representation of Operation
func (o Operation) String() string {
	switch o {
	case OpConnect:
		return "Connect"
	case OpLogin:
		return "Login"
	case OpGetChannels:
		return "GetChannels"
	case OpSendMessage:
		return "SendMessage"
	case OpSendReaction:
		return "SendReaction"
	case OpSendTypingEvent:
		return "SendTypingEvent"
	case OpSubscribeToChannelMessages:
		return "SubscribeToChannelMessages"
	case OpSubscribeToChannelChanges:
		return "SubscribeToChannelChanges"
	case OpUnsubscribe:
		return "Unsubscribe"
	default:
		return "Unknown"
	}
}

// Tag is the frame tag the operation sends.
func (o Operation) Tag() protocol.Tag {
	switch o {
	case OpConnect:
		return protocol.TagConnect
	case OpSubscribeToChannelMessages, OpSubscribeToChannelChanges:
		return protocol.TagSub
	case OpUnsubscribe:
		return protocol.TagUnsub
	default:
		return protocol.TagMethod
	}
}

// Name is the server-side method or publication name, empty for
// operations that carry none.
func (o Operation) Name() string {
	switch o {
	case OpLogin:
		return "login"
	case OpGetChannels:
		return "rooms/get"
	case OpSendMessage:
		return "sendMessage"
	case OpSendReaction:
		return "setReaction"
	case OpSendTypingEvent:
		return "stream-notify-room"
	case OpSubscribeToChannelMessages:
		return "stream-room-messages"
	case OpSubscribeToChannelChanges:
		return "stream-notify-user"
	default:
		return ""
	}
}

// AwaitsReply reports whether the caller blocks until the server answers.
func (o Operation) AwaitsReply() bool {
	switch o {
	case OpLogin, OpGetChannels, OpSendMessage:
		return true
	default:
		return false
	}
}

// method builds a method frame for o.
func (o Operation) method(id string, params ...any) protocol.Message {
	if params == nil {
		params = []any{}
	}
	return protocol.Message{
		Msg:    o.Tag(),
		Method: o.Name(),
		ID:     id,
		Params: params,
	}
}

// sub builds a subscription frame for o.
func (o Operation) sub(id string, params ...any) protocol.Message {
	return protocol.Message{
		Msg:    o.Tag(),
		ID:     id,
		Name:   o.Name(),
		Params: params,
	}
}
