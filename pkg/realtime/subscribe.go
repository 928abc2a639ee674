package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

// BuildSubscribeToChannelMessages builds the subscription to a channel's messages.
func BuildSubscribeToChannelMessages(id, channelID string) protocol.Message {
	return OpSubscribeToChannelMessages.sub(id, channelID, map[string]any{
		"useCollection": false,
		"args":          []any{},
	})
}

// BuildSubscribeToChannelChanges builds the subscription to a user's channel list changes.
func BuildSubscribeToChannelChanges(id, userID string) protocol.Message {
	return OpSubscribeToChannelChanges.sub(id, userID+"/rooms-changed", false)
}

// ChannelMessagesAdapter unwraps message stream events for handler. The
// message is read from fields.args[0]; other encodings are rejected.
func ChannelMessagesAdapter(handler MessageHandler) EventAdapter {
	return func(event *protocol.Message) error {
		raw, err := eventArg(event, 0)
		if err != nil {
			return err
		}

		var msg struct {
			ID        *string `json:"_id"`
			ChannelID *string `json:"rid"`
			Text      string  `json:"msg"`
			Qualifier string  `json:"t"`
			Sender    *struct {
				ID       *string `json:"_id"`
				Username string  `json:"username"`
			} `json:"u"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("%w: fields.args[0]: %v", ErrUnexpectedEvent, err)
		}
		switch {
		case msg.ID == nil:
			return fmt.Errorf("%w: missing _id", ErrUnexpectedEvent)
		case msg.ChannelID == nil:
			return fmt.Errorf("%w: missing rid", ErrUnexpectedEvent)
		case msg.Sender == nil || msg.Sender.ID == nil:
			return fmt.Errorf("%w: missing u._id", ErrUnexpectedEvent)
		}

		handler(MessageEvent{
			ChannelID:      *msg.ChannelID,
			SenderID:       *msg.Sender.ID,
			MessageID:      *msg.ID,
			Text:           msg.Text,
			Qualifier:      msg.Qualifier,
			SenderUsername: msg.Sender.Username,
			Raw:            raw,
		})
		return nil
	}
}

// ChannelChangesAdapter unwraps rooms-changed events for handler. Removals
// are dropped since they carry nothing further of use.
func ChannelChangesAdapter(handler ChannelChangeHandler) EventAdapter {
	return func(event *protocol.Message) error {
		rawAction, err := eventArg(event, 0)
		if err != nil {
			return err
		}
		var value any
		if err := json.Unmarshal(rawAction, &value); err != nil {
			return fmt.Errorf("%w: fields.args[0]: %v", ErrUnexpectedEvent, err)
		}
		if value == "removed" {
			return nil
		}
		action, ok := value.(string)
		if !ok {
			action = string(rawAction)
		}

		rawRoom, err := eventArg(event, 1)
		if err != nil {
			return err
		}
		var room roomRef
		if err := json.Unmarshal(rawRoom, &room); err != nil {
			return fmt.Errorf("%w: fields.args[1]: %v", ErrUnexpectedEvent, err)
		}
		if room.ID == nil || room.Type == nil {
			return fmt.Errorf("%w: missing _id or t", ErrUnexpectedEvent)
		}

		handler(ChannelChange{
			Action:      action,
			ChannelID:   *room.ID,
			ChannelType: *room.Type,
		})
		return nil
	}
}

func eventArg(event *protocol.Message, i int) (json.RawMessage, error) {
	if event == nil || event.Fields == nil {
		return nil, fmt.Errorf("%w: missing fields", ErrUnexpectedEvent)
	}
	if i >= len(event.Fields.Args) {
		return nil, fmt.Errorf("%w: missing fields.args[%d]", ErrUnexpectedEvent, i)
	}
	return event.Fields.Args[i], nil
}
