package realtime

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

// roomRef is the part of a room object the catalog reads.
type roomRef struct {
	ID   *string `json:"_id"`
	Type *string `json:"t"`
}

// BuildGetChannels builds the call listing the user's channels.
func BuildGetChannels(id string) protocol.Message {
	return OpGetChannels.method(id)
}

// ParseGetChannels returns the (id, type) pairs of the reply in server order.
func ParseGetChannels(reply *protocol.Message) ([]Channel, error) {
	var rooms []roomRef
	if err := decodeResult(reply, &rooms); err != nil {
		return nil, err
	}

	for i, r := range rooms {
		if r.ID == nil {
			return nil, fmt.Errorf("%w: missing result[%d]._id", ErrMalformedReply, i)
		}
		if r.Type == nil {
			return nil, fmt.Errorf("%w: missing result[%d].t", ErrMalformedReply, i)
		}
	}

	return lo.Map(rooms, func(r roomRef, _ int) Channel {
		return Channel{ID: *r.ID, Type: *r.Type}
	}), nil
}
