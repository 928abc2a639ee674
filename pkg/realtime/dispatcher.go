package realtime

import (
	"context"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

// EventAdapter turns one raw push frame of a subscription into a domain
// callback invocation.
type EventAdapter func(event *protocol.Message) error

// Dispatcher owns the live connection and the id-to-caller mapping.
type Dispatcher interface {
	// CallMethod sends msg. When id is non-empty it blocks until the reply
	// carrying the same id arrives and returns it; otherwise it returns
	// (nil, nil) once the frame is written.
	CallMethod(ctx context.Context, msg protocol.Message, id string) (*protocol.Message, error)

	// CreateSubscription sends msg and runs adapter for every push frame
	// routed to the subscription until it is cancelled with an unsub.
	CreateSubscription(ctx context.Context, msg protocol.Message, id string, adapter EventAdapter) error
}
