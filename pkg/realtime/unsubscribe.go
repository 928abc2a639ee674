package realtime

import "github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"

// BuildUnsubscribe builds the cancellation of a subscription.
func BuildUnsubscribe(subscriptionID string) protocol.Message {
	return protocol.Message{
		Msg: OpUnsubscribe.Tag(),
		ID:  subscriptionID,
	}
}
