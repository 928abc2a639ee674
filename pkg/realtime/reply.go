package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

// replyError returns the server error carried by reply, if any.
func replyError(reply *protocol.Message) error {
	if reply == nil {
		return fmt.Errorf("%w: no reply", ErrMalformedReply)
	}
	if reply.Error != nil {
		return reply.Error
	}
	return nil
}

// decodeResult unmarshals the result of reply into v.
func decodeResult(reply *protocol.Message, v any) error {
	if err := replyError(reply); err != nil {
		return err
	}
	if len(reply.Result) == 0 || bytes.Equal(reply.Result, []byte("null")) {
		return fmt.Errorf("%w: missing result", ErrMalformedReply)
	}
	if err := json.Unmarshal(reply.Result, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return nil
}
