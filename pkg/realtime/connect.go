package realtime

import "github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"

// BuildConnect builds the session handshake. It carries no correlation id.
func BuildConnect() protocol.Message {
	return protocol.Message{
		Msg:     OpConnect.Tag(),
		Version: "1",
		Support: []string{"1"},
	}
}
