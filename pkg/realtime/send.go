package realtime

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

// MessageID derives the identity of an outgoing chat message from its
// correlation id and creation time: the first 12 hex characters of
// MD5("<id>:<unix seconds>"). Seconds are written as a decimal float that
// always carries a fraction, so a whole second reads "1700000000.0".
func MessageID(correlationID string, at time.Time) string {
	seconds := strconv.FormatFloat(float64(at.UnixNano())/float64(time.Second), 'f', -1, 64)
	if !strings.Contains(seconds, ".") {
		seconds += ".0"
	}
	sum := md5.Sum([]byte(correlationID + ":" + seconds))
	return hex.EncodeToString(sum[:])[:12]
}

// BuildSendMessage builds the sendMessage call and returns it together with
// the generated message identity. Keys of extra are merged last and win over
// _id, rid and msg.
func BuildSendMessage(id, channelID, text string, extra map[string]any, at time.Time) (protocol.Message, string) {
	messageID := MessageID(id, at)
	payload := lo.Assign(map[string]any{
		"_id": messageID,
		"rid": channelID,
		"msg": text,
	}, extra)
	return OpSendMessage.method(id, payload), messageID
}

// BuildSendReaction builds the setReaction call. The reaction comes first.
func BuildSendReaction(id, messageID string, emoji protocol.Emoji) protocol.Message {
	return OpSendReaction.method(id, string(emoji), messageID)
}

// BuildSendTypingEvent builds the typing notification for a channel.
func BuildSendTypingEvent(id, channelID, username string, typing bool) protocol.Message {
	return OpSendTypingEvent.method(id, channelID+"/typing", username, typing)
}
