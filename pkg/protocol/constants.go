package protocol

// Special values of a chat message's `t` field.
const (
	MessageQualifierRemoveUser = "ru"
)

// Special values of a channel's `t` field.
const (
	ChannelQualifierDirectMessage = "d"
)

// Emoji is a reaction token accepted by setReaction.
type Emoji string

// A selection of emojis that are subjectively "most fun".
const (
	EmojiGrin                   Emoji = ":grin:"
	EmojiSweatSmile             Emoji = ":sweat_smile:"
	EmojiJoy                    Emoji = ":joy:"
	EmojiHeartEyes              Emoji = ":heart_eyes:"
	EmojiSmilingFaceWith3Hearts Emoji = ":smiling_face_with_3_hearts:"
	EmojiNerd                   Emoji = ":nerd:"
	EmojiSunglasses             Emoji = ":sunglasses:"
	EmojiPartyingFace           Emoji = ":partying_face:"
	EmojiSob                    Emoji = ":sob:"
	EmojiExplodingHead          Emoji = ":exploding_head:"
	EmojiFearful                Emoji = ":fearful:"
	EmojiRollingEyes            Emoji = ":rolling_eyes:"
	EmojiThumbsUp               Emoji = ":thumbsup:"
	EmojiThumbsDown             Emoji = ":thumbsdown:"
	EmojiFingersCrossed         Emoji = ":fingers_crossed:"
	EmojiMetal                  Emoji = ":metal:"
	EmojiV                      Emoji = ":v:"
	EmojiManFacepalming         Emoji = ":man_facepalming:"
	EmojiPointUp                Emoji = ":point_up:"
	EmojiPenguin                Emoji = ":penguin:"
)

func (e Emoji) String() string {
	return string(e)
}
