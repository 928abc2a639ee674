package realtime_test

import (
	"context"
	"testing"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSubscribeToChannelMessages(t *testing.T) {
	assert.JSONEq(t,
		`{"msg":"sub","id":"3","name":"stream-room-messages","params":["GENERAL",{"useCollection":false,"args":[]}]}`,
		encoded(t, realtime.BuildSubscribeToChannelMessages("3", "GENERAL")))
}

func TestBuildSubscribeToChannelChanges(t *testing.T) {
	assert.JSONEq(t,
		`{"msg":"sub","id":"4","name":"stream-notify-user","params":["u1/rooms-changed",false]}`,
		encoded(t, realtime.BuildSubscribeToChannelChanges("4", "u1")))
}

func TestBuildUnsubscribe(t *testing.T) {
	assert.Equal(t, `{"msg":"unsub","id":"7"}`, encoded(t, realtime.BuildUnsubscribe("7")))
}

func TestChannelMessagesAdapter(t *testing.T) {
	raw := `{"_id":"m1","rid":"r1","u":{"_id":"u1"}}`

	var got []realtime.MessageEvent
	adapter := realtime.ChannelMessagesAdapter(func(e realtime.MessageEvent) {
		got = append(got, e)
	})

	require.NoError(t, adapter(streamEvent("stream-room-messages", "r1", raw)))

	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ChannelID)
	assert.Equal(t, "u1", got[0].SenderID)
	assert.Equal(t, "m1", got[0].MessageID)
	assert.JSONEq(t, raw, string(got[0].Raw))
}

func TestChannelMessagesAdapter_OptionalFields(t *testing.T) {
	raw := `{"_id":"m2","rid":"r1","msg":"bye","t":"ru","u":{"_id":"u9","username":"carol"}}`

	var got realtime.MessageEvent
	adapter := realtime.ChannelMessagesAdapter(func(e realtime.MessageEvent) { got = e })

	require.NoError(t, adapter(streamEvent("stream-room-messages", "r1", raw)))

	assert.Equal(t, "bye", got.Text)
	assert.Equal(t, "carol", got.SenderUsername)
	assert.True(t, got.IsUserRemoval())
}

func TestChannelMessagesAdapter_UnexpectedShape(t *testing.T) {
	tests := []struct {
		name  string
		event *protocol.Message
	}{
		{"no fields", &protocol.Message{Msg: protocol.TagChanged}},
		{"no args", streamEvent("stream-room-messages", "r1")},
		{"args[0] not an object", streamEvent("stream-room-messages", "r1", `"m1"`)},
		{"missing _id", streamEvent("stream-room-messages", "r1", `{"rid":"r1","u":{"_id":"u1"}}`)},
		{"missing rid", streamEvent("stream-room-messages", "r1", `{"_id":"m1","u":{"_id":"u1"}}`)},
		{"missing u", streamEvent("stream-room-messages", "r1", `{"_id":"m1","rid":"r1"}`)},
		{"missing u._id", streamEvent("stream-room-messages", "r1", `{"_id":"m1","rid":"r1","u":{"username":"x"}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			adapter := realtime.ChannelMessagesAdapter(func(realtime.MessageEvent) { called = true })

			err := adapter(tt.event)

			assert.ErrorIs(t, err, realtime.ErrUnexpectedEvent)
			assert.False(t, called)
		})
	}
}

func TestChannelChangesAdapter(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []realtime.ChannelChange
		wantErr bool
	}{
		{
			name: "removal is swallowed",
			args: []string{`"removed"`, `{"_id":"x","t":"p"}`},
		},
		{
			name: "removal needs no room",
			args: []string{`"removed"`},
		},
		{
			name: "addition reaches the handler",
			args: []string{`"added"`, `{"_id":"x","t":"p"}`},
			want: []realtime.ChannelChange{{Action: "added", ChannelID: "x", ChannelType: "p"}},
		},
		{
			name: "update reaches the handler",
			args: []string{`"updated"`, `{"_id":"GENERAL","t":"c","name":"general"}`},
			want: []realtime.ChannelChange{{Action: "updated", ChannelID: "GENERAL", ChannelType: "c"}},
		},
		{
			name:    "missing room",
			args:    []string{`"inserted"`},
			wantErr: true,
		},
		{
			name:    "room without type",
			args:    []string{`"inserted"`, `{"_id":"x"}`},
			wantErr: true,
		},
		{
			name: "non-string action still reads the room",
			args: []string{`1`, `{"_id":"x","t":"p"}`},
			want: []realtime.ChannelChange{{Action: "1", ChannelID: "x", ChannelType: "p"}},
		},
		{
			name:    "non-string action without room",
			args:    []string{`null`},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []realtime.ChannelChange
			adapter := realtime.ChannelChangesAdapter(func(c realtime.ChannelChange) {
				got = append(got, c)
			})

			err := adapter(streamEvent("stream-notify-user", "u1/rooms-changed", tt.args...))

			if tt.wantErr {
				assert.ErrorIs(t, err, realtime.ErrUnexpectedEvent)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog_SubscribeToChannelMessages(t *testing.T) {
	d := newFakeDispatcher()
	c := realtime.New(d, nil)

	var got realtime.MessageEvent
	subID, err := c.SubscribeToChannelMessages(context.Background(), "r1", func(e realtime.MessageEvent) { got = e })
	require.NoError(t, err)

	assert.Equal(t, "1", subID)
	assert.Equal(t, "1", d.last(t).id)
	require.Contains(t, d.adapters, subID)

	require.NoError(t, d.adapters[subID](streamEvent("stream-room-messages", "r1", `{"_id":"m1","rid":"r1","u":{"_id":"u1"}}`)))
	assert.Equal(t, "m1", got.MessageID)
}

func TestCatalog_SubscribeToChannelChanges(t *testing.T) {
	d := newFakeDispatcher()
	c := realtime.New(d, nil)

	subID, err := c.SubscribeToChannelChanges(context.Background(), "u1", func(realtime.ChannelChange) {})
	require.NoError(t, err)

	sent := d.last(t)
	assert.Equal(t, subID, sent.id)
	assert.Equal(t, "stream-notify-user", sent.msg.Name)
}

func TestCatalog_Unsubscribe(t *testing.T) {
	d := newFakeDispatcher()
	ids := realtime.NewIDAllocator()
	c := realtime.New(d, ids)

	require.NoError(t, c.Unsubscribe(context.Background(), "7"))

	sent := d.last(t)
	assert.Empty(t, sent.id)
	assert.Equal(t, `{"msg":"unsub","id":"7"}`, encoded(t, sent.msg))
	assert.Equal(t, "1", ids.Next(), "unsubscribe allocates no id")
}

func TestCatalog_SubscriptionIDsAreDistinct(t *testing.T) {
	d := newFakeDispatcher()
	c := realtime.New(d, nil)

	a, err := c.SubscribeToChannelMessages(context.Background(), "r1", func(realtime.MessageEvent) {})
	require.NoError(t, err)
	b, err := c.SubscribeToChannelMessages(context.Background(), "r1", func(realtime.MessageEvent) {})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
