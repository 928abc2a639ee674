package server_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/HappyTetrahedron/rocketchat-async/internal/server"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

var (
	alice = server.Account{ID: "u-alice", Username: "alice", Password: "wonderland", Token: "tok-alice"}
	rooms = []server.Room{{ID: "GENERAL", Type: "c", Name: "general"}, {ID: "u-aliceu-bob", Type: "d"}}
)

func startServer(t *testing.T) (*server.Server, *server.Directory) {
	t.Helper()
	srv := server.New("127.0.0.1:0", slog.New(slog.NewTextHandler(io.Discard, nil)))
	dir := srv.InstallDefaults([]server.Account{alice}, rooms)
	require.NoError(t, srv.Listen())
	go srv.Serve()
	t.Cleanup(srv.Stop)
	return srv, dir
}

// rawClient speaks DDP frame by frame.
type rawClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialRaw(t *testing.T, srv *server.Server) *rawClient {
	t.Helper()
	conn, _, err := websocket.Dial(context.Background(), srv.URL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return &rawClient{t: t, conn: conn}
}

func (c *rawClient) send(raw string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.Write(context.Background(), websocket.MessageText, []byte(raw)))
}

// next returns the next frame, skipping "updated" notifications.
func (c *rawClient) next() protocol.Message {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for {
		_, data, err := c.conn.Read(ctx)
		require.NoError(c.t, err)
		var msg protocol.Message
		require.NoError(c.t, msg.Decode(data))
		if msg.Msg != protocol.TagUpdated {
			return msg
		}
	}
}

func (c *rawClient) handshake() {
	c.t.Helper()
	c.send(`{"msg":"connect","version":"1","support":["1"]}`)
	require.Equal(c.t, protocol.TagConnected, c.next().Msg)
}

func (c *rawClient) login() {
	c.t.Helper()
	c.send(`{"msg":"method","method":"login","id":"l","params":[{"resume":"tok-alice"}]}`)
	require.Nil(c.t, c.next().Error)
}

func TestServer_Handshake(t *testing.T) {
	srv, _ := startServer(t)

	tests := []struct {
		name string
		req  string
		want protocol.Tag
	}{
		{"supported version", `{"msg":"connect","version":"1","support":["1"]}`, protocol.TagConnected},
		{"unsupported version", `{"msg":"connect","version":"pre1","support":["pre1"]}`, protocol.TagFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dialRaw(t, srv)
			c.send(tt.req)
			msg := c.next()
			assert.Equal(t, tt.want, msg.Msg)
			if tt.want == protocol.TagConnected {
				assert.NotEmpty(t, msg.Session)
			}
		})
	}
}

func TestServer_Ping(t *testing.T) {
	srv, _ := startServer(t)
	c := dialRaw(t, srv)

	c.send(`{"msg":"ping","id":"p1"}`)

	msg := c.next()
	assert.Equal(t, protocol.TagPong, msg.Msg)
	assert.Equal(t, "p1", msg.ID)
}

func TestServer_UnknownMethod(t *testing.T) {
	srv, _ := startServer(t)
	c := dialRaw(t, srv)
	c.handshake()

	c.send(`{"msg":"method","method":"nope","id":"1","params":[]}`)

	msg := c.next()
	assert.Equal(t, protocol.TagResult, msg.Msg)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "Method 'nope' not found", msg.Error.Reason)
}

func TestServer_Login(t *testing.T) {
	sum := sha256.Sum256([]byte("wonderland"))
	good := hex.EncodeToString(sum[:])

	tests := []struct {
		name   string
		params string
		ok     bool
	}{
		{"resume token", `[{"resume":"tok-alice"}]`, true},
		{"password digest", `[{"user":{"username":"alice"},"password":{"digest":"` + good + `","algorithm":"sha-256"}}]`, true},
		{"wrong digest", `[{"user":{"username":"alice"},"password":{"digest":"00","algorithm":"sha-256"}}]`, false},
		{"unknown token", `[{"resume":"tok-mallory"}]`, false},
		{"no params", `[]`, false},
	}

	srv, _ := startServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dialRaw(t, srv)
			c.handshake()
			c.send(`{"msg":"method","method":"login","id":"1","params":` + tt.params + `}`)

			msg := c.next()
			assert.Equal(t, "1", msg.ID)
			if !tt.ok {
				assert.NotNil(t, msg.Error)
				return
			}
			require.Nil(t, msg.Error)
			var result struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(msg.Result, &result))
			assert.Equal(t, "u-alice", result.ID)
		})
	}
}

func TestServer_RoomsRequireLogin(t *testing.T) {
	srv, _ := startServer(t)
	c := dialRaw(t, srv)
	c.handshake()

	c.send(`{"msg":"method","method":"rooms/get","id":"1","params":[]}`)
	assert.NotNil(t, c.next().Error)

	c.login()
	c.send(`{"msg":"method","method":"rooms/get","id":"2","params":[]}`)
	msg := c.next()
	require.Nil(t, msg.Error)
	assert.JSONEq(t, `[{"_id":"GENERAL","t":"c","name":"general"},{"_id":"u-aliceu-bob","t":"d"}]`, string(msg.Result))
}

func TestServer_SubscriptionLifecycle(t *testing.T) {
	srv, _ := startServer(t)
	c := dialRaw(t, srv)
	c.handshake()

	c.send(`{"msg":"sub","id":"s1","name":"stream-room-messages","params":["GENERAL",{"useCollection":false,"args":[]}]}`)
	ready := c.next()
	assert.Equal(t, protocol.TagReady, ready.Msg)
	assert.Equal(t, []string{"s1"}, ready.Subs)

	assert.Equal(t, 1, srv.Publish("stream-room-messages", "GENERAL", map[string]any{"_id": "m1"}))
	assert.Equal(t, 0, srv.Publish("stream-room-messages", "random", map[string]any{"_id": "m2"}))

	ev := c.next()
	assert.Equal(t, protocol.TagChanged, ev.Msg)
	assert.Equal(t, "stream-room-messages", ev.Collection)
	require.NotNil(t, ev.Fields)
	assert.Equal(t, "GENERAL", ev.Fields.EventName)
	assert.JSONEq(t, `{"_id":"m1"}`, string(ev.Fields.Args[0]))

	c.send(`{"msg":"unsub","id":"s1"}`)
	nosub := c.next()
	assert.Equal(t, protocol.TagNosub, nosub.Msg)
	assert.Equal(t, "s1", nosub.ID)
	assert.Equal(t, 0, srv.Publish("stream-room-messages", "GENERAL", map[string]any{"_id": "m3"}))
}

func TestServer_SendMessagePublishesToRoom(t *testing.T) {
	srv, _ := startServer(t)

	listener := dialRaw(t, srv)
	listener.handshake()
	listener.send(`{"msg":"sub","id":"s1","name":"stream-room-messages","params":["GENERAL",{"useCollection":false,"args":[]}]}`)
	require.Equal(t, protocol.TagReady, listener.next().Msg)

	sender := dialRaw(t, srv)
	sender.handshake()
	sender.login()
	sender.send(`{"msg":"method","method":"sendMessage","id":"2","params":[{"_id":"abc123def456","rid":"GENERAL","msg":"hi"}]}`)
	reply := sender.next()
	require.Nil(t, reply.Error)

	ev := listener.next()
	require.NotNil(t, ev.Fields)
	var msg struct {
		ID  string `json:"_id"`
		RID string `json:"rid"`
		Msg string `json:"msg"`
		U   struct {
			ID       string `json:"_id"`
			Username string `json:"username"`
		} `json:"u"`
	}
	require.NoError(t, json.Unmarshal(ev.Fields.Args[0], &msg))
	assert.Equal(t, "abc123def456", msg.ID)
	assert.Equal(t, "GENERAL", msg.RID)
	assert.Equal(t, "hi", msg.Msg)
	assert.Equal(t, "u-alice", msg.U.ID)
	assert.Equal(t, "alice", msg.U.Username)
}

func TestDirectory_RoomChanges(t *testing.T) {
	srv, dir := startServer(t)
	c := dialRaw(t, srv)
	c.handshake()
	c.send(`{"msg":"sub","id":"s1","name":"stream-notify-user","params":["u-alice/rooms-changed",false]}`)
	require.Equal(t, protocol.TagReady, c.next().Msg)

	assert.Equal(t, 1, dir.AddRoom("u-alice", server.Room{ID: "new", Type: "p"}))
	ev := c.next()
	require.NotNil(t, ev.Fields)
	assert.JSONEq(t, `"inserted"`, string(ev.Fields.Args[0]))
	assert.JSONEq(t, `{"_id":"new","t":"p"}`, string(ev.Fields.Args[1]))

	assert.Equal(t, 1, dir.RemoveRoom("u-alice", "new"))
	ev = c.next()
	assert.JSONEq(t, `"removed"`, string(ev.Fields.Args[0]))
}

func TestServer_SessionCount(t *testing.T) {
	srv, _ := startServer(t)

	c := dialRaw(t, srv)
	c.handshake()
	assert.Equal(t, 1, srv.SessionCount())

	c.conn.Close(websocket.StatusNormalClosure, "")
	assert.Eventually(t, func() bool { return srv.SessionCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_SubscriptionRejected(t *testing.T) {
	srv, _ := startServer(t)
	c := dialRaw(t, srv)
	c.handshake()

	c.send(`{"msg":"sub","id":"s1","name":"stream-room-messages","params":[]}`)

	msg := c.next()
	assert.Equal(t, protocol.TagNosub, msg.Msg)
	assert.Equal(t, "s1", msg.ID)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "Match failed", msg.Error.Reason)
	assert.Equal(t, 0, srv.Publish("stream-room-messages", "", map[string]any{}))
}
