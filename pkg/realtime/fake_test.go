package realtime_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
	"github.com/HappyTetrahedron/rocketchat-async/pkg/realtime"
	"github.com/stretchr/testify/require"
)

type sentCall struct {
	msg protocol.Message
	id  string
}

// fakeDispatcher records what the catalog sends and answers every awaited
// call with reply.
type fakeDispatcher struct {
	mu       sync.Mutex
	calls    []sentCall
	adapters map[string]realtime.EventAdapter
	reply    *protocol.Message
	err      error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{adapters: make(map[string]realtime.EventAdapter)}
}

func (f *fakeDispatcher) CallMethod(_ context.Context, msg protocol.Message, id string) (*protocol.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{msg: msg, id: id})
	if f.err != nil {
		return nil, f.err
	}
	if id == "" {
		return nil, nil
	}
	return f.reply, nil
}

func (f *fakeDispatcher) CreateSubscription(_ context.Context, msg protocol.Message, id string, adapter realtime.EventAdapter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{msg: msg, id: id})
	if f.err != nil {
		return f.err
	}
	f.adapters[id] = adapter
	return nil
}

func (f *fakeDispatcher) last(t *testing.T) sentCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls, "nothing was sent")
	return f.calls[len(f.calls)-1]
}

// encoded returns the wire form of msg.
func encoded(t *testing.T, msg protocol.Message) string {
	t.Helper()
	data, err := msg.Encode()
	require.NoError(t, err)
	return string(data)
}

// resultReply builds a result frame for id with the given JSON result.
func resultReply(id, result string) *protocol.Message {
	return &protocol.Message{Msg: protocol.TagResult, ID: id, Result: json.RawMessage(result)}
}

// streamEvent builds a changed frame whose args are the given JSON values.
func streamEvent(collection, eventName string, args ...string) *protocol.Message {
	raw := make([]json.RawMessage, len(args))
	for i, a := range args {
		raw[i] = json.RawMessage(a)
	}
	return &protocol.Message{
		Msg:        protocol.TagChanged,
		Collection: collection,
		Fields:     &protocol.Fields{EventName: eventName, Args: raw},
	}
}
