package server

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

func (s *Server) dispatch(session *Session, msg *protocol.Message) {
	switch msg.Msg {
	case protocol.TagConnect:
		if msg.Version == "1" || slices.Contains(msg.Support, "1") {
			session.send(protocol.Message{Msg: protocol.TagConnected, Session: session.ID})
			return
		}
		session.send(protocol.Message{Msg: protocol.TagFailed, Version: "1"})

	case protocol.TagPing:
		session.send(protocol.Message{Msg: protocol.TagPong, ID: msg.ID})

	case protocol.TagPong:

	case protocol.TagMethod:
		s.call(session, msg)

	case protocol.TagSub:
		eventName := firstString(msg.Params)
		if msg.Name == "" || eventName == "" {
			session.send(protocol.Message{Msg: protocol.TagNosub, ID: msg.ID, Error: matchFailed()})
			return
		}
		session.subscribe(msg.ID, msg.Name, eventName)
		session.send(protocol.Message{Msg: protocol.TagReady, Subs: []string{msg.ID}})

	case protocol.TagUnsub:
		session.unsubscribe(msg.ID)
		session.send(protocol.Message{Msg: protocol.TagNosub, ID: msg.ID})

	default:
		session.send(protocol.Message{Msg: protocol.TagError, Reason: fmt.Sprintf("Unknown message %q", msg.Msg)})
	}
}

func (s *Server) call(session *Session, msg *protocol.Message) {
	reply := protocol.Message{Msg: protocol.TagResult, ID: msg.ID}

	fn, ok := s.method(msg.Method)
	if !ok {
		reply.Error = &protocol.Error{
			Code:      float64(404),
			Reason:    fmt.Sprintf("Method '%s' not found", msg.Method),
			Message:   fmt.Sprintf("Method '%s' not found [404]", msg.Method),
			ErrorType: "Meteor.Error",
		}
		session.send(reply)
		return
	}

	params, err := rawParams(msg.Params)
	if err != nil {
		reply.Error = &protocol.Error{Code: "invalid-params", Reason: err.Error()}
		session.send(reply)
		return
	}

	result, callErr := fn(session, params)
	if callErr != nil {
		reply.Error = callErr
	} else if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			reply.Error = &protocol.Error{Code: "internal-error", Reason: err.Error()}
		} else {
			reply.Result = data
		}
	}

	session.send(reply)
	session.send(protocol.Message{Msg: protocol.TagUpdated, Methods: []string{msg.ID}})
}

// rawParams re-encodes decoded params so handlers can unmarshal them into
// their own types.
func rawParams(params []any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func firstString(params []any) string {
	if len(params) == 0 {
		return ""
	}
	s, _ := params[0].(string)
	return s
}
