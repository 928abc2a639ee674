package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

// Account is a user the default login handler accepts.
type Account struct {
	ID       string
	Username string
	Password string
	Token    string
}

// Room is a channel served by the default handlers.
type Room struct {
	ID   string `json:"_id"`
	Type string `json:"t"`
	Name string `json:"name,omitempty"`
}

// Directory holds the accounts and rooms behind the default handlers.
type Directory struct {
	server *Server

	mu       sync.RWMutex
	accounts []Account
	rooms    []Room
}

// InstallDefaults registers login, rooms/get, sendMessage, setReaction and
// stream-notify-room backed by the given accounts and rooms.
func (s *Server) InstallDefaults(accounts []Account, rooms []Room) *Directory {
	d := &Directory{
		server:   s,
		accounts: accounts,
		rooms:    rooms,
	}
	s.Handle("login", d.login)
	s.Handle("rooms/get", d.getRooms)
	s.Handle("sendMessage", d.sendMessage)
	s.Handle("setReaction", d.setReaction)
	s.Handle("stream-notify-room", d.notifyRoom)
	return d
}

// AddRoom adds a room and notifies userID's rooms-changed stream.
func (d *Directory) AddRoom(userID string, room Room) int {
	d.mu.Lock()
	d.rooms = append(d.rooms, room)
	d.mu.Unlock()
	return d.server.Publish("stream-notify-user", userID+"/rooms-changed", "inserted", room)
}

// RemoveRoom removes a room and notifies userID's rooms-changed stream.
func (d *Directory) RemoveRoom(userID, roomID string) int {
	d.mu.Lock()
	removed, _ := lo.Find(d.rooms, func(r Room) bool { return r.ID == roomID })
	d.rooms = lo.Reject(d.rooms, func(r Room, _ int) bool { return r.ID == roomID })
	d.mu.Unlock()
	return d.server.Publish("stream-notify-user", userID+"/rooms-changed", "removed", map[string]any{"_id": removed.ID})
}

type loginParams struct {
	Resume string `json:"resume"`
	User   *struct {
		Username string `json:"username"`
	} `json:"user"`
	Password *struct {
		Digest    string `json:"digest"`
		Algorithm string `json:"algorithm"`
	} `json:"password"`
}

func (d *Directory) login(s *Session, params []json.RawMessage) (any, *protocol.Error) {
	var p loginParams
	if len(params) != 1 || json.Unmarshal(params[0], &p) != nil {
		return nil, matchFailed()
	}

	d.mu.RLock()
	account, ok := lo.Find(d.accounts, func(a Account) bool {
		switch {
		case p.Resume != "":
			return a.Token != "" && a.Token == p.Resume
		case p.User != nil && p.Password != nil:
			return a.Username == p.User.Username &&
				p.Password.Algorithm == "sha-256" &&
				p.Password.Digest == digest(a.Password)
		default:
			return false
		}
	})
	d.mu.RUnlock()

	if !ok {
		return nil, &protocol.Error{
			Code:      float64(403),
			Reason:    "User not found",
			Message:   "User not found [403]",
			ErrorType: "Meteor.Error",
		}
	}

	s.SetUserID(account.ID)
	loginType := "password"
	if p.Resume != "" {
		loginType = "resume"
	}
	return map[string]any{
		"id":           account.ID,
		"token":        fmt.Sprintf("token-%s-%s", account.ID, s.ID),
		"tokenExpires": map[string]any{"$date": time.Now().Add(90 * 24 * time.Hour).UnixMilli()},
		"type":         loginType,
	}, nil
}

func (d *Directory) getRooms(s *Session, _ []json.RawMessage) (any, *protocol.Error) {
	if s.UserID() == "" {
		return nil, notLoggedIn()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Room{}, d.rooms...), nil
}

func (d *Directory) sendMessage(s *Session, params []json.RawMessage) (any, *protocol.Error) {
	if s.UserID() == "" {
		return nil, notLoggedIn()
	}

	var msg map[string]any
	if len(params) != 1 || json.Unmarshal(params[0], &msg) != nil {
		return nil, matchFailed()
	}
	rid, _ := msg["rid"].(string)
	if rid == "" {
		return nil, matchFailed()
	}

	stored := lo.Assign(msg, map[string]any{
		"ts": map[string]any{"$date": time.Now().UnixMilli()},
		"u":  map[string]any{"_id": s.UserID(), "username": d.username(s.UserID())},
	})
	if _, ok := stored["_id"]; !ok {
		stored["_id"] = fmt.Sprintf("srv-%d", time.Now().UnixNano())
	}

	d.server.Publish("stream-room-messages", rid, stored)
	return stored, nil
}

func (d *Directory) setReaction(s *Session, params []json.RawMessage) (any, *protocol.Error) {
	if s.UserID() == "" {
		return nil, notLoggedIn()
	}
	if len(params) < 2 {
		return nil, matchFailed()
	}
	return nil, nil
}

func (d *Directory) notifyRoom(s *Session, params []json.RawMessage) (any, *protocol.Error) {
	if len(params) == 0 {
		return nil, matchFailed()
	}
	var topic string
	if err := json.Unmarshal(params[0], &topic); err != nil {
		return nil, matchFailed()
	}

	args := make([]any, 0, len(params)-1)
	for _, p := range params[1:] {
		args = append(args, p)
	}
	d.server.Publish("stream-notify-room", topic, args...)
	return true, nil
}

func (d *Directory) username(userID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	account, _ := lo.Find(d.accounts, func(a Account) bool { return a.ID == userID })
	return account.Username
}

func digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func notLoggedIn() *protocol.Error {
	return &protocol.Error{
		Code:      "error-not-allowed",
		Reason:    "You must be logged in to do this.",
		Message:   "You must be logged in to do this. [error-not-allowed]",
		ErrorType: "Meteor.Error",
	}
}

func matchFailed() *protocol.Error {
	return &protocol.Error{
		Code:      float64(400),
		Reason:    "Match failed",
		Message:   "Match failed [400]",
		ErrorType: "Meteor.Error",
	}
}
