// Package server defines the JSON frames exchanged with websocket clients.
package server

import (
	"bytes"
	"encoding/json"

	"github.com/Tyrowin/roomchat/internal/history"
)

// Frame types.
const (
	TypeJoin     = "join"
	TypeMessage  = "message"
	TypeSwitch   = "switch"
	TypeInit     = "init"
	TypeJoined   = "joined"
	TypeSwitched = "switched"
	TypeNotice   = "notice"
)

// Inbound is a decoded client frame: one of JoinFrame, ChatFrame,
// SwitchFrame or IgnoredFrame.
type Inbound interface {
	inbound()
}

// JoinFrame sets the display name (when non-empty) and moves to Room.
type JoinFrame struct {
	Username string
	Room     string
}

// ChatFrame posts Text to the sender's current room.
type ChatFrame struct {
	Text string
}

// SwitchFrame moves the sender to Room.
type SwitchFrame struct {
	Room string
}

// IgnoredFrame is any frame that cannot be acted upon.
type IgnoredFrame struct {
	Reason string
}

func (JoinFrame) inbound()    {}
func (ChatFrame) inbound()    {}
func (SwitchFrame) inbound()  {}
func (IgnoredFrame) inbound() {}

type wireInbound struct {
	Type     string          `json:"type"`
	Username json.RawMessage `json:"username"`
	Room     json.RawMessage `json:"room"`
	Text     json.RawMessage `json:"text"`
}

// ParseInbound decodes raw into an Inbound. It never fails: frames that are
// not JSON objects, have an unknown type or lack a required field become an
// IgnoredFrame.
func ParseInbound(raw []byte) Inbound {
	var w wireInbound
	if err := json.Unmarshal(raw, &w); err != nil {
		return IgnoredFrame{Reason: "invalid JSON: " + err.Error()}
	}

	switch w.Type {
	case TypeJoin:
		username, _ := plainString(w.Username)
		room, _ := plainString(w.Room)
		return JoinFrame{Username: username, Room: room}
	case TypeMessage:
		text, ok := plainString(w.Text)
		if !ok {
			return IgnoredFrame{Reason: "message without text"}
		}
		return ChatFrame{Text: text}
	case TypeSwitch:
		room, ok := plainString(w.Room)
		if !ok {
			return IgnoredFrame{Reason: "switch without room"}
		}
		return SwitchFrame{Room: room}
	case "":
		return IgnoredFrame{Reason: "missing type"}
	default:
		return IgnoredFrame{Reason: "unknown type " + w.Type}
	}
}

// plainString converts a JSON value to text. Strings are unquoted, other
// values keep their JSON spelling. Absent and null values report false.
func plainString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}

// InitEvent is sent once to every new connection.
type InitEvent struct {
	Type    string            `json:"type"`
	Rooms   []string          `json:"rooms"`
	Room    string            `json:"room"`
	History []history.Message `json:"history"`
}

// RoomEvent answers a join or switch with the new room and its history.
type RoomEvent struct {
	Type    string            `json:"type"`
	Room    string            `json:"room"`
	History []history.Message `json:"history"`
}

// MessageEvent carries a stored chat message to a room.
type MessageEvent struct {
	Type    string          `json:"type"`
	Message history.Message `json:"message"`
}

// NoticeEvent is a human readable room announcement.
type NoticeEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

func newInitEvent(rooms []string, room string, msgs []history.Message) InitEvent {
	return InitEvent{Type: TypeInit, Rooms: rooms, Room: room, History: nonNil(msgs)}
}

func newRoomEvent(kind, room string, msgs []history.Message) RoomEvent {
	return RoomEvent{Type: kind, Room: room, History: nonNil(msgs)}
}

func newMessageEvent(msg history.Message) MessageEvent {
	return MessageEvent{Type: TypeMessage, Message: msg}
}

func newNoticeEvent(text string, ts int64) NoticeEvent {
	return NoticeEvent{Type: TypeNotice, Text: text, TS: ts}
}

func nonNil(msgs []history.Message) []history.Message {
	if msgs == nil {
		return []history.Message{}
	}
	return msgs
}
