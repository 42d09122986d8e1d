package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/history"
)

// Session translates one connection's inbound frames into registry and
// history changes, directed replies and room broadcasts. A session's methods
// are called from its connection's read pump only.
type Session struct {
	hub    *Hub
	client *Client
	logger zerolog.Logger
}

// Connect registers client in the default room and sends it the init frame.
func (h *Hub) Connect(client *Client) (*Session, error) {
	if _, err := h.Register(client); err != nil {
		return nil, err
	}

	s := &Session{
		hub:    h,
		client: client,
		logger: h.logger.With().Str("conn", client.id).Logger(),
	}

	room := h.rooms.Default()
	s.reply(newInitEvent(h.rooms.List(), room, h.history.Get(room)))
	return s, nil
}

// Handle processes one inbound frame. Frames that cannot be acted upon are
// logged and otherwise ignored.
func (s *Session) Handle(raw []byte) {
	switch frame := ParseInbound(raw).(type) {
	case JoinFrame:
		s.join(frame)
	case ChatFrame:
		s.message(frame)
	case SwitchFrame:
		s.switchRoom(frame)
	case IgnoredFrame:
		s.logger.Warn().Str("reason", frame.Reason).Msg("Ignoring inbound frame")
	}
}

// Disconnect unregisters the connection and tells its last room it left.
// Calls after the first do nothing.
func (s *Session) Disconnect() {
	name, room, ok := s.hub.Unregister(s.client.id)
	if !ok {
		return
	}
	if name == "" {
		name = "Someone"
	}
	s.notice(room, fmt.Sprintf("%s left", name))
}

func (s *Session) join(frame JoinFrame) {
	name, ok := s.hub.SetIdentity(s.client.id, frame.Username)
	if !ok {
		return
	}
	_, room, ok := s.hub.SetRoom(s.client.id, frame.Room)
	if !ok {
		return
	}

	s.reply(newRoomEvent(TypeJoined, room, s.hub.history.Get(room)))
	s.notice(room, fmt.Sprintf("%s joined %s", name, room))
}

func (s *Session) message(frame ChatFrame) {
	name, room, ok := s.hub.Lookup(s.client.id)
	if !ok {
		return
	}

	msg := history.NewMessage(name, frame.Text, s.hub.timestamp())
	if err := s.hub.history.Append(room, msg); err != nil {
		s.logger.Warn().Err(err).Msg("Dropping message")
		return
	}
	s.broadcast(room, newMessageEvent(msg))
}

func (s *Session) switchRoom(frame SwitchFrame) {
	from, to, ok := s.hub.SetRoom(s.client.id, frame.Room)
	if !ok {
		return
	}
	name, _, _ := s.hub.Lookup(s.client.id)

	s.reply(newRoomEvent(TypeSwitched, to, s.hub.history.Get(to)))
	s.notice(from, fmt.Sprintf("%s left to %s", name, to))
	s.notice(to, fmt.Sprintf("%s joined %s", name, to))
}

func (s *Session) notice(room, text string) {
	s.broadcast(room, newNoticeEvent(text, s.hub.timestamp().UnixMilli()))
}

func (s *Session) broadcast(room string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error encoding broadcast")
		return
	}
	s.hub.BroadcastToRoom(room, payload)
}

// reply sends event to this connection only.
func (s *Session) reply(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error encoding reply")
		return
	}
	switch err := s.client.trySend(payload); {
	case errors.Is(err, errSendBufferFull):
		s.logger.Warn().Msg("Send buffer full, dropping slow client")
		s.client.closeConnection()
	case err != nil:
		s.logger.Debug().Err(err).Msg("Reply not delivered")
	}
}
