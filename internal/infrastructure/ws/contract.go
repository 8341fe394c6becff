package ws

import (
	"encoding/json"
	"time"

	"github.com/hilthontt/huddle/internal/application/broadcast"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/samber/lo"
)

// WSMessage is every frame the server writes.
type WSMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Data   any    `json:"data"`
}

// InboundMessage is every frame the server reads. Data is decoded once Type
// is known.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type AuthenticatePayload struct {
	Token string `json:"token"`
}

// RoomPayload is the data of join_room, send_message and leave_room. Username
// is accepted for compatibility with older clients and ignored: the sender is
// always the authenticated identity.
type RoomPayload struct {
	Username string `json:"username,omitempty"`
	RoomID   string `json:"room_id"`
	Message  string `json:"message,omitempty"`
}

type AnnouncementPayload struct {
	Username string `json:"username"`
	RoomID   string `json:"room_id"`
}

type MessagePayload struct {
	ID       string `json:"id"`
	RoomID   string `json:"room_id"`
	Message  string `json:"message"`
	Username string `json:"username"`
	UserID   string `json:"userId"`
	SentAt   string `json:"sentAt"`
}

type HistoryPayload struct {
	Messages []MessagePayload `json:"messages"`
}

type AuthenticatedPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newMessagePayload(m *domain.Message) MessagePayload {
	return MessagePayload{
		ID:       m.ID,
		RoomID:   m.RoomID,
		Message:  m.Text,
		Username: m.SenderName,
		UserID:   m.SenderID,
		SentAt:   m.SentAt.Format(time.RFC3339Nano),
	}
}

// FromEvent renders an engine event as a frame. It returns nil for events
// that carry nothing to send.
func FromEvent(ev broadcast.Event) *WSMessage {
	switch ev.Name {
	case broadcast.JoinRoomAnnouncement:
		return &WSMessage{
			Type:   JoinRoomAnnouncement,
			RoomID: ev.RoomID,
			Data:   AnnouncementPayload{Username: ev.Username, RoomID: ev.RoomID},
		}
	case broadcast.LeaveRoomAnnouncement:
		return &WSMessage{
			Type:   LeaveRoomAnnouncement,
			RoomID: ev.RoomID,
			Data:   AnnouncementPayload{Username: ev.Username, RoomID: ev.RoomID},
		}
	case broadcast.ReceiveMessage:
		if ev.Message == nil {
			return nil
		}
		return &WSMessage{
			Type:   ReceiveMessage,
			RoomID: ev.RoomID,
			Data:   newMessagePayload(ev.Message),
		}
	case broadcast.MessageHistory:
		return &WSMessage{
			Type:   MessageHistory,
			RoomID: ev.RoomID,
			Data: HistoryPayload{Messages: lo.Map(ev.History, func(m domain.Message, _ int) MessagePayload {
				return newMessagePayload(&m)
			})},
		}
	}
	return nil
}

func NewAuthenticated(identity *domain.Identity) *WSMessage {
	return &WSMessage{
		Type: Authenticated,
		Data: AuthenticatedPayload{UserID: identity.ID, Username: identity.Username},
	}
}

func NewError(roomID, code, message string) *WSMessage {
	return &WSMessage{
		Type:   ErrorEvent,
		RoomID: roomID,
		Data:   ErrorPayload{Code: code, Message: message},
	}
}
