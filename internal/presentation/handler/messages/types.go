package messages

import (
	"time"

	"github.com/hilthontt/huddle/internal/domain"
)

type messageResponse struct {
	ID       string `json:"id"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message"`
	SentAt   string `json:"sentAt"`
}

type historyResponse struct {
	RoomID   string            `json:"roomId"`
	Messages []messageResponse `json:"messages"`
}

func newMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:       m.ID,
		RoomID:   m.RoomID,
		UserID:   m.SenderID,
		Username: m.SenderName,
		Message:  m.Text,
		SentAt:   m.SentAt.Format(time.RFC3339Nano),
	}
}
