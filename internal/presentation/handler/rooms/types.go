package rooms

import (
	"time"

	"github.com/hilthontt/huddle/internal/domain"
)

type createRoomRequest struct {
	Name string `json:"name"`
}

type roomResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
	Online    int    `json:"online"`
}

type roomSummaryResponse struct {
	roomResponse
	LatestMessage *messageResponse `json:"latestMessage"`
}

type messageResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Message  string `json:"message"`
	SentAt   string `json:"sentAt"`
}

func newMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:       m.ID,
		Username: m.SenderName,
		Message:  m.Text,
		SentAt:   m.SentAt.Format(time.RFC3339Nano),
	}
}
