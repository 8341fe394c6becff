//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message.go -package=mocks

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/huddle/internal/infrastructure/validate"
)

const MaxMessageBytes = 2000

var validateMessageText = validate.Field("message",
	validate.Required(),
	validate.ValidUTF8(),
	validate.MaxBytes(MaxMessageBytes),
)

// Message is an immutable chat record.
type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sentAt"`
}

// MessageStore is the append-only room log.
//
// FetchLatest returns ErrMessageNotFound for a room without messages. History
// returns at most limit messages, oldest first.
type MessageStore interface {
	Append(ctx context.Context, message *Message) error
	FetchLatest(ctx context.Context, roomID string) (*Message, error)
	History(ctx context.Context, roomID string, limit int) ([]Message, error)
}

func NewMessage(roomID string, sender *Identity, text string) (*Message, error) {
	if sender == nil {
		return nil, ErrUnauthorized
	}
	if err := ValidateRoomID(roomID); err != nil {
		return nil, err
	}
	if err := validateMessageText(text); err != nil {
		return nil, err
	}

	return &Message{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderName: sender.Username,
		Text:       text,
		SentAt:     time.Now().UTC(),
	}, nil
}

// ValidateMessageText rejects blank text. Accepted text is stored and
// delivered byte for byte, surrounding whitespace included.
func ValidateMessageText(text string) error {
	return validateMessageText(text)
}
