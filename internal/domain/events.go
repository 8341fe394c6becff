//go:generate go run go.uber.org/mock/mockgen -source=events.go -destination=../mocks/mock_events.go -package=mocks

package domain

import (
	"context"
	"time"
)

type RoomEventType string

const (
	EventMemberJoined RoomEventType = "member.joined"
	EventMemberLeft   RoomEventType = "member.left"
	EventMessageSent  RoomEventType = "message.sent"
	EventRoomCreated  RoomEventType = "room.created"
)

// RoomEvent is the audit record of a membership change or a delivered message.
type RoomEvent struct {
	Type        RoomEventType `json:"type"`
	RoomID      string        `json:"roomId"`
	UserID      string        `json:"userId"`
	Username    string        `json:"username"`
	MessageID   string        `json:"messageId,omitempty"`
	MemberCount int           `json:"memberCount"`
	OccurredAt  time.Time     `json:"occurredAt"`
}

// EventPublisher ships RoomEvents outside the process. Failures never affect
// delivery inside the room.
type EventPublisher interface {
	Publish(ctx context.Context, event RoomEvent) error
}
