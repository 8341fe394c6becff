package broadcast

import "github.com/hilthontt/huddle/internal/domain"

type EventName string

const (
	JoinRoomAnnouncement  EventName = "join_room_announcement"
	ReceiveMessage        EventName = "receive_message"
	LeaveRoomAnnouncement EventName = "leave_room_announcement"
	MessageHistory        EventName = "message_history"
)

// Event is what the engine hands to a session's Outbox.
type Event struct {
	Name     EventName
	RoomID   string
	Username string

	// Set for ReceiveMessage.
	Message *domain.Message
	// Set for MessageHistory, oldest first.
	History []domain.Message
}

// Outbox is the engine's only path to a connected session. Deliver must not
// block; it returns false when the event could not be queued (closed or full).
type Outbox interface {
	Deliver(event Event) bool
	Close()
}
