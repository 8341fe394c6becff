package contracts

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	OwnerID string `json:"ownerId"`
	Data    []byte `json:"data"`
}

// Routing keys, one per domain.RoomEventType.
const (
	EventMessageSent  = "message.sent"
	EventMemberJoined = "member.joined"
	EventMemberLeft   = "member.left"
	EventRoomCreated  = "room.created"
)

var RoomEvents = []string{
	EventMessageSent,
	EventMemberJoined,
	EventMemberLeft,
	EventRoomCreated,
}
