package messaging

import "github.com/hilthontt/huddle/internal/domain"

const RoomsQueue = "rooms"

// RoomEventData is the Data payload of every room AmqpMessage.
type RoomEventData struct {
	Event domain.RoomEvent `json:"event"`
}
