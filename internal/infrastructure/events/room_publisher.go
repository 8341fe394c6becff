package events

import (
	"context"
	"encoding/json"

	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/contracts"
	"github.com/hilthontt/huddle/internal/infrastructure/messaging"
)

type messagePublisher interface {
	PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error
}

// RoomPublisher ships room events to the broker, routed by event type.
type RoomPublisher struct {
	rabbitmq messagePublisher
}

func NewRoomPublisher(rabbitmq messagePublisher) *RoomPublisher {
	return &RoomPublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *RoomPublisher) Publish(ctx context.Context, event domain.RoomEvent) error {
	roomEventJSON, err := json.Marshal(messaging.RoomEventData{Event: event})
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, string(event.Type), contracts.AmqpMessage{
		OwnerID: event.UserID,
		Data:    roomEventJSON,
	})
}

// NopPublisher is used when messaging is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.RoomEvent) error { return nil }
