package events

import (
	"context"
	"encoding/json"

	"github.com/hilthontt/huddle/internal/infrastructure/contracts"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
)

type RoomConsumer struct {
	rabbitmq *messaging.RabbitMQ
	logger   logging.Logger
}

func NewRoomConsumer(rabbitmq *messaging.RabbitMQ, logger logging.Logger) *RoomConsumer {
	return &RoomConsumer{
		rabbitmq: rabbitmq,
		logger:   logger,
	}
}

// Listen binds the rooms queue to every room event and writes each received
// event to the audit log.
func (c *RoomConsumer) Listen(queue string) error {
	if err := c.rabbitmq.DeclareAndBindQueue(queue, contracts.RoomEvents); err != nil {
		return err
	}
	return c.rabbitmq.ConsumeMessages(queue, c.handle)
}

func (c *RoomConsumer) handle(ctx context.Context, msg amqp091.Delivery) error {
	var message contracts.AmqpMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		return err
	}

	var payload messaging.RoomEventData
	if err := json.Unmarshal(message.Data, &payload); err != nil {
		return err
	}

	c.logger.Info(logging.RabbitMQ, logging.Consume, "room event received", map[logging.ExtraKey]any{
		logging.EventType: string(payload.Event.Type),
		logging.RoomID:    payload.Event.RoomID,
		logging.Username:  payload.Event.Username,
		logging.MessageID: payload.Event.MessageID,
		logging.Members:   payload.Event.MemberCount,
	})

	return nil
}
