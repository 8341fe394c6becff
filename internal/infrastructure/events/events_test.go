package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/contracts"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	routingKey string
	message    contracts.AmqpMessage
	err        error
}

func (f *fakeBroker) PublishMessage(_ context.Context, routingKey string, message contracts.AmqpMessage) error {
	f.routingKey = routingKey
	f.message = message
	return f.err
}

func TestRoomPublisher_RoutesByEventType(t *testing.T) {
	broker := &fakeBroker{}
	publisher := NewRoomPublisher(broker)

	event := domain.RoomEvent{
		Type:        domain.EventMessageSent,
		RoomID:      "lobby",
		UserID:      "u1",
		Username:    "alice",
		MessageID:   "m1",
		MemberCount: 2,
		OccurredAt:  time.Now().UTC(),
	}
	require.NoError(t, publisher.Publish(context.Background(), event))

	assert.Equal(t, contracts.EventMessageSent, broker.routingKey)
	assert.Equal(t, "u1", broker.message.OwnerID)

	var payload messaging.RoomEventData
	require.NoError(t, json.Unmarshal(broker.message.Data, &payload))
	assert.Equal(t, "lobby", payload.Event.RoomID)
	assert.Equal(t, "m1", payload.Event.MessageID)
}

func TestRoomPublisher_PropagatesBrokerError(t *testing.T) {
	publisher := NewRoomPublisher(&fakeBroker{err: errors.New("channel closed")})
	assert.Error(t, publisher.Publish(context.Background(), domain.RoomEvent{Type: domain.EventMemberLeft}))
}

func TestRoomConsumer_Handle(t *testing.T) {
	consumer := NewRoomConsumer(nil, logging.NewNop())

	data, err := json.Marshal(messaging.RoomEventData{Event: domain.RoomEvent{Type: domain.EventMemberJoined, RoomID: "lobby"}})
	require.NoError(t, err)
	body, err := json.Marshal(contracts.AmqpMessage{OwnerID: "u1", Data: data})
	require.NoError(t, err)

	assert.NoError(t, consumer.handle(context.Background(), amqp091.Delivery{Body: body}))
	assert.Error(t, consumer.handle(context.Background(), amqp091.Delivery{Body: []byte("{")}))
}

func TestNopPublisher(t *testing.T) {
	var publisher domain.EventPublisher = NopPublisher{}
	assert.NoError(t, publisher.Publish(context.Background(), domain.RoomEvent{}))
}
