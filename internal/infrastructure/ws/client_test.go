package ws

import (
	"testing"
	"time"

	"github.com/hilthontt/huddle/internal/application/broadcast"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DeliverDropsWhenFull(t *testing.T) {
	c := &Client{Message: make(chan *WSMessage, 1)}
	ev := broadcast.Event{Name: broadcast.JoinRoomAnnouncement, RoomID: "lobby", Username: "alice"}

	assert.True(t, c.Deliver(ev))
	assert.False(t, c.Deliver(ev))

	c.Close()
	c.Close()
	assert.False(t, c.Deliver(ev))

	msg, ok := <-c.Message
	require.True(t, ok)
	assert.Equal(t, JoinRoomAnnouncement, msg.Type)
	_, ok = <-c.Message
	assert.False(t, ok)
}

func TestFromEvent(t *testing.T) {
	sentAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := domain.Message{ID: "m1", RoomID: "lobby", SenderID: "u1", SenderName: "alice", Text: "hi", SentAt: sentAt}

	out := FromEvent(broadcast.Event{Name: broadcast.ReceiveMessage, RoomID: "lobby", Message: &msg})
	require.NotNil(t, out)
	assert.Equal(t, ReceiveMessage, out.Type)
	assert.Equal(t, MessagePayload{
		ID: "m1", RoomID: "lobby", Message: "hi", Username: "alice", UserID: "u1",
		SentAt: "2024-05-01T12:00:00Z",
	}, out.Data)

	out = FromEvent(broadcast.Event{Name: broadcast.MessageHistory, RoomID: "lobby", History: []domain.Message{msg}})
	require.NotNil(t, out)
	assert.Len(t, out.Data.(HistoryPayload).Messages, 1)

	out = FromEvent(broadcast.Event{Name: broadcast.LeaveRoomAnnouncement, RoomID: "lobby", Username: "bob"})
	require.NotNil(t, out)
	assert.Equal(t, AnnouncementPayload{Username: "bob", RoomID: "lobby"}, out.Data)

	assert.Nil(t, FromEvent(broadcast.Event{Name: broadcast.ReceiveMessage}))
}
