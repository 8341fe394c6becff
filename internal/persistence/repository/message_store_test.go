package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/persistence/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageStores(t *testing.T) map[string]domain.MessageStore {
	t.Helper()

	badgerDB, err := db.OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerDB.Close() })

	badgerStore := NewBadgerMessageStore(badgerDB)
	t.Cleanup(func() { _ = badgerStore.Close() })

	return map[string]domain.MessageStore{
		"badger": badgerStore,
		"memory": NewMemoryMessageStore(100),
	}
}

func newTestMessage(roomID, text string, at time.Time) *domain.Message {
	return &domain.Message{
		ID:         fmt.Sprintf("%s-%d", roomID, at.UnixNano()),
		RoomID:     roomID,
		SenderID:   "u1",
		SenderName: "alice",
		Text:       text,
		SentAt:     at,
	}
}

func TestMessageStore_FetchLatest(t *testing.T) {
	for name, store := range messageStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.FetchLatest(ctx, "lobby")
			require.ErrorIs(t, err, domain.ErrMessageNotFound)

			base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, store.Append(ctx, newTestMessage("lobby", "first", base)))
			require.NoError(t, store.Append(ctx, newTestMessage("lobby", "second", base.Add(time.Second))))
			require.NoError(t, store.Append(ctx, newTestMessage("lobby2", "other room", base.Add(2*time.Second))))

			latest, err := store.FetchLatest(ctx, "lobby")
			require.NoError(t, err)
			assert.Equal(t, "second", latest.Text)
			assert.Equal(t, "alice", latest.SenderName)
			assert.True(t, latest.SentAt.Equal(base.Add(time.Second)))
		})
	}
}

func TestMessageStore_HistoryIsOldestFirstAndLimited(t *testing.T) {
	for name, store := range messageStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

			for i := 0; i < 5; i++ {
				msg := newTestMessage("room", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Millisecond))
				require.NoError(t, store.Append(ctx, msg))
			}

			history, err := store.History(ctx, "room", 3)
			require.NoError(t, err)
			require.Len(t, history, 3)
			assert.Equal(t, "m2", history[0].Text)
			assert.Equal(t, "m3", history[1].Text)
			assert.Equal(t, "m4", history[2].Text)

			all, err := store.History(ctx, "room", 50)
			require.NoError(t, err)
			assert.Len(t, all, 5)

			empty, err := store.History(ctx, "nobody-here", 10)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestMessageStore_AppendOrderIgnoresClock(t *testing.T) {
	for name, store := range messageStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

			// the clock steps back after the first message, then stalls
			stamps := []time.Time{base, base.Add(-time.Hour), base.Add(-time.Hour), base.Add(-time.Hour)}
			for i, at := range stamps {
				msg := newTestMessage("room", fmt.Sprintf("m%d", i), at)
				msg.ID = fmt.Sprintf("id-%d", i)
				require.NoError(t, store.Append(ctx, msg))
			}

			latest, err := store.FetchLatest(ctx, "room")
			require.NoError(t, err)
			assert.Equal(t, "m3", latest.Text)

			history, err := store.History(ctx, "room", 10)
			require.NoError(t, err)
			require.Len(t, history, 4)
			for i, msg := range history {
				assert.Equal(t, fmt.Sprintf("m%d", i), msg.Text)
			}
		})
	}
}

func TestMessageStore_RejectsInvalidMessages(t *testing.T) {
	for name, store := range messageStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.Append(context.Background(), nil), domain.ErrInvalidInput)
			assert.ErrorIs(t, store.Append(context.Background(), &domain.Message{ID: "x"}), domain.ErrInvalidInput)
		})
	}
}

func TestMessageStore_CancelledContext(t *testing.T) {
	for name, store := range messageStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := store.Append(ctx, newTestMessage("lobby", "late", time.Now()))
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestMemoryMessageStore_EvictsOldest(t *testing.T) {
	store := NewMemoryMessageStore(2)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, newTestMessage("r", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)))))
	}

	history, err := store.History(ctx, "r", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "m1", history[0].Text)
	assert.Equal(t, "m2", history[1].Text)
}

func TestBadgerMessageStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := db.OpenBadger(dir)
	require.NoError(t, err)
	store := NewBadgerMessageStore(first)
	require.NoError(t, store.Append(ctx, newTestMessage("lobby", "kept", time.Now().UTC())))
	require.NoError(t, store.Close())
	require.NoError(t, first.Close())

	second, err := db.OpenBadger(dir)
	require.NoError(t, err)
	defer second.Close()

	reopened := NewBadgerMessageStore(second)
	defer reopened.Close()

	latest, err := reopened.FetchLatest(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, "kept", latest.Text)

	// a message appended after the restart sorts after the old one, even
	// with an earlier timestamp
	earlier := newTestMessage("lobby", "after restart", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, reopened.Append(ctx, earlier))

	history, err := reopened.History(ctx, "lobby", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "kept", history[0].Text)
	assert.Equal(t, "after restart", history[1].Text)
}
