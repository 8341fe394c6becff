package repository

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/persistence/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalog struct {
	users UserStore
	rooms domain.RoomRepository
}

func catalogs(t *testing.T) map[string]catalog {
	t.Helper()

	sqlDB, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "huddle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return map[string]catalog{
		"sqlite": {users: NewSQLiteUserRepository(sqlDB), rooms: NewSQLiteRoomRepository(sqlDB)},
		"memory": {users: NewMemoryUserRepository(), rooms: NewMemoryRoomRepository()},
	}
}

func TestUserStore_CreateAndLookup(t *testing.T) {
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			user, err := domain.NewUser("Alice", "hash")
			require.NoError(t, err)
			require.NoError(t, c.users.Create(ctx, user))

			duplicate, err := domain.NewUser("alice", "other")
			require.NoError(t, err)
			assert.ErrorIs(t, c.users.Create(ctx, duplicate), domain.ErrUserAlreadyExists)

			stored, err := c.users.GetByUsername(ctx, "ALICE")
			require.NoError(t, err)
			assert.Equal(t, user.ID, stored.ID)
			assert.Equal(t, "hash", stored.PasswordHash)

			identity, err := c.users.Lookup(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, user.ID, identity.ID)
			assert.Equal(t, "alice", identity.Username)

			_, err = c.users.Lookup(ctx, "bob")
			assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
		})
	}
}

func TestRoomRepository_Sequence(t *testing.T) {
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := c.rooms.NextID(ctx, domain.RoomIDSequence)
			require.Error(t, err)

			require.NoError(t, c.rooms.InitializeSequence(ctx, domain.RoomIDSequence))

			first, err := c.rooms.NextID(ctx, domain.RoomIDSequence)
			require.NoError(t, err)
			assert.Equal(t, int64(1), first)

			// re-initializing must not reset the counter
			require.NoError(t, c.rooms.InitializeSequence(ctx, domain.RoomIDSequence))

			second, err := c.rooms.NextID(ctx, domain.RoomIDSequence)
			require.NoError(t, err)
			assert.Equal(t, int64(2), second)
		})
	}
}

func TestRoomRepository_NextIDIsUniqueUnderConcurrency(t *testing.T) {
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, c.rooms.InitializeSequence(ctx, "concurrent"))

			const workers = 16
			ids := make(chan int64, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					id, err := c.rooms.NextID(ctx, "concurrent")
					assert.NoError(t, err)
					ids <- id
				}()
			}
			wg.Wait()
			close(ids)

			seen := make(map[int64]bool)
			for id := range ids {
				assert.False(t, seen[id], "duplicate id %d", id)
				seen[id] = true
			}
			assert.Len(t, seen, workers)
		})
	}
}

func TestRoomRepository_CRUD(t *testing.T) {
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			owner := &domain.Identity{ID: "u1", Username: "alice"}
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

			for i, roomName := range []string{"General", "Random"} {
				room, err := domain.NewRoom(roomName, owner)
				require.NoError(t, err)
				room.ID = strconv.Itoa(i + 1)
				room.CreatedAt = base.Add(time.Duration(i) * time.Minute)
				require.NoError(t, c.rooms.Create(ctx, room))
			}

			dup := &domain.Room{ID: "1", Name: "again", CreatedBy: "bob", CreatedAt: base}
			assert.ErrorIs(t, c.rooms.Create(ctx, dup), domain.ErrInvalidInput)

			room, err := c.rooms.GetByID(ctx, "2")
			require.NoError(t, err)
			assert.Equal(t, "Random", room.Name)
			assert.Equal(t, "alice", room.CreatedBy)
			assert.True(t, room.CreatedAt.Equal(base.Add(time.Minute)))

			_, err = c.rooms.GetByID(ctx, "404")
			assert.ErrorIs(t, err, domain.ErrRoomNotFound)

			rooms, err := c.rooms.List(ctx)
			require.NoError(t, err)
			require.Len(t, rooms, 2)
			assert.Equal(t, "General", rooms[0].Name)
			assert.Equal(t, "Random", rooms[1].Name)
		})
	}
}
