package broadcast

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_JoinMovesBetweenRooms(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, "", r.Join("s1", "a"))
	assert.Equal(t, "a", r.Join("s1", "a"), "rejoin is a no-op")
	assert.Equal(t, "a", r.Join("s1", "b"))

	assert.Empty(t, r.MembersOf("a"))
	assert.ElementsMatch(t, []string{"s1"}, r.MembersOf("b"))

	room, ok := r.RoomOf("s1")
	require.True(t, ok)
	assert.Equal(t, "b", room)
	assert.Equal(t, 1, r.RoomCount(), "empty room a is pruned")
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Join("s1", "a")
	r.Join("s2", "a")

	assert.False(t, r.Leave("s1", "b"), "not a member of b")
	assert.True(t, r.Leave("s1", "a"))
	assert.False(t, r.Leave("s1", "a"))

	assert.Equal(t, []string{"s2"}, r.MembersOf("a"))
	_, ok := r.RoomOf("s1")
	assert.False(t, ok)

	assert.True(t, r.Leave("s2", "a"))
	assert.Equal(t, 0, r.RoomCount())
	assert.Equal(t, 0, r.Count("a"))
	assert.NotNil(t, r.MembersOf("a"))
}

func TestRegistry_MembersOfReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Join("s1", "a")

	members := r.MembersOf("a")
	members[0] = "tampered"

	assert.Equal(t, []string{"s1"}, r.MembersOf("a"))
}

func TestRegistry_Rooms(t *testing.T) {
	r := NewRegistry()
	r.Join("s1", "a")
	r.Join("s2", "a")
	r.Join("s3", "b")

	assert.Equal(t, map[string]int{"a": 2, "b": 1}, r.Rooms())
}

func TestRegistry_ConcurrentJoinLeaveKeepsSingleMembership(t *testing.T) {
	r := NewRegistry()
	rooms := []string{"a", "b", "c"}

	const sessions = 50
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				room := rooms[j%len(rooms)]
				r.Join(id, room)
				if j%7 == 0 {
					r.Leave(id, room)
				}
			}
		}(fmt.Sprintf("s%d", i))
	}
	wg.Wait()

	seen := make(map[string]string)
	for _, room := range rooms {
		for _, member := range r.MembersOf(room) {
			prev, dup := seen[member]
			require.False(t, dup, "%s in both %s and %s", member, prev, room)
			seen[member] = room

			current, ok := r.RoomOf(member)
			require.True(t, ok)
			require.Equal(t, room, current)
		}
	}

	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("s%d", i)
		if room, ok := r.RoomOf(id); ok {
			assert.Equal(t, room, seen[id])
		}
	}
}
