package broadcast

import (
	"hash/fnv"
	"sync"
)

const sessionShards = 32

type roomMembers struct {
	mu      sync.RWMutex
	members map[string]struct{}
	// pruned is set once the room has been dropped from the registry; a
	// writer holding a stale pointer must look the room up again.
	pruned bool
}

type sessionShard struct {
	mu    sync.Mutex
	rooms map[string]string // sessionID -> roomID
}

// Registry maps rooms to the sessions currently inside them. A session is in
// at most one room. Rooms appear on first join and are pruned when the last
// member leaves.
//
// Lock order: session shard, then registry, then room. Operations on
// different rooms only contend on the registry lock while a room entry is
// created or pruned.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*roomMembers
	shards [sessionShards]sessionShard
}

func NewRegistry() *Registry {
	r := &Registry{
		rooms: make(map[string]*roomMembers),
	}
	for i := range r.shards {
		r.shards[i].rooms = make(map[string]string)
	}
	return r
}

func (r *Registry) shard(sessionID string) *sessionShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &r.shards[h.Sum32()%sessionShards]
}

// Join puts sessionID into roomID, removing it from the room it was in before.
// It returns that previous room, or "" when there was none. Joining the
// current room again changes nothing and returns roomID.
func (r *Registry) Join(sessionID, roomID string) (previous string) {
	sh := r.shard(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	previous = sh.rooms[sessionID]
	if previous == roomID {
		return previous
	}

	if previous != "" {
		r.removeMember(previous, sessionID)
	}
	r.addMember(roomID, sessionID)
	sh.rooms[sessionID] = roomID

	return previous
}

// Leave removes sessionID from roomID. It reports whether the session was a
// member; leaving a room the session is not in is a no-op.
func (r *Registry) Leave(sessionID, roomID string) bool {
	sh := r.shard(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if current, ok := sh.rooms[sessionID]; !ok || current != roomID {
		return false
	}

	r.removeMember(roomID, sessionID)
	delete(sh.rooms, sessionID)
	return true
}

// MembersOf returns a copy of the room's member set, empty if the room does
// not exist.
func (r *Registry) MembersOf(roomID string) []string {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return []string{}
	}

	room.mu.RLock()
	defer room.mu.RUnlock()

	members := make([]string, 0, len(room.members))
	for id := range room.members {
		members = append(members, id)
	}
	return members
}

func (r *Registry) RoomOf(sessionID string) (string, bool) {
	sh := r.shard(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	roomID, ok := sh.rooms[sessionID]
	return roomID, ok
}

// Count is the number of members in roomID.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	room.mu.RLock()
	defer room.mu.RUnlock()
	return len(room.members)
}

// Rooms snapshots member counts of every live room.
func (r *Registry) Rooms() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.rooms))
	for id, room := range r.rooms {
		room.mu.RLock()
		out[id] = len(room.members)
		room.mu.RUnlock()
	}
	return out
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) addMember(roomID, sessionID string) {
	for {
		room := r.getOrCreate(roomID)

		room.mu.Lock()
		if room.pruned {
			room.mu.Unlock()
			continue
		}
		room.members[sessionID] = struct{}{}
		room.mu.Unlock()
		return
	}
}

func (r *Registry) getOrCreate(roomID string) *roomMembers {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return room
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok = r.rooms[roomID]; ok {
		return room
	}
	room = &roomMembers{members: make(map[string]struct{})}
	r.rooms[roomID] = room
	return room
}

func (r *Registry) removeMember(roomID, sessionID string) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	room.mu.Lock()
	delete(room.members, sessionID)
	empty := len(room.members) == 0
	room.mu.Unlock()

	if empty {
		r.prune(roomID, room)
	}
}

func (r *Registry) prune(roomID string, room *roomMembers) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[roomID] != room {
		return
	}

	// Double-check after lock: a join may have landed in between.
	room.mu.Lock()
	defer room.mu.Unlock()
	if len(room.members) == 0 {
		room.pruned = true
		delete(r.rooms, roomID)
	}
}
