package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hilthontt/huddle/internal/domain"
)

type memoryRoomRepository struct {
	rooms     map[string]*domain.Room // ID -> Room
	sequences map[string]int64
	mu        sync.RWMutex
}

func NewMemoryRoomRepository() domain.RoomRepository {
	return &memoryRoomRepository{
		rooms:     make(map[string]*domain.Room),
		sequences: make(map[string]int64),
	}
}

func (r *memoryRoomRepository) InitializeSequence(ctx context.Context, name string) error {
	if name == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sequences[name]; !exists {
		r.sequences[name] = 0
	}
	return nil
}

func (r *memoryRoomRepository) NextID(ctx context.Context, sequence string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, exists := r.sequences[sequence]
	if !exists {
		return 0, fmt.Errorf("sequence %s is not initialized", sequence)
	}
	value++
	r.sequences[sequence] = value
	return value, nil
}

// Create adds a room if its ID is unique.
func (r *memoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if room == nil || room.ID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.ID]; exists {
		return fmt.Errorf("%w: room %s already exists", domain.ErrInvalidInput, room.ID)
	}

	stored := *room
	r.rooms[room.ID] = &stored
	return nil
}

func (r *memoryRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[id]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	cpy := *room
	return &cpy, nil
}

func (r *memoryRoomRepository) List(ctx context.Context) ([]domain.Room, error) {
	r.mu.RLock()
	rooms := make([]domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, *room)
	}
	r.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}
