package repository

import (
	"context"
	"sync"

	"github.com/hilthontt/huddle/internal/domain"
)

const defaultMessageCapacity = 100

// Oldest messages are evicted when capacity is exceeded.
type memoryMessageStore struct {
	messages map[string][]domain.Message // roomID -> []Message, oldest first
	capacity int
	mu       sync.RWMutex
}

func NewMemoryMessageStore(capacity int) domain.MessageStore {
	if capacity <= 0 {
		capacity = defaultMessageCapacity
	}
	return &memoryMessageStore{
		capacity: capacity,
		messages: make(map[string][]domain.Message),
	}
}

func (s *memoryMessageStore) Append(ctx context.Context, message *domain.Message) error {
	if message == nil || message.RoomID == "" || message.ID == "" {
		return domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	roomMsgs := append(s.messages[message.RoomID], *message)
	if excess := len(roomMsgs) - s.capacity; excess > 0 {
		roomMsgs = roomMsgs[excess:]
	}
	s.messages[message.RoomID] = roomMsgs

	return nil
}

func (s *memoryMessageStore) FetchLatest(ctx context.Context, roomID string) (*domain.Message, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	roomMsgs := s.messages[roomID]
	if len(roomMsgs) == 0 {
		return nil, domain.ErrMessageNotFound
	}

	latest := roomMsgs[len(roomMsgs)-1]
	return &latest, nil
}

func (s *memoryMessageStore) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	roomMsgs := s.messages[roomID]
	if limit <= 0 || len(roomMsgs) == 0 {
		return []domain.Message{}, nil
	}
	if len(roomMsgs) > limit {
		roomMsgs = roomMsgs[len(roomMsgs)-limit:]
	}

	// copy so callers cannot mutate the log
	cpy := make([]domain.Message, len(roomMsgs))
	copy(cpy, roomMsgs)
	return cpy, nil
}
