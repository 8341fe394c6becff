package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/hilthontt/huddle/internal/domain"
)

const (
	// seekEnd sorts after every 20-digit sequence number, so a reverse seek to
	// it lands on the newest key of the room.
	seekEnd = "99999999999999999999"

	// sequenceBandwidth is how many ids a room sequence leases per disk write.
	sequenceBandwidth = 128
)

type BadgerMessageStore struct {
	db *badger.DB

	mu        sync.Mutex
	sequences map[string]*badger.Sequence
}

// NewBadgerMessageStore orders each room by a badger sequence, so stored order
// is append order regardless of the wall clock. Close releases the leased
// sequence ranges.
func NewBadgerMessageStore(db *badger.DB) *BadgerMessageStore {
	return &BadgerMessageStore{db: db, sequences: make(map[string]*badger.Sequence)}
}

func messagePrefix(roomID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", roomID))
}

// messageKey is "msg:{room}:{seq padded to 20}". The padding keeps
// lexicographic order equal to append order.
func messageKey(roomID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%020d", roomID, seq))
}

func (s *BadgerMessageStore) sequence(roomID string) (*badger.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq, ok := s.sequences[roomID]; ok {
		return seq, nil
	}
	seq, err := s.db.GetSequence([]byte("seq:msg:"+roomID), sequenceBandwidth)
	if err != nil {
		return nil, err
	}
	s.sequences[roomID] = seq
	return seq, nil
}

func (s *BadgerMessageStore) Append(ctx context.Context, message *domain.Message) error {
	if message == nil || message.RoomID == "" || message.ID == "" {
		return domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(message)
	if err != nil {
		return err
	}

	seq, err := s.sequence(message.RoomID)
	if err != nil {
		return fmt.Errorf("room sequence: %w", err)
	}
	next, err := seq.Next()
	if err != nil {
		return fmt.Errorf("room sequence: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.RoomID, next), value)
	})
}

func (s *BadgerMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for roomID, seq := range s.sequences {
		if err := seq.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.sequences, roomID)
	}
	return firstErr
}

func (s *BadgerMessageStore) FetchLatest(ctx context.Context, roomID string) (*domain.Message, error) {
	messages, err := s.newestFirst(ctx, roomID, 1)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, domain.ErrMessageNotFound
	}
	return &messages[0], nil
}

func (s *BadgerMessageStore) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	messages, err := s.newestFirst(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *BadgerMessageStore) newestFirst(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidInput
	}
	if limit <= 0 {
		return []domain.Message{}, nil
	}

	messages := make([]domain.Message, 0, min(limit, 128))
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(roomID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(append(prefix, seekEnd...)); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			var m domain.Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &m)
			})
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return messages, nil
}
