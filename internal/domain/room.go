//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room.go -package=mocks

package domain

import (
	"context"
	"strings"
	"time"

	"github.com/hilthontt/huddle/internal/infrastructure/validate"
)

// RoomIDSequence names the generator behind catalog room ids.
const RoomIDSequence = "room_id"

var validateRoomID = validate.Field("room id",
	validate.Required(),
	validate.MaxLength(64),
	validate.Matches(`^[A-Za-z0-9_.-]+$`, "can only contain letters, numbers, '.', '_' and '-'"),
)

var validateRoomName = validate.Field("room name",
	validate.Required(),
	validate.LengthBetween(1, 80),
)

// Room is a catalog entry. Live membership is not stored here; any valid room
// id can be joined whether or not it has a catalog entry.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type RoomRepository interface {
	// InitializeSequence is idempotent.
	InitializeSequence(ctx context.Context, name string) error
	NextID(ctx context.Context, sequence string) (int64, error)
	Create(ctx context.Context, room *Room) error
	GetByID(ctx context.Context, id string) (*Room, error)
	List(ctx context.Context) ([]Room, error)
}

func ValidateRoomID(id string) error {
	return validateRoomID(id)
}

func NewRoom(name string, owner *Identity) (*Room, error) {
	if owner == nil {
		return nil, ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if err := validateRoomName(name); err != nil {
		return nil, err
	}

	return &Room{
		Name:      name,
		CreatedBy: owner.Username,
		CreatedAt: time.Now().UTC(),
	}, nil
}
