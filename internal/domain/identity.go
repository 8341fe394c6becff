//go:generate go run go.uber.org/mock/mockgen -source=identity.go -destination=../mocks/mock_identity.go -package=mocks

package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/huddle/internal/infrastructure/validate"
)

var validateUsername = validate.Field("username",
	validate.Required(),
	validate.LengthBetween(2, 32),
	validate.NoSpaces(),
	validate.Matches(`^[a-zA-Z0-9][a-zA-Z0-9_-]*[a-zA-Z0-9]$`,
		"can only contain letters, numbers, underscores and hyphens (cannot start or end with _ or -)"),
)

// Identity is what a session is authenticated as.
type Identity struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// IdentityProvider resolves an identifier (the username carried by a session
// token) to an Identity. Unknown identifiers yield ErrIdentityNotFound.
type IdentityProvider interface {
	Lookup(ctx context.Context, identifier string) (*Identity, error)
}

// User is the stored account behind an Identity.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// NewUser validates and normalises the username. Usernames are case-insensitive.
func NewUser(rawName, passwordHash string) (*User, error) {
	if err := ValidateUsername(rawName); err != nil {
		return nil, err
	}

	return &User{
		ID:           uuid.NewString(),
		Username:     NormalizeUsername(rawName),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func ValidateUsername(name string) error {
	return validateUsername(strings.TrimSpace(name))
}

func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (u *User) Identity() *Identity {
	return &Identity{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}
