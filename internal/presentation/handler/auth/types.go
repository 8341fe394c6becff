package auth

import (
	"time"

	"github.com/hilthontt/huddle/internal/domain"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func newUserResponse(identity *domain.Identity) userResponse {
	return userResponse{
		ID:        identity.ID,
		Username:  identity.Username,
		CreatedAt: identity.CreatedAt,
	}
}
