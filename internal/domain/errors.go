package domain

import "errors"

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotInRoom             = errors.New("not in room")
	ErrPersistenceFailure    = errors.New("persistence failure")
	ErrIdentityLookupFailure = errors.New("identity lookup failure")

	ErrIdentityNotFound   = errors.New("identity not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrMessageNotFound    = errors.New("message not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidInput       = errors.New("invalid input")
)
