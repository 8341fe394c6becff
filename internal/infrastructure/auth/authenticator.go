package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/hilthontt/huddle/internal/domain"
)

// Authenticator turns a session token into an Identity.
type Authenticator struct {
	tokens     *TokenIssuer
	identities domain.IdentityProvider
}

func NewAuthenticator(tokens *TokenIssuer, identities domain.IdentityProvider) *Authenticator {
	return &Authenticator{tokens: tokens, identities: identities}
}

// Subject validates the token and returns the username it was issued for,
// without resolving it.
func (a *Authenticator) Subject(token string) (string, error) {
	if token == "" {
		return "", domain.ErrUnauthorized
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	return claims.Subject, nil
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	subject, err := a.Subject(token)
	if err != nil {
		return nil, err
	}

	identity, err := a.identities.Lookup(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityLookupFailure, err)
	}
	return identity, nil
}
