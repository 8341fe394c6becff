package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	hasher := NewPasswordHasher(testParams)

	hash, err := hasher.Hash("correct horse 1")
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := hasher.Compare("correct horse 1", hash)
	req.NoError(err)
	req.True(match)

	match, err = hasher.Compare("wrong horse 2", hash)
	req.NoError(err)
	req.False(match)

	other, err := hasher.Hash("correct horse 1")
	req.NoError(err)
	req.NotEqual(hash, other, "salt must differ")

	_, err = hasher.Compare("x", "$bcrypt$nope")
	req.ErrorIs(err, ErrInvalidHash)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("secret", time.Hour)

	token, expiresAt, err := issuer.Issue("u1", "alice")
	req.NoError(err)
	req.WithinDuration(time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.Verify(token)
	req.NoError(err)
	req.Equal("alice", claims.Subject)
	req.Equal("u1", claims.UserID)
	req.Equal(Issuer, claims.Issuer)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("secret", time.Hour)

	token, _, err := issuer.Issue("u1", "alice")
	req.NoError(err)

	_, err = NewTokenIssuer("other-secret", time.Hour).Verify(token)
	req.ErrorIs(err, ErrInvalidToken)

	expired := NewTokenIssuer("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue("u1", "alice")
	req.NoError(err)
	_, err = issuer.Verify(old)
	req.ErrorIs(err, ErrInvalidToken)

	_, err = issuer.Verify("not-a-jwt")
	req.ErrorIs(err, ErrInvalidToken)
}

func TestAuthenticator(t *testing.T) {
	ctrl := gomock.NewController(t)
	identities := mocks.NewMockIdentityProvider(ctrl)
	issuer := NewTokenIssuer("secret", time.Hour)
	authenticator := NewAuthenticator(issuer, identities)
	ctx := context.Background()

	aliceToken, _, err := issuer.Issue("u1", "alice")
	require.NoError(t, err)
	bobToken, _, err := issuer.Issue("u2", "bob")
	require.NoError(t, err)
	carolToken, _, err := issuer.Issue("u3", "carol")
	require.NoError(t, err)

	identities.EXPECT().Lookup(gomock.Any(), "alice").Return(&domain.Identity{ID: "u1", Username: "alice"}, nil)
	identities.EXPECT().Lookup(gomock.Any(), "bob").Return(nil, domain.ErrIdentityNotFound)
	identities.EXPECT().Lookup(gomock.Any(), "carol").Return(nil, errors.New("db down"))

	identity, err := authenticator.Authenticate(ctx, aliceToken)
	require.NoError(t, err)
	require.Equal(t, "u1", identity.ID)

	_, err = authenticator.Authenticate(ctx, bobToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = authenticator.Authenticate(ctx, carolToken)
	require.ErrorIs(t, err, domain.ErrIdentityLookupFailure)

	_, err = authenticator.Authenticate(ctx, "")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidateSignup(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr bool
	}{
		{"valid", Credentials{"alice", "hunter22a"}, false},
		{"missing username", Credentials{"", "hunter22a"}, true},
		{"bad username charset", Credentials{"al ice", "hunter22a"}, true},
		{"short password", Credentials{"alice", "a1"}, true},
		{"no digit", Credentials{"alice", "passwordonly"}, true},
		{"too long", Credentials{"alice", strings.Repeat("a1", 40)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignup(tt.creds)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
