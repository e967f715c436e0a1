package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
	"github.com/Sirojiddin1dev/carinfopro/pkg/jwt"
)

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) ValidateToken(tokenString string) (*jwt.Claims, error) {
	args := m.Called(tokenString)
	claims, _ := args.Get(0).(*jwt.Claims)
	return claims, args.Error(1)
}

func TestTokenVerifier_Resolve(t *testing.T) {
	manager, err := jwt.NewManager("test-secret", "", time.Hour, 0)
	require.NoError(t, err)
	verifier := NewTokenVerifier(manager)
	ctx := context.Background()

	token, err := manager.GenerateAccessToken("owner-1")
	require.NoError(t, err)

	id, err := verifier.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", id)

	_, err = verifier.Resolve(ctx, "")
	assert.ErrorIs(t, err, jwt.ErrMissingToken)

	_, err = verifier.Resolve(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestTokenVerifier_ExpiredToken(t *testing.T) {
	v := new(mockValidator)
	v.On("ValidateToken", "old").Return(nil, jwt.ErrExpiredToken)
	v.On("ValidateToken", "odd").Return(nil, errors.New("boom"))

	verifier := NewTokenVerifier(v)

	_, err := verifier.Resolve(context.Background(), "old")
	assert.ErrorIs(t, err, jwt.ErrExpiredToken)

	_, err = verifier.Resolve(context.Background(), "odd")
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)

	v.AssertExpectations(t)
}

func TestAuthorizer(t *testing.T) {
	room := &domain.Room{ID: "r1", OwnerID: "owner-1", VisitorSecret: "s3cret", Active: true}
	a := NewAuthorizer()

	tests := []struct {
		name     string
		room     *domain.Room
		identity string
		secret   string
		want     Decision
	}{
		{"owner", room, "owner-1", "", AllowOwner},
		{"owner with wrong secret", room, "owner-1", "nope", AllowOwner},
		{"visitor", room, "", "s3cret", AllowVisitor},
		{"other user with secret", room, "owner-2", "s3cret", AllowVisitor},
		{"other user", room, "owner-2", "", Denied},
		{"wrong secret", room, "", "s3cre", Denied},
		{"nothing", room, "", "", Denied},
		{"nil room", nil, "owner-1", "s3cret", Unavailable},
		{"inactive room", &domain.Room{ID: "r2", OwnerID: "owner-1", VisitorSecret: "s3cret"}, "owner-1", "s3cret", Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Authorize(tt.room, tt.identity, tt.secret)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecision_Role(t *testing.T) {
	assert.Equal(t, domain.SenderOwner, AllowOwner.Role())
	assert.Equal(t, domain.SenderVisitor, AllowVisitor.Role())
	assert.False(t, Denied.Allowed())
	assert.False(t, Unavailable.Allowed())
	assert.Equal(t, "unavailable", Unavailable.String())
}

func TestSecretsEqual_EmptyStored(t *testing.T) {
	assert.False(t, SecretsEqual("", ""))
}
