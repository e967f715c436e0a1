package auth

import (
	"context"
	"errors"

	"github.com/Sirojiddin1dev/carinfopro/pkg/jwt"
	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
)

// TokenValidator is the subset of jwt.Manager the verifier needs.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// TokenVerifier resolves bearer tokens to owner identities. It never
// panics; every failure is one of the jwt sentinel errors.
type TokenVerifier struct {
	validator TokenValidator
}

// NewTokenVerifier creates a verifier backed by validator.
func NewTokenVerifier(validator TokenValidator) *TokenVerifier {
	return &TokenVerifier{validator: validator}
}

// Resolve returns the identity carried by token. An empty token yields
// jwt.ErrMissingToken.
func (v *TokenVerifier) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", jwt.ErrMissingToken
	}

	claims, err := v.validator.ValidateToken(token)
	if err != nil {
		if !errors.Is(err, jwt.ErrExpiredToken) && !errors.Is(err, jwt.ErrInvalidToken) {
			err = jwt.ErrInvalidToken
		}
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("token rejected")
		return "", err
	}
	return claims.Identity(), nil
}
