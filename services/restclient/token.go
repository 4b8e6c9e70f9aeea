package restclient

import (
	"context"
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNoToken      = errors.New("no auth token")
	ErrTokenExpired = errors.New("auth token expired")
)

// TokenProvider supplies the bearer token sent with each backend request.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to a TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken always provides the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// checkExpiry rejects JWTs that are already expired; the signature is left to the backend.
// Tokens that are not JWTs are passed through.
func checkExpiry(token string) error {
	claims := new(jwt.StandardClaims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil
	}
	if !claims.VerifyExpiresAt(nowFunc().Unix(), false) {
		return ErrTokenExpired
	}
	return nil
}
