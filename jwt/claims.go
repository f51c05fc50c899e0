package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when a token carries no exp claim.
var ErrNoExpiry = errors.New("token has no exp claim")

// AccessClaims are the claims the storefront backend puts in access tokens.
type AccessClaims struct {
	UserID    int64  `json:"user_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// ExpiresAt returns the exp claim of token as Unix seconds. The signature is not
// checked.
func ExpiresAt(token string) (int64, error) {
	claims, err := ParseUnverified(token)
	if err != nil {
		return 0, err
	}
	if claims.ExpiresAt == nil {
		return 0, ErrNoExpiry
	}
	return claims.ExpiresAt.Unix(), nil
}

// ParseUnverified decodes the claims of token without checking its signature or
// time-based claims.
func ParseUnverified(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}
