package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer issues and verifies HS256 access and refresh tokens. It backs the fake
// storefront backend used by tests and the probe's demo mode.
type Signer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewSigner returns a Signer using key. key must be at least 32 bytes.
func NewSigner(key []byte, issuer string, now func() time.Time) (*Signer, error) {
	if len(key) < 32 {
		return nil, errors.New("hs256 key must be at least 32 bytes")
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{key: key, issuer: issuer, now: now}, nil
}

// Issue returns a token for userID of the given type ("access" or "refresh") that
// expires after ttl. id becomes the jti claim, which keeps tokens minted within the
// same second distinct.
func (s *Signer) Issue(userID int64, tokenType, id string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := AccessClaims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    s.issuer,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks the signature, expiry, issuer and token type of token.
func (s *Signer) Verify(token, tokenType string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}

	claims := &AccessClaims{}
	_, err := jwt.NewParser(options...).ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("token type %q, want %q", claims.TokenType, tokenType)
	}
	return claims, nil
}
