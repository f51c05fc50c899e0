package backend

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/logani/storefront/jwt"
	"github.com/logani/storefront/session"
)

// ErrMalformedAuth is returned when an auth response body lacks the token pair.
var ErrMalformedAuth = errors.New("auth response missing tokens")

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is also the logout body.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// AuthData is the token set returned by login, register and refresh.
type AuthData struct {
	User      session.User `json:"user"`
	Access    string       `json:"access"`
	Refresh   string       `json:"refresh"`
	ExpiresAt int64        `json:"expires_at"`
}

// AuthEnvelope wraps AuthData on login and register.
type AuthEnvelope struct {
	Message string   `json:"message"`
	Data    AuthData `json:"data"`
}

// Session converts d into a session. A missing expires_at falls back to the access
// token's exp claim, then to 0 (which the expiry policy treats as stale).
func (d AuthData) Session() session.Session {
	exp := d.ExpiresAt
	if exp <= 0 {
		if v, err := jwt.ExpiresAt(d.Access); err == nil {
			exp = v
		} else {
			exp = 0
		}
	}
	return session.Session{
		User:         d.User,
		AccessToken:  d.Access,
		RefreshToken: d.Refresh,
		ExpiresAt:    exp,
	}
}

// DecodeAuth parses a login or register body.
func DecodeAuth(body []byte) (AuthData, error) {
	var env AuthEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return AuthData{}, fmt.Errorf("decode auth response: %w", err)
	}
	if env.Data.Access == "" || env.Data.Refresh == "" {
		return AuthData{}, ErrMalformedAuth
	}
	return env.Data, nil
}

// DecodeRefresh parses a refresh body, accepting the token set bare or wrapped in
// "data".
func DecodeRefresh(body []byte) (AuthData, error) {
	var env struct {
		AuthData
		Data *AuthData `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return AuthData{}, fmt.Errorf("decode refresh response: %w", err)
	}
	d := env.AuthData
	if env.Data != nil {
		d = *env.Data
	}
	if d.Access == "" || d.Refresh == "" {
		return AuthData{}, ErrMalformedAuth
	}
	return d, nil
}
