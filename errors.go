package storefront

import (
	"errors"
	"fmt"

	"github.com/logani/storefront/internal/backend"
	"github.com/logani/storefront/refresh"
)

var (
	// ErrReauthRequired means the session could not be renewed and has been cleared.
	// The user must log in again.
	ErrReauthRequired = refresh.ErrReauthRequired
	// ErrNotConfigured means the client has no backend base URL.
	ErrNotConfigured = backend.ErrNoBaseURL
	// ErrNotAuthenticated means no session is stored.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrClosed is returned by calls on a closed Client.
	ErrClosed = errors.New("client closed")
)

// Kind classifies a failure so callers can decide what to show the user.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindConfig: the client is misconfigured. No network I/O was attempted.
	KindConfig
	// KindCredential: login, registration or a password reset was rejected.
	KindCredential
	// KindReauth: the session is gone and the user must log in again.
	KindReauth
	// KindTransient: network or transport failure unrelated to auth.
	KindTransient
	// KindServer: the backend answered with a non-2xx status.
	KindServer
	// KindStore: the session store could not be read or written.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindCredential:
		return "credential"
	case KindReauth:
		return "reauth"
	case KindTransient:
		return "transient"
	case KindServer:
		return "server"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is the error type returned by Client methods.
//
// Message is suitable for display. For KindCredential and KindServer it comes from
// the backend's error body when one was present.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("storefront: %s: %s (status %d)", e.Op, msg, e.Status)
	}
	return fmt.Sprintf("storefront: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsReauthRequired reports whether err means the user must log in again.
func IsReauthRequired(err error) bool {
	return errors.Is(err, ErrReauthRequired) || KindOf(err) == KindReauth
}

// IsConfig reports whether err is a configuration failure.
func IsConfig(err error) bool {
	return KindOf(err) == KindConfig
}

// IsCredential reports whether err is a rejected login, registration or reset.
func IsCredential(err error) bool {
	return KindOf(err) == KindCredential
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

func configError(op string) *Error {
	return &Error{Kind: KindConfig, Op: op, Message: "API base URL is not configured", Err: ErrNotConfigured}
}

func reauthError(op string, err error) *Error {
	return &Error{Kind: KindReauth, Op: op, Message: "session expired, please log in again", Err: err}
}
