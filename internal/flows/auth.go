package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/logani/storefront/internal/backend"
	"github.com/logani/storefront/session"
)

// AuthFailureKind classifies login/register/password-reset failures.
type AuthFailureKind int

const (
	AuthFailureNone AuthFailureKind = iota
	AuthFailureConfig
	AuthFailureInvalidInput
	AuthFailureTransport
	AuthFailureRejected
	AuthFailureMalformed
	AuthFailureStore
)

// Fallback messages used when the backend's error body carries none.
const (
	LoginFailedMessage          = "Login failed. Please try again."
	RegisterFailedMessage       = "Registration failed. Please try again."
	ForgotPasswordFailedMessage = "Could not request a password reset. Please try again."
	ResetPasswordFailedMessage  = "Could not reset the password. Please try again."
)

// AuthResult carries the saved session or failure metadata.
type AuthResult struct {
	Failure  AuthFailureKind
	Err      error
	APIError backend.APIError
	Session  session.Session
}

// SessionSaver persists a session.
type SessionSaver interface {
	Save(ctx context.Context, s session.Session) error
}

// AuthDeps captures login, register and password-reset dependencies.
type AuthDeps struct {
	Configured         func() bool
	Transport          Poster
	Sessions           SessionSaver
	LoginPath          string
	RegisterPath       string
	ForgotPasswordPath string
	ResetPasswordPath  string
}

// RunLogin exchanges credentials for a session and saves it. The store is untouched
// on failure.
func RunLogin(ctx context.Context, email, password string, deps AuthDeps) AuthResult {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return AuthResult{Failure: AuthFailureInvalidInput, Err: errors.New("email and password required")}
	}
	return runSessionCall(ctx, deps, deps.LoginPath, backend.LoginRequest{Email: email, Password: password}, LoginFailedMessage)
}

// RunRegister creates an account and saves the returned session.
func RunRegister(ctx context.Context, name, email, password string, deps AuthDeps) AuthResult {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return AuthResult{Failure: AuthFailureInvalidInput, Err: errors.New("name, email and password required")}
	}
	return runSessionCall(ctx, deps, deps.RegisterPath, backend.RegisterRequest{Name: name, Email: email, Password: password}, RegisterFailedMessage)
}

// RunForgotPassword asks the backend to send a reset link. No session is involved.
func RunForgotPassword(ctx context.Context, email string, deps AuthDeps) AuthResult {
	email = strings.TrimSpace(email)
	if email == "" {
		return AuthResult{Failure: AuthFailureInvalidInput, Err: errors.New("email required")}
	}
	return runPlainCall(ctx, deps, deps.ForgotPasswordPath, backend.ForgotPasswordRequest{Email: email}, ForgotPasswordFailedMessage)
}

// RunResetPassword sets a new password using a reset token.
func RunResetPassword(ctx context.Context, token, password string, deps AuthDeps) AuthResult {
	if strings.TrimSpace(token) == "" || password == "" {
		return AuthResult{Failure: AuthFailureInvalidInput, Err: errors.New("reset token and password required")}
	}
	return runPlainCall(ctx, deps, deps.ResetPasswordPath, backend.ResetPasswordRequest{Token: token, Password: password}, ResetPasswordFailedMessage)
}

func runSessionCall(ctx context.Context, deps AuthDeps, path string, in any, fallback string) AuthResult {
	reply, res, ok := post(ctx, deps, path, in, fallback)
	if !ok {
		return res
	}

	data, err := backend.DecodeAuth(reply.Body)
	if err != nil {
		return AuthResult{Failure: AuthFailureMalformed, Err: err}
	}
	sess := data.Session()
	if err := deps.Sessions.Save(ctx, sess); err != nil {
		return AuthResult{Failure: AuthFailureStore, Err: err}
	}
	return AuthResult{Session: sess}
}

func runPlainCall(ctx context.Context, deps AuthDeps, path string, in any, fallback string) AuthResult {
	_, res, _ := post(ctx, deps, path, in, fallback)
	return res
}

func post(ctx context.Context, deps AuthDeps, path string, in any, fallback string) (backend.Reply, AuthResult, bool) {
	if deps.Configured != nil && !deps.Configured() {
		return backend.Reply{}, AuthResult{Failure: AuthFailureConfig, Err: backend.ErrNoBaseURL}, false
	}
	reply, err := deps.Transport.PostJSON(ctx, path, "", in)
	if err != nil {
		return backend.Reply{}, AuthResult{Failure: AuthFailureTransport, Err: err}, false
	}
	if !reply.OK() {
		apiErr := backend.ParseError(reply.Status, reply.Body, fallback)
		return reply, AuthResult{Failure: AuthFailureRejected, Err: errors.New(apiErr.Message), APIError: apiErr}, false
	}
	return reply, AuthResult{}, true
}
