package flows

import (
	"context"

	"github.com/logani/storefront/internal/backend"
	"github.com/logani/storefront/refresh"
)

// Service is the centralized flow runner built once by the root Client.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Request.Transport != nil && s.deps.Auth.Transport != nil
}

func (s Service) Request(ctx context.Context, c backend.Call) RequestResult {
	return RunRequest(ctx, c, s.deps.Request)
}

func (s Service) Login(ctx context.Context, email, password string) AuthResult {
	return RunLogin(ctx, email, password, s.deps.Auth)
}

func (s Service) Register(ctx context.Context, name, email, password string) AuthResult {
	return RunRegister(ctx, name, email, password, s.deps.Auth)
}

func (s Service) ForgotPassword(ctx context.Context, email string) AuthResult {
	return RunForgotPassword(ctx, email, s.deps.Auth)
}

func (s Service) ResetPassword(ctx context.Context, token, password string) AuthResult {
	return RunResetPassword(ctx, token, password, s.deps.Auth)
}

func (s Service) Logout(ctx context.Context) LogoutResult {
	return RunLogout(ctx, s.deps.Logout)
}

// Exchanger returns the refresh exchange bound to the backend transport.
func (s Service) Exchanger() refresh.Exchanger {
	return NewExchanger(s.deps.Exchange)
}
