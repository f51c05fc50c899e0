package flows

import (
	"context"

	"github.com/logani/storefront/internal/backend"
	"github.com/logani/storefront/session"
)

// Deps groups flow dependency sets. The root Client builds this once and delegates
// its methods to the matching flow implementation.
type Deps struct {
	Request  RequestDeps
	Auth     AuthDeps
	Logout   LogoutDeps
	Exchange ExchangeDeps
}

// Sender issues a fully described call.
type Sender interface {
	Send(ctx context.Context, c backend.Call) (backend.Reply, error)
}

// Poster issues a JSON POST.
type Poster interface {
	PostJSON(ctx context.Context, path, bearer string, in any) (backend.Reply, error)
}

// SessionLoader reads the current session.
type SessionLoader interface {
	Load(ctx context.Context) (session.Session, error)
}

// TokenRefresher returns a fresh access token, exchanging the refresh token if needed.
type TokenRefresher interface {
	Ensure(ctx context.Context, observed string) (string, error)
}
