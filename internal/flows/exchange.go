package flows

import (
	"context"
	"fmt"

	"github.com/logani/storefront/internal/backend"
	"github.com/logani/storefront/refresh"
	"github.com/logani/storefront/session"
)

// RefreshRejectedError is returned by the exchanger when the refresh endpoint answers
// with a non-2xx status.
type RefreshRejectedError struct {
	backend.APIError
}

func (e *RefreshRejectedError) Error() string {
	return fmt.Sprintf("refresh rejected (%d): %s", e.Status, e.Message)
}

// ExchangeDeps captures refresh exchange dependencies.
type ExchangeDeps struct {
	Transport   Poster
	RefreshPath string
}

// NewExchanger returns the refresh exchange. It posts the refresh token with no
// Authorization header through the bare transport, so it can never re-enter the
// request pipeline.
func NewExchanger(deps ExchangeDeps) refresh.ExchangeFunc {
	return func(ctx context.Context, refreshToken string) (session.Session, error) {
		reply, err := deps.Transport.PostJSON(ctx, deps.RefreshPath, "", backend.RefreshRequest{Refresh: refreshToken})
		if err != nil {
			return session.Session{}, err
		}
		if !reply.OK() {
			return session.Session{}, &RefreshRejectedError{
				APIError: backend.ParseError(reply.Status, reply.Body, "refresh token rejected"),
			}
		}
		data, err := backend.DecodeRefresh(reply.Body)
		if err != nil {
			return session.Session{}, err
		}
		return data.Session(), nil
	}
}
