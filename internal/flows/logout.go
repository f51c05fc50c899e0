package flows

import (
	"context"
	"fmt"

	"github.com/logani/storefront/internal/backend"
	"github.com/logani/storefront/session"
)

// LogoutStore reads and clears the session.
type LogoutStore interface {
	Load(ctx context.Context) (session.Session, error)
	Clear(ctx context.Context) error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Configured func() bool
	Sessions   LogoutStore
	Transport  Poster
	LogoutPath string
	Warn       func(msg string, err error)
}

// LogoutResult reports what happened. ServerErr is informational; callers never
// surface it.
type LogoutResult struct {
	User      session.User
	Attempted bool
	ServerErr error
	ClearErr  error
}

// RunLogout invalidates the refresh token on the server when possible and always
// clears the local session afterwards. The server call uses the bare transport with
// the current bearer, so an expired access token does not trigger a refresh just to
// log out.
func RunLogout(ctx context.Context, deps LogoutDeps) LogoutResult {
	var res LogoutResult

	sess, err := deps.Sessions.Load(ctx)
	if err != nil {
		warn(deps, "load session before logout", err)
	}
	res.User = sess.User

	configured := deps.Configured == nil || deps.Configured()
	if configured && sess.RefreshToken != "" {
		res.Attempted = true
		reply, err := deps.Transport.PostJSON(ctx, deps.LogoutPath, sess.AccessToken, backend.RefreshRequest{Refresh: sess.RefreshToken})
		switch {
		case err != nil:
			res.ServerErr = err
		case !reply.OK():
			res.ServerErr = fmt.Errorf("logout rejected with status %d", reply.Status)
		}
		if res.ServerErr != nil {
			warn(deps, "server logout failed", res.ServerErr)
		}
	}

	if err := deps.Sessions.Clear(context.WithoutCancel(ctx)); err != nil {
		res.ClearErr = err
		warn(deps, "clear session on logout", err)
	}
	return res
}

func warn(deps LogoutDeps, msg string, err error) {
	if deps.Warn != nil {
		deps.Warn(msg, err)
	}
}
