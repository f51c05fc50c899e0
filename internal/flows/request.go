package flows

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/logani/storefront/internal/backend"
	"github.com/logani/storefront/refresh"
)

// RequestFailureKind classifies request pipeline failures for root-level mapping.
type RequestFailureKind int

const (
	RequestFailureNone RequestFailureKind = iota
	RequestFailureConfig
	RequestFailureStore
	RequestFailureReauth
	RequestFailureTransport
)

// RequestResult carries the response or failure metadata. A non-2xx reply is not a
// failure.
type RequestResult struct {
	Failure   RequestFailureKind
	Err       error
	Reply     backend.Reply
	Refreshed bool
	Retried   bool
}

// RequestDeps captures request pipeline dependencies.
type RequestDeps struct {
	Configured  func() bool
	Sessions    SessionLoader
	Stale       func(expiresAt int64) bool
	Refresher   TokenRefresher
	Transport   Sender
	RefreshPath string
	OnSend      func()
	OnRetry     func()
}

// RunRequest sends c with a usable bearer token.
//
// A stale stored token is refreshed before sending; the call is never issued with a
// token known to be stale. A 401 to an authenticated call triggers one refresh keyed
// on the token that was sent, and the call is rebuilt from its retained body and
// reissued exactly once. Calls to the refresh endpoint are never retried.
func RunRequest(ctx context.Context, c backend.Call, deps RequestDeps) RequestResult {
	if deps.Configured != nil && !deps.Configured() {
		return RequestResult{Failure: RequestFailureConfig, Err: backend.ErrNoBaseURL}
	}

	sess, err := deps.Sessions.Load(ctx)
	if err != nil {
		return RequestResult{Failure: RequestFailureStore, Err: err}
	}

	var out RequestResult
	token := sess.AccessToken
	if token != "" && deps.Stale(sess.ExpiresAt) {
		token, err = deps.Refresher.Ensure(ctx, token)
		if err != nil {
			return refreshFailure(err)
		}
		out.Refreshed = true
	}

	if c.RequestID == "" {
		c.RequestID = uuid.NewString()
	}
	c.Bearer = token

	reply, err := send(ctx, c, deps)
	if err != nil {
		out.Failure, out.Err = RequestFailureTransport, err
		return out
	}
	out.Reply = reply

	if reply.Status != http.StatusUnauthorized || token == "" || isPath(c.Path, deps.RefreshPath) {
		return out
	}

	next, err := deps.Refresher.Ensure(ctx, token)
	if err != nil {
		res := refreshFailure(err)
		res.Reply = reply
		return res
	}
	out.Refreshed = true
	out.Retried = true
	if deps.OnRetry != nil {
		deps.OnRetry()
	}

	c.Bearer = next
	reply, err = send(ctx, c, deps)
	if err != nil {
		out.Failure, out.Err = RequestFailureTransport, err
		out.Reply = backend.Reply{}
		return out
	}
	out.Reply = reply
	return out
}

func send(ctx context.Context, c backend.Call, deps RequestDeps) (backend.Reply, error) {
	if deps.OnSend != nil {
		deps.OnSend()
	}
	return deps.Transport.Send(ctx, c)
}

func refreshFailure(err error) RequestResult {
	if errors.Is(err, refresh.ErrReauthRequired) {
		return RequestResult{Failure: RequestFailureReauth, Err: err}
	}
	// a waiter whose ctx ended
	return RequestResult{Failure: RequestFailureTransport, Err: err}
}

func isPath(path, target string) bool {
	if target == "" {
		return false
	}
	return strings.Trim(path, "/") == strings.Trim(target, "/")
}
