package storefront

import (
	"context"
	"errors"

	"github.com/logani/storefront/internal/flows"
	"github.com/logani/storefront/session"
)

// Login exchanges credentials for a session and stores it. On failure the stored
// session is left untouched and the error is KindCredential with a message fit for
// display.
func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	if c.closed.Load() {
		return session.Session{}, &Error{Kind: KindConfig, Op: "login", Message: "client closed", Err: ErrClosed}
	}
	res := c.flows.Login(ctx, email, password)
	if res.Failure != flows.AuthFailureNone {
		c.metrics.Inc(MetricLoginFailure)
		err := authError("login", res, flows.LoginFailedMessage)
		c.emit(ctx, EventLogin, 0, err, nil)
		return session.Session{}, err
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.emit(ctx, EventLogin, res.Session.User.ID, nil, nil)
	c.log.Debug().Int64("user_id", res.Session.User.ID).Msg("login succeeded")
	return res.Session, nil
}

// Register creates an account and stores the returned session, with the same error
// contract as Login.
func (c *Client) Register(ctx context.Context, name, email, password string) (session.Session, error) {
	if c.closed.Load() {
		return session.Session{}, &Error{Kind: KindConfig, Op: "register", Message: "client closed", Err: ErrClosed}
	}
	res := c.flows.Register(ctx, name, email, password)
	if res.Failure != flows.AuthFailureNone {
		c.metrics.Inc(MetricRegisterFailure)
		err := authError("register", res, flows.RegisterFailedMessage)
		c.emit(ctx, EventRegister, 0, err, nil)
		return session.Session{}, err
	}

	c.metrics.Inc(MetricRegisterSuccess)
	c.emit(ctx, EventRegister, res.Session.User.ID, nil, nil)
	return res.Session, nil
}

// ForgotPassword asks the backend to mail a reset link. The session is not involved.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	res := c.flows.ForgotPassword(ctx, email)
	if res.Failure != flows.AuthFailureNone {
		return authError("forgot password", res, flows.ForgotPasswordFailedMessage)
	}
	return nil
}

// ResetPassword sets a new password with the token from a reset link.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	res := c.flows.ResetPassword(ctx, token, newPassword)
	if res.Failure != flows.AuthFailureNone {
		return authError("reset password", res, flows.ResetPasswordFailedMessage)
	}
	return nil
}

// Logout invalidates the refresh token on the server when it can and always clears
// the local session, then runs the OnLogout functions. Server failures are logged and
// never returned; the only errors are failures to clear local state.
func (c *Client) Logout(ctx context.Context) error {
	res := c.flows.Logout(ctx)
	if res.ServerErr != nil {
		c.metrics.Inc(MetricLogoutServerFailure)
	}
	c.metrics.Inc(MetricLogout)

	clearErr := res.ClearErr
	c.logoutMu.Lock()
	hooks := append([]func(context.Context) error(nil), c.logoutHooks...)
	c.logoutMu.Unlock()
	for _, fn := range hooks {
		if err := fn(ctx); err != nil {
			c.log.Warn().Err(err).Msg("clear local state on logout")
			clearErr = errors.Join(clearErr, err)
		}
	}

	meta := map[string]string{"server_attempted": "false"}
	if res.Attempted {
		meta["server_attempted"] = "true"
	}
	c.emit(ctx, EventLogout, res.User.ID, clearErr, meta)

	if clearErr != nil {
		return &Error{Kind: KindStore, Op: "logout", Message: "could not clear the session", Err: clearErr}
	}
	return nil
}

// OnLogout registers fn to run on every Logout, after the session is cleared and
// whether or not the server was reached. Use it for state derived from the session,
// such as a cached customer profile.
func (c *Client) OnLogout(fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	c.logoutMu.Lock()
	c.logoutHooks = append(c.logoutHooks, fn)
	c.logoutMu.Unlock()
}

func authError(op string, res flows.AuthResult, fallback string) *Error {
	switch res.Failure {
	case flows.AuthFailureConfig:
		return configError(op)
	case flows.AuthFailureInvalidInput:
		return &Error{Kind: KindCredential, Op: op, Message: res.Err.Error(), Err: res.Err}
	case flows.AuthFailureRejected:
		return &Error{
			Kind:    KindCredential,
			Op:      op,
			Status:  res.APIError.Status,
			Code:    res.APIError.Code,
			Message: res.APIError.Message,
			Err:     res.Err,
		}
	case flows.AuthFailureTransport:
		return &Error{Kind: KindTransient, Op: op, Message: fallback, Err: res.Err}
	case flows.AuthFailureMalformed:
		return &Error{Kind: KindServer, Op: op, Message: fallback, Err: res.Err}
	case flows.AuthFailureStore:
		return &Error{Kind: KindStore, Op: op, Message: "could not save the session", Err: res.Err}
	default:
		err := res.Err
		if err == nil {
			err = errors.New(fallback)
		}
		return &Error{Kind: KindUnknown, Op: op, Message: fallback, Err: err}
	}
}
