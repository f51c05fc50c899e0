package storefront

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/logani/storefront/internal/fakebackend"
	"github.com/logani/storefront/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSavesSession(t *testing.T) {
	fb, url := startBackend(t, fakebackend.Options{})
	fb.AddUser("Ana", testEmail, testPassword)
	store := session.NewMemoryStore()
	c := newTestClient(t, url, store)

	sess, err := c.Login(context.Background(), " "+testEmail+" ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, testEmail, sess.User.Email)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.Greater(t, sess.ExpiresAt, time.Now().Unix())

	stored, err := c.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sess, stored)
	assert.Equal(t, uint64(1), c.MetricsSnapshot().Counters[MetricLoginSuccess])
}

func TestLoginRejectedKeepsExistingSession(t *testing.T) {
	fb, url := startBackend(t, fakebackend.Options{})
	store := session.NewMemoryStore()
	seeded := seedSession(t, fb, store, time.Hour)
	c := newTestClient(t, url, store)

	_, err := c.Login(context.Background(), testEmail, "wrong-password")
	require.Error(t, err)
	assert.True(t, IsCredential(err))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "Invalid email or password.", e.Message)
	assert.Equal(t, "INVALID_CREDENTIALS", e.Code)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seeded, stored)
	assert.Equal(t, uint64(1), c.MetricsSnapshot().Counters[MetricLoginFailure])
}

func TestLoginBlankInputIsCredentialError(t *testing.T) {
	fb, url := startBackend(t, fakebackend.Options{})
	c := newTestClient(t, url, session.NewMemoryStore())

	_, err := c.Login(context.Background(), "  ", "")
	require.Error(t, err)
	assert.True(t, IsCredential(err))
	assert.Equal(t, 0, fb.Calls(http.MethodPost, DefaultLoginPath))
}

func TestLoginWithoutBaseURL(t *testing.T) {
	c := newTestClient(t, "", session.NewMemoryStore())
	_, err := c.Login(context.Background(), testEmail, testPassword)
	assert.True(t, IsConfig(err))
}

func TestRegisterDuplicateEmailMessage(t *testing.T) {
	fb, url := startBackend(t, fakebackend.Options{})
	fb.AddUser("Ana", testEmail, testPassword)
	store := session.NewMemoryStore()
	c := newTestClient(t, url, store)

	_, err := c.Register(context.Background(), "Ana Two", testEmail, testPassword)
	require.Error(t, err)
	assert.True(t, IsCredential(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "user with this email already exists.", e.Message)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, stored.IsZero())
}

func TestRegisterSavesSession(t *testing.T) {
	_, url := startBackend(t, fakebackend.Options{})
	store := session.NewMemoryStore()
	c := newTestClient(t, url, store)

	sess, err := c.Register(context.Background(), "Bia", "bia@example.com", "long-enough-pw")
	require.NoError(t, err)
	assert.Equal(t, "Bia", sess.User.Name)

	tok, err := c.EnsureFreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, tok)
}

func TestPasswordResetRoundTrip(t *testing.T) {
	fb, url := startBackend(t, fakebackend.Options{})
	fb.AddUser("Ana", testEmail, testPassword)
	c := newTestClient(t, url, session.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, c.ForgotPassword(ctx, testEmail))
	token := fb.ResetToken(testEmail)
	require.NotEmpty(t, token)

	err := c.ResetPassword(ctx, "not-a-token", "new-password-1")
	require.Error(t, err)
	assert.True(t, IsCredential(err))

	require.NoError(t, c.ResetPassword(ctx, token, "new-password-1"))
	_, err = c.Login(ctx, testEmail, "new-password-1")
	require.NoError(t, err)
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	fb, url := startBackend(t, fakebackend.Options{})
	store := session.NewMemoryStore()
	seeded := seedSession(t, fb, store, time.Hour)
	c := newTestClient(t, url, store)

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, 1, fb.Calls(http.MethodPost, DefaultLogoutPath))
	assert.Equal(t, "Bearer "+seeded.AccessToken, fb.LastHeader(DefaultLogoutPath).Get("Authorization"))

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, stored.IsZero())

	// the old refresh token is dead server-side
	require.NoError(t, store.Save(context.Background(), session.Session{
		AccessToken:  seeded.AccessToken,
		RefreshToken: seeded.RefreshToken,
		ExpiresAt:    time.Now().Unix(),
	}))
	_, err = c.EnsureFreshToken(context.Background())
	assert.True(t, IsReauthRequired(err))
}

func TestLogoutClearsWhenServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), session.Session{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}))
	c := newTestClient(t, url, store)

	require.NoError(t, c.Logout(context.Background()))
	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, stored.IsZero())

	snap := c.MetricsSnapshot()
	assert.Equal(t, uint64(1), snap.Counters[MetricLogout])
	assert.Equal(t, uint64(1), snap.Counters[MetricLogoutServerFailure])
}

func TestLogoutWithoutBaseURLClearsLocally(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), session.Session{AccessToken: "a", RefreshToken: "r"}))
	c := newTestClient(t, "", store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Logout(ctx))

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, stored.IsZero())
}

func TestSessionEventsDelivered(t *testing.T) {
	fb, url := startBackend(t, fakebackend.Options{})
	fb.AddUser("Ana", testEmail, testPassword)
	sink := NewChannelSink(16)
	c := newTestClient(t, url, session.NewMemoryStore(), func(b *Builder) {
		b.WithEventSink(sink)
	})
	ctx := context.Background()

	_, err := c.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	fb.FailRefresh(true)
	_, err = c.coordinator.Ensure(ctx, "")
	require.Error(t, err)
	require.NoError(t, c.Logout(ctx))
	require.NoError(t, c.Close())

	var types []string
	for len(sink.Events()) > 0 {
		ev := <-sink.Events()
		assert.NotEmpty(t, ev.ID)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{EventLogin, EventRefreshFailed, EventReauthRequired, EventLogout}, types)
	assert.Equal(t, uint64(0), c.EventsDropped())
}
