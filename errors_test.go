package storefront

import (
	"errors"
	"fmt"
	"testing"

	"github.com/logani/storefront/refresh"
	"github.com/stretchr/testify/assert"
)

func TestErrorKindHelpers(t *testing.T) {
	reauth := reauthError("do", fmt.Errorf("%w: boom", refresh.ErrReauthRequired))
	assert.True(t, IsReauthRequired(reauth))
	assert.ErrorIs(t, reauth, ErrReauthRequired)

	wrapped := fmt.Errorf("checkout: %w", configError("do"))
	assert.True(t, IsConfig(wrapped))
	assert.Equal(t, KindConfig, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, ErrNotConfigured)

	plain := errors.New("plain")
	assert.Equal(t, KindUnknown, KindOf(plain))
	assert.Zero(t, StatusOf(plain))
}

func TestErrorMessage(t *testing.T) {
	e := &Error{Kind: KindServer, Op: "GET /orders/", Status: 500, Message: "boom"}
	assert.Equal(t, "storefront: GET /orders/: boom (status 500)", e.Error())

	e = &Error{Kind: KindTransient, Op: "do", Err: errors.New("dial tcp: refused")}
	assert.Equal(t, "storefront: do: dial tcp: refused", e.Error())
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{
		KindUnknown:    "unknown",
		KindConfig:     "config",
		KindCredential: "credential",
		KindReauth:     "reauth",
		KindTransient:  "transient",
		KindServer:     "server",
		KindStore:      "store",
	} {
		assert.Equal(t, want, k.String(), "Kind(%d)", k)
	}
}
