package storefront

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// TokenSource adapts the client to [oauth2.TokenSource] for libraries that take one.
// Each Token call goes through EnsureFreshToken with ctx, so concurrent callers share
// a single refresh.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, c: c}
}

type tokenSource struct {
	ctx context.Context
	c   *Client
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	access, err := ts.c.EnsureFreshToken(ts.ctx)
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	sess, err := ts.c.store.Load(ts.ctx)
	if err == nil && sess.AccessToken == access && sess.ExpiresAt > 0 {
		tok.Expiry = time.Unix(sess.ExpiresAt, 0).Add(-ts.c.policy.Margin)
	}
	return tok, nil
}
