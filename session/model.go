package session

// User is the identity record returned by the storefront backend on login,
// register and (optionally) refresh.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the authenticated identity bound to one client instance.
//
// AccessToken and RefreshToken are set or cleared together. ExpiresAt is in epoch
// seconds; zero means the expiry is unknown, which the expiry policy treats as stale.
type Session struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
	ExpiresAt    int64  `json:"expires_at"`
}

// IsZero reports whether s holds no credentials.
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// Authenticated reports whether s carries an access token.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// WithTokens returns a copy of s with the token triple replaced. The user is kept
// unless next carries a non-zero identity.
func (s Session) WithTokens(next Session) Session {
	out := s
	out.AccessToken = next.AccessToken
	out.RefreshToken = next.RefreshToken
	out.ExpiresAt = next.ExpiresAt
	if next.User != (User{}) {
		out.User = next.User
	}
	return out
}
