package expiry

import "time"

// DefaultMargin is the staleness margin applied when none is configured.
const DefaultMargin = 30 * time.Second

// IsExpired reports whether a token expiring at expiresAt (epoch seconds) must be
// refreshed at instant now. It returns true when expiresAt is zero or when
// now >= expiresAt - margin.
func IsExpired(expiresAt int64, margin time.Duration, now time.Time) bool {
	if expiresAt <= 0 {
		return true
	}
	if margin < 0 {
		margin = 0
	}
	deadline := time.Unix(expiresAt, 0).Add(-margin)
	return !now.Before(deadline)
}

// Policy binds a margin and a clock.
type Policy struct {
	Margin time.Duration
	Now    func() time.Time
}

// New returns a Policy with the given margin and the wall clock.
func New(margin time.Duration) Policy {
	return Policy{Margin: margin, Now: time.Now}
}

// Stale applies [IsExpired] with the policy's margin and clock.
func (p Policy) Stale(expiresAt int64) bool {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return IsExpired(expiresAt, p.Margin, now())
}

// Remaining returns how long until the token becomes stale, or zero if it already is.
func (p Policy) Remaining(expiresAt int64) time.Duration {
	if expiresAt <= 0 {
		return 0
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	d := time.Unix(expiresAt, 0).Add(-p.Margin).Sub(now())
	if d < 0 {
		return 0
	}
	return d
}
