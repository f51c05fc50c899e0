package shop

import (
	"context"

	"github.com/logani/storefront"
)

// Doer issues JSON calls through the authenticated pipeline. *storefront.Client
// implements it.
type Doer interface {
	DoJSON(ctx context.Context, req storefront.Request, out any) error
}

// LogoutNotifier runs a function whenever the session is logged out.
// *storefront.Client implements it.
type LogoutNotifier interface {
	OnLogout(fn func(ctx context.Context) error)
}

// Shop groups the business APIs over one client.
type Shop struct {
	Customers *Customers
	Orders    *Orders
	Shipping  *Shipping
	Checkout  *Checkout
}

// Option configures New.
type Option func(*options)

type options struct {
	profiles ProfileStore
}

// WithProfileStore caches the customer profile in ps. When the Doer is also a
// LogoutNotifier the cache is cleared on every logout.
func WithProfileStore(ps ProfileStore) Option {
	return func(o *options) { o.profiles = ps }
}

// New returns the business APIs bound to c.
func New(c Doer, opts ...Option) *Shop {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.profiles != nil {
		if n, ok := c.(LogoutNotifier); ok {
			n.OnLogout(o.profiles.Clear)
		}
	}
	return &Shop{
		Customers: &Customers{c: c, profiles: o.profiles},
		Orders:    &Orders{c: c},
		Shipping:  &Shipping{c: c},
		Checkout:  &Checkout{c: c},
	}
}

type envelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}
