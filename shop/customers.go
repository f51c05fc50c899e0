package shop

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/logani/storefront"
)

// ErrCustomerNotFound means the logged-in user has no customer profile yet.
var ErrCustomerNotFound = errors.New("customer not found")

// Customer is the billing profile attached to a user account.
type Customer struct {
	LocalID     string  `json:"local_id"`
	PaymentID   string  `json:"asaas_id"`
	Name        string  `json:"name"`
	CPF         string  `json:"cpf"`
	MobilePhone string  `json:"mobile_phone"`
	Address     Address `json:"address"`
	// Gateway is the payment gateway's copy of the record. Create responses carry
	// the address only here.
	Gateway *GatewayCustomer `json:"asaas_response,omitempty"`
}

// GatewayCustomer is the customer as the payment gateway echoes it.
type GatewayCustomer struct {
	ID            string `json:"id"`
	PostalCode    string `json:"postalCode"`
	AddressNumber string `json:"addressNumber"`
	Address       string `json:"address"`
	Complement    string `json:"complement"`
	Province      string `json:"province"`
	CityName      string `json:"cityName"`
	State         string `json:"state"`
}

func (g GatewayCustomer) toAddress() Address {
	return Address{
		PostalCode: g.PostalCode,
		Number:     g.AddressNumber,
		Street:     g.Address,
		City:       g.CityName,
		State:      g.State,
		Complement: g.Complement,
		Province:   g.Province,
	}
}

type CreateCustomerRequest struct {
	Name        string  `json:"name"`
	CPF         string  `json:"cpf"`
	MobilePhone string  `json:"mobile_phone"`
	Address     Address `json:"address"`
}

// UpdateCustomerRequest patches the profile. Nil and empty fields are left alone.
type UpdateCustomerRequest struct {
	MobilePhone string   `json:"mobile_phone,omitempty"`
	Address     *Address `json:"address,omitempty"`
}

type Customers struct {
	c        Doer
	profiles ProfileStore
}

// Get returns the profile of the logged-in user, or ErrCustomerNotFound when there
// is none.
func (s *Customers) Get(ctx context.Context) (*Customer, error) {
	var out envelope[struct {
		Client Customer `json:"client"`
	}]
	err := s.c.DoJSON(ctx, storefront.Request{
		Method: http.MethodGet,
		Path:   "/clients/client-by-bearer-token",
	}, &out)
	if err != nil {
		var e *storefront.Error
		if errors.As(err, &e) && e.Kind == storefront.KindServer &&
			(e.Status == http.StatusNotFound || e.Code == "NOT_FOUND") {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return s.remember(ctx, out.Data.Client)
}

// Profile returns the cached profile, fetching and caching it on a miss. Without a
// ProfileStore it always fetches.
func (s *Customers) Profile(ctx context.Context) (Profile, error) {
	if s.profiles != nil {
		p, err := s.profiles.Load(ctx)
		if err != nil {
			return Profile{}, err
		}
		if !p.IsZero() {
			return p, nil
		}
	}
	c, err := s.Get(ctx)
	if err != nil {
		return Profile{}, err
	}
	return profileOf(*c), nil
}

// Create registers the billing profile. The postal code is normalized first.
func (s *Customers) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	req.Address = req.Address.Normalized()
	var out envelope[Customer]
	if err := s.c.DoJSON(ctx, storefront.Request{Method: http.MethodPost, Path: "/clients/", JSON: req}, &out); err != nil {
		return nil, err
	}
	created := out.Data
	if created.Address == (Address{}) && created.Gateway != nil {
		created.Address = created.Gateway.toAddress().Normalized()
	}
	if created.CPF == "" {
		created.CPF = req.CPF
	}
	return s.remember(ctx, created)
}

func (s *Customers) Update(ctx context.Context, req UpdateCustomerRequest) (*Customer, error) {
	if req.Address != nil {
		a := req.Address.Normalized()
		req.Address = &a
	}
	var out envelope[Customer]
	if err := s.c.DoJSON(ctx, storefront.Request{Method: http.MethodPatch, Path: "/clients/", JSON: req}, &out); err != nil {
		return nil, err
	}
	return s.remember(ctx, out.Data)
}

func (s *Customers) remember(ctx context.Context, c Customer) (*Customer, error) {
	if s.profiles != nil {
		if err := s.profiles.Save(ctx, profileOf(c)); err != nil {
			return nil, fmt.Errorf("cache customer profile: %w", err)
		}
	}
	return &c, nil
}
