package shop

import (
	"context"
	"errors"
	"net/http"

	"github.com/logani/storefront"
)

// ErrNoCheckoutURL is returned when the payment provider accepted the checkout but
// the backend did not return a URL to send the customer to.
var ErrNoCheckoutURL = errors.New("checkout url not returned")

// Charge types and payment methods accepted by the payment provider.
const (
	ChargeDetached    = "DETACHED"
	ChargeInstallment = "INSTALLMENT"
	PaymentPix        = "PIX"
	PaymentCreditCard = "CREDIT_CARD"
)

type CheckoutCallback struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
	ExpiredURL string `json:"expiredUrl"`
}

type Installment struct {
	MaxInstallmentCount int `json:"maxInstallmentCount"`
}

// CheckoutRequest is forwarded to the payment provider, hence the camelCase names.
type CheckoutRequest struct {
	Customer          string           `json:"customer"`
	ChargeTypes       []string         `json:"chargeTypes"`
	MinutesToExpire   int              `json:"minutesToExpire"`
	Callback          CheckoutCallback `json:"callback"`
	PaymentMethods    []string         `json:"paymentMethods"`
	Installment       *Installment     `json:"installment,omitempty"`
	ExternalReference string           `json:"externalReference"`
}

type CheckoutSession struct {
	ID                string `json:"id"`
	URL               string `json:"checkout_url"`
	ExternalReference string `json:"external_reference"`
}

type Checkout struct {
	c Doer
}

// Create opens a hosted checkout and returns where to send the customer.
func (s *Checkout) Create(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	var out envelope[CheckoutSession]
	if err := s.c.DoJSON(ctx, storefront.Request{Method: http.MethodPost, Path: "/payments/checkout/", JSON: req}, &out); err != nil {
		return nil, err
	}
	if out.Data.URL == "" {
		return nil, ErrNoCheckoutURL
	}
	return &out.Data, nil
}
