package shop

import (
	"context"
	"net/http"
	"net/url"

	"github.com/logani/storefront"
)

// Order statuses used by the storefront.
const (
	OrderPending = "PENDING"
	OrderPaid    = "PAID"
)

type OrderItem struct {
	ProductID  int64   `json:"product_id"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

type Order struct {
	ID                string      `json:"order_id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
	Items             []OrderItem `json:"items"`
}

// Subtotal sums the item totals.
func (o Order) Subtotal() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.TotalPrice
	}
	return sum
}

type Orders struct {
	c Doer
}

// Mine lists the logged-in user's orders, filtered by status unless status is empty.
func (s *Orders) Mine(ctx context.Context, status string) ([]Order, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": {status}}
	}
	var out envelope[struct {
		Orders []Order `json:"orders"`
	}]
	if err := s.c.DoJSON(ctx, storefront.Request{Method: http.MethodGet, Path: "/orders/my-orders/", Query: q}, &out); err != nil {
		return nil, err
	}
	return out.Data.Orders, nil
}

// AddShipping attaches the chosen shipping option to an order.
func (s *Orders) AddShipping(ctx context.Context, orderID string, req AddShippingRequest) error {
	return s.c.DoJSON(ctx, storefront.Request{
		Method: http.MethodPost,
		Path:   "/orders/" + url.PathEscape(orderID) + "/shipping/",
		JSON:   req,
	}, nil)
}
