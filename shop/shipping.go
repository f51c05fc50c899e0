package shop

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/logani/storefront"
)

// ErrInvalidPostalCode is returned before any request when the postal code does not
// have 8 digits.
var ErrInvalidPostalCode = errors.New("postal code must have 8 digits")

type ShippingCompany struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Quote is one shipping option. Price and CustomPrice arrive as decimal strings;
// FinalPrice is what the customer pays.
type Quote struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Price              string          `json:"price"`
	CustomPrice        string          `json:"custom_price"`
	DeliveryTime       int             `json:"delivery_time"`
	CustomDeliveryTime int             `json:"custom_delivery_time"`
	Currency           string          `json:"currency"`
	Company            ShippingCompany `json:"company"`
	FinalPrice         float64         `json:"final_price"`
}

type CalculateShippingRequest struct {
	ToPostalCode string `json:"to_postal_code"`
	OrderID      string `json:"order_id"`
}

type AddShippingRequest struct {
	ServiceID          int64           `json:"service_id"`
	ServiceName        string          `json:"service_name"`
	Price              float64         `json:"price"`
	CustomPrice        float64         `json:"custom_price"`
	DeliveryTime       int             `json:"delivery_time"`
	CustomDeliveryTime int             `json:"custom_delivery_time"`
	Currency           string          `json:"currency"`
	Company            ShippingCompany `json:"company"`
}

type Shipping struct {
	c Doer
}

// Calculate quotes shipping for an order to a postal code.
func (s *Shipping) Calculate(ctx context.Context, req CalculateShippingRequest) ([]Quote, error) {
	req.ToPostalCode = NormalizePostalCode(req.ToPostalCode)
	if len(req.ToPostalCode) != 8 {
		return nil, ErrInvalidPostalCode
	}
	var out struct {
		Quotes []Quote `json:"quotes"`
	}
	if err := s.c.DoJSON(ctx, storefront.Request{Method: http.MethodPost, Path: "/shipping/calculate/", JSON: req}, &out); err != nil {
		return nil, err
	}
	return out.Quotes, nil
}

// Cheapest returns the quote with the lowest FinalPrice. The first one wins a tie.
func Cheapest(quotes []Quote) (Quote, bool) {
	if len(quotes) == 0 {
		return Quote{}, false
	}
	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.FinalPrice < best.FinalPrice {
			best = q
		}
	}
	return best, true
}

// ShippingFromQuote converts a chosen quote into the body of Orders.AddShipping.
func ShippingFromQuote(q Quote) (AddShippingRequest, error) {
	price, err := strconv.ParseFloat(q.Price, 64)
	if err != nil {
		return AddShippingRequest{}, fmt.Errorf("quote %d price: %w", q.ID, err)
	}
	custom, err := strconv.ParseFloat(q.CustomPrice, 64)
	if err != nil {
		return AddShippingRequest{}, fmt.Errorf("quote %d custom price: %w", q.ID, err)
	}
	return AddShippingRequest{
		ServiceID:          q.ID,
		ServiceName:        q.Name,
		Price:              price,
		CustomPrice:        custom,
		DeliveryTime:       q.DeliveryTime,
		CustomDeliveryTime: q.CustomDeliveryTime,
		Currency:           q.Currency,
		Company:            q.Company,
	}, nil
}
