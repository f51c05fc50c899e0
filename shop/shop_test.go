package shop_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/logani/storefront"
	"github.com/logani/storefront/internal/fakebackend"
	"github.com/logani/storefront/session"
	"github.com/logani/storefront/shop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	fb     *fakebackend.Backend
	srv    *httptest.Server
	client *storefront.Client
	shop   *shop.Shop
	userID int64
}

func setup(t *testing.T, opts ...shop.Option) fixture {
	t.Helper()
	fb, err := fakebackend.New(fakebackend.Options{})
	require.NoError(t, err)
	srv := fb.Start()
	t.Cleanup(srv.Close)

	u := fb.AddUser("Ana", "ana@example.com", "correct-horse-battery")
	c, err := storefront.New().WithBaseURL(srv.URL).WithStore(session.NewMemoryStore()).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Login(context.Background(), "ana@example.com", "correct-horse-battery")
	require.NoError(t, err)
	return fixture{fb: fb, srv: srv, client: c, shop: shop.New(c, opts...), userID: u.ID}
}

func TestCustomerLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.shop.Customers.Get(ctx)
	require.ErrorIs(t, err, shop.ErrCustomerNotFound)

	created, err := f.shop.Customers.Create(ctx, shop.CreateCustomerRequest{
		Name:        "Ana",
		CPF:         "12345678909",
		MobilePhone: "11999990000",
		Address:     shop.Address{PostalCode: "01310-100", Number: "1000", Street: "Av. Paulista", City: "Sao Paulo", State: "SP"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.PaymentID)
	assert.Equal(t, "01310100", created.Address.PostalCode)

	got, err := f.shop.Customers.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.LocalID, got.LocalID)

	moved := shop.Address{PostalCode: "20040-002", Number: "50", Street: "Rua da Quitanda", City: "Rio de Janeiro", State: "RJ"}
	require.True(t, got.Address.Differs(moved.Normalized()))
	updated, err := f.shop.Customers.Update(ctx, shop.UpdateCustomerRequest{Address: &moved})
	require.NoError(t, err)
	assert.Equal(t, "20040002", updated.Address.PostalCode)
	assert.Equal(t, "11999990000", updated.MobilePhone)
}

func TestCustomerCreateValidationMessage(t *testing.T) {
	f := setup(t)
	_, err := f.shop.Customers.Create(context.Background(), shop.CreateCustomerRequest{Name: "Ana"})
	require.Error(t, err)

	var e *storefront.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, storefront.KindServer, e.Kind)
	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Equal(t, "CPF is required.", e.Message)
}

func TestCheckoutFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fb.AddOrder(f.userID, "ord-1", shop.OrderPending,
		fakebackend.OrderItem{ProductID: 1, Name: "Linen shirt", Quantity: 2, UnitPrice: 129.9})
	f.fb.AddOrder(f.userID, "ord-0", shop.OrderPaid)

	orders, err := f.shop.Orders.Mine(ctx, shop.OrderPending)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	order := orders[0]
	assert.Equal(t, "ord-1", order.ID)
	assert.InDelta(t, 259.8, order.Subtotal(), 0.001)

	quotes, err := f.shop.Shipping.Calculate(ctx, shop.CalculateShippingRequest{ToPostalCode: "01310-100", OrderID: order.ID})
	require.NoError(t, err)
	best, ok := shop.Cheapest(quotes)
	require.True(t, ok)
	assert.Equal(t, "PAC", best.Name)

	body, err := shop.ShippingFromQuote(best)
	require.NoError(t, err)
	assert.InDelta(t, 24.90, body.Price, 0.001)
	require.NoError(t, f.shop.Orders.AddShipping(ctx, order.ID, body))
	assert.Equal(t, "PAC", f.fb.Shipping(order.ID)["service_name"])

	sess, err := f.shop.Checkout.Create(ctx, shop.CheckoutRequest{
		Customer:          "cus_123",
		ChargeTypes:       []string{shop.ChargeDetached, shop.ChargeInstallment},
		MinutesToExpire:   60,
		PaymentMethods:    []string{shop.PaymentPix, shop.PaymentCreditCard},
		Installment:       &shop.Installment{MaxInstallmentCount: 5},
		ExternalReference: order.ExternalReference,
	})
	require.NoError(t, err)
	assert.Contains(t, sess.URL, "https://")
	assert.Equal(t, order.ExternalReference, sess.ExternalReference)
}

func TestAddShippingToUnknownOrder(t *testing.T) {
	f := setup(t)
	err := f.shop.Orders.AddShipping(context.Background(), "nope", shop.AddShippingRequest{ServiceID: 1})
	assert.Equal(t, http.StatusNotFound, storefront.StatusOf(err))
}

func TestCheckoutWithoutURL(t *testing.T) {
	f := setup(t)
	f.fb.OmitCheckoutURL(true)
	_, err := f.shop.Checkout.Create(context.Background(), shop.CheckoutRequest{Customer: "cus_123"})
	assert.ErrorIs(t, err, shop.ErrNoCheckoutURL)
}

func TestShippingRejectsShortPostalCode(t *testing.T) {
	f := setup(t)
	_, err := f.shop.Shipping.Calculate(context.Background(), shop.CalculateShippingRequest{ToPostalCode: "123-45"})
	assert.ErrorIs(t, err, shop.ErrInvalidPostalCode)
	assert.Equal(t, 0, f.fb.Calls(http.MethodPost, "/shipping/calculate/"))
}

func TestBusinessCallsSurviveTokenRevocation(t *testing.T) {
	f := setup(t)
	sess, err := f.client.Session(context.Background())
	require.NoError(t, err)
	f.fb.RevokeAccess(sess.AccessToken)

	orders, err := f.shop.Orders.Mine(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, 1, f.fb.RefreshCalls())
}

func TestBusinessCallAfterSessionLossIsReauth(t *testing.T) {
	f := setup(t)
	sess, err := f.client.Session(context.Background())
	require.NoError(t, err)
	f.fb.RevokeAccess(sess.AccessToken)
	f.fb.RevokeRefresh(sess.RefreshToken)

	_, err = f.shop.Customers.Get(context.Background())
	assert.True(t, storefront.IsReauthRequired(err))
}

func TestCheapestEmpty(t *testing.T) {
	_, ok := shop.Cheapest(nil)
	assert.False(t, ok)
}

func TestShippingFromQuoteBadPrice(t *testing.T) {
	_, err := shop.ShippingFromQuote(shop.Quote{ID: 3, Price: "R$ 10", CustomPrice: "9"})
	assert.Error(t, err)
}

func TestAddressHelpers(t *testing.T) {
	assert.Equal(t, "01310100", shop.NormalizePostalCode(" 01310-100 "))
	assert.Equal(t, "", shop.NormalizePostalCode("abc"))

	var stored *shop.Address
	assert.True(t, stored.Differs(shop.Address{}))

	a := &shop.Address{PostalCode: "01310100", Number: "1000", City: "Sao Paulo"}
	assert.False(t, a.Differs(shop.Address{PostalCode: "01310100 ", Number: " 1000", City: "Sao Paulo"}))
	assert.True(t, a.Differs(shop.Address{PostalCode: "01310100", Number: "1001", City: "Sao Paulo"}))
}

func TestContactSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":"true","message":"sent"}`))
	}))
	defer srv.Close()

	c := shop.NewContact(srv.URL)
	require.NoError(t, c.Send(context.Background(), shop.ContactMessage{Name: "Ana", Email: "ana@example.com", Message: "Hi"}))
	assert.Equal(t, "Hi", got["Mensagem"])
	assert.Equal(t, "box", got["_template"])
}

func TestContactSendFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   string
	}{
		"relay message":   {http.StatusBadRequest, `{"success":"false","message":"Invalid email"}`, "Invalid email"},
		"not success":     {http.StatusOK, `{"success":"false"}`, shop.GenericContactError},
		"garbage":         {http.StatusInternalServerError, `<html>oops</html>`, shop.GenericContactError},
		"ok with message": {http.StatusOK, `{"success":"no","message":"Form disabled"}`, "Form disabled"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := shop.NewContact(srv.URL).Send(context.Background(), shop.ContactMessage{Email: "a@b.c", Message: "x"})
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c := shop.NewContact(url)
		c.HTTP.Timeout = time.Second
		err := c.Send(context.Background(), shop.ContactMessage{Email: "a@b.c", Message: "x"})
		assert.EqualError(t, err, shop.GenericContactError)
	})
}
