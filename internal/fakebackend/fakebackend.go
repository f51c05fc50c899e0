// Package fakebackend is an in-process storefront backend for tests and the probe's
// demo mode. It issues real HS256 tokens, rotates refresh tokens and records every
// call so tests can assert on traffic.
package fakebackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/logani/storefront/jwt"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Options tunes token lifetimes and timing.
type Options struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RefreshDelay holds every refresh response for this long, which widens the window
	// in which concurrent callers pile up behind one refresh.
	RefreshDelay time.Duration
	// OmitExpiresAt drops expires_at from token responses so clients must read exp
	// from the access token.
	OmitExpiresAt bool
	Now           func() time.Time
}

// User is an account known to the backend.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	password string
}

// Tokens is a freshly minted token pair.
type Tokens struct {
	Access    string
	Refresh   string
	ExpiresAt int64
}

// Backend holds accounts, live refresh tokens, and storefront data.
type Backend struct {
	opts   Options
	signer *jwt.Signer

	mu            sync.Mutex
	nextID        int64
	users         map[string]*User
	refresh       map[string]int64
	revoked       map[string]bool
	resetTokens   map[string]string
	failRefresh   bool
	omitCheckout  bool
	calls         map[string]int
	lastHeaders   map[string]http.Header
	customers     map[int64]map[string]any
	orders        map[int64][]map[string]any
	shippingAdded map[string]map[string]any
}

// New returns an empty Backend.
func New(opts Options) (*Backend, error) {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	signer, err := jwt.NewSigner([]byte(uuid.NewString()+uuid.NewString()), "fakebackend", opts.Now)
	if err != nil {
		return nil, err
	}
	return &Backend{
		opts:          opts,
		signer:        signer,
		users:         make(map[string]*User),
		refresh:       make(map[string]int64),
		revoked:       make(map[string]bool),
		resetTokens:   make(map[string]string),
		calls:         make(map[string]int),
		lastHeaders:   make(map[string]http.Header),
		customers:     make(map[int64]map[string]any),
		orders:        make(map[int64][]map[string]any),
		shippingAdded: make(map[string]map[string]any),
	}, nil
}

// Start serves the backend on a loopback httptest server. The caller closes it.
func (b *Backend) Start() *httptest.Server {
	return httptest.NewServer(b.Handler())
}

// Handler returns the backend's router.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)

	r.Route("/users", func(r chi.Router) {
		r.Post("/login/", b.login)
		r.Post("/register/", b.register)
		r.Post("/refresh-token/", b.refreshToken)
		r.Post("/forgot-password/", b.forgotPassword)
		r.Post("/reset-password/", b.resetPassword)
		r.With(b.authenticated).Post("/logout/", b.logout)
	})

	r.Get("/products/", b.products)

	r.Group(func(r chi.Router) {
		r.Use(b.authenticated)
		r.HandleFunc("/echo/", b.echo)
		r.Get("/clients/client-by-bearer-token", b.getCustomer)
		r.Post("/clients/", b.createCustomer)
		r.Patch("/clients/", b.updateCustomer)
		r.Get("/orders/my-orders/", b.myOrders)
		r.Post("/orders/{orderID}/shipping/", b.addShipping)
		r.Post("/shipping/calculate/", b.calculateShipping)
		r.Post("/payments/checkout/", b.checkout)
	})
	return r
}

// AddUser registers an account directly.
func (b *Backend) AddUser(name, email, password string) User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.addUserLocked(name, email, password)
}

func (b *Backend) addUserLocked(name, email, password string) *User {
	b.nextID++
	u := &User{ID: b.nextID, Name: name, Email: strings.ToLower(email), password: password}
	b.users[u.Email] = u
	return u
}

// IssueTokens mints a token pair for the account with the given email. accessTTL
// overrides Options.AccessTTL when positive; a negative value mints an access token
// that has already expired.
func (b *Backend) IssueTokens(email string, accessTTL time.Duration) (Tokens, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[strings.ToLower(email)]
	if !ok {
		return Tokens{}, fmt.Errorf("unknown user %q", email)
	}
	return b.issueLocked(u.ID, accessTTL)
}

func (b *Backend) issueLocked(userID int64, accessTTL time.Duration) (Tokens, error) {
	if accessTTL == 0 {
		accessTTL = b.opts.AccessTTL
	}
	access, err := b.signer.Issue(userID, TokenAccess, uuid.NewString(), accessTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := b.signer.Issue(userID, TokenRefresh, uuid.NewString(), b.opts.RefreshTTL)
	if err != nil {
		return Tokens{}, err
	}
	b.refresh[refresh] = userID
	return Tokens{
		Access:    access,
		Refresh:   refresh,
		ExpiresAt: b.opts.Now().Add(accessTTL).Unix(),
	}, nil
}

// RevokeAccess makes protected routes answer 401 to token from now on.
func (b *Backend) RevokeAccess(token string) {
	b.mu.Lock()
	b.revoked[token] = true
	b.mu.Unlock()
}

// RevokeRefresh invalidates a refresh token.
func (b *Backend) RevokeRefresh(token string) {
	b.mu.Lock()
	delete(b.refresh, token)
	b.mu.Unlock()
}

// FailRefresh makes the refresh endpoint reject every request while on.
func (b *Backend) FailRefresh(on bool) {
	b.mu.Lock()
	b.failRefresh = on
	b.mu.Unlock()
}

// OmitCheckoutURL makes the checkout endpoint answer 200 without a checkout_url.
func (b *Backend) OmitCheckoutURL(on bool) {
	b.mu.Lock()
	b.omitCheckout = on
	b.mu.Unlock()
}

// AddOrder attaches an order to the user's account.
func (b *Backend) AddOrder(userID int64, orderID, status string, items ...OrderItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := make([]map[string]any, 0, len(items))
	for _, it := range items {
		list = append(list, map[string]any{
			"product_id":  it.ProductID,
			"name":        it.Name,
			"quantity":    it.Quantity,
			"unit_price":  it.UnitPrice,
			"total_price": float64(it.Quantity) * it.UnitPrice,
		})
	}
	b.orders[userID] = append(b.orders[userID], map[string]any{
		"order_id":           orderID,
		"status":             status,
		"external_reference": "ref-" + orderID,
		"items":              list,
	})
}

// OrderItem seeds an order line.
type OrderItem struct {
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice float64
}

// ResetToken returns the last password reset token mailed to email.
func (b *Backend) ResetToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token, addr := range b.resetTokens {
		if addr == strings.ToLower(email) {
			return token
		}
	}
	return ""
}

// Shipping returns the shipping option recorded for orderID, or nil.
func (b *Backend) Shipping(orderID string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shippingAdded[orderID]
}

// Calls returns how many requests reached method and path.
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+path]
}

// RefreshCalls returns how many requests reached the refresh endpoint.
func (b *Backend) RefreshCalls() int {
	return b.Calls(http.MethodPost, "/users/refresh-token/")
}

// LastHeader returns the headers of the most recent request to path.
func (b *Backend) LastHeader(path string) http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastHeaders[path].Clone()
}

// -------- MIDDLEWARE --------

type ctxKey struct{}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.Method+" "+r.URL.Path]++
		b.lastHeaders[r.URL.Path] = r.Header.Clone()
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Authentication credentials were not provided."})
			return
		}
		claims, err := b.signer.Verify(token, TokenAccess)
		b.mu.Lock()
		revoked := b.revoked[token]
		b.mu.Unlock()
		if err != nil || revoked {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims.UserID)))
	})
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxKey{}).(int64)
	return id
}

// -------- AUTH --------

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[strings.ToLower(in.Email)]
	if !ok || u.password != in.Password {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password.", nil)
		return
	}
	b.writeAuthLocked(w, http.StatusOK, "Login successful", u)
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[strings.ToLower(in.Email)]; exists {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid data.",
			"{'email': [ErrorDetail(string='user with this email already exists.', code='unique')]}")
		return
	}
	if len(in.Password) < 8 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid data.",
			map[string]any{"error": map[string]any{"detail": "Password must have at least 8 characters."}})
		return
	}
	u := b.addUserLocked(in.Name, in.Email, in.Password)
	b.writeAuthLocked(w, http.StatusCreated, "User registered", u)
}

func (b *Backend) writeAuthLocked(w http.ResponseWriter, status int, msg string, u *User) {
	t, err := b.issueLocked(u.ID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	writeJSON(w, status, map[string]any{
		"message": msg,
		"data":    b.tokenBody(t, u),
	})
}

func (b *Backend) tokenBody(t Tokens, u *User) map[string]any {
	body := map[string]any{"access": t.Access, "refresh": t.Refresh}
	if !b.opts.OmitExpiresAt {
		body["expires_at"] = t.ExpiresAt
	}
	if u != nil {
		body["user"] = u
	}
	return body
}

func (b *Backend) refreshToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Refresh string `json:"refresh"`
	}
	if !decode(w, r, &in) {
		return
	}

	if d := b.opts.RefreshDelay; d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failRefresh {
		writeError(w, http.StatusUnauthorized, "TOKEN_INVALID", "Refresh token is invalid or expired.", nil)
		return
	}
	uid, ok := b.refresh[in.Refresh]
	if !ok {
		writeError(w, http.StatusUnauthorized, "TOKEN_INVALID", "Refresh token is invalid or expired.", nil)
		return
	}
	if _, err := b.signer.Verify(in.Refresh, TokenRefresh); err != nil {
		delete(b.refresh, in.Refresh)
		writeError(w, http.StatusUnauthorized, "TOKEN_INVALID", "Refresh token is invalid or expired.", nil)
		return
	}

	// rotation: the presented token is single-use
	delete(b.refresh, in.Refresh)
	t, err := b.issueLocked(uid, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, b.tokenBody(t, nil))
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Refresh string `json:"refresh"`
	}
	if !decode(w, r, &in) {
		return
	}
	b.mu.Lock()
	delete(b.refresh, in.Refresh)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

func (b *Backend) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}
	b.mu.Lock()
	if _, ok := b.users[strings.ToLower(in.Email)]; ok {
		b.resetTokens[uuid.NewString()] = strings.ToLower(in.Email)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"message": "If the account exists, a reset link was sent."})
}

func (b *Backend) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.resetTokens[in.Token]
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TOKEN", "Reset link is invalid or has expired.", nil)
		return
	}
	delete(b.resetTokens, in.Token)
	b.users[email].password = in.Password
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password updated"})
}

// -------- STOREFRONT --------

func (b *Backend) products(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
		{"id": 1, "name": "Linen shirt", "price": 129.9},
		{"id": 2, "name": "Canvas tote", "price": 59.9},
	}})
}

func (b *Backend) echo(w http.ResponseWriter, r *http.Request) {
	var body any
	if r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    userID(r),
		"method":     r.Method,
		"query":      r.URL.RawQuery,
		"request_id": r.Header.Get("X-Request-ID"),
		"body":       body,
	})
}

func (b *Backend) getCustomer(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	c, ok := b.customers[userID(r)]
	b.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Client not found.", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Client found", "data": map[string]any{"client": c}})
}

func (b *Backend) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in map[string]any
	if !decode(w, r, &in) {
		return
	}
	if cpf, _ := in["cpf"].(string); cpf == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid data.",
			map[string]any{"error": map[string]any{"detail": "CPF is required."}})
		return
	}

	uid := userID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.customers[uid]; exists {
		writeError(w, http.StatusConflict, "ALREADY_EXISTS", "Client already registered.", nil)
		return
	}
	in["local_id"] = uuid.NewString()
	in["asaas_id"] = "cus_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	b.customers[uid] = in
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Client created", "data": createdCustomer(in)})
}

// createdCustomer renders the create response the way the payment gateway echoes
// it: the address only comes back inside asaas_response, in the gateway's field names.
func createdCustomer(c map[string]any) map[string]any {
	addr, _ := c["address"].(map[string]any)
	field := func(k string) any {
		if addr == nil {
			return ""
		}
		if v, ok := addr[k]; ok {
			return v
		}
		return ""
	}
	return map[string]any{
		"local_id": c["local_id"],
		"asaas_id": c["asaas_id"],
		"name":     c["name"],
		"cpf":      c["cpf"],
		"asaas_response": map[string]any{
			"object":        "customer",
			"id":            c["asaas_id"],
			"name":          c["name"],
			"cpfCnpj":       c["cpf"],
			"mobilePhone":   c["mobile_phone"],
			"postalCode":    field("postal_code"),
			"addressNumber": field("number"),
			"address":       field("address"),
			"complement":    field("complement"),
			"province":      field("province"),
			"cityName":      field("city"),
			"state":         field("state"),
			"country":       "Brasil",
		},
	}
}

func (b *Backend) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var in map[string]any
	if !decode(w, r, &in) {
		return
	}
	uid := userID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.customers[uid]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Client not found.", nil)
		return
	}
	for k, v := range in {
		c[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Client updated", "data": c})
}

func (b *Backend) myOrders(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	b.mu.Lock()
	out := make([]map[string]any, 0)
	for _, o := range b.orders[userID(r)] {
		if status == "" || o["status"] == status {
			out = append(out, o)
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"orders": out}})
}

func (b *Backend) addShipping(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var in map[string]any
	if !decode(w, r, &in) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ownsOrderLocked(userID(r), orderID) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Order not found.", nil)
		return
	}
	b.shippingAdded[orderID] = in
	writeJSON(w, http.StatusOK, map[string]any{"message": "Shipping added"})
}

func (b *Backend) ownsOrderLocked(uid int64, orderID string) bool {
	for _, o := range b.orders[uid] {
		if o["order_id"] == orderID {
			return true
		}
	}
	return false
}

func (b *Backend) calculateShipping(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ToPostalCode string `json:"to_postal_code"`
		OrderID      string `json:"order_id"`
	}
	if !decode(w, r, &in) {
		return
	}
	if len(in.ToPostalCode) != 8 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid postal code.", nil)
		return
	}
	company := map[string]any{"id": 1, "name": "Correios", "picture": ""}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": []map[string]any{
		{"id": 1, "name": "PAC", "price": "24.90", "custom_price": "22.41", "delivery_time": 8, "custom_delivery_time": 9, "currency": "R$", "company": company, "final_price": 22.41},
		{"id": 2, "name": "SEDEX", "price": "41.50", "custom_price": "37.35", "delivery_time": 3, "custom_delivery_time": 4, "currency": "R$", "company": company, "final_price": 37.35},
	}})
}

func (b *Backend) checkout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Customer          string `json:"customer"`
		ExternalReference string `json:"externalReference"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.Customer == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Customer is required.", nil)
		return
	}
	b.mu.Lock()
	omit := b.omitCheckout
	b.mu.Unlock()

	data := map[string]any{"id": uuid.NewString(), "external_reference": in.ExternalReference}
	if !omit {
		data["checkout_url"] = "https://pay.example.test/c/" + data["id"].(string)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

// -------- HELPERS --------

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON body.", nil)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	body := map[string]any{"code": code, "message": message}
	if details != nil {
		body["details"] = details
	}
	writeJSON(w, status, map[string]any{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
