package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ErrNoBaseURL is returned by every call when the transport has no base URL.
var ErrNoBaseURL = errors.New("backend base URL not configured")

// RequestIDHeader carries the per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds how much of a response body is buffered.
const maxBodyBytes = 8 << 20

// Call is one outgoing request. Body is retained so the call can be rebuilt.
type Call struct {
	Method    string
	Path      string
	Query     url.Values
	Header    http.Header
	Body      []byte
	Bearer    string
	RequestID string
}

// Reply is a fully buffered response.
type Reply struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r Reply) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Transport sends calls relative to a base URL with the configured default headers.
type Transport struct {
	base      string
	client    *http.Client
	headers   map[string]string
	userAgent string
}

// NewTransport validates baseURL and returns a Transport. An empty baseURL is
// accepted; every call then fails with ErrNoBaseURL.
func NewTransport(baseURL string, client *http.Client, headers map[string]string, userAgent string) (*Transport, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("base URL scheme %q not supported", u.Scheme)
		}
		if u.Host == "" {
			return nil, errors.New("base URL has no host")
		}
	}
	if client == nil {
		client = http.DefaultClient
	}
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return &Transport{
		base:      strings.TrimRight(baseURL, "/"),
		client:    client,
		headers:   h,
		userAgent: userAgent,
	}, nil
}

// Configured reports whether a base URL is set.
func (t *Transport) Configured() bool {
	return t.base != ""
}

// BaseURL returns the normalized base URL.
func (t *Transport) BaseURL() string {
	return t.base
}

// URL joins path onto the base URL.
func (t *Transport) URL(path string, query url.Values) string {
	u := t.base + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Send issues c and buffers the response. A non-2xx status is not an error.
func (t *Transport) Send(ctx context.Context, c Call) (Reply, error) {
	if !t.Configured() {
		return Reply{}, ErrNoBaseURL
	}

	req, err := t.build(ctx, c)
	if err != nil {
		return Reply{}, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Reply{}, fmt.Errorf("read response body: %w", err)
	}
	return Reply{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// PostJSON marshals in and POSTs it to path.
func (t *Transport) PostJSON(ctx context.Context, path, bearer string, in any) (Reply, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return Reply{}, fmt.Errorf("encode request: %w", err)
	}
	return t.Send(ctx, Call{Method: http.MethodPost, Path: path, Body: body, Bearer: bearer})
}

func (t *Transport) build(ctx context.Context, c Call) (*http.Request, error) {
	method := c.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if c.Body != nil {
		body = bytes.NewReader(c.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.URL(c.Path, c.Query), body)
	if err != nil {
		return nil, err
	}

	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for k, vs := range c.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	id := c.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set(RequestIDHeader, id)

	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	} else {
		req.Header.Del("Authorization")
	}
	return req, nil
}
