package storefront

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one call to a business endpoint. Path is relative to the
// configured base URL. Body is retained, so the request can be replayed after a 401.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	// JSON, when set and Body is nil, is marshalled into Body by DoJSON.
	JSON any
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Refreshed reports that the token was renewed while serving this call.
	Refreshed bool
	// Retried reports that the call was replayed once after a 401.
	Retried bool
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the body into out.
func (r *Response) DecodeJSON(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
