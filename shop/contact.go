package shop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// GenericContactError is shown when the form service gives no usable message.
const GenericContactError = "Could not send your message right now. Please try again shortly."

// ContactMessage is what a visitor types into the contact form.
type ContactMessage struct {
	Name    string
	Email   string
	Message string
}

// Contact posts the public contact form to an external form relay. It does not use
// the storefront session.
type Contact struct {
	Endpoint string
	Subject  string
	HTTP     *http.Client
}

// NewContact returns a Contact posting to endpoint.
func NewContact(endpoint string) *Contact {
	return &Contact{
		Endpoint: endpoint,
		Subject:  "Contact via storefront",
		HTTP:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers msg. Every failure is reported as an error whose message is fit for
// display: the relay's own message when it sent one, otherwise GenericContactError.
func (c *Contact) Send(ctx context.Context, msg ContactMessage) error {
	if strings.TrimSpace(msg.Email) == "" || strings.TrimSpace(msg.Message) == "" {
		return errors.New("email and message are required")
	}

	body, err := json.Marshal(map[string]string{
		"Nome":      msg.Name,
		"Email":     msg.Email,
		"Mensagem":  msg.Message,
		"_subject":  c.Subject,
		"_template": "box",
	})
	if err != nil {
		return errors.New(GenericContactError)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.New(GenericContactError)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.New(GenericContactError)
	}
	defer resp.Body.Close()

	var out struct {
		Success string `json:"success"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	decoded := json.Unmarshal(raw, &out) == nil

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !decoded || out.Success != "true" {
		if decoded && out.Message != "" {
			return errors.New(out.Message)
		}
		return errors.New(GenericContactError)
	}
	return nil
}
