package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseError(t *testing.T) {
	const fallback = "Could not sign in. Try again."

	cases := []struct {
		name     string
		body     string
		wantMsg  string
		wantCode string
	}{
		{
			name:     "details object",
			body:     `{"error":{"code":"VALIDATION","message":"invalid data","details":{"error":{"detail":"Email already registered"}}}}`,
			wantMsg:  "Email already registered",
			wantCode: "VALIDATION",
		},
		{
			name:     "details python rendering single quotes",
			body:     `{"error":{"code":"VALIDATION","message":"invalid data","details":"{'error': {'detail': ErrorDetail(string='Email already registered', code='invalid')}}"}}`,
			wantMsg:  "Email already registered",
			wantCode: "VALIDATION",
		},
		{
			name:    "details python rendering double quotes",
			body:    `{"error":{"message":"invalid data","details":"{'error': {'detail': ErrorDetail(string=\"Don't reuse passwords\", code='invalid')}}"}}`,
			wantMsg: "Don't reuse passwords",
		},
		{
			name:     "unrecognised details string falls back to error message",
			body:     `{"error":{"code":"AUTH","message":"Invalid credentials","details":"something else"}}`,
			wantMsg:  "Invalid credentials",
			wantCode: "AUTH",
		},
		{
			name:     "numeric code decoded weakly",
			body:     `{"error":{"code":404,"message":"Not found"}}`,
			wantMsg:  "Not found",
			wantCode: "404",
		},
		{
			name:    "top level message",
			body:    `{"message":"Service unavailable"}`,
			wantMsg: "Service unavailable",
		},
		{
			name:    "top level detail",
			body:    `{"detail":"Given token not valid for any token type"}`,
			wantMsg: "Given token not valid for any token type",
		},
		{
			name:    "empty error object",
			body:    `{"error":{}}`,
			wantMsg: fallback,
		},
		{
			name:    "not json",
			body:    `<html>502 Bad Gateway</html>`,
			wantMsg: fallback,
		},
		{
			name:    "empty body",
			body:    ``,
			wantMsg: fallback,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseError(400, []byte(tc.body), fallback)
			assert.Equal(t, 400, got.Status)
			assert.Equal(t, tc.wantMsg, got.Message)
			assert.Equal(t, tc.wantCode, got.Code)
		})
	}
}
