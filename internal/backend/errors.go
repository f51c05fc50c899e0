package backend

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// APIError is the decoded form of a backend error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// errorBody is the documented error contract:
//
//	{"error": {"code": "...", "message": "...", "details": <object|string>}}
type errorBody struct {
	Code    string `mapstructure:"code"`
	Message string `mapstructure:"message"`
	Details any    `mapstructure:"details"`
}

type detailsObject struct {
	Error struct {
		Detail string `mapstructure:"detail"`
	} `mapstructure:"error"`
}

// The backend sometimes stringifies its validation error instead of serializing it,
// e.g. "{'error': {'detail': ErrorDetail(string='Email already taken', code='invalid')}}".
var errorDetailString = regexp.MustCompile(`ErrorDetail\(string=(?:'([^']*)'|"([^"]*)")`)

// ParseError extracts a human-readable message from a non-2xx body. The message is the
// first non-empty of error.details, error.message, message, detail and fallback.
func ParseError(status int, body []byte, fallback string) APIError {
	out := APIError{Status: status, Message: fallback}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return out
	}

	var candidates []string
	if nested, ok := raw["error"].(map[string]any); ok {
		var eb errorBody
		if err := decodeWeak(nested, &eb); err == nil {
			out.Code = eb.Code
			candidates = append(candidates, detailFrom(eb.Details), eb.Message)
		}
	}
	candidates = append(candidates, stringField(raw, "message"), stringField(raw, "detail"))

	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			out.Message = c
			break
		}
	}
	return out
}

func detailFrom(details any) string {
	switch v := details.(type) {
	case map[string]any:
		var d detailsObject
		if err := decodeWeak(v, &d); err != nil {
			return ""
		}
		return d.Error.Detail
	case string:
		m := errorDetailString.FindStringSubmatch(v)
		if m == nil {
			return ""
		}
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	default:
		return ""
	}
}

func decodeWeak(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
