package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// FuzzSessionDecode exercises the binary session decoder with arbitrary inputs.
// Goal: no panics, graceful error handling, and stable re-encoding of anything accepted.
func FuzzSessionDecode(f *testing.F) {
	sess := Session{
		User:         User{ID: 7, Name: "Ana", Email: "ana@example.com"},
		AccessToken:  "access-fuzz",
		RefreshToken: "refresh-fuzz",
		ExpiresAt:    1700003600,
	}
	encoded, err := Encode(sess)
	if err == nil {
		f.Add(encoded)
	}

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{2})
	f.Add([]byte{255, 255, 255})

	if len(encoded) > 10 {
		f.Add(encoded[:10])
		f.Add(encoded[:len(encoded)/2])
		f.Add(encoded[:len(encoded)-1])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		got, err := Decode(data)
		if err != nil {
			return
		}
		again, err := Encode(got)
		require.NoError(t, err, "re-encode of decoded session")
		back, err := Decode(again)
		require.NoError(t, err, "decode of re-encoded session")
		require.Equal(t, got, back)
	})
}
