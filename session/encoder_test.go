package session

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Session{
		User:         User{ID: 42, Name: "Maria Silva", Email: "maria@example.com"},
		AccessToken:  strings.Repeat("a", 1200),
		RefreshToken: "refresh-1",
		ExpiresAt:    1893456000,
	}

	data, err := Encode(in)
	require.NoError(t, err)
	require.Equal(t, byte(sessionFormatVersionCurrent), data[0])

	out, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte{99})
	require.ErrorIs(t, err, errUnsupportedVersion)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, err := Encode(Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: 1})
	require.NoError(t, err)

	_, err = Decode(append(data, 0))
	require.Error(t, err)
}

func TestDecodeReadsLegacyV1(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(sessionFormatVersionV1)
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int64(9)))
	for _, tok := range []string{"acc", "ref"} {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(len(tok))))
		buf.WriteString(tok)
	}
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int64(1700000000)))

	sess, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, Session{
		User:         User{ID: 9},
		AccessToken:  "acc",
		RefreshToken: "ref",
		ExpiresAt:    1700000000,
	}, sess)
}

func TestEncodeRejectsOversizedToken(t *testing.T) {
	_, err := Encode(Session{AccessToken: strings.Repeat("x", maxTokenLen+1), RefreshToken: "r"})
	require.Error(t, err)
}
