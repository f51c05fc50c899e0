package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	sessionFormatVersionCurrent = 2
	sessionFormatVersionV1      = 1
)

// maxTokenLen bounds a single encoded token. Real JWTs are a few KB at most.
const maxTokenLen = 64 << 10

var errUnsupportedVersion = errors.New("unsupported session schema version")

// Encode serializes s into the compact binary layout used by the file and Redis stores.
//
// Layout (v2): version byte, user id (int64), name (u16 len + bytes), email (u16 len +
// bytes), access token (u32 len + bytes), refresh token (u32 len + bytes), expires_at
// (int64). All integers are big-endian.
func Encode(s Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, s.User.ID); err != nil {
		return nil, err
	}
	if err := writeShort(&buf, "user name", s.User.Name); err != nil {
		return nil, err
	}
	if err := writeShort(&buf, "user email", s.User.Email); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "access token", s.AccessToken); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "refresh token", s.RefreshToken); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses data produced by [Encode]. Version 1 blobs (written before the user's
// name and email were persisted) decode with an empty name and email.
func Decode(data []byte) (Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Session{}, err
	}
	if version != sessionFormatVersionCurrent && version != sessionFormatVersionV1 {
		return Session{}, fmt.Errorf("%w: %d", errUnsupportedVersion, version)
	}

	var s Session
	if err := binary.Read(reader, binary.BigEndian, &s.User.ID); err != nil {
		return Session{}, err
	}

	if version == sessionFormatVersionCurrent {
		if s.User.Name, err = readShort(reader); err != nil {
			return Session{}, err
		}
		if s.User.Email, err = readShort(reader); err != nil {
			return Session{}, err
		}
	}

	if s.AccessToken, err = readLong(reader); err != nil {
		return Session{}, err
	}
	if s.RefreshToken, err = readLong(reader); err != nil {
		return Session{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return Session{}, err
	}
	if reader.Len() != 0 {
		return Session{}, errors.New("trailing bytes after session")
	}

	return s, nil
}

func writeShort(buf *bytes.Buffer, field, v string) error {
	if len(v) > math.MaxUint16 {
		return fmt.Errorf("%s too long", field)
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func writeLong(buf *bytes.Buffer, field, v string) error {
	if len(v) > maxTokenLen {
		return fmt.Errorf("%s too long", field)
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readShort(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	return readN(r, int(n))
}

func readLong(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if n > maxTokenLen {
		return "", errors.New("token length out of range")
	}
	return readN(r, int(n))
}

func readN(r *bytes.Reader, n int) (string, error) {
	if n > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
