package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// FileStore persists the session in a single file. Writes go to a temp file in the same
// directory and are renamed over the target, so a reader sees either the previous
// session or the new one.
//
// With a 32-byte key the blob is sealed with XChaCha20-Poly1305 before it touches disk.
type FileStore struct {
	path string
	aead aeadCipher
	mu   sync.Mutex
}

type aeadCipher interface {
	NonceSize() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// NewFileStore creates a [FileStore] at path. key may be nil for plaintext storage or
// exactly 32 bytes for encryption at rest.
func NewFileStore(path string, key []byte) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session file path required")
	}
	fs := &FileStore{path: path}
	if len(key) > 0 {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("session file key: %w", err)
		}
		fs.aead = aead
	}
	return fs, nil
}

// Path returns the file the session is written to.
func (f *FileStore) Path() string {
	return f.path
}

// Save writes the session.
func (f *FileStore) Save(ctx context.Context, s Session) error {
	if err := checkPair(s); err != nil {
		return err
	}
	if s.IsZero() {
		return f.Clear(ctx)
	}

	data, err := Encode(s)
	if err != nil {
		return err
	}
	data, err = f.seal(data)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Load reads the session. A missing file yields the zero session.
func (f *FileStore) Load(context.Context) (Session, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	plain, err := f.open(data)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess, err := Decode(plain)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	return sess, nil
}

// Clear removes the session file.
func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (f *FileStore) seal(plain []byte) ([]byte, error) {
	if f.aead == nil {
		return plain, nil
	}
	nonce := make([]byte, f.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return f.aead.Seal(nonce, nonce, plain, nil), nil
}

func (f *FileStore) open(data []byte) ([]byte, error) {
	if f.aead == nil {
		return data, nil
	}
	n := f.aead.NonceSize()
	if len(data) < n {
		return nil, errors.New("ciphertext too short")
	}
	return f.aead.Open(nil, data[:n], data[n:], nil)
}
