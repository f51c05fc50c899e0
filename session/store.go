package session

import (
	"context"
	"errors"
	"sync"
)

// ErrStoreUnavailable is returned when the backing storage cannot be read or written.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrSessionCorrupt is returned when persisted bytes cannot be decoded.
var ErrSessionCorrupt = errors.New("session corrupt")

// ErrHalfSession is returned by Save when exactly one of the two tokens is set.
var ErrHalfSession = errors.New("access and refresh tokens must be set together")

// Store persists the single session of a client instance.
//
// Load returns the zero [Session] (and no error) when nothing is stored.
// Implementations must replace the stored value atomically.
type Store interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context) (Session, error)
	Clear(ctx context.Context) error
}

func checkPair(s Session) error {
	if (s.AccessToken == "") != (s.RefreshToken == "") {
		return ErrHalfSession
	}
	return nil
}

// MemoryStore keeps the session in process memory. It does not survive restarts and
// is meant for tests and short-lived tools.
type MemoryStore struct {
	mu   sync.RWMutex
	sess Session
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save replaces the stored session.
func (m *MemoryStore) Save(_ context.Context, s Session) error {
	if err := checkPair(s); err != nil {
		return err
	}
	m.mu.Lock()
	m.sess = s
	m.mu.Unlock()
	return nil
}

// Load returns the stored session.
func (m *MemoryStore) Load(context.Context) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess, nil
}

// Clear drops the stored session.
func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.sess = Session{}
	m.mu.Unlock()
	return nil
}
