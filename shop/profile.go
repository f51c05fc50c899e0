package shop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/logani/storefront"
	"github.com/logani/storefront/session"
	"github.com/redis/go-redis/v9"
)

// Profile is the slice of the customer record kept locally so checkout can prefill
// the delivery form without a round trip.
type Profile struct {
	PaymentID string   `json:"asaas_id"`
	CPF       string   `json:"cpf"`
	Address   *Address `json:"address,omitempty"`
}

// IsZero reports whether nothing is cached.
func (p Profile) IsZero() bool {
	return p.PaymentID == "" && p.CPF == "" && p.Address == nil
}

func profileOf(c Customer) Profile {
	p := Profile{PaymentID: c.PaymentID, CPF: c.CPF}
	if c.Address != (Address{}) {
		a := c.Address
		p.Address = &a
	}
	return p
}

// ProfileStore persists the cached profile of the logged-in user. Load returns the
// zero Profile when nothing is cached.
type ProfileStore interface {
	Save(ctx context.Context, p Profile) error
	Load(ctx context.Context) (Profile, error)
	Clear(ctx context.Context) error
}

// NewProfileStore returns a store on the same backend as the session store described
// by cfg: a sibling key in Redis, a sibling file next to the session file, or memory.
// rdb is required for the redis backend; the caller keeps ownership of it.
func NewProfileStore(cfg storefront.StoreConfig, rdb redis.UniversalClient) (ProfileStore, error) {
	switch cfg.Backend {
	case storefront.StoreRedis:
		if rdb == nil {
			return nil, errors.New("redis profile store requires a redis client")
		}
		key := cfg.RedisKey
		if key == "" {
			key = session.DefaultRedisKey
		}
		return NewRedisProfileStore(rdb, key+":profile"), nil
	case storefront.StoreFile:
		if cfg.FilePath == "" {
			return nil, errors.New("file profile store requires Store.FilePath")
		}
		return NewFileProfileStore(cfg.FilePath + ".profile"), nil
	default:
		return NewMemoryProfileStore(), nil
	}
}

type MemoryProfileStore struct {
	mu sync.RWMutex
	p  Profile
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{}
}

func (m *MemoryProfileStore) Save(_ context.Context, p Profile) error {
	m.mu.Lock()
	m.p = p
	m.mu.Unlock()
	return nil
}

func (m *MemoryProfileStore) Load(context.Context) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.p, nil
}

func (m *MemoryProfileStore) Clear(context.Context) error {
	m.mu.Lock()
	m.p = Profile{}
	m.mu.Unlock()
	return nil
}

// RedisProfileStore keeps the profile as JSON under one key.
type RedisProfileStore struct {
	redis redis.UniversalClient
	key   string
}

func NewRedisProfileStore(client redis.UniversalClient, key string) *RedisProfileStore {
	return &RedisProfileStore{redis: client, key: key}
}

func (s *RedisProfileStore) Save(ctx context.Context, p Profile) error {
	if p.IsZero() {
		return s.Clear(ctx)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisProfileStore) Load(ctx context.Context) (Profile, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", session.ErrSessionCorrupt, err)
	}
	return p, nil
}

func (s *RedisProfileStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	return nil
}

// FileProfileStore keeps the profile as a JSON file, replaced by rename.
type FileProfileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileProfileStore(path string) *FileProfileStore {
	return &FileProfileStore{path: path}
}

func (f *FileProfileStore) Save(ctx context.Context, p Profile) error {
	if p.IsZero() {
		return f.Clear(ctx)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	tmp, err := os.CreateTemp(dir, ".profile-*")
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	return nil
}

func (f *FileProfileStore) Load(context.Context) (Profile, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", session.ErrSessionCorrupt, err)
	}
	return p, nil
}

func (f *FileProfileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	return nil
}
