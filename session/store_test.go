package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, "test:session"), mr
}

func testSession(gen int) Session {
	return Session{
		User:         User{ID: 1, Name: "Ana", Email: "ana@example.com"},
		AccessToken:  fmt.Sprintf("access-%d", gen),
		RefreshToken: fmt.Sprintf("refresh-%d", gen),
		ExpiresAt:    int64(1_900_000_000 + gen),
	}
}

func storeImplementations(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	plain, err := NewFileStore(filepath.Join(dir, "plain", "session.bin"), nil)
	require.NoError(t, err)

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	sealed, err := NewFileStore(filepath.Join(dir, "sealed", "session.bin"), key)
	require.NoError(t, err)

	rs, _ := newRedisStoreTest(t)

	return map[string]Store{
		"memory":    NewMemoryStore(),
		"file":      plain,
		"file-aead": sealed,
		"redis":     rs,
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := store.Load(ctx)
			require.NoError(t, err)
			assert.True(t, empty.IsZero())

			want := testSession(1)
			require.NoError(t, store.Save(ctx, want))

			got, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			require.NoError(t, store.Save(ctx, testSession(2)))
			got, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, testSession(2), got)

			require.NoError(t, store.Clear(ctx))
			got, err = store.Load(ctx)
			require.NoError(t, err)
			assert.True(t, got.IsZero())

			require.NoError(t, store.Clear(ctx), "clearing twice is not an error")
		})
	}
}

func TestStoreRejectsHalfSession(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, store.Save(ctx, Session{AccessToken: "only-access"}), ErrHalfSession)
			require.ErrorIs(t, store.Save(ctx, Session{RefreshToken: "only-refresh"}), ErrHalfSession)

			got, err := store.Load(ctx)
			require.NoError(t, err)
			assert.True(t, got.IsZero())
		})
	}
}

// Readers racing a writer must only ever see one of the complete triples that was saved.
func TestStoreReadersNeverSeeMixedTriple(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(ctx, testSession(0)))

			const writes = 200
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 1; i <= writes; i++ {
					if !assert.NoError(t, store.Save(ctx, testSession(i)), "save %d", i) {
						return
					}
				}
			}()

			for r := 0; r < 4; r++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < writes; i++ {
						got, err := store.Load(ctx)
						if !assert.NoError(t, err) {
							return
						}
						var gen int
						_, err = fmt.Sscanf(got.AccessToken, "access-%d", &gen)
						if !assert.NoError(t, err, "access token %q", got.AccessToken) {
							return
						}
						if !assert.Equal(t, testSession(gen), got, "mixed triple") {
							return
						}
					}
				}()
			}
			wg.Wait()
		})
	}
}

func TestFileStoreEncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.bin")
	key := make([]byte, 32)
	key[0] = 1

	store, err := NewFileStore(path, key)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, testSession(3)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "access-3")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	wrongKey := make([]byte, 32)
	other, err := NewFileStore(path, wrongKey)
	require.NoError(t, err)
	_, err = other.Load(ctx)
	require.ErrorIs(t, err, ErrSessionCorrupt)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.bin")

	first, err := NewFileStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, testSession(5)))

	second, err := NewFileStore(path, nil)
	require.NoError(t, err)
	got, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSession(5), got)
}

func TestNewFileStoreRejectsBadKey(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "s"), []byte("short"))
	require.Error(t, err)

	_, err = NewFileStore("", nil)
	require.Error(t, err)
}

func TestRedisStoreCorruptBlob(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	require.NoError(t, mr.Set(store.Key(), "\x63garbage"))

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, ErrSessionCorrupt)
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	mr.Close()

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, store.Save(context.Background(), testSession(1)), ErrStoreUnavailable)
}

func TestSessionWithTokensKeepsUser(t *testing.T) {
	base := testSession(1)
	next := base.WithTokens(Session{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: 10})
	assert.Equal(t, base.User, next.User)
	assert.Equal(t, "a2", next.AccessToken)

	replaced := base.WithTokens(Session{User: User{ID: 2}, AccessToken: "a3", RefreshToken: "r3"})
	assert.Equal(t, User{ID: 2}, replaced.User)
}
