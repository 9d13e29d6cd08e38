package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisV9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RedisLabsModules/countminsketch/pkg/settings"
	"github.com/RedisLabsModules/countminsketch/pkg/store"
)

func newTestEngine(t *testing.T, cfg *settings.Redis) (*RedisEngine, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redisV9.NewClient(&redisV9.Options{Addr: m.Addr()})
	engine := NewFromClient(client, cfg, nil)
	t.Cleanup(engine.Close)
	return engine, m
}

func write(s string) func(*store.Value) error {
	return func(v *store.Value) error {
		if err := v.Truncate(len(s)); err != nil {
			return err
		}
		copy(v.Bytes(), s)
		return nil
	}
}

// =============================================================================
// View
// =============================================================================

func TestRedisEngine_View(t *testing.T) {
	ctx := context.Background()
	engine, m := newTestEngine(t, nil)

	require.NoError(t, m.Set("str", "hello"))
	_, err := m.Lpush("list", "x")
	require.NoError(t, err)

	tests := []struct {
		name     string
		key      string
		wantKind store.Kind
		wantData []byte
	}{
		{"missing", "nope", store.KindEmpty, nil},
		{"string", "str", store.KindString, []byte("hello")},
		{"list", "list", store.KindOther, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.View(ctx, tt.key, func(v *store.Value) error {
				assert.Equal(t, tt.wantKind, v.Kind())
				assert.Equal(t, tt.wantData, v.Bytes())
				return nil
			})
			require.NoError(t, err)
		})
	}
}

// =============================================================================
// Update
// =============================================================================

func TestRedisEngine_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("creates_key", func(t *testing.T) {
		engine, m := newTestEngine(t, nil)
		require.NoError(t, engine.Update(ctx, "k", write("abc")))
		got, err := m.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "abc", got)
	})

	t.Run("modifies_in_place", func(t *testing.T) {
		engine, m := newTestEngine(t, nil)
		require.NoError(t, m.Set("k", "abc"))
		err := engine.Update(ctx, "k", func(v *store.Value) error {
			assert.Equal(t, store.KindString, v.Kind())
			v.Bytes()[0] = 'X'
			return nil
		})
		require.NoError(t, err)
		got, _ := m.Get("k")
		assert.Equal(t, "Xbc", got)
	})

	t.Run("callback_error_persists_nothing", func(t *testing.T) {
		engine, m := newTestEngine(t, nil)
		boom := errors.New("boom")
		err := engine.Update(ctx, "k", func(v *store.Value) error {
			_ = write("abc")(v)
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.False(t, m.Exists("k"))
	})

	t.Run("untouched_empty_key_not_created", func(t *testing.T) {
		engine, m := newTestEngine(t, nil)
		require.NoError(t, engine.Update(ctx, "k", func(*store.Value) error { return nil }))
		assert.False(t, m.Exists("k"))
	})

	t.Run("other_type_not_overwritten", func(t *testing.T) {
		engine, m := newTestEngine(t, nil)
		_, err := m.Lpush("list", "x")
		require.NoError(t, err)
		err = engine.Update(ctx, "list", func(v *store.Value) error {
			assert.Equal(t, store.KindOther, v.Kind())
			return v.Truncate(4)
		})
		assert.ErrorIs(t, err, store.ErrWrongType)
		assert.Equal(t, "list", m.Type("list"))
	})

	t.Run("keeps_ttl", func(t *testing.T) {
		engine, m := newTestEngine(t, nil)
		require.NoError(t, m.Set("k", "abc"))
		m.SetTTL("k", time.Hour)
		require.NoError(t, engine.Update(ctx, "k", write("abcd")))
		assert.Equal(t, time.Hour, m.TTL("k"))
	})

	t.Run("concurrent_writers_serialize", func(t *testing.T) {
		engine, m := newTestEngine(t, &settings.Redis{TxRetries: 10_000})
		const workers, rounds = 4, 25

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < rounds; i++ {
					err := engine.Update(ctx, "n", func(v *store.Value) error {
						if v.Len() == 0 {
							if err := v.Truncate(1); err != nil {
								return err
							}
						}
						v.Bytes()[0]++
						return nil
					})
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		got, err := m.Get("n")
		require.NoError(t, err)
		assert.Equal(t, []byte{workers * rounds}, []byte(got))
	})

	t.Run("conflict_exhausts_retries", func(t *testing.T) {
		engine, m := newTestEngine(t, &settings.Redis{TxRetries: 3})
		calls := 0
		err := engine.Update(ctx, "k", func(v *store.Value) error {
			calls++
			// Another client writes the watched key before EXEC.
			require.NoError(t, m.Set("k", "other"))
			return write("mine")(v)
		})
		assert.ErrorIs(t, err, ErrTxConflict)
		assert.Equal(t, 3, calls)
		got, _ := m.Get("k")
		assert.Equal(t, "other", got)
	})
}

// =============================================================================
// Connection
// =============================================================================

func TestNewConnection(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		m := miniredis.RunT(t)
		cfg := &settings.Redis{Host: m.Host(), Port: mustPort(t, m)}
		engine, err := NewConnection(cfg, nil)
		require.NoError(t, err)
		defer engine.Close()

		assert.Equal(t, defaultPoolSize, cfg.PoolSize)
		assert.Equal(t, defaultTxRetries, cfg.TxRetries)
		require.NoError(t, engine.Update(context.Background(), "k", write("v")))
		require.NoError(t, engine.Delete(context.Background(), "k"))
		assert.False(t, m.Exists("k"))
	})

	t.Run("unreachable", func(t *testing.T) {
		m := miniredis.RunT(t)
		host, port := m.Host(), mustPort(t, m)
		m.Close()

		_, err := NewConnection(&settings.Redis{Host: host, Port: port, DialTimeout: 1, MaxRetries: -1}, nil)
		assert.ErrorIs(t, err, ErrConnectionFailed)
	})
}

func mustPort(t *testing.T, m *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(m.Port())
	require.NoError(t, err)
	return port
}
