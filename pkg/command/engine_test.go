package command

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redisV9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RedisLabsModules/countminsketch/pkg/common/apperr"
	"github.com/RedisLabsModules/countminsketch/pkg/database/redis"
	"github.com/RedisLabsModules/countminsketch/pkg/datastructs/sketch"
	"github.com/RedisLabsModules/countminsketch/pkg/mq/batcher"
	"github.com/RedisLabsModules/countminsketch/pkg/settings"
	"github.com/RedisLabsModules/countminsketch/pkg/store"
)

func newEngine(t *testing.T, st store.Store) *Engine {
	t.Helper()
	e, err := NewEngine(st, settings.Sketch{}, nil)
	require.NoError(t, err)
	return e
}

func putRaw(t *testing.T, st store.Store, key string, data []byte) {
	t.Helper()
	err := st.Update(context.Background(), key, func(v *store.Value) error {
		if err := v.Truncate(len(data)); err != nil {
			return err
		}
		copy(v.Bytes(), data)
		return nil
	})
	require.NoError(t, err)
}

func rawBytes(t *testing.T, st store.Store, key string) []byte {
	t.Helper()
	var out []byte
	err := st.View(context.Background(), key, func(v *store.Value) error {
		out = append([]byte(nil), v.Bytes()...)
		return nil
	})
	require.NoError(t, err)
	return out
}

// =============================================================================
// Constructor
// =============================================================================

func TestNewEngine(t *testing.T) {
	tests := []struct {
		name    string
		cfg     settings.Sketch
		wantW   int
		wantD   int
		wantErr bool
	}{
		{"zero_uses_defaults", settings.Sketch{}, sketch.DefaultWidth, sketch.DefaultDepth, false},
		{"custom", settings.Sketch{DefaultWidth: 100, DefaultDepth: 3}, 100, 3, false},
		{"invalid_width", settings.Sketch{DefaultWidth: 70000, DefaultDepth: 3}, 0, 0, true},
		{"negative_depth", settings.Sketch{DefaultWidth: 10, DefaultDepth: -1}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEngine(store.NewMemory(), tt.cfg, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, sketch.ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, e.defaultWidth)
			assert.Equal(t, tt.wantD, e.defaultDepth)
		})
	}
}

// =============================================================================
// Init
// =============================================================================

func TestEngine_Init(t *testing.T) {
	ctx := context.Background()

	t.Run("by_dimensions", func(t *testing.T) {
		e := newEngine(t, store.NewMemory())
		require.NoError(t, e.InitByDim(ctx, "k", 10, 5))

		info, found, err := e.Debug(ctx, "k")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, DebugInfo{Count: 0, Width: 10, Depth: 5, Size: sketch.SizeOf(10, 5)}, *info)
	})

	t.Run("by_error_bound", func(t *testing.T) {
		e := newEngine(t, store.NewMemory())
		require.NoError(t, e.InitByErr(ctx, "k", 0.01, 0.01))

		info, _, err := e.Debug(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 200, info.Width)
		assert.Equal(t, 7, info.Depth)
		assert.Equal(t, 5691, info.Size)
	})

	t.Run("twice_fails", func(t *testing.T) {
		e := newEngine(t, store.NewMemory())
		require.NoError(t, e.InitByDim(ctx, "k", 10, 5))
		err := e.InitByDim(ctx, "k", 10, 5)
		assert.Equal(t, apperr.KeyAlreadyExists, apperr.KindOf(err))
		assert.Equal(t, apperr.MsgKeyExists, apperr.Reply(err))
	})

	t.Run("on_foreign_type", func(t *testing.T) {
		st := store.NewMemory()
		st.SetOther("list")
		err := newEngine(t, st).InitByErr(ctx, "list", 0.1, 0.1)
		assert.Equal(t, apperr.KeyAlreadyExists, apperr.KindOf(err))
	})

	t.Run("invalid_dimensions_leave_key_empty", func(t *testing.T) {
		st := store.NewMemory()
		e := newEngine(t, st)

		err := e.InitByDim(ctx, "k", 0, 5)
		assert.Equal(t, apperr.InvalidParameter, apperr.KindOf(err))
		assert.Equal(t, "ERR invalid width", apperr.Reply(err))

		err = e.InitByErr(ctx, "k", 0.1, 0)
		assert.Equal(t, "ERR invalid probability", apperr.Reply(err))
		assert.Equal(t, 0, st.Len())
	})
}

// =============================================================================
// IncrBy / Query
// =============================================================================

func TestEngine_IncrByQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("five_items", func(t *testing.T) {
		e := newEngine(t, store.NewMemory())
		err := e.IncrBy(ctx, "cms", []Increment{{"a", 1}, {"b", 2}, {"c", 3}, {"d", 4}, {"e", 5}})
		require.NoError(t, err)

		counts, found, err := e.Query(ctx, "cms", []string{"a", "b", "c", "d", "e", "foo"})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []int64{1, 2, 3, 4, 5, 0}, counts)

		info, _, err := e.Debug(ctx, "cms")
		require.NoError(t, err)
		assert.Equal(t, int64(15), info.Count)
	})

	t.Run("implicit_creation_uses_defaults", func(t *testing.T) {
		e, err := NewEngine(store.NewMemory(), settings.Sketch{DefaultWidth: 64, DefaultDepth: 4}, nil)
		require.NoError(t, err)
		require.NoError(t, e.IncrBy(ctx, "k", []Increment{{"x", 1}}))

		info, _, err := e.Debug(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 64, info.Width)
		assert.Equal(t, 4, info.Depth)
	})

	t.Run("existing_dimensions_kept", func(t *testing.T) {
		e := newEngine(t, store.NewMemory())
		require.NoError(t, e.InitByDim(ctx, "k", 30, 2))
		require.NoError(t, e.IncrBy(ctx, "k", []Increment{{"x", 9}}))

		info, _, _ := e.Debug(ctx, "k")
		assert.Equal(t, 30, info.Width)
		assert.Equal(t, 2, info.Depth)
		assert.Equal(t, int64(9), info.Count)
	})

	t.Run("missing_key", func(t *testing.T) {
		e := newEngine(t, store.NewMemory())
		counts, found, err := e.Query(ctx, "nope", []string{"a"})
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, counts)

		info, found, err := e.Debug(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, info)
	})

	t.Run("empty_increments", func(t *testing.T) {
		st := store.NewMemory()
		err := newEngine(t, st).IncrBy(ctx, "k", nil)
		assert.Equal(t, apperr.InvalidParameter, apperr.KindOf(err))
		assert.Equal(t, 0, st.Len())
	})
}

// =============================================================================
// Errors
// =============================================================================

func TestEngine_WrongType(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SetOther("list")
	e := newEngine(t, st)

	err := e.IncrBy(ctx, "list", []Increment{{"a", 1}})
	assert.Equal(t, apperr.WrongValueType, apperr.KindOf(err))
	assert.Equal(t, apperr.MsgWrongType, apperr.Reply(err))

	_, _, err = e.Query(ctx, "list", []string{"a"})
	assert.Equal(t, apperr.WrongValueType, apperr.KindOf(err))

	_, _, err = e.Debug(ctx, "list")
	assert.Equal(t, apperr.WrongValueType, apperr.KindOf(err))
}

func TestEngine_CorruptValue(t *testing.T) {
	ctx := context.Background()

	valid, err := sketch.New(8, 2)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"plain_string", []byte("hello")},
		{"wrong_version", append([]byte("COUNTMINSKETCH:0.9:"), valid.Bytes()[19:]...)},
		{"truncated", valid.Bytes()[:len(valid.Bytes())-4]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemory()
			putRaw(t, st, "k", tt.data)
			e := newEngine(t, st)

			err := e.IncrBy(ctx, "k", []Increment{{"a", 1}})
			assert.Equal(t, apperr.CorruptOrIncompatibleFormat, apperr.KindOf(err))
			assert.Equal(t, apperr.MsgInvalidSig, apperr.Reply(err))
			assert.Equal(t, tt.data, rawBytes(t, st, "k"), "value must be untouched")

			_, _, err = e.Query(ctx, "k", []string{"a"})
			assert.Equal(t, apperr.CorruptOrIncompatibleFormat, apperr.KindOf(err))
		})
	}
}

// failingStore fails every call with err.
type failingStore struct{ err error }

func (f failingStore) Update(context.Context, string, func(*store.Value) error) error { return f.err }
func (f failingStore) View(context.Context, string, func(*store.Value) error) error   { return f.err }

func TestEngine_StoreFailure(t *testing.T) {
	e := newEngine(t, failingStore{err: errors.New("connection reset")})
	err := e.IncrBy(context.Background(), "k", []Increment{{"a", 1}})
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	assert.ErrorContains(t, err, "connection reset")
}

// =============================================================================
// Batch consumer
// =============================================================================

func TestEngine_Consumer(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SetOther("bad")
	e := newEngine(t, st)

	b := batcher.New[KeyedIncrement](batcher.ConsumerFunc[KeyedIncrement](e.Consumer(ctx)), batcher.Config{StripeSize: 4})
	push := func(key, item string, delta int64) error {
		return b.Push(KeyedIncrement{Key: key, Increment: Increment{Item: item, Delta: delta}})
	}

	require.NoError(t, push("a", "x", 1))
	require.NoError(t, push("b", "y", 2))
	require.NoError(t, push("a", "x", 3))
	require.NoError(t, push("a", "z", 1)) // fills the stripe
	require.NoError(t, push("b", "y", 5))
	err := push("bad", "q", 1)
	require.NoError(t, err)

	err = b.Flush()
	assert.Equal(t, apperr.WrongValueType, apperr.KindOf(err))

	counts, _, err := e.Query(ctx, "a", []string{"x", "z"})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 1}, counts)

	counts, _, err = e.Query(ctx, "b", []string{"y"})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, counts)
}

// =============================================================================
// Redis-backed engine
// =============================================================================

func TestEngine_Redis(t *testing.T) {
	ctx := context.Background()
	m := miniredis.RunT(t)
	client := redisV9.NewClient(&redisV9.Options{Addr: m.Addr()})
	rs := redis.NewFromClient(client, nil, nil)
	defer rs.Close()

	e := newEngine(t, rs)
	for i := 0; i < 5; i++ {
		require.NoError(t, e.IncrBy(ctx, "cms", []Increment{{fmt.Sprintf("item-%d", i), int64(i + 1)}}))
	}

	counts, found, err := e.Query(ctx, "cms", []string{"item-0", "item-4", "nope"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []int64{1, 5, 0}, counts)

	raw, err := m.Get("cms")
	require.NoError(t, err)
	assert.Len(t, raw, sketch.SizeOf(sketch.DefaultWidth, sketch.DefaultDepth))
	assert.Equal(t, sketch.Signature, raw[:len(sketch.Signature)])

	_, err = m.Lpush("list", "x")
	require.NoError(t, err)
	err = e.IncrBy(ctx, "list", []Increment{{"a", 1}})
	assert.Equal(t, apperr.WrongValueType, apperr.KindOf(err))
}
