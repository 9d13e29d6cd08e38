package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	redisV9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RedisLabsModules/countminsketch/pkg/settings"
	"github.com/RedisLabsModules/countminsketch/pkg/store"
	"github.com/RedisLabsModules/countminsketch/pkg/utils"
)

const (
	defaultPoolSize        = 10
	defaultMinIdleConns    = 5
	defaultPoolTimeout     = 5
	defaultDialTimeout     = 5
	defaultReadTimeout     = 3
	defaultWriteTimeout    = 3
	defaultMaxRetries      = 3
	defaultMinRetryBackoff = 300 // millis
	defaultMaxRetryBackoff = 500 // millis
	defaultTxRetries       = 16
)

// Redis TYPE replies.
const (
	typeNone   = "none"
	typeString = "string"
)

// RedisEngine stores sketches as Redis strings.
//
// Update is an optimistic transaction: the key is WATCHed, read, handed to the
// callback and written back inside MULTI/EXEC. If another client touches the
// key in between, EXEC aborts and the whole read-modify-write is retried, so
// the callback may run more than once and must only depend on the value.
type RedisEngine struct {
	client *redisV9.Client
	config *settings.Redis
	log    *zap.Logger
}

var _ store.Store = (*RedisEngine)(nil)

// reader is the subset of commands shared by *Client and *Tx.
type reader interface {
	Type(ctx context.Context, key string) *redisV9.StatusCmd
	Get(ctx context.Context, key string) *redisV9.StringCmd
}

// connect initializes the Redis client
func (r *RedisEngine) connect() error {
	r.setDefaultConfig()

	// Build address
	addr := r.config.Host
	if r.config.Port > 0 {
		addr = fmt.Sprintf("%s:%d", addr, r.config.Port)
	}

	r.client = redisV9.NewClient(&redisV9.Options{
		Addr:            addr,
		Password:        r.config.Password,
		DB:              r.config.Database,
		PoolSize:        r.config.PoolSize,
		MinIdleConns:    r.config.MinIdleConns,
		MaxRetries:      r.config.MaxRetries,
		DialTimeout:     utils.ToDuration(r.config.DialTimeout),
		ReadTimeout:     utils.ToDuration(r.config.ReadTimeout),
		WriteTimeout:    utils.ToDuration(r.config.WriteTimeout),
		PoolTimeout:     utils.ToDuration(r.config.PoolTimeout),
		MinRetryBackoff: utils.ToDurationMs(r.config.MinRetryBackoff),
		MaxRetryBackoff: utils.ToDurationMs(r.config.MaxRetryBackoff),
	})

	// Ping test
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		_ = r.client.Close()
		return fmt.Errorf("%w: %v", ErrPingFailed, err)
	}

	return nil
}

// setDefaultConfig sets default values for Redis configuration
func (r *RedisEngine) setDefaultConfig() {
	if r.config.PoolSize == 0 {
		r.config.PoolSize = defaultPoolSize
	}
	if r.config.MinIdleConns == 0 {
		r.config.MinIdleConns = defaultMinIdleConns
	}
	if r.config.PoolTimeout == 0 {
		r.config.PoolTimeout = defaultPoolTimeout
	}
	if r.config.DialTimeout == 0 {
		r.config.DialTimeout = defaultDialTimeout
	}
	if r.config.ReadTimeout == 0 {
		r.config.ReadTimeout = defaultReadTimeout
	}
	if r.config.WriteTimeout == 0 {
		r.config.WriteTimeout = defaultWriteTimeout
	}
	if r.config.MaxRetries == 0 {
		r.config.MaxRetries = defaultMaxRetries
	}
	if r.config.MinRetryBackoff == 0 {
		r.config.MinRetryBackoff = defaultMinRetryBackoff
	}
	if r.config.MaxRetryBackoff == 0 {
		r.config.MaxRetryBackoff = defaultMaxRetryBackoff
	}
	if r.config.TxRetries == 0 {
		r.config.TxRetries = defaultTxRetries
	}
}

// load reads key into a store.Value. A key that vanishes or changes type
// between TYPE and GET is reported as it was found by GET.
func load(ctx context.Context, c reader, key string) (*store.Value, error) {
	typ, err := c.Type(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "type")
	}

	switch typ {
	case typeNone:
		return store.NewValue(store.KindEmpty, nil), nil
	case typeString:
	default:
		return store.NewValue(store.KindOther, nil), nil
	}

	data, err := c.Get(ctx, key).Bytes()
	switch {
	case err == redisV9.Nil:
		return store.NewValue(store.KindEmpty, nil), nil
	case err != nil && strings.HasPrefix(err.Error(), "WRONGTYPE"):
		return store.NewValue(store.KindOther, nil), nil
	case err != nil:
		return nil, errors.Wrap(err, "get")
	}
	return store.NewValue(store.KindString, data), nil
}

// Update implements store.Store.
func (r *RedisEngine) Update(ctx context.Context, key string, fn func(*store.Value) error) error {
	txf := func(tx *redisV9.Tx) error {
		v, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
		if v.Kind() != store.KindString {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redisV9.Pipeliner) error {
			pipe.SetArgs(ctx, key, v.Bytes(), redisV9.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= r.config.TxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redisV9.TxFailedErr) {
			return err
		}
		r.log.Debug("watched key changed, retrying",
			zap.String("key", key), zap.Int("attempt", attempt))
	}

	r.log.Warn("transaction retries exhausted",
		zap.String("key", key), zap.Int("attempts", r.config.TxRetries))
	return errors.Wrapf(ErrTxConflict, "key %q", key)
}

// View implements store.Store.
func (r *RedisEngine) View(ctx context.Context, key string, fn func(*store.Value) error) error {
	v, err := load(ctx, r.client, key)
	if err != nil {
		return err
	}
	return fn(v)
}

// Delete key
func (r *RedisEngine) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Close closes the Redis client
func (r *RedisEngine) Close() {
	if r.client != nil {
		r.client.Close()
	}
}

// Client returns the underlying redis client (Escape hatch)
func (r *RedisEngine) Client() *redisV9.Client {
	return r.client
}
