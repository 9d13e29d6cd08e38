package redis

import (
	"fmt"

	redisV9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RedisLabsModules/countminsketch/pkg/logger"
	"github.com/RedisLabsModules/countminsketch/pkg/settings"
)

// NewConnection creates and returns a new Redis client
func NewConnection(cfg *settings.Redis, log *zap.Logger) (*RedisEngine, error) {
	engine := &RedisEngine{
		config: cfg,
		log:    logger.OrNop(log).Named("redis"),
	}

	if err := engine.connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	engine.log.Info("connected", zap.String("addr", engine.client.Options().Addr), zap.Int("db", cfg.Database))
	return engine, nil
}

// NewFromClient wraps an already configured client. cfg may be nil.
func NewFromClient(client *redisV9.Client, cfg *settings.Redis, log *zap.Logger) *RedisEngine {
	if cfg == nil {
		cfg = &settings.Redis{}
	}
	engine := &RedisEngine{
		client: client,
		config: cfg,
		log:    logger.OrNop(log).Named("redis"),
	}
	engine.setDefaultConfig()
	return engine
}
