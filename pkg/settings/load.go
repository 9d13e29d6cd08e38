package settings

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CMS_REDIS_HOST.
const EnvPrefix = "CMS"

const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.log_level", "info")
	v.SetDefault("logger.file_log_name", "")
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.compress", false)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("redis.min_idle_conns", 0)
	v.SetDefault("redis.pool_timeout", 0)
	v.SetDefault("redis.dial_timeout", 0)
	v.SetDefault("redis.read_timeout", 0)
	v.SetDefault("redis.write_timeout", 0)
	v.SetDefault("redis.max_retries", 0)
	v.SetDefault("redis.max_retry_backoff", 0)
	v.SetDefault("redis.min_retry_backoff", 0)
	v.SetDefault("redis.tx_retries", 0)

	v.SetDefault("sketch.default_width", 2000)
	v.SetDefault("sketch.default_depth", 10)

	v.SetDefault("store.driver", DriverRedis)
}

// Load reads configuration from path (optional, any format viper understands)
// and applies CMS_* environment overrides on top of built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	switch cfg.Store.Driver {
	case DriverRedis, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return &cfg, nil
}
