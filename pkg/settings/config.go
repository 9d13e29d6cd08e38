package settings

type Config struct {
	Logger Logger `mapstructure:"logger"`
	Redis  Redis  `mapstructure:"redis"`
	Sketch Sketch `mapstructure:"sketch"`
	Store  Store  `mapstructure:"store"`
}

// Logger is the configuration for the logger
type Logger struct {
	LogLevel    string `mapstructure:"log_level"`
	FileLogName string `mapstructure:"file_log_name"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	MaxSize     int    `mapstructure:"max_size"`
	Compress    bool   `mapstructure:"compress"`
}

// Redis is the configuration for Redis
type Redis struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Password        string `mapstructure:"password"`
	Database        int    `mapstructure:"database"`
	PoolSize        int    `mapstructure:"pool_size"`
	MinIdleConns    int    `mapstructure:"min_idle_conns"`
	PoolTimeout     int    `mapstructure:"pool_timeout"`  // Seconds
	DialTimeout     int    `mapstructure:"dial_timeout"`  // Seconds
	ReadTimeout     int    `mapstructure:"read_timeout"`  // Seconds
	WriteTimeout    int    `mapstructure:"write_timeout"` // Seconds
	MaxRetries      int    `mapstructure:"max_retries"`
	MaxRetryBackoff int    `mapstructure:"max_retry_backoff"` // Milliseconds
	MinRetryBackoff int    `mapstructure:"min_retry_backoff"` // Milliseconds
	TxRetries       int    `mapstructure:"tx_retries"`        // Optimistic transaction attempts
}

// Sketch holds the dimensions used when a key is created implicitly by an increment.
type Sketch struct {
	DefaultWidth int `mapstructure:"default_width"`
	DefaultDepth int `mapstructure:"default_depth"`
}

// Store selects the storage backend: "redis" or "memory".
type Store struct {
	Driver string `mapstructure:"driver"`
}
