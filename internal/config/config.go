package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Task      TaskConfig      `mapstructure:"task" validate:"required"`
	Broadcast BroadcastConfig `mapstructure:"broadcast" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// DatabaseConfig selects and configures the task store.
// The memory driver keeps everything in process and ignores the URL.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	URL             string `mapstructure:"url" validate:"required_if=Driver postgres"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=0"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// TaskConfig sizes the background dispatcher that runs cascades and
// completion hooks.
type TaskConfig struct {
	WorkerCount       int `mapstructure:"worker_count" validate:"gte=1"`
	QueueSize         int `mapstructure:"queue_size" validate:"gte=1"`
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds" validate:"gte=1"`
}

// BroadcastConfig controls realtime task event delivery.
// When RedisURL is empty events are only delivered to local subscribers.
type BroadcastConfig struct {
	RedisURL         string `mapstructure:"redis_url" validate:"omitempty,url"`
	Channel          string `mapstructure:"channel" validate:"required"`
	SubscriberBuffer int    `mapstructure:"subscriber_buffer" validate:"gte=1"`
}

// AuthConfig contains worker authentication settings.
// An empty WorkerTokenSecret disables token checks on the status endpoint.
type AuthConfig struct {
	WorkerTokenSecret string `mapstructure:"worker_token_secret" validate:"omitempty,min=32"`
}
