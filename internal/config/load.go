package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. REIGH_SERVER_PORT.
const EnvPrefix = "REIGH"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can populate it on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime_minutes", 5)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.queue_size", 256)
	v.SetDefault("task.job_timeout_seconds", 30)

	v.SetDefault("broadcast.redis_url", "")
	v.SetDefault("broadcast.channel", "reigh:task-events")
	v.SetDefault("broadcast.subscriber_buffer", 32)

	v.SetDefault("auth.worker_token_secret", "")
}
