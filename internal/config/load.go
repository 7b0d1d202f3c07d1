package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment variable name, so that
// server.port is read from SCRY_SERVER_PORT.
const envPrefix = "SCRY"

// defaults lists every key with a default value. Keys without a sensible
// default are listed in requiredKeys so that environment variables still
// reach them when no config file mentions them.
var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.max_upload_bytes": 1 << 20,
	"server.shutdown_timeout": 15 * time.Second,

	"database.max_open_conns": 10,

	"llm.provider":        "gemini",
	"llm.model_id":        "gemini-2.0-flash",
	"llm.openai_base_url": "",
	"llm.timeout":         60 * time.Second,

	"task.worker_count":         4,
	"task.queue_size":           4,
	"task.max_attempts":         3,
	"task.retry_delay":          time.Second,
	"task.resubmit_base_delay":  time.Second,
	"task.resubmit_max_delay":   30 * time.Second,
	"task.max_resubmits":        0,
	"task.recover_on_start":     true,
	"task.stuck_age":            30 * time.Minute,
	"task.stuck_check_interval": 5 * time.Minute,

	"rate_limit.backend":        "redis",
	"rate_limit.limit":          2,
	"rate_limit.window":         time.Second,
	"rate_limit.redis_addr":     "localhost:6379",
	"rate_limit.redis_password": "",
	"rate_limit.redis_db":       0,

	"dataset.backend":          "postgres",
	"dataset.mongo_uri":        "",
	"dataset.mongo_database":   "scry_bi",
	"dataset.mongo_collection": "datasets",

	"events.kafka_enabled": false,
	"events.kafka_brokers": []string{},
	"events.kafka_topic":   "chart-status",
}

var requiredKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"llm.gemini_api_key",
	"llm.openai_api_key",
}

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is loaded first without overriding
// variables already set. Environment variables take precedence over values
// from config.yaml. Returns a populated Config struct or an error if
// loading/validation fails.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load("")
}

// LoadFromFile behaves like Load but reads the given config file instead of
// searching the working directory. The file must exist.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range requiredKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks a configuration against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
