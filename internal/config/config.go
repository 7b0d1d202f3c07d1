package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm" validate:"required"`
	Task      TaskConfig      `mapstructure:"task" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
	Dataset   DatasetConfig   `mapstructure:"dataset" validate:"required"`
	Events    EventsConfig    `mapstructure:"events"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes" validate:"required,gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	// Provider selects the AI client implementation.
	Provider      string        `mapstructure:"provider" validate:"required,oneof=gemini openai"`
	ModelID       string        `mapstructure:"model_id" validate:"required"`
	GeminiAPIKey  string        `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	OpenAIAPIKey  string        `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	OpenAIBaseURL string        `mapstructure:"openai_base_url" validate:"omitempty,url"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"required,gt=0"`
}

// TaskConfig contains settings for the background generation pipeline.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size" validate:"required,gt=0"`

	// MaxAttempts bounds the attempts of one execution, first attempt included.
	MaxAttempts int           `mapstructure:"max_attempts" validate:"required,gt=0"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"required,gt=0"`

	// Saturation handling. MaxResubmits of 0 resubmits without limit.
	ResubmitBaseDelay time.Duration `mapstructure:"resubmit_base_delay" validate:"required,gt=0"`
	ResubmitMaxDelay  time.Duration `mapstructure:"resubmit_max_delay" validate:"required,gtefield=ResubmitBaseDelay"`
	MaxResubmits      int           `mapstructure:"max_resubmits" validate:"gte=0"`

	// RecoverOnStart re-enqueues waiting charts when the server starts.
	RecoverOnStart bool `mapstructure:"recover_on_start"`

	// StuckAge is how long a chart may stay in WAIT or RUNNING without an
	// update before recovery treats it as abandoned. Keep it above the LLM
	// timeout times MaxAttempts. Zero disables the age check and the stuck
	// monitor, which is only safe for a single instance.
	StuckAge           time.Duration `mapstructure:"stuck_age" validate:"gte=0"`
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval" validate:"gte=0"`
}

// RateLimitConfig contains per-user generation rate limiting settings.
type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend" validate:"required,oneof=redis local"`
	Limit         int           `mapstructure:"limit" validate:"required,gt=0"`
	Window        time.Duration `mapstructure:"window" validate:"required,gt=0"`
	RedisAddr     string        `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"gte=0"`
}

// DatasetConfig selects where raw uploaded datasets are stored.
type DatasetConfig struct {
	Backend         string `mapstructure:"backend" validate:"required,oneof=postgres mongo"`
	MongoURI        string `mapstructure:"mongo_uri" validate:"required_if=Backend mongo"`
	MongoDatabase   string `mapstructure:"mongo_database" validate:"required_if=Backend mongo"`
	MongoCollection string `mapstructure:"mongo_collection" validate:"required_if=Backend mongo"`
}

// EventsConfig configures publication of chart status events.
type EventsConfig struct {
	KafkaEnabled bool     `mapstructure:"kafka_enabled"`
	KafkaBrokers []string `mapstructure:"kafka_brokers" validate:"required_if=KafkaEnabled true"`
	KafkaTopic   string   `mapstructure:"kafka_topic" validate:"required_if=KafkaEnabled true"`
}
