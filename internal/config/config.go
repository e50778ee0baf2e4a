// Package config defines the engine's configuration structure. Configuration
// is loaded once at process initialization (Lambda cold start) and immutable
// thereafter; any missing required value or invalid format fails startup
// immediately.
package config

import "time"

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"terrasol"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Database DatabaseConfig
	AWS      AWSConfig
	Redis    RedisConfig
	Engine   EngineConfig
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region          string `envconfig:"AWS_REGION" default:"eu-north-1"`
	PrecomputeQueue string `envconfig:"SQS_PRECOMPUTE" validate:"required,url"`
	ArchiveBucket   string `envconfig:"ARCHIVE_BUCKET"`

	// LocalStack support, empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// RedisConfig holds the timeline hot cache connection. An empty address
// disables caching.
type RedisConfig struct {
	Addr        string        `envconfig:"REDIS_ADDR"`
	Password    string        `envconfig:"REDIS_PASSWORD"`
	DB          int           `envconfig:"REDIS_DB" default:"0"`
	TimelineTTL time.Duration `envconfig:"REDIS_TIMELINE_TTL" default:"5m"`
}

// EngineConfig holds computation tuning parameters.
type EngineConfig struct {
	StepMinutes    int           `envconfig:"ENGINE_STEP_MINUTES" default:"10" validate:"min=1,max=60"`
	Concurrency    int           `envconfig:"ENGINE_CONCURRENCY" default:"8" validate:"min=1,max=64"`
	Retention      time.Duration `envconfig:"ENGINE_RETENTION" default:"48h"`
	MaxRetries     int           `envconfig:"ENGINE_MAX_RETRIES" default:"3" validate:"min=0,max=10"`
	SweepBatchSize int           `envconfig:"ENGINE_SWEEP_BATCH" default:"500" validate:"min=1"`
	Backfill       bool          `envconfig:"ENGINE_TIMELINE_BACKFILL" default:"true"`
}
