package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load builds the Config from the environment:
//  1. Enforce UTC to prevent timezone drift in date arithmetic.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Populate the struct from envconfig tags.
//  4. Validate with go-playground/validator; any violation fails startup.
func Load() (*Config, error) {
	time.Local = time.UTC

	// Local development convenience only; deployed environments inject real
	// env vars.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad is Load for process mains: any error is fatal by panic, which in
// Lambda surfaces as an init failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
