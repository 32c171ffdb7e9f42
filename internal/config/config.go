// Package config defines the global configuration structure for the livedash
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast). Note that the engine's tick interval is
// NOT range-validated here: out-of-range intervals are clamped by the engine,
// never rejected.
package config

import (
	"time"

	"livedash/internal/types"
)

// Config is the top-level configuration struct for the livedash service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"livedash"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server ServerConfig
	Engine EngineConfig
	Remote RemoteConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// EngineConfig holds the ingestion engine's initial control-surface settings.
// Mode, interval, and endpoint can all be changed at runtime through the
// control API; these are only the boot values.
type EngineConfig struct {
	Mode types.SourceMode `envconfig:"SOURCE_MODE" default:"synthetic" validate:"required,oneof=synthetic remote"`

	// IntervalMs is clamped to [200, 5000] by the engine, not validated here.
	IntervalMs int `envconfig:"TICK_INTERVAL_MS" default:"800"`

	// SensorIDs is the ordered sensor identifier set for the synthetic
	// generator. The reference deployment uses four sensors.
	SensorIDs []string `envconfig:"SENSOR_IDS" default:"S1,S2,S3,S4" validate:"required,min=1"`

	// HistoryCapacity bounds the in-memory history window.
	HistoryCapacity int `envconfig:"HISTORY_CAPACITY" default:"200" validate:"required,min=1"`

	// Seed seeds the synthetic generator's random walk. Zero selects a
	// time-derived seed at startup.
	Seed int64 `envconfig:"SYNTHETIC_SEED" default:"0"`
}

// RemoteConfig holds settings for the remote batch endpoint.
type RemoteConfig struct {
	EndpointURL string        `envconfig:"REMOTE_ENDPOINT_URL" validate:"omitempty,url"`
	Timeout     time.Duration `envconfig:"REMOTE_TIMEOUT" default:"5s"`
	UserAgent   string        `envconfig:"REMOTE_USER_AGENT" default:"livedash-fetcher/1.0"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
