// Package config provides environment-driven configuration for ai-gateway.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
)

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config represents the complete ai-gateway configuration.
// All values are sourced from the process environment; see FromEnv.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Proxy     ProxyConfig
	Providers ProvidersConfig
	Telemetry TelemetryConfig
}

// ProvidersConfig holds provider-specific toggles.
type ProvidersConfig struct {
	// BedrockUseInvoke routes Bedrock to the legacy InvokeModel endpoints
	// for models predating the Converse API. Only the endpoint family
	// changes: request bodies are still translated to the Converse shape
	// and streams decoded as Converse events, so the toggle suits models
	// that accept Converse payloads on the invoke endpoints. Clients
	// needing a model's native invoke format must send Converse-shaped
	// bodies themselves, which pass through untranslated.
	BedrockUseInvoke bool
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	// Host is the listen address. Default 127.0.0.1.
	Host string
	// Port is the listen port. Default 3000.
	Port int
}

// Listen returns the host:port address the server binds to.
func (s ServerConfig) Listen() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig controls the global zerolog logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default info.
	Level string
	// Pretty forces human-readable console output regardless of TTY detection.
	Pretty bool
}

// ParseLevel converts the configured level string to a zerolog level.
// Unknown values fall back to info.
func (l LoggingConfig) ParseLevel() zerolog.Level {
	switch l.Level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ProxyConfig holds the request/response bounds and deadlines of the
// streaming proxy engine.
type ProxyConfig struct {
	// MaxRequestBytes caps the inbound body size; exceeding it yields 413.
	MaxRequestBytes int64
	// MaxResponseBytes caps buffered (non-streaming) upstream bodies.
	MaxResponseBytes int64
	// UpstreamTimeout bounds non-streaming upstream calls end to end.
	// Streaming responses carry no total deadline.
	UpstreamTimeout time.Duration
	// ClientStallTimeout aborts a stream when the client stops reading.
	ClientStallTimeout time.Duration
	// StreamBufferSize bounds the telemetry tap channel per request.
	StreamBufferSize int
}

// TelemetryConfig configures the collector and its exporters.
type TelemetryConfig struct {
	// Environment tags exported records (deployment.environment).
	Environment string
	// Debug registers the console exporter and logs each record.
	Debug bool
	// QueueSize bounds the collector queue; full queue drops records.
	QueueSize int
	// Workers is the number of exporter worker goroutines.
	Workers int
	// ExportTimeout bounds each individual exporter call.
	ExportTimeout time.Duration
	// MaxStreamedChunks caps streamed_data capture per record.
	MaxStreamedChunks int
	// Elasticsearch configures the optional Elasticsearch exporter.
	Elasticsearch ElasticsearchConfig
}

// ElasticsearchConfig configures the Elasticsearch exporter.
type ElasticsearchConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Index    string
}

// BasicAuth returns the username/password pair when both are configured.
func (e ElasticsearchConfig) BasicAuth() mo.Option[[2]string] {
	if e.Username == "" || e.Password == "" {
		return mo.None[[2]string]()
	}
	return mo.Some([2]string{e.Username, e.Password})
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Proxy.MaxRequestBytes <= 0 {
		return fmt.Errorf("config: max request bytes must be positive, got %d", c.Proxy.MaxRequestBytes)
	}
	if c.Telemetry.QueueSize <= 0 {
		return fmt.Errorf("config: telemetry queue size must be positive, got %d", c.Telemetry.QueueSize)
	}
	if c.Telemetry.Workers <= 0 {
		return fmt.Errorf("config: telemetry workers must be positive, got %d", c.Telemetry.Workers)
	}
	return nil
}
