package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults for everything the environment leaves unset.
const (
	DefaultHost               = "127.0.0.1"
	DefaultPort               = 3000
	DefaultMaxRequestBytes    = 10 << 20  // 10 MiB
	DefaultMaxResponseBytes   = 100 << 20 // 100 MiB
	DefaultUpstreamTimeout    = 60 * time.Second
	DefaultClientStallTimeout = 30 * time.Second
	DefaultStreamBufferSize   = 256
	DefaultQueueSize          = 1024
	DefaultWorkers            = 4
	DefaultExportTimeout      = 10 * time.Second
	DefaultMaxStreamedChunks  = 4096
	DefaultElasticsearchURL   = "http://localhost:9200"
	DefaultElasticsearchIndex = "ai-gateway-metrics"
)

// FromEnv builds the configuration from the process environment,
// applying defaults for anything unset.
//
// LOG_LEVEL takes precedence over RUST_LOG; the latter is honored so the
// gateway is a drop-in replacement for existing deployments.
func FromEnv() *Config {
	level := envString("LOG_LEVEL", envString("RUST_LOG", LevelInfo))

	return &Config{
		Server: ServerConfig{
			Host: envString("HOST", DefaultHost),
			Port: envInt("PORT", DefaultPort),
		},
		Logging: LoggingConfig{
			Level:  level,
			Pretty: envBool("LOG_PRETTY", false),
		},
		Proxy: ProxyConfig{
			MaxRequestBytes:    envInt64("MAX_REQUEST_BYTES", DefaultMaxRequestBytes),
			MaxResponseBytes:   envInt64("MAX_RESPONSE_BYTES", DefaultMaxResponseBytes),
			UpstreamTimeout:    envSeconds("UPSTREAM_TIMEOUT_SECS", DefaultUpstreamTimeout),
			ClientStallTimeout: envSeconds("CLIENT_STALL_TIMEOUT_SECS", DefaultClientStallTimeout),
			StreamBufferSize:   envInt("STREAM_BUFFER_SIZE", DefaultStreamBufferSize),
		},
		Providers: ProvidersConfig{
			BedrockUseInvoke: envBool("BEDROCK_USE_INVOKE", false),
		},
		Telemetry: TelemetryConfig{
			Environment:       envString("ENVIRONMENT", "production"),
			Debug:             envBool("TELEMETRY_DEBUG", false),
			QueueSize:         envInt("TELEMETRY_QUEUE_SIZE", DefaultQueueSize),
			Workers:           envInt("TELEMETRY_WORKERS", DefaultWorkers),
			ExportTimeout:     envSeconds("TELEMETRY_EXPORT_TIMEOUT_SECS", DefaultExportTimeout),
			MaxStreamedChunks: envInt("TELEMETRY_MAX_STREAMED_CHUNKS", DefaultMaxStreamedChunks),
			Elasticsearch: ElasticsearchConfig{
				Enabled:  envBool("ENABLE_ELASTICSEARCH", false),
				URL:      envString("ELASTICSEARCH_URL", DefaultElasticsearchURL),
				Username: os.Getenv("ELASTICSEARCH_USERNAME"),
				Password: os.Getenv("ELASTICSEARCH_PASSWORD"),
				Index:    envString("ELASTICSEARCH_INDEX", DefaultElasticsearchIndex),
			},
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
