// Package config provides client configuration loaded from environment
// variables with defaults and validation. It centralizes settings such as
// backend base URLs, request timeouts, credential storage, chat reconnect
// policy, logging, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReconnectConfig defines the chat channel reconnection policy.
type ReconnectConfig struct {
	InitialBackoff time.Duration // first retry delay
	MaxBackoff     time.Duration // backoff ceiling
	MaxAttempts    int           // consecutive failed dials before giving up
}

// ChatConfig defines chat-side tunables.
type ChatConfig struct {
	SendRPS     float64       // outbound message tokens per second (>= 0)
	SendBurst   int           // outbound message bucket size (>= 1)
	DialTimeout time.Duration // websocket handshake timeout
	Reconnect   ReconnectConfig
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "howl-client")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the client.
type Config struct {
	// Backend
	APIBaseURL string // REST base URL, no trailing slash
	WSBaseURL  string // realtime base URL, no trailing slash

	// HTTP
	RequestTimeout time.Duration // per-request deadline
	RefreshTimeout time.Duration // token refresh deadline

	// Credentials
	CredDBPath string // SQLite path backing the durable token location

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Chat
	Chat ChatConfig

	// Debug server (disabled when empty)
	DebugAddr string // e.g. "127.0.0.1:9090"
	GinMode   string // debug|release|test

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Backend (defaults point at the local development backend)
		APIBaseURL: trimBaseURL(getenv("API_BASE_URL", "http://localhost:8000")),
		WSBaseURL:  trimBaseURL(getenv("WS_BASE_URL", "ws://localhost:8000")),

		// HTTP
		RequestTimeout: getdur("REQUEST_TIMEOUT", 15*time.Second),
		RefreshTimeout: getdur("REFRESH_TIMEOUT", 10*time.Second),

		// Credentials
		CredDBPath: getenv("CRED_DB_PATH", "howl.db"),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Chat
		Chat: ChatConfig{
			SendRPS:     getfloat("CHAT_SEND_RPS", 5.0),
			SendBurst:   getint("CHAT_SEND_BURST", 10),
			DialTimeout: getdur("WS_DIAL_TIMEOUT", 10*time.Second),
			Reconnect: ReconnectConfig{
				InitialBackoff: getdur("WS_BACKOFF_INITIAL", 500*time.Millisecond),
				MaxBackoff:     getdur("WS_BACKOFF_MAX", 30*time.Second),
				MaxAttempts:    getint("WS_MAX_RECONNECTS", 10),
			},
		},

		// Debug server
		DebugAddr: getenv("DEBUG_ADDR", ""),
		GinMode:   strings.ToLower(getenv("GIN_MODE", "release")),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "howl-client"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if !strings.HasPrefix(cfg.APIBaseURL, "http://") && !strings.HasPrefix(cfg.APIBaseURL, "https://") {
		return cfg, errors.New("API_BASE_URL must start with http:// or https://")
	}
	if !strings.HasPrefix(cfg.WSBaseURL, "ws://") && !strings.HasPrefix(cfg.WSBaseURL, "wss://") {
		return cfg, errors.New("WS_BASE_URL must start with ws:// or wss://")
	}
	if cfg.RequestTimeout <= 0 || cfg.RefreshTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if strings.TrimSpace(cfg.CredDBPath) == "" {
		return cfg, errors.New("CRED_DB_PATH must not be empty")
	}
	if cfg.Chat.SendRPS < 0 {
		return cfg, errors.New("CHAT_SEND_RPS must be >= 0")
	}
	if cfg.Chat.SendBurst < 1 {
		return cfg, errors.New("CHAT_SEND_BURST must be >= 1")
	}
	if cfg.Chat.DialTimeout <= 0 {
		return cfg, errors.New("WS_DIAL_TIMEOUT must be > 0")
	}
	if cfg.Chat.Reconnect.InitialBackoff <= 0 || cfg.Chat.Reconnect.MaxBackoff < cfg.Chat.Reconnect.InitialBackoff {
		return cfg, errors.New("WS_BACKOFF_MAX must be >= WS_BACKOFF_INITIAL > 0")
	}
	if cfg.Chat.Reconnect.MaxAttempts < 0 {
		return cfg, errors.New("WS_MAX_RECONNECTS must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// trimBaseURL strips trailing slashes so path joins stay predictable.
func trimBaseURL(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}
