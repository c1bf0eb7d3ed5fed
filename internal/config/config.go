// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	DBPath       string
	LogLevel     string
	WorkerSecret string

	RedisAddr string // empty = in-process account locks
	LockTTL   time.Duration

	Twilio     TwilioConfig
	Generation GenerationConfig

	MessageLogRetention time.Duration
	MaintenanceInterval time.Duration

	ConversationLog ConversationLogConfig
}

// TwilioConfig holds WhatsApp delivery credentials. Delivery falls back to
// logging when AccountSID is empty.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	APIBase    string
}

// Enabled reports whether outbound messages go through Twilio.
func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != ""
}

// GenerationConfig controls the course-generation runner. At most one of
// GRPCAddr and HTTPURL is used; gRPC wins when both are set.
type GenerationConfig struct {
	GRPCAddr  string
	HTTPURL   string
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Estimate  string
}

// Enabled reports whether a generation worker is configured.
func (c GenerationConfig) Enabled() bool {
	return c.GRPCAddr != "" || c.HTTPURL != ""
}

// ConversationLogConfig controls the NDJSON conversation transcript.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DBPath:       getEnv("DB_PATH", "./data/classmate.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		WorkerSecret: getEnv("WORKER_SECRET", ""),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		LockTTL:      getEnvDuration("LOCK_TTL", 30*time.Second),
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			From:       getEnv("TWILIO_FROM", ""),
			APIBase:    getEnv("TWILIO_API_BASE", "https://api.twilio.com"),
		},
		Generation: GenerationConfig{
			GRPCAddr:  getEnv("GENERATION_GRPC_ADDR", ""),
			HTTPURL:   getEnv("GENERATION_HTTP_URL", ""),
			Workers:   getEnvInt("GENERATION_WORKERS", 2),
			QueueSize: getEnvInt("GENERATION_QUEUE_SIZE", 64),
			Timeout:   getEnvDuration("GENERATION_TIMEOUT", 30*time.Second),
			Estimate:  getEnv("GENERATION_ESTIMATE", "2-3 minutes"),
		},
		MessageLogRetention: getEnvDuration("MESSAGE_LOG_RETENTION", 7*24*time.Hour),
		MaintenanceInterval: getEnvDuration("MAINTENANCE_INTERVAL", time.Hour),
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be > 0")
	}
	if c.Twilio.Enabled() && (c.Twilio.AuthToken == "" || c.Twilio.From == "") {
		return fmt.Errorf("TWILIO_AUTH_TOKEN and TWILIO_FROM are required with TWILIO_ACCOUNT_SID")
	}
	if c.Generation.Workers <= 0 {
		return fmt.Errorf("GENERATION_WORKERS must be > 0")
	}
	if c.Generation.QueueSize <= 0 {
		return fmt.Errorf("GENERATION_QUEUE_SIZE must be > 0")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be > 0")
	}
	if c.MessageLogRetention <= 0 {
		return fmt.Errorf("MESSAGE_LOG_RETENTION must be > 0")
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("MAINTENANCE_INTERVAL must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", s)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
