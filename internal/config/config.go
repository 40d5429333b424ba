package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "POLLRANKING_"

// MinSigningKeyLength matches the HMAC key floor enforced by the token signer.
const MinSigningKeyLength = 32

type Config struct {
	HTTP      *HTTPConfig
	WebSocket *WebSocketConfig
	Store     *StoreConfig
	Poll      *PollConfig
	Token     *TokenConfig
	Log       *LogConfig
}

type HTTPConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// WebSocketConfig covers heartbeats, frame limits and per-participant rate limiting.
type WebSocketConfig struct {
	PingInterval     time.Duration
	PongWait         time.Duration
	MaxMessageSize   int64
	OperationTimeout time.Duration
	AllowedOrigins   []string
	RateLimit        int
	RateWindow       time.Duration
}

type StoreConfig struct {
	Driver          string
	SQLitePath      string
	PostgresDSN     string
	WriteTimeout    time.Duration
	CleanupInterval time.Duration
}

type PollConfig struct {
	TTL time.Duration
}

// TokenConfig has no usable default key; one must be supplied.
type TokenConfig struct {
	SigningKey string
	Issuer     string
}

type LogConfig struct {
	Level  string
	Format string
}

// DefaultConfig returns settings for a single-node deployment on SQLite.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval:     30 * time.Second,
			PongWait:         60 * time.Second,
			MaxMessageSize:   4096,
			OperationTimeout: 10 * time.Second,
			RateLimit:        100,
			RateWindow:       time.Minute,
		},
		Store: &StoreConfig{
			Driver:          "sqlite",
			SQLitePath:      "./data/pollranking.db",
			WriteTimeout:    30 * time.Second,
			CleanupInterval: 5 * time.Minute,
		},
		Poll: &PollConfig{
			TTL: 2 * time.Hour,
		},
		Token: &TokenConfig{
			Issuer: "pollranking",
		},
		Log: &LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func (c *Config) Validate() error {
	if c.HTTP == nil || c.WebSocket == nil || c.Store == nil || c.Poll == nil || c.Token == nil || c.Log == nil {
		return errors.New("all configuration sections are required")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP shutdown timeout must be positive")
	}

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.PongWait <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket pong wait must exceed the ping interval")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("WebSocket max message size must be positive")
	}
	if c.WebSocket.OperationTimeout <= 0 {
		return fmt.Errorf("WebSocket operation timeout must be positive")
	}
	if c.WebSocket.RateLimit <= 0 || c.WebSocket.RateWindow <= 0 {
		return fmt.Errorf("WebSocket rate limit and window must be positive")
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store sqlite path cannot be empty")
		}
		if c.Store.WriteTimeout <= 0 {
			return fmt.Errorf("store write timeout must be positive")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store postgres DSN cannot be empty")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.CleanupInterval <= 0 {
		return fmt.Errorf("store cleanup interval must be positive")
	}

	if c.Poll.TTL <= 0 {
		return fmt.Errorf("poll TTL must be positive")
	}

	if len(c.Token.SigningKey) < MinSigningKeyLength {
		return fmt.Errorf("token signing key must be at least %d bytes", MinSigningKeyLength)
	}
	if c.Token.Issuer == "" {
		return fmt.Errorf("token issuer cannot be empty")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log format must be json or text, got %q", c.Log.Format)
	}

	return nil
}

// SlogLevel parses Level as a slog level name.
func (l *LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

// Addr returns the listen address for net/http.
func (h *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// LoadFromEnv reads POLLRANKING_* variables over the defaults. Unparseable values are ignored.
func LoadFromEnv() *Config {
	config := DefaultConfig()
	applyEnv(config)
	return config
}

func applyEnv(config *Config) {
	setString(&config.HTTP.Host, "HTTP_HOST")
	setInt(&config.HTTP.Port, "HTTP_PORT")
	setDuration(&config.HTTP.ReadTimeout, "HTTP_READ_TIMEOUT")
	setDuration(&config.HTTP.WriteTimeout, "HTTP_WRITE_TIMEOUT")
	setDuration(&config.HTTP.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT")

	setDuration(&config.WebSocket.PingInterval, "WEBSOCKET_PING_INTERVAL")
	setDuration(&config.WebSocket.PongWait, "WEBSOCKET_PONG_WAIT")
	setDuration(&config.WebSocket.OperationTimeout, "WEBSOCKET_OPERATION_TIMEOUT")
	setInt(&config.WebSocket.RateLimit, "WEBSOCKET_RATE_LIMIT")
	setDuration(&config.WebSocket.RateWindow, "WEBSOCKET_RATE_WINDOW")
	if v := os.Getenv(envPrefix + "WEBSOCKET_MAX_MESSAGE_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.WebSocket.MaxMessageSize = size
		}
	}
	if v := os.Getenv(envPrefix + "WEBSOCKET_ALLOWED_ORIGINS"); v != "" {
		config.WebSocket.AllowedOrigins = splitList(v)
	}

	setString(&config.Store.Driver, "STORE_DRIVER")
	setString(&config.Store.SQLitePath, "STORE_SQLITE_PATH")
	setString(&config.Store.PostgresDSN, "STORE_POSTGRES_DSN")
	setDuration(&config.Store.WriteTimeout, "STORE_WRITE_TIMEOUT")
	setDuration(&config.Store.CleanupInterval, "STORE_CLEANUP_INTERVAL")

	setDuration(&config.Poll.TTL, "POLL_TTL")

	setString(&config.Token.SigningKey, "TOKEN_SIGNING_KEY")
	setString(&config.Token.Issuer, "TOKEN_ISSUER")

	setString(&config.Log.Level, "LOG_LEVEL")
	setString(&config.Log.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ConfigFile is the YAML layout. Durations are strings such as "30s" or "2h".
type ConfigFile struct {
	HTTP *struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"http"`
	WebSocket *struct {
		PingInterval     string   `yaml:"ping_interval"`
		PongWait         string   `yaml:"pong_wait"`
		MaxMessageSize   int64    `yaml:"max_message_size"`
		OperationTimeout string   `yaml:"operation_timeout"`
		AllowedOrigins   []string `yaml:"allowed_origins"`
		RateLimit        int      `yaml:"rate_limit"`
		RateWindow       string   `yaml:"rate_window"`
	} `yaml:"websocket"`
	Store *struct {
		Driver          string `yaml:"driver"`
		SQLitePath      string `yaml:"sqlite_path"`
		PostgresDSN     string `yaml:"postgres_dsn"`
		WriteTimeout    string `yaml:"write_timeout"`
		CleanupInterval string `yaml:"cleanup_interval"`
	} `yaml:"store"`
	Poll *struct {
		TTL string `yaml:"ttl"`
	} `yaml:"poll"`
	Token *struct {
		SigningKey string `yaml:"signing_key"`
		Issuer     string `yaml:"issuer"`
	} `yaml:"token"`
	Log *struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// LoadFromFile reads a YAML file over the defaults and validates the result.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, path); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

func applyFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	var errs []error
	duration := func(dst *time.Duration, field, v string) {
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			return
		}
		*dst = d
	}
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	if f := file.HTTP; f != nil {
		str(&config.HTTP.Host, f.Host)
		if f.Port > 0 {
			config.HTTP.Port = f.Port
		}
		duration(&config.HTTP.ReadTimeout, "http.read_timeout", f.ReadTimeout)
		duration(&config.HTTP.WriteTimeout, "http.write_timeout", f.WriteTimeout)
		duration(&config.HTTP.ShutdownTimeout, "http.shutdown_timeout", f.ShutdownTimeout)
	}

	if f := file.WebSocket; f != nil {
		duration(&config.WebSocket.PingInterval, "websocket.ping_interval", f.PingInterval)
		duration(&config.WebSocket.PongWait, "websocket.pong_wait", f.PongWait)
		duration(&config.WebSocket.OperationTimeout, "websocket.operation_timeout", f.OperationTimeout)
		duration(&config.WebSocket.RateWindow, "websocket.rate_window", f.RateWindow)
		if f.MaxMessageSize > 0 {
			config.WebSocket.MaxMessageSize = f.MaxMessageSize
		}
		if f.RateLimit > 0 {
			config.WebSocket.RateLimit = f.RateLimit
		}
		if len(f.AllowedOrigins) > 0 {
			config.WebSocket.AllowedOrigins = f.AllowedOrigins
		}
	}

	if f := file.Store; f != nil {
		str(&config.Store.Driver, f.Driver)
		str(&config.Store.SQLitePath, f.SQLitePath)
		str(&config.Store.PostgresDSN, f.PostgresDSN)
		duration(&config.Store.WriteTimeout, "store.write_timeout", f.WriteTimeout)
		duration(&config.Store.CleanupInterval, "store.cleanup_interval", f.CleanupInterval)
	}

	if f := file.Poll; f != nil {
		duration(&config.Poll.TTL, "poll.ttl", f.TTL)
	}

	if f := file.Token; f != nil {
		str(&config.Token.SigningKey, f.SigningKey)
		str(&config.Token.Issuer, f.Issuer)
	}

	if f := file.Log; f != nil {
		str(&config.Log.Level, f.Level)
		str(&config.Log.Format, f.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid durations in %s: %w", path, errors.Join(errs...))
	}
	return nil
}

// LoadConfigWithPrecedence resolves file > environment > defaults. An empty path or a
// missing file falls back to environment and defaults; a file that exists but cannot be
// parsed is an error.
func LoadConfigWithPrecedence(path string) (*Config, error) {
	config := LoadFromEnv()

	if path != "" {
		if err := applyFile(config, path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
