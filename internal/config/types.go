package config

import (
	"net"
	"strconv"
	"time"

	"github.com/raaihank/pasteshield/internal/navigation"
	"github.com/raaihank/pasteshield/internal/phishing"
	"github.com/raaihank/pasteshield/internal/privacy"
)

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Privacy   PrivacyConfig   `yaml:"privacy" mapstructure:"privacy"`
	Phishing  PhishingConfig  `yaml:"phishing" mapstructure:"phishing"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// PrivacyConfig configures paste and upload inspection
type PrivacyConfig struct {
	Enabled           bool                        `yaml:"enabled" mapstructure:"enabled"`
	Mode              string                      `yaml:"mode" mapstructure:"mode"`
	PatternsFile      string                      `yaml:"patterns_file" mapstructure:"patterns_file"`
	Patterns          []privacy.PatternDefinition `yaml:"patterns" mapstructure:"patterns"`
	BlockedExtensions []string                    `yaml:"blocked_extensions" mapstructure:"blocked_extensions"`
	MatchTimeout      time.Duration               `yaml:"match_timeout" mapstructure:"match_timeout"`
}

// PhishingConfig configures URL scoring and the navigation guard
type PhishingConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Mode    string `yaml:"mode" mapstructure:"mode"` // disabled, warn or block
	// Sensitivity (0-100) overrides Threshold when set
	Sensitivity     *int          `yaml:"sensitivity" mapstructure:"sensitivity"`
	Threshold       float64       `yaml:"threshold" mapstructure:"threshold"`
	TablesFile      string        `yaml:"tables_file" mapstructure:"tables_file"`
	TrustedDomains  []string      `yaml:"trusted_domains" mapstructure:"trusted_domains"`
	WhitelistTTL    time.Duration `yaml:"whitelist_ttl" mapstructure:"whitelist_ttl"`
	WarningPage     string        `yaml:"warning_page" mapstructure:"warning_page"`
	InternalSchemes []string      `yaml:"internal_schemes" mapstructure:"internal_schemes"`
	CacheResults    bool          `yaml:"cache_results" mapstructure:"cache_results"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Username        string        `yaml:"username" mapstructure:"username"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Events          struct {
		BroadcastDetections  bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
		BroadcastNavigation  bool `yaml:"broadcast_navigation" mapstructure:"broadcast_navigation"`
		BroadcastSystem      bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// CacheConfig configures the Redis verdict cache
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// StoreConfig configures the detection event store
type StoreConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Driver          string        `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// RateLimitConfig configures per-client API rate limiting
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Privacy: PrivacyConfig{
			Enabled:           true,
			Mode:              string(privacy.ModeInteractive),
			Patterns:          privacy.DefaultPatterns(),
			BlockedExtensions: []string{"env", "pem", "key", "p12", "pfx", "kdbx", "sql", "csv"},
			MatchTimeout:      250 * time.Millisecond,
		},
		Phishing: PhishingConfig{
			Enabled:         true,
			Mode:            string(navigation.ModeBlock),
			Threshold:       phishing.DefaultThreshold,
			WhitelistTTL:    navigation.DefaultWhitelistTTL,
			WarningPage:     "http://127.0.0.1:8080/warning.html",
			InternalSchemes: append([]string(nil), navigation.DefaultInternalSchemes...),
			CacheResults:    true,
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			MaxConnections:  100,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
			AllowedOrigins:  []string{"*"},
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   2,
			DefaultTTL:     time.Hour,
			KeyPrefix:      "pasteshield",
		},
		Store: StoreConfig{
			Enabled:         false,
			Driver:          "sqlite",
			DSN:             "pasteshield.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
			IdleTimeout:       10 * time.Minute,
		},
	}

	cfg.WebSocket.Events.BroadcastDetections = true
	cfg.WebSocket.Events.BroadcastNavigation = true
	cfg.WebSocket.Events.BroadcastSystem = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}

// Address returns the listen address
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// EffectiveThreshold resolves the classification threshold. Sensitivity wins
// over an explicit threshold.
func (p PhishingConfig) EffectiveThreshold() float64 {
	if p.Sensitivity != nil {
		return phishing.ThresholdFromSensitivity(*p.Sensitivity)
	}
	return p.Threshold
}

// DetectorConfig builds the detector configuration, loading the table file
// when one is configured
func (p PhishingConfig) DetectorConfig() (phishing.Config, error) {
	tables := phishing.DefaultTables()
	if p.TablesFile != "" {
		loaded, err := phishing.LoadTables(p.TablesFile)
		if err != nil {
			return phishing.Config{}, err
		}
		tables = loaded
	}
	tables.TrustedDomains = append(tables.TrustedDomains, p.TrustedDomains...)

	return phishing.Config{Tables: tables, Threshold: p.EffectiveThreshold()}, nil
}

// GuardConfig builds the navigation guard configuration
func (p PhishingConfig) GuardConfig() navigation.Config {
	mode := navigation.Mode(p.Mode)
	if !p.Enabled {
		mode = navigation.ModeDisabled
	}
	return navigation.Config{
		Mode:            mode,
		WarningPage:     p.WarningPage,
		WhitelistTTL:    p.WhitelistTTL,
		InternalSchemes: p.InternalSchemes,
	}
}

// LoadPatterns returns the configured pattern set. A patterns file replaces
// the inline list.
func (p PrivacyConfig) LoadPatterns() ([]privacy.PatternDefinition, error) {
	if p.PatternsFile != "" {
		return privacy.LoadPatternPack(p.PatternsFile)
	}
	return p.Patterns, nil
}
