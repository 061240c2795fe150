package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/raaihank/pasteshield/internal/navigation"
	"github.com/raaihank/pasteshield/internal/phishing"
	"github.com/raaihank/pasteshield/internal/privacy"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PASTESHIELD_SERVER_PORT
const EnvPrefix = "PASTESHIELD"

// Loader reads configuration from a file and the environment and can watch
// the file for changes
type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a loader. An empty path searches the default locations.
func NewLoader(configPath string) (*Loader, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/pasteshield/")
	v.AddConfigPath("$HOME/.pasteshield/")

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	// Defaults are registered key by key so that env overrides apply to
	// keys the config file never mentions
	if err := setDefaults(v, GetDefaults()); err != nil {
		return nil, err
	}

	return &Loader{v: v}, nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	l, err := NewLoader(configPath)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

// Load reads the file, applies overrides and validates the result
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return l.decode()
}

// ConfigFile returns the file in use, if any
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) decode() (*Config, error) {
	config := &Config{}
	if err := l.v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Watch starts watching the configuration file for changes. Invalid
// revisions are reported to onError and the running config is kept.
func (l *Loader) Watch(callback func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}

		callback(newConfig)
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper, defaults *Config) error {
	raw, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}

	var tree map[string]interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("failed to decode defaults: %w", err)
	}

	registerDefaults(v, "", tree)
	return nil
}

func registerDefaults(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for key, value := range tree {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			registerDefaults(v, full, nested)
			continue
		}
		v.SetDefault(full, value)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if _, err := privacy.ParseMode(config.Privacy.Mode); err != nil {
		return err
	}
	if config.Privacy.MatchTimeout < 0 {
		return fmt.Errorf("invalid privacy match timeout: %s", config.Privacy.MatchTimeout)
	}

	if _, err := navigation.ParseMode(config.Phishing.Mode); err != nil {
		return err
	}
	if s := config.Phishing.Sensitivity; s != nil && (*s < 0 || *s > 100) {
		return fmt.Errorf("invalid phishing sensitivity: %d (must be 0-100)", *s)
	}
	if err := phishing.ValidateThreshold(config.Phishing.Threshold); err != nil {
		return err
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache is enabled but redis_url is empty")
	}

	if config.Store.Enabled {
		if config.Store.Driver != "postgres" && config.Store.Driver != "sqlite" {
			return fmt.Errorf("invalid store driver: %s (must be postgres or sqlite)", config.Store.Driver)
		}
		if config.Store.DSN == "" {
			return fmt.Errorf("store is enabled but dsn is empty")
		}
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive requests_per_second and burst")
	}

	return nil
}
