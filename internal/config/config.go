// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"fc-link/pkg/discovery"
)

// Config represents the application configuration
type Config struct {
	Link    LinkConfig    `mapstructure:"link"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Logging LoggingConfig `mapstructure:"logging"`
	App     AppConfig     `mapstructure:"app"`
}

// LinkConfig represents serial link configuration
type LinkConfig struct {
	// IdentityKey is the USB serial-number string the flight
	// controller reports on a direct connection.
	IdentityKey string `mapstructure:"identity_key"`

	PrimaryBaud   int `mapstructure:"primary_baud"`
	BridgeBaud    int `mapstructure:"bridge_baud"`
	AlternateBaud int `mapstructure:"alternate_baud"`

	// BridgeKeyword marks a serial-CAN adapter in the USB product
	// name; AlternateKeyword marks adapters needing AlternateBaud in
	// the manufacturer string.
	BridgeKeyword    string `mapstructure:"bridge_keyword"`
	AlternateKeyword string `mapstructure:"alternate_keyword"`

	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	DisconnectedTimeout time.Duration `mapstructure:"disconnected_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`

	// ResolveManufacturer enables USB descriptor-string lookups for
	// the manufacturer field (needs USB access permissions).
	ResolveManufacturer bool `mapstructure:"resolve_manufacturer"`
}

// MonitorConfig represents the HTTP monitor configuration
type MonitorConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variable support
	viper.SetEnvPrefix("FC_LINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file; defaults alone are a valid configuration
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Link defaults, matching the reference firmware
	viper.SetDefault("link.identity_key", "AN")
	viper.SetDefault("link.primary_baud", 460800)
	viper.SetDefault("link.bridge_baud", 115200)
	viper.SetDefault("link.alternate_baud", 921600)
	viper.SetDefault("link.bridge_keyword", "slcan")
	viper.SetDefault("link.alternate_keyword", "wch")
	viper.SetDefault("link.read_timeout", "10ms")
	viper.SetDefault("link.disconnected_timeout", "1s")
	viper.SetDefault("link.poll_interval", "100ms")
	viper.SetDefault("link.resolve_manufacturer", false)

	// Monitor defaults
	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.host", "127.0.0.1")
	viper.SetDefault("monitor.port", "8094")
	viper.SetDefault("monitor.read_timeout", "30s")
	viper.SetDefault("monitor.write_timeout", "30s")
	viper.SetDefault("monitor.idle_timeout", "120s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// App defaults
	viper.SetDefault("app.name", "fc-link")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Link.PrimaryBaud <= 0 {
		return fmt.Errorf("link.primary_baud must be positive")
	}
	if config.Link.BridgeBaud <= 0 {
		return fmt.Errorf("link.bridge_baud must be positive")
	}
	if config.Link.AlternateBaud <= 0 {
		return fmt.Errorf("link.alternate_baud must be positive")
	}
	if config.Link.ReadTimeout <= 0 {
		return fmt.Errorf("link.read_timeout must be positive")
	}
	if config.Link.PollInterval <= 0 {
		return fmt.Errorf("link.poll_interval must be positive")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// DiscoveryConfig maps the link section onto the discovery core's
// configuration.
func (c *Config) DiscoveryConfig() *discovery.Config {
	return &discovery.Config{
		IdentityKey: c.Link.IdentityKey,
		Bauds: discovery.BaudTable{
			Primary:          c.Link.PrimaryBaud,
			Bridge:           c.Link.BridgeBaud,
			Alternate:        c.Link.AlternateBaud,
			BridgeKeyword:    c.Link.BridgeKeyword,
			AlternateKeyword: c.Link.AlternateKeyword,
		},
		ReadTimeout:         c.Link.ReadTimeout,
		ResolveManufacturer: c.Link.ResolveManufacturer,
	}
}

// GetMonitorAddr returns the monitor listen address
func (c *Config) GetMonitorAddr() string {
	return fmt.Sprintf("%s:%s", c.Monitor.Host, c.Monitor.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
