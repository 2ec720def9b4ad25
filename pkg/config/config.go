package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete treewalk configuration.
//
// It captures everything the walker CLI needs: logging behavior, the walk
// parameters (root, pattern, recursion flags, buffer limits), and the
// catalogue backend selection with its type-specific options.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (TREEWALK_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Each catalogue backend defines its own options. The Config struct carries
// one map section per backend type and only the section matching the
// selected Type is decoded and used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Walk contains the traversal parameters
	Walk WalkConfig `mapstructure:"walk"`

	// Catalogue specifies the backend type and type-specific configuration
	Catalogue CatalogueConfig `mapstructure:"catalogue"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// WalkConfig contains the traversal parameters.
type WalkConfig struct {
	// Root is the catalogue path the walk starts from
	Root string `mapstructure:"root" validate:"required"`

	// Pattern filters the yielded leaf names ('#' one character, '*' any
	// run). Empty yields everything.
	Pattern string `mapstructure:"pattern"`

	// RecurseDirs descends into directories
	RecurseDirs bool `mapstructure:"recurse_dirs"`

	// RecurseImages descends into image containers
	RecurseImages bool `mapstructure:"recurse_images"`

	// InitialBufferSize is the starting record-buffer size per directory
	// level. Zero uses the walker default.
	InitialBufferSize int `mapstructure:"initial_buffer_size" validate:"gte=0"`

	// MaxBufferSize caps record-buffer growth per level. Zero means
	// unlimited.
	MaxBufferSize int `mapstructure:"max_buffer_size" validate:"gte=0"`
}

// CatalogueConfig specifies catalogue backend configuration.
//
// The Type field determines which backend is used. Only the corresponding
// type-specific section is decoded.
type CatalogueConfig struct {
	// Type specifies which catalogue backend to use
	// Valid values: filesystem, badger, s3, memory
	Type string `mapstructure:"type" validate:"required,oneof=filesystem badger s3 memory"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// Memory has no options; the section exists so a config file can name
	// the type explicitly.
	Memory map[string]any `mapstructure:"memory"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TREEWALK_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the TREEWALK_ prefix and underscores.
	// Example: TREEWALK_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("TREEWALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is fine; defaults cover everything.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "treewalk")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "treewalk")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
