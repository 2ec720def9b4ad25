package config

import (
	"strings"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// This runs after loading configuration from file and environment, so zero
// values (0, "", false, nil) are replaced with defaults while explicit
// values are preserved. Backend-specific defaults live with the backends;
// only the selection-level defaults are applied here.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyWalkDefaults(&cfg.Walk)
	applyCatalogueDefaults(&cfg.Catalogue)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyWalkDefaults sets traversal defaults.
func applyWalkDefaults(cfg *WalkConfig) {
	if cfg.Root == "" {
		// The filesystem and S3 backends root their namespaces at "$".
		cfg.Root = "$"
	}
}

// applyCatalogueDefaults sets backend selection defaults.
func applyCatalogueDefaults(cfg *CatalogueConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
}
