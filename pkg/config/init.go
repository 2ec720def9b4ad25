package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InitConfig writes a commented default configuration file to the default
// config path and returns that path. It refuses to overwrite an existing
// file unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a commented default configuration file to the
// given path, creating parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{}
	ApplyDefaults(cfg)

	content, err := generateYAMLWithComments(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders the configuration as YAML with a
// comment above each setting. The output is kept in sync with the Config
// struct by hand; the test suite parses it back to catch drift.
func generateYAMLWithComments(cfg *Config) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("config must not be nil")
	}

	var b strings.Builder

	b.WriteString("# Treewalk Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Settings can also be provided via TREEWALK_* environment variables,\n")
	b.WriteString("# e.g. TREEWALK_LOGGING_LEVEL=DEBUG. Command-line flags beat both.\n")
	b.WriteString("\n")

	b.WriteString("logging:\n")
	b.WriteString("  # Minimum log level: DEBUG, INFO, WARN, ERROR\n")
	fmt.Fprintf(&b, "  level: %s\n", cfg.Logging.Level)
	b.WriteString("  # Where logs are written: stdout, stderr, or a file path\n")
	fmt.Fprintf(&b, "  output: %s\n", cfg.Logging.Output)
	b.WriteString("\n")

	b.WriteString("walk:\n")
	b.WriteString("  # Catalogue path the walk starts from\n")
	fmt.Fprintf(&b, "  root: %q\n", cfg.Walk.Root)
	b.WriteString("  # Leaf name pattern: '#' matches one character, '*' any run.\n")
	b.WriteString("  # Empty matches everything.\n")
	fmt.Fprintf(&b, "  pattern: %q\n", cfg.Walk.Pattern)
	b.WriteString("  # Descend into directories\n")
	fmt.Fprintf(&b, "  recurse_dirs: %t\n", cfg.Walk.RecurseDirs)
	b.WriteString("  # Descend into image containers (archives)\n")
	fmt.Fprintf(&b, "  recurse_images: %t\n", cfg.Walk.RecurseImages)
	b.WriteString("  # Starting record-buffer size per directory level (0 = walker default)\n")
	fmt.Fprintf(&b, "  initial_buffer_size: %d\n", cfg.Walk.InitialBufferSize)
	b.WriteString("  # Record-buffer growth cap per level (0 = unlimited)\n")
	fmt.Fprintf(&b, "  max_buffer_size: %d\n", cfg.Walk.MaxBufferSize)
	b.WriteString("\n")

	b.WriteString("catalogue:\n")
	b.WriteString("  # Backend type: filesystem, badger, s3, memory\n")
	fmt.Fprintf(&b, "  type: %s\n", cfg.Catalogue.Type)
	b.WriteString("\n")
	b.WriteString("  filesystem:\n")
	b.WriteString("    # Host directory exposed as the catalogue root\n")
	b.WriteString("    path: /srv/treewalk\n")
	b.WriteString("    # Extra extensions treated as image containers\n")
	b.WriteString("    # image_exts: [\".zip\"]\n")
	b.WriteString("\n")
	b.WriteString("  badger:\n")
	b.WriteString("    # BadgerDB database directory\n")
	b.WriteString("    path: /var/lib/treewalk/catalogue\n")
	b.WriteString("    # Keep the database purely in memory (ignores path)\n")
	b.WriteString("    in_memory: false\n")
	b.WriteString("\n")
	b.WriteString("  s3:\n")
	b.WriteString("    # region: us-east-1\n")
	b.WriteString("    # bucket: my-catalogue\n")
	b.WriteString("    # key_prefix: archive/\n")
	b.WriteString("    # endpoint: http://localhost:9000\n")
	b.WriteString("    # access_key_id: \"\"\n")
	b.WriteString("    # secret_access_key: \"\"\n")

	return b.String(), nil
}
