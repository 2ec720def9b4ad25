package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/treewalk/pkg/walker"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "$", cfg.Walk.Root)
	assert.Equal(t, "filesystem", cfg.Catalogue.Type)
	assert.NotNil(t, cfg.Catalogue.Filesystem)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
walk:
  root: "$/archive"
  pattern: "*oo*"
  recurse_dirs: true
  recurse_images: true
  initial_buffer_size: 128
  max_buffer_size: 4096
catalogue:
  type: badger
  badger:
    path: /var/lib/treewalk
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	assert.Equal(t, "$/archive", cfg.Walk.Root)
	assert.Equal(t, "*oo*", cfg.Walk.Pattern)
	assert.True(t, cfg.Walk.RecurseDirs)
	assert.Equal(t, "badger", cfg.Catalogue.Type)
	assert.Equal(t, "/var/lib/treewalk", cfg.Catalogue.Badger["path"])
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Run("bad catalogue type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("catalogue:\n  type: tape\n"), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("buffer sizes inverted", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
walk:
  initial_buffer_size: 4096
  max_buffer_size: 64
`), 0644))
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_buffer_size")
	})
}

func TestWalkerOptions(t *testing.T) {
	opts := WalkerOptions(&WalkConfig{
		Pattern:           "*fo#",
		RecurseDirs:       true,
		InitialBufferSize: 64,
		MaxBufferSize:     1024,
	})
	assert.Equal(t, "*fo#", opts.Pattern)
	assert.Equal(t, walker.RecurseDirs, opts.Flags)
	assert.Equal(t, 64, opts.InitialBufferSize)
	assert.Equal(t, 1024, opts.MaxBufferSize)

	opts = WalkerOptions(&WalkConfig{RecurseDirs: true, RecurseImages: true})
	assert.Equal(t, walker.RecurseDirs|walker.RecurseImages, opts.Flags)
}

func TestCreateCatalogue(t *testing.T) {
	ctx := context.Background()

	t.Run("filesystem", func(t *testing.T) {
		reader, closeFn, err := CreateCatalogue(ctx, &CatalogueConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{"path": t.TempDir()},
		})
		require.NoError(t, err)
		assert.NotNil(t, reader)
		assert.Nil(t, closeFn)
	})

	t.Run("filesystem requires path", func(t *testing.T) {
		_, _, err := CreateCatalogue(ctx, &CatalogueConfig{Type: "filesystem"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path is required")
	})

	t.Run("badger in memory", func(t *testing.T) {
		reader, closeFn, err := CreateCatalogue(ctx, &CatalogueConfig{
			Type:   "badger",
			Badger: map[string]any{"in_memory": true},
		})
		require.NoError(t, err)
		assert.NotNil(t, reader)
		require.NotNil(t, closeFn)
		assert.NoError(t, closeFn())
	})

	t.Run("s3 requires bucket", func(t *testing.T) {
		_, _, err := CreateCatalogue(ctx, &CatalogueConfig{Type: "s3"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("memory is programmatic only", func(t *testing.T) {
		_, _, err := CreateCatalogue(ctx, &CatalogueConfig{Type: "memory"})
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, _, err := CreateCatalogue(ctx, &CatalogueConfig{Type: "tape"})
		assert.Error(t, err)
	})
}
