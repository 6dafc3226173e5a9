package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "contentq.db", cfg.Database.Path)
	assert.Equal(t, "manifest.yaml", cfg.Manifest.Path)
	assert.Equal(t, "dumps", cfg.Dumps.Dir)
	assert.True(t, cfg.Integrity.ServerMode)
	assert.False(t, cfg.Integrity.RetryOnFailure)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, "settings.yaml", `database:
  path: /var/lib/content.db
dumps:
  dir: /srv/dumps
integrity:
  retry_on_failure: true
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/content.db", cfg.Database.Path)
	assert.Equal(t, "/srv/dumps", cfg.Dumps.Dir)
	assert.Equal(t, "manifest.yaml", cfg.Manifest.Path)
	assert.True(t, cfg.Integrity.RetryOnFailure)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contentq.yaml"), []byte("manifest:\n  path: build/manifest.cue\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "build/manifest.cue", cfg.Manifest.Path)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "settings.yaml", "database:\n  path: from-file.db\n")
	t.Setenv("CONTENTQ_DATABASE_PATH", "from-env.db")
	t.Setenv("CONTENTQ_INTEGRITY_SERVER_MODE", "false")
	t.Setenv("CONTENTQ_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.Database.Path)
	assert.False(t, cfg.Integrity.ServerMode)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config")
	})

	t.Run("malformed file", func(t *testing.T) {
		_, err := Load(writeConfig(t, "bad.yaml", "database: [unclosed\n"))
		require.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeConfig(t, "bad.yaml", "log:\n  level: loud\n  format: xml\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid log.level "loud"`)
		assert.Contains(t, err.Error(), `invalid log.format "xml"`)
	})
}
