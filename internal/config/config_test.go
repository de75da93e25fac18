package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("partial file keeps defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `{"log_level":"debug"}`))
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "master", cfg.DefaultBranch)
		assert.Equal(t, 128, cfg.CommitCacheSize)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, `{"default_branch":""}`))
		assert.Error(t, err)

		_, err = Load(writeConfig(t, `{"archive_level":9}`))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := Load(writeConfig(t, `{`))
		assert.Error(t, err)
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("VCS_CONFIG", writeConfig(t, `{"default_branch":"trunk"}`))
	t.Setenv("VCS_LOG_LEVEL", "warn")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "trunk", cfg.DefaultBranch)
	assert.Equal(t, "warn", cfg.LogLevel)

	t.Setenv("VCS_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "master", cfg.DefaultBranch)
}
