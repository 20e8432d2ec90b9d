package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the test so no stray protectbox.yaml is picked up
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 15, cfg.Missions.ExtensionDays)
	assert.Equal(t, 3, cfg.Missions.ExtensionWindowDays)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.AI.Model)
	assert.Equal(t, 10*time.Minute, cfg.Lookup.CacheTTL)

	p := cfg.Attachments.Policy()
	assert.Equal(t, float64(10), p.MaxFileSizeMB)
	assert.Equal(t, []string{"pdf", "jpg", "jpeg", "png", "doc", "docx"}, p.AllowedExtensions)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PROTECTBOX_SERVER_ADDR", ":9090")
	t.Setenv("PROTECTBOX_REDIS_ADDR", "localhost:6379")
	t.Setenv("PROTECTBOX_ATTACHMENTS_MAX_FILE_SIZE_MB", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2.5, cfg.Attachments.MaxFileSizeMB)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "protectbox.yaml")
	yaml := `
server:
  addr: ":7000"
attachments:
  max_file_size_mb: 5
  allowed_extensions: [".PDF", "png"]
lookup:
  cache_size: 32
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 32, cfg.Lookup.CacheSize)
	assert.Equal(t, []string{"pdf", "png"}, cfg.Attachments.Policy().AllowedExtensions)
}

func TestLoad_FixedMissionTiming(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "protectbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("missions:\n  extension_days: 30\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "extension_days")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
