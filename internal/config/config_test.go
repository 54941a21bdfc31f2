package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", s.Addr)
	assert.Equal(t, "sqlite", s.Driver)
	assert.Equal(t, "./pcm.sqlite", s.DSN)
	assert.Equal(t, 2*time.Second, s.DispatchInterval)
	assert.Equal(t, "info", s.LogLevel)
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pcm.yaml")
	doc := "addr: \":9090\"\ndriver: postgres\ndsn: postgres://localhost/pcm\ndispatch_interval: 5s\nlog_format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("PCM_LOG_LEVEL", "debug")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", s.Addr)
	assert.Equal(t, "postgres", s.Driver)
	assert.Equal(t, "postgres://localhost/pcm", s.DSN)
	assert.Equal(t, 5*time.Second, s.DispatchInterval)
	assert.Equal(t, "json", s.LogFormat)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoadFindsFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pcm.yaml"), []byte("bootstrap_key_name: ops\n"), 0o600))
	t.Chdir(dir)

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ops", s.BootstrapKeyName)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
