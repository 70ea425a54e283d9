package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
)

// setHome points HOME at a temp dir and returns the ragd config dir.
func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	configDir := filepath.Join(home, ".config", "ragd")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	return configDir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithFile_DefaultsWithoutFile(t *testing.T) {
	setHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, chunker.DefaultChunkSize, cfg.Chunker.Size)
	assert.Equal(t, chunker.DefaultChunkOverlap, cfg.Chunker.Overlap)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	assert.Equal(t, "~/.config/ragd/vectorstore", cfg.VectorStore.Path)
	assert.Equal(t, "~/.config/ragd/tenants", cfg.Storage.Path)
}

func TestLoadWithFile_ReadsYAML(t *testing.T) {
	dir := setHome(t)
	path := writeConfig(t, dir, `
logging:
  level: debug
chunker:
  size: 500
  overlap: 50
llm:
  model: local-model
  temperature: 0.2
storage:
  path: /tmp/ragd-tenants
`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 500, cfg.Chunker.Size)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, "local-model", cfg.LLM.Model)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, "/tmp/ragd-tenants", cfg.Storage.Path)
}

func TestLoadWithFile_EnvOverridesYAML(t *testing.T) {
	dir := setHome(t)
	path := writeConfig(t, dir, `
llm:
  model: from-yaml
`)
	t.Setenv("RAGD_LLM_MODEL", "from-env")
	t.Setenv("RAGD_LLM_BASE_URL", "http://localhost:1234/v1")
	t.Setenv("RAGD_LOGGING_LEVEL", "warn")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:1234/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	dir := setHome(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_RejectsPathOutsideAllowedDirs(t *testing.T) {
	setHome(t)

	_, err := LoadWithFile("/tmp/anywhere/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file must be in")
}

func TestLoadWithFile_ValidationFailure(t *testing.T) {
	dir := setHome(t)
	path := writeConfig(t, dir, `
chunker:
  size: -10
`)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunker")
}

func TestChunkerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChunkerConfig
		wantErr bool
	}{
		{"valid", ChunkerConfig{Size: 1000, Overlap: 200}, false},
		{"zero overlap ok", ChunkerConfig{Size: 100, Overlap: 0}, false},
		{"zero size", ChunkerConfig{Size: 0, Overlap: 0}, true},
		{"negative overlap", ChunkerConfig{Size: 100, Overlap: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
