package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "cfstore.db", cfg.Database.Path)
	assert.Equal(t, "md5", cfg.Registry.HashAlgorithm)
	assert.False(t, cfg.Quark.Verify)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /var/lib/cfstore/catalog.db
registry:
  hash_algorithm: sha256
ingest:
  fragment_root: /archive
quark:
  verify: true
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/cfstore/catalog.db", cfg.Database.Path)
	assert.Equal(t, "sha256", cfg.Registry.HashAlgorithm)
	assert.Equal(t, "/archive", cfg.Ingest.FragmentRoot)
	assert.True(t, cfg.Quark.Verify)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "quark:\n  verify: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "cfstore.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Quark.Verify)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "database: [unterminated"))
	assert.ErrorContains(t, err, "parse")

	_, err = Load(writeConfig(t, "registry:\n  hash_algorithm: crc32\n"))
	assert.ErrorContains(t, err, "registry.hash_algorithm")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"unknown level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()

	cfg.Logger(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	cfg.Logger(&buf, true).Debug("shown", "file", "a.nc")
	assert.Contains(t, buf.String(), "file=a.nc")

	buf.Reset()
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "warn"
	log := cfg.Logger(&buf, false)
	log.Info("hidden")
	log.Warn("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestFragmentSize(t *testing.T) {
	cfg := Default()
	assert.Nil(t, cfg.FragmentSize())

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "f.nc"), make([]byte, 42), 0o644))

	cfg.Ingest.FragmentRoot = root
	size := cfg.FragmentSize()
	require.NotNil(t, size)

	n, err := size("/data/f.nc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = size("/data/missing.nc")
	assert.Error(t, err)
}
