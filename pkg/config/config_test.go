package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
instance: acme
instance_id: 11111111-2222-3333-4444-555555555555
username: agent
aws:
  profile: ops
  region: eu-west-2
browser:
  chromium_path: /usr/bin/chromium
  element_timeout: 45s
`)

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Instance)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", cfg.InstanceID)
	assert.Equal(t, "agent", cfg.Username)
	assert.Equal(t, AWS{Profile: "ops", Region: "eu-west-2"}, cfg.AWS)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.ChromiumPath)
	assert.Equal(t, 45*time.Second, cfg.Browser.ElementTimeout)
	assert.True(t, cfg.Browser.Headless, "headless default must survive a file that does not set it")
	assert.Zero(t, cfg.Browser.LoginTimeout)
}

func TestNewWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, err := New("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Browser.Headless)
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = New(writeConfig(t, "instance: [unterminated"))
	assert.Error(t, err)
}

func TestConfigKeys(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.InstanceID = "id"
	cfg.AWS.Profile = "ops"

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, yaml.Unmarshal(out, &keys))
	assert.Contains(t, keys, "instance_id")
	assert.Contains(t, keys, "aws")
	assert.Contains(t, keys, "browser")
	assert.Equal(t, map[string]any{"profile": "ops", "region": ""}, keys["aws"])
}
