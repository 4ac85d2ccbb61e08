package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettings(t *testing.T) {
	settings, err := ParseSettings([]byte(`
count: 10
interval: 0.5
timeout: 3
ttl: 32
payload: hello
match_payloads: true
sweep_start: 4
sweep_end: 8
`))
	require.NoError(t, err)

	assert.Equal(t, 10, settings.Count)
	assert.Equal(t, 0.5, settings.Interval)
	assert.Equal(t, 3.0, settings.Timeout)
	assert.Equal(t, 32, settings.TTL)
	assert.Equal(t, []byte("hello"), settings.Payload)
	assert.True(t, settings.MatchPayloads)
	assert.Equal(t, 4, settings.SweepStart)
	assert.Equal(t, 8, settings.SweepEnd)

	// keys not present keep their defaults
	assert.Equal(t, -1.0, settings.Deadline)
	assert.Equal(t, 1, settings.Size)
}

func TestParseSettingsEmpty(t *testing.T) {
	settings, err := ParseSettings(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestParseSettingsInvalidValues(t *testing.T) {
	_, err := ParseSettings([]byte("ttl: 0\n"))
	assert.Error(t, err)
}

func TestParseSettingsInvalidYAML(t *testing.T) {
	_, err := ParseSettings([]byte("count: [1, 2\n"))
	assert.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("count: 2\nprivileged: true\ninterval: 0.05\n"), 0o600))

	settings, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 2, settings.Count)
	assert.True(t, settings.IsPrivileged)
	assert.Equal(t, 0.05, settings.Interval)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
