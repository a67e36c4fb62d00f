package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focustimer/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	fc, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	s, err := fc.Resolve()
	require.NoError(t, err)
	assert.Equal(t, DefaultSleepThreshold, s.Timer.SleepThreshold)
	assert.Equal(t, DefaultRecoveryWindow, s.Timer.RecoveryWindow)
	assert.Equal(t, model.SessionDeepWork, s.Timer.DefaultType)
	assert.Equal(t, DefaultCompanionURL, s.APIURL)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestLoadConfigFileValues(t *testing.T) {
	path := writeConfig(t, `
[timer]
default-type = "quick_task"
sleep-threshold = "2m"
recovery-window = "15m"

[companion]
url = "http://localhost:9000"
max-retries = 0

[review]
poll-interval = "30s"
`)
	fc, err := LoadConfig(path)
	require.NoError(t, err)
	s, err := fc.Resolve()
	require.NoError(t, err)

	assert.Equal(t, model.SessionQuickTask, s.Timer.DefaultType)
	assert.Equal(t, 2*time.Minute, s.Timer.SleepThreshold)
	assert.Equal(t, 15*time.Minute, s.Timer.RecoveryWindow)
	assert.Equal(t, "http://localhost:9000", s.Companion.URL)
	assert.Equal(t, "http://localhost:9000", s.APIURL, "api url follows companion url when unset")
	assert.Equal(t, 0, s.Companion.MaxRetries)
	assert.Equal(t, 30*time.Second, s.Review.PollInterval)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[timer]
sleep-threshold = "2m"
`)
	t.Setenv("FOCUS_TIMER_SLEEP_THRESHOLD", "3m")
	t.Setenv("FOCUS_API_URL", "http://api.local:8080")

	fc, err := LoadConfig(path)
	require.NoError(t, err)
	s, err := fc.Resolve()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Minute, s.Timer.SleepThreshold)
	assert.Equal(t, "http://api.local:8080", s.APIURL)
	assert.Equal(t, DefaultCompanionURL, s.Companion.URL)
}

func TestResolveRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown session type", "[timer]\ndefault-type = \"nap\"\n"},
		{"threshold below tick", "[timer]\nsleep-threshold = \"500ms\"\n"},
		{"relative url", "[companion]\nurl = \"localhost\"\n"},
		{"bad log format", "[log]\nformat = \"xml\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := LoadConfig(writeConfig(t, tt.body))
			require.NoError(t, err)
			_, err = fc.Resolve()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "[timer]\nsleep-threshold = \"soon\"\n"))
	assert.Error(t, err)
}
