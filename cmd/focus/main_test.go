package main

import (
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focustimer/internal/config"
	"github.com/verte-zerg/focustimer/internal/model"
	"github.com/verte-zerg/focustimer/internal/syncclient"
)

func TestConfigTemplateDecodesWhenUncommented(t *testing.T) {
	var lines []string
	for _, line := range strings.Split(defaultConfigTemplate(), "\n") {
		if strings.HasPrefix(line, "# ") && strings.Contains(line, " = ") {
			line = strings.TrimPrefix(line, "# ")
		}
		lines = append(lines, line)
	}

	var fc config.FileConfig
	_, err := toml.Decode(strings.Join(lines, "\n"), &fc)
	require.NoError(t, err)
	require.NotNil(t, fc.Timer.SleepThreshold)
	assert.Equal(t, config.DefaultSleepThreshold, fc.Timer.SleepThreshold.Duration())
	require.NotNil(t, fc.Companion.URL)
	assert.Equal(t, config.DefaultCompanionURL, *fc.Companion.URL)
}

func TestFlagsOverrideConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--companion-url", "http://127.0.0.1:9999", "--type", "quick_task"}))

	settings, err := loadSettings(root)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999", settings.Companion.URL)
	assert.Equal(t, "http://127.0.0.1:9999", settings.APIURL)
	assert.Equal(t, model.SessionQuickTask, settings.Timer.DefaultType)
}

func TestInvalidTypeFlag(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--type", "nap"}))

	_, err := loadSettings(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--type")
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "Idle", formatStatus(syncclient.Status{}))
	assert.Equal(t, "deep_work paused, 23:30 left of 25 min", formatStatus(syncclient.Status{
		IsRunning:       true,
		IsPaused:        true,
		SessionType:     model.SessionDeepWork,
		PlannedDuration: 25,
		RemainingTime:   1410,
	}))
}
