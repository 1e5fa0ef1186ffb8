package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMobileConfigValid(t *testing.T) {
	cfg := DefaultMobileConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.ConnectionTimeout())
	assert.Equal(t, time.Minute, cfg.BackgroundTaskInterval())
}

func TestParseMobileConfigKeepsBaseForMissingKeys(t *testing.T) {
	base := DefaultMobileConfig()
	base.MaxConnections = 7

	cfg, err := ParseMobileConfig(base, `{"auto_reconnect": false, "unknown_key": 1}`)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cfg.MaxConnections)
	assert.False(t, cfg.AutoReconnect)
}

func TestParseMobileConfigRejects(t *testing.T) {
	base := DefaultMobileConfig()
	cases := map[string]string{
		"empty":             "  ",
		"syntax":            `{"max_connections":`,
		"type":              `{"max_connections": "many"}`,
		"too many":          `{"max_connections": 2000}`,
		"zero":              `{"max_connections": 0}`,
		"short timeout":     `{"connection_timeout_ms": 10}`,
		"long interval":     `{"background_task_interval_ms": 86400001}`,
		"negative interval": `{"background_task_interval_ms": -1}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := ParseMobileConfig(base, in)
			require.Error(t, err)
			assert.Equal(t, base, cfg)
		})
	}
}

func TestValidationMessageNamesJSONField(t *testing.T) {
	_, err := ParseMobileConfig(DefaultMobileConfig(), `{"max_connections": 0}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_connections")
}
