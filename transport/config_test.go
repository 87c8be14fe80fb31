package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1024, cfg.MSS)
	assert.Equal(t, 65536, cfg.BufferCapacity)
	assert.Equal(t, 64, cfg.BufferSegments())
	assert.Equal(t, time.Second, cfg.InitialRTO)
	assert.Equal(t, 12, cfg.WatchdogTimeouts)
}

func TestLoadConfigOverridesFromEnvironment(t *testing.T) {
	t.Setenv("LFTP_MSS", "512")
	t.Setenv("LFTP_WATCHDOG_TIMEOUTS", "3")

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.MSS)
	assert.Equal(t, 3, cfg.WatchdogTimeouts)
	// Unset fields keep their defaults.
	assert.Equal(t, 65536, cfg.BufferCapacity)
}
