package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, uint8(1), cfg.Replay.Exch)
	assert.Equal(t, []string{"BTC-PERP"}, cfg.Feed.Markets)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_LOG_LEVEL", "debug")
	t.Setenv("REPLAY_FILES", "a.bin,b.bin.gz")
	t.Setenv("REPLAY_LATENCY_US", "250")
	t.Setenv("FEED_MARKETS", "BTC-PERP,ETH/USD")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, []string{"a.bin", "b.bin.gz"}, cfg.Replay.Files)
	assert.Equal(t, uint64(250), cfg.Replay.Latency)
	assert.Equal(t, []string{"BTC-PERP", "ETH/USD"}, cfg.Feed.Markets)
}
