package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 30*time.Second, cfg.TurnTimeout)
	require.Equal(t, 8, cfg.MaxPlayers)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	require.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("TURN_TIMEOUT", "45s")
	t.Setenv("MAX_PLAYERS", "12")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, 45*time.Second, cfg.TurnTimeout)
	require.Equal(t, 12, cfg.MaxPlayers)
	require.True(t, cfg.Production())
}

func TestLoadRejectsBadBounds(t *testing.T) {
	t.Setenv("MAX_PLAYERS", "1")
	t.Setenv("MIN_PLAYERS", "3")

	_, err := Load()
	require.Error(t, err)
}
