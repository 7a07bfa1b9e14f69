package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("COOKIE_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DISCORD_BOT_TOKEN", "bot-token")
	t.Setenv("DISCORD_CLIENT_ID", "cid")
	t.Setenv("DISCORD_CLIENT_SECRET", "csecret")
	t.Setenv("DISCORD_REDIRECT_URI", "https://x/cb")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, "linked-roles", cfg.ServiceName)
	require.Equal(t, 5*time.Minute, cfg.StateTTL)
	require.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	require.False(t, cfg.PatreonEnabled())
	require.False(t, cfg.RegisterSchemaOnStart)
}

func TestLoad_MissingCookieSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("COOKIE_SECRET", "")

	_, err := Load()
	require.ErrorContains(t, err, "COOKIE_SECRET")
}

func TestLoad_ShortCookieSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("COOKIE_SECRET", "short")

	_, err := Load()
	require.ErrorContains(t, err, "COOKIE_SECRET")
}

func TestLoad_MissingDiscordValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DISCORD_CLIENT_ID", "")

	_, err := Load()
	require.ErrorContains(t, err, "DISCORD_CLIENT_ID")
}

func TestLoad_PatreonGroup(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PATREON_CLIENT_ID", "pid")

	_, err := Load()
	require.Error(t, err, "partial patreon config is rejected")

	t.Setenv("PATREON_CLIENT_SECRET", "psecret")
	t.Setenv("PATREON_REDIRECT_URI", "https://x/patreon/cb")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.PatreonEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STATE_TTL", "90s")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("REGISTER_SCHEMA_ON_START", "true")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, cfg.StateTTL)
	require.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	require.True(t, cfg.RegisterSchemaOnStart)
	require.Equal(t, "9090", cfg.HTTPPort)
}
