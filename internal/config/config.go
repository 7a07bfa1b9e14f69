package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values. Loaded once at startup and
// never mutated.
type Config struct {
	Environment  string
	HTTPPort     string
	ServiceName  string
	PlatformName string

	CookieSecret    []byte
	StateTTL        time.Duration
	UpstreamTimeout time.Duration

	DiscordBotToken     string
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string

	PatreonClientID     string
	PatreonClientSecret string
	PatreonRedirectURI  string

	RegisterSchemaOnStart bool

	TelemetryEndpoint string
	TelemetryInsecure bool
}

// PatreonEnabled reports whether the membership platform is configured.
func (c Config) PatreonEnabled() bool {
	return c.PatreonClientID != "" && c.PatreonClientSecret != "" && c.PatreonRedirectURI != ""
}

// Load reads configuration from environment variables with sane defaults.
// Missing required values are startup-fatal.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:           getEnv("APP_ENV", "development"),
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		ServiceName:           getEnv("SERVICE_NAME", "linked-roles"),
		PlatformName:          getEnv("PLATFORM_NAME", "Cookie Clan Linked Roles"),
		CookieSecret:          []byte(os.Getenv("COOKIE_SECRET")),
		StateTTL:              getDuration("STATE_TTL", 5*time.Minute),
		UpstreamTimeout:       getDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		DiscordBotToken:       strings.TrimSpace(os.Getenv("DISCORD_BOT_TOKEN")),
		DiscordClientID:       strings.TrimSpace(os.Getenv("DISCORD_CLIENT_ID")),
		DiscordClientSecret:   strings.TrimSpace(os.Getenv("DISCORD_CLIENT_SECRET")),
		DiscordRedirectURI:    strings.TrimSpace(os.Getenv("DISCORD_REDIRECT_URI")),
		PatreonClientID:       strings.TrimSpace(os.Getenv("PATREON_CLIENT_ID")),
		PatreonClientSecret:   strings.TrimSpace(os.Getenv("PATREON_CLIENT_SECRET")),
		PatreonRedirectURI:    strings.TrimSpace(os.Getenv("PATREON_REDIRECT_URI")),
		RegisterSchemaOnStart: getBool("REGISTER_SCHEMA_ON_START", false),
		TelemetryEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:     getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if len(cfg.CookieSecret) < 16 {
		return Config{}, fmt.Errorf("COOKIE_SECRET is required and must be at least 16 bytes")
	}
	for name, value := range map[string]string{
		"DISCORD_BOT_TOKEN":     cfg.DiscordBotToken,
		"DISCORD_CLIENT_ID":     cfg.DiscordClientID,
		"DISCORD_CLIENT_SECRET": cfg.DiscordClientSecret,
		"DISCORD_REDIRECT_URI":  cfg.DiscordRedirectURI,
	} {
		if value == "" {
			return Config{}, fmt.Errorf("%s is required", name)
		}
	}

	patreonSet := cfg.PatreonClientID != "" || cfg.PatreonClientSecret != "" || cfg.PatreonRedirectURI != ""
	if patreonSet && !cfg.PatreonEnabled() {
		return Config{}, fmt.Errorf("PATREON_CLIENT_ID, PATREON_CLIENT_SECRET, and PATREON_REDIRECT_URI must be set together")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}
