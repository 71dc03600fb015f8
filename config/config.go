package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
)

const DefaultAPIURL = "https://api.spotify.com/v1/"

type Config struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Options Options       `toml:"options"`
	Sentry  SentryConfig  `toml:"sentry"`
}

type SpotifyConfig struct {
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	TokenURL       string `toml:"token_url"`
	APIURL         string `toml:"api_url"`
	MaxRetries     int    `toml:"max_retries"`
	RetryBackoffMs int    `toml:"retry_backoff_ms"`
	RateLimit      int    `toml:"rate_limit"` // requests per second across all catalog calls
}

type Options struct {
	Port                  string `toml:"port"`
	LogLevel              string `toml:"log_level"`
	FeatureWorkers        int    `toml:"feature_workers"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

type SentryConfig struct {
	DSN     string `toml:"dsn"`
	Release string `toml:"release"`
}

func (s *SentryConfig) IsEnabled() bool {
	return s.DSN != ""
}

func (s *SpotifyConfig) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffMs) * time.Millisecond
}

func (o *Options) RequestTimeout() time.Duration {
	return time.Duration(o.RequestTimeoutSeconds) * time.Second
}

// Load builds the configuration from the process environment.
func Load() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			ClientID:       os.Getenv("CLIENT_ID"),
			ClientSecret:   os.Getenv("CLIENT_SECRET"),
			TokenURL:       getString("SPOTIFY_TOKEN_URL", spotifyauth.TokenURL),
			APIURL:         getAPIURL(),
			MaxRetries:     getMaxRetries(),
			RetryBackoffMs: getRetryBackoffMs(),
			RateLimit:      getRateLimit(),
		},
		Options: Options{
			Port:                  getString("PORT", "8080"),
			LogLevel:              getString("LOG_LEVEL", "info"),
			FeatureWorkers:        getFeatureWorkers(),
			RequestTimeoutSeconds: getRequestTimeout(),
		},
		Sentry: SentryConfig{
			DSN:     os.Getenv("SENTRY_DSN"),
			Release: os.Getenv("RELEASE"),
		},
	}
}

// LoadFile overlays the values set in a TOML file on top of c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file Config
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	overlayString(&c.Spotify.ClientID, file.Spotify.ClientID)
	overlayString(&c.Spotify.ClientSecret, file.Spotify.ClientSecret)
	overlayString(&c.Spotify.TokenURL, file.Spotify.TokenURL)
	if file.Spotify.APIURL != "" {
		c.Spotify.APIURL = withTrailingSlash(file.Spotify.APIURL)
	}
	overlayInt(&c.Spotify.MaxRetries, clamp(file.Spotify.MaxRetries, 1, 10))
	overlayInt(&c.Spotify.RetryBackoffMs, file.Spotify.RetryBackoffMs)
	overlayInt(&c.Spotify.RateLimit, clamp(file.Spotify.RateLimit, 1, 100))
	overlayString(&c.Options.Port, file.Options.Port)
	overlayString(&c.Options.LogLevel, file.Options.LogLevel)
	overlayInt(&c.Options.FeatureWorkers, clamp(file.Options.FeatureWorkers, 1, 32))
	overlayInt(&c.Options.RequestTimeoutSeconds, file.Options.RequestTimeoutSeconds)
	overlayString(&c.Sentry.DSN, file.Sentry.DSN)
	overlayString(&c.Sentry.Release, file.Sentry.Release)

	return nil
}

// Validate reports configuration the pipeline cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: %s must be set", strings.Join(missing, " and "))
	}
	if c.Spotify.TokenURL == "" || c.Spotify.APIURL == "" {
		return errors.New("config: spotify token and api urls must not be empty")
	}
	return nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getAPIURL() string {
	return withTrailingSlash(getString("SPOTIFY_API_URL", DefaultAPIURL))
}

func getMaxRetries() int {
	return getBoundedInt("SPOTIFY_MAX_RETRIES", 3, 1, 10)
}

func getRetryBackoffMs() int {
	return getBoundedInt("SPOTIFY_RETRY_BACKOFF_MS", 500, 1, 60000)
}

func getRateLimit() int {
	return getBoundedInt("SPOTIFY_RATE_LIMIT", 10, 1, 100)
}

func getFeatureWorkers() int {
	return getBoundedInt("FEATURE_WORKERS", 8, 1, 32)
}

func getRequestTimeout() int {
	return getBoundedInt("REQUEST_TIMEOUT_SECONDS", 10, 1, 300)
}

// getBoundedInt falls back to def for missing, invalid or non-positive values
// and clamps the rest into [lo, hi].
func getBoundedInt(key string, def, lo, hi int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return clamp(v, lo, hi)
}

// clamp leaves non-positive values at zero so overlays can skip them.
func clamp(v, lo, hi int) int {
	if v <= 0 {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overlayInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
