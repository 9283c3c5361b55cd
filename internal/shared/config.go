package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and overlaid with environment variables.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Cache       CacheConfig       `toml:"cache"`
	Gemini      GeminiConfig      `toml:"gemini"`
}

// CredentialsConfig contains provider credentials. Only the proxy needs the secrets.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Trakt   TraktConfig   `toml:"trakt"`
	Steam   SteamConfig   `toml:"steam"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
}

// TraktConfig contains Trakt API credentials.
type TraktConfig struct {
	ClientID     string `toml:"client_id" env:"TRAKT_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"TRAKT_CLIENT_SECRET"`
}

// SteamConfig contains the Steam Web API key.
type SteamConfig struct {
	APIKey string `toml:"api_key" env:"STEAM_API_KEY"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP settings for the proxy and its clients.
type ServerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port" env:"PORT"`
	AppURL    string `toml:"app_url" env:"APP_URL"`
	ProxyURL  string `toml:"proxy_url" env:"PROXY_URL"`
	Timeout   string `toml:"timeout"`
	RateLimit int    `toml:"rate_limit"` // upstream requests per second, per provider
}

// CacheConfig contains similarity cache settings.
type CacheConfig struct {
	Path     string `toml:"path" env:"CACHE_PATH"`
	RedisURL string `toml:"redis_url" env:"REDIS_URL"`
	TTL      string `toml:"ttl"`
}

// GeminiConfig contains settings for the similarity scorer.
type GeminiConfig struct {
	APIKey string `toml:"api_key" env:"GEMINI_API_KEY"`
	Model  string `toml:"model" env:"GEMINI_MODEL"`
}

// Addr returns the listen address for the proxy.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetTimeout parses the upstream timeout, defaulting to 15 seconds.
func (s ServerConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// RedirectURI builds the OAuth redirect URI for a service from the app URL.
func (s ServerConfig) RedirectURI(service string) string {
	return strings.TrimRight(s.AppURL, "/") + "/callback/" + service
}

// GetTTL parses the similarity cache TTL, defaulting to one hour.
func (c CacheConfig) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// Load reads the config file at path when it exists, falls back to [DefaultConfig] otherwise,
// and applies environment overrides on top.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv loads a .env file if present and overlays environment variables onto config.
//
// Unset variables leave the file values untouched.
func ApplyEnv(config *Config) error {
	_ = godotenv.Load()

	if err := env.Parse(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrInvalidInput, path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path with owner-only permissions.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
