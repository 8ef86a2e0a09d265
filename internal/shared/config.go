package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override the Spotify credentials section.
const (
	EnvClientID    = "SPOTIFY_CLIENT_ID"
	EnvRedirectURI = "SPOTIFY_REDIRECT_URI"
	EnvScopes      = "SPOTIFY_SCOPES"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Auth        AuthConfig        `toml:"auth"`
	Store       StoreConfig       `toml:"store"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	API         APIConfig         `toml:"api"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig identifies the application to the Spotify accounts service.
type SpotifyConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
	Scopes      string `toml:"scopes"`
}

// ScopeList splits the space-delimited scopes.
func (s SpotifyConfig) ScopeList() []string {
	return strings.Fields(s.Scopes)
}

// Validate reports missing credentials.
func (s SpotifyConfig) Validate() error {
	if s.ClientID == "" {
		return fmt.Errorf("%w: spotify client_id is not set", ErrMissingCredentials)
	}
	if s.RedirectURI == "" {
		return fmt.Errorf("%w: spotify redirect_uri is not set", ErrMissingCredentials)
	}
	return nil
}

// AuthConfig controls the login flow.
type AuthConfig struct {
	StateLength  int  `toml:"state_length"`
	LoginTimeout int  `toml:"login_timeout"` // seconds
	ShowDialog   bool `toml:"show_dialog"`
	VerifyState  bool `toml:"verify_state"`
}

// Timeout returns the login timeout as a [time.Duration], defaulting to five minutes.
func (a AuthConfig) Timeout() time.Duration {
	if a.LoginTimeout <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(a.LoginTimeout) * time.Second
}

// StoreConfig selects the persistent token store backend.
type StoreConfig struct {
	Backend       string `toml:"backend"`
	EncryptionKey string `toml:"encryption_key"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPrefix   string `toml:"redis_prefix"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// APIConfig configures the catalog API client.
type APIConfig struct {
	BaseURL   string  `toml:"base_url"`
	RateLimit float64 `toml:"rate_limit"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
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
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ApplyEnv loads a .env file from the given paths (the working directory when none are given)
// and overrides Spotify credentials with any SPOTIFY_* variables present in the environment.
//
// A missing .env file is not an error.
func ApplyEnv(config *Config, paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: failed to load .env: %v", ErrInvalidConfig, err)
	}

	if v := os.Getenv(EnvClientID); v != "" {
		config.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv(EnvRedirectURI); v != "" {
		config.Credentials.Spotify.RedirectURI = v
	}
	if v := os.Getenv(EnvScopes); v != "" {
		config.Credentials.Spotify.Scopes = v
	}
	return nil
}
