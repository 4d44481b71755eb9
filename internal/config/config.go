package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the Aria gateway server.
type ServerConfig struct {
	Addr       string `yaml:"addr"`        // Listen address (default ":3003")
	LogLevel   string `yaml:"log_level"`   // Log level: debug, info, warn, error
	LogFormat  string `yaml:"log_format"`  // Log format: text, json
	DBPath     string `yaml:"db_path"`     // SQLite database path (":memory:" for testing)
	SongsDir   string `yaml:"songs_dir"`   // Directory holding the song library
	BackupsDir string `yaml:"backups_dir"` // Directory for database backups

	// PublicBaseURL is the address clients use to reach the plain HTTP
	// surface; it prefixes the temporary URLs handed out by stream-resource.
	PublicBaseURL string `yaml:"public_base_url"`

	// ResourceTTL bounds how long a minted resource token stays redeemable.
	ResourceTTL time.Duration `yaml:"resource_ttl"`

	// TLSCert/TLSKey enable the TLS listener when both are set.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:          ":3003",
		LogLevel:      "info",
		LogFormat:     "text",
		SongsDir:      "songs",
		BackupsDir:    "backups",
		PublicBaseURL: "http://localhost:3003",
		ResourceTTL:   240 * time.Second,
	}
}

// Load reads a YAML config file over the defaults. Fields absent from the
// file keep their default values.
func Load(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// TLSEnabled reports whether a TLS listener should be started.
func (c ServerConfig) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}
