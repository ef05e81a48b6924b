// Package config loads levelforge.yaml: where the session is stored, how
// generated rooms are placed and how the command bridge accepts clients.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/lawnchairsociety/levelforge/internal/database"
	"github.com/lawnchairsociety/levelforge/internal/fault"
	"github.com/lawnchairsociety/levelforge/internal/forge"
	"github.com/lawnchairsociety/levelforge/internal/geom"
	"gopkg.in/yaml.v3"
)

// ForgeConfig is the root of levelforge.yaml.
type ForgeConfig struct {
	Database   database.Config  `yaml:"database"`
	Generation GenerationConfig `yaml:"generation"`
	Bridge     BridgeConfig     `yaml:"bridge"`
}

// GenerationConfig controls where composed rooms go.
type GenerationConfig struct {
	// Catalog is the room catalog used when -catalog is not given.
	Catalog string `yaml:"catalog"`

	// FolderRoot is the level browser folder that build folders are created under.
	FolderRoot string `yaml:"folder_root"`

	// DeleteGateways destroys both connectors after two rooms are attached.
	DeleteGateways *bool `yaml:"delete_gateways"`

	// Origin is where the first room of a build is placed.
	Origin geom.Transform `yaml:"origin"`
}

// Options converts the generation settings into session options.
func (g GenerationConfig) Options() forge.Options {
	opts := forge.DefaultOptions()
	opts.FolderRoot = g.FolderRoot
	if g.DeleteGateways != nil {
		opts.DeleteGateways = *g.DeleteGateways
	}
	opts.Origin = g.Origin
	return opts
}

// BridgeConfig holds command bridge settings.
type BridgeConfig struct {
	Address string `yaml:"address"`

	// AllowedOrigins lists origins allowed to open a socket. Empty enforces
	// same-origin; "*" allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// TokenHash is the bcrypt hash of the shared token clients present.
	// Empty disables authentication.
	TokenHash string `yaml:"token_hash"`

	// MaxMessageSize is the largest command accepted, in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// MaxConnections caps simultaneous sockets; 0 means unlimited.
	MaxConnections int `yaml:"max_connections"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits commands per connection.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *ForgeConfig {
	deleteGateways := true
	return &ForgeConfig{
		Database: database.DefaultConfig("data/levelforge.db"),
		Generation: GenerationConfig{
			Catalog:        "data/rooms.yaml",
			FolderRoot:     "Generated",
			DeleteGateways: &deleteGateways,
		},
		Bridge: BridgeConfig{
			Address:        "127.0.0.1:4780",
			AllowedOrigins: []string{},
			MaxMessageSize: 16 * 1024,
			MaxConnections: 8,
			RateLimit: RateLimitConfig{
				PerSecond: 10,
				Burst:     20,
			},
		},
	}
}

// LoadConfig reads path over the defaults and applies LEVELFORGE_*
// environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*ForgeConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("%w: failed to read config: %v", fault.ErrConfiguration, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return DefaultConfig(), fmt.Errorf("%w: failed to parse config: %v", fault.ErrConfiguration, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *ForgeConfig) applyEnv() error {
	str := map[string]*string{
		"LEVELFORGE_DB_DRIVER":         &c.Database.Driver,
		"LEVELFORGE_DB_PATH":           &c.Database.SQLitePath,
		"LEVELFORGE_PG_HOST":           &c.Database.Postgres.Host,
		"LEVELFORGE_PG_USER":           &c.Database.Postgres.User,
		"LEVELFORGE_PG_PASSWORD":       &c.Database.Postgres.Password,
		"LEVELFORGE_PG_DATABASE":       &c.Database.Postgres.Database,
		"LEVELFORGE_PG_SSLMODE":        &c.Database.Postgres.SSLMode,
		"LEVELFORGE_CATALOG":           &c.Generation.Catalog,
		"LEVELFORGE_BRIDGE_ADDRESS":    &c.Bridge.Address,
		"LEVELFORGE_BRIDGE_TOKEN_HASH": &c.Bridge.TokenHash,
	}
	for name, dst := range str {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("LEVELFORGE_PG_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: LEVELFORGE_PG_PORT: %v", fault.ErrConfiguration, err)
		}
		c.Database.Postgres.Port = port
	}
	if v := os.Getenv("LEVELFORGE_BRIDGE_ORIGINS"); v != "" {
		c.Bridge.AllowedOrigins = splitList(v)
	}
	return nil
}

// Validate rejects settings no component can work with.
func (c *ForgeConfig) Validate() error {
	switch database.DialectType(c.Database.Driver) {
	case database.DialectSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("%w: database.sqlite_path is empty", fault.ErrConfiguration)
		}
	case database.DialectPostgres:
		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("%w: database.postgres.database is empty", fault.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown database driver %q", fault.ErrConfiguration, c.Database.Driver)
	}
	if c.Bridge.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: bridge.max_message_size must be positive", fault.ErrConfiguration)
	}
	if c.Bridge.MaxConnections < 0 {
		return fmt.Errorf("%w: bridge.max_connections must not be negative", fault.ErrConfiguration)
	}
	if c.Bridge.RateLimit.PerSecond < 0 || c.Bridge.RateLimit.Burst < 0 {
		return fmt.Errorf("%w: bridge.rate_limit must not be negative", fault.ErrConfiguration)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsOriginAllowed reports whether a websocket handshake from origin may
// proceed for a request addressed to requestHost.
func (c *BridgeConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// isSameOrigin treats a missing Origin header as a non-browser client.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true
	}
	host := origin
	if i := strings.Index(origin, "://"); i != -1 {
		host = origin[i+3:]
	}
	return strings.TrimSuffix(host, "/") == requestHost
}
