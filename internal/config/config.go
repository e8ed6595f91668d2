package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the effective configuration of repowatch
type Config struct {
	Cache   CacheConfig  `mapstructure:"cache"`
	Watch   WatchConfig  `mapstructure:"watch"`
	Git     GitConfig    `mapstructure:"git"`
	Workers int          `mapstructure:"workers"`
	Log     LogConfig    `mapstructure:"log"`
	Server  ServerConfig `mapstructure:"server"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
	Ignore   []string      `mapstructure:"ignore"`
}

type GitConfig struct {
	Binary string `mapstructure:"binary"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		Cache: CacheConfig{TTL: 5 * time.Second},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
			Ignore:   []string{".git/objects", ".git/logs", "node_modules"},
		},
		Git:     GitConfig{Binary: "git"},
		Workers: 4,
		Log:     LogConfig{Level: "info", Format: "text"},
		Server:  ServerConfig{Addr: "127.0.0.1:7420"},
	}
}

// SetDefaults registers the built-in values on v
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
	v.SetDefault("git.binary", d.Git.Binary)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
}

// Load decodes the settings held by v. Durations may be given as strings
// ("750ms") and lists as comma separated strings, which is what
// environment variables produce.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the tracker cannot run with
func (c *Config) Validate() error {
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if strings.TrimSpace(c.Git.Binary) == "" {
		return fmt.Errorf("git.binary must not be empty")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Ignored reports whether the repository relative path rel lies in one of
// the ignored subtrees
func (w WatchConfig) Ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, prefix := range w.Ignore {
		prefix = strings.Trim(filepath.ToSlash(prefix), "/")
		if prefix == "" {
			continue
		}
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
		// bare names such as node_modules match at any depth
		if !strings.Contains(prefix, "/") {
			for _, part := range strings.Split(rel, "/") {
				if part == prefix {
					return true
				}
			}
		}
	}
	return false
}

// DefaultPath returns $HOME/.config/repowatch/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "repowatch", "config.toml"), nil
}

// File is the on-disk layout. Durations are kept as strings so the file
// stays hand editable.
type File struct {
	Workers int `toml:"workers" json:"workers" yaml:"workers"`
	Cache   struct {
		TTL string `toml:"ttl" json:"ttl" yaml:"ttl"`
	} `toml:"cache" json:"cache" yaml:"cache"`
	Watch struct {
		Enabled  bool     `toml:"enabled" json:"enabled" yaml:"enabled"`
		Debounce string   `toml:"debounce" json:"debounce" yaml:"debounce"`
		Ignore   []string `toml:"ignore" json:"ignore" yaml:"ignore"`
	} `toml:"watch" json:"watch" yaml:"watch"`
	Git struct {
		Binary string `toml:"binary" json:"binary" yaml:"binary"`
	} `toml:"git" json:"git" yaml:"git"`
	Log struct {
		Level  string `toml:"level" json:"level" yaml:"level"`
		Format string `toml:"format" json:"format" yaml:"format"`
	} `toml:"log" json:"log" yaml:"log"`
	Server struct {
		Addr string `toml:"addr" json:"addr" yaml:"addr"`
	} `toml:"server" json:"server" yaml:"server"`
}

// File converts c to its on-disk layout
func (c *Config) File() File {
	var f File
	f.Workers = c.Workers
	f.Cache.TTL = c.Cache.TTL.String()
	f.Watch.Enabled = c.Watch.Enabled
	f.Watch.Debounce = c.Watch.Debounce.String()
	f.Watch.Ignore = c.Watch.Ignore
	f.Git.Binary = c.Git.Binary
	f.Log.Level = c.Log.Level
	f.Log.Format = c.Log.Format
	f.Server.Addr = c.Server.Addr
	return f
}

// EncodeTOML writes c in config file form
func (c *Config) EncodeTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c.File())
}

// WriteDefault writes the built-in configuration to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	cfg := Defaults()
	if err := cfg.EncodeTOML(f); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
