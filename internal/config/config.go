// ABOUTME: Configuration loading and parsing for coven-meta
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults and validation

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a value is left out.
const (
	DefaultQuotePrefix   = ">>"
	DefaultMergeWindow   = 5 * time.Minute
	DefaultEchoTTL       = 5 * time.Minute
	DefaultEchoCacheSize = 10_000
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// Driver names accepted in accounts[].driver
const (
	DriverMatrix = "matrix"
	DriverMemory = "memory"
)

// Config represents the complete coven-meta configuration
type Config struct {
	User     UserConfig      `yaml:"user" toml:"user"`
	Database DatabaseConfig  `yaml:"database" toml:"database"`
	Relay    RelayConfig     `yaml:"relay" toml:"relay"`
	Accounts []AccountConfig `yaml:"accounts" toml:"accounts" validate:"dive"`
	Logging  LoggingConfig   `yaml:"logging" toml:"logging"`
}

// UserConfig identifies the local user owning every account
type UserConfig struct {
	ID string `yaml:"id" toml:"id" validate:"required"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path" validate:"required"`
}

// RelayConfig tunes merging and relaying of meta-discussions
type RelayConfig struct {
	QuotePrefix   string        `yaml:"quote_prefix" toml:"quote_prefix"`
	MergeWindow   time.Duration `yaml:"-" toml:"-"`
	EchoTTL       time.Duration `yaml:"-" toml:"-"`
	EchoCacheSize int           `yaml:"echo_cache_size" toml:"echo_cache_size" validate:"gte=0"`

	// Raw string values for unmarshaling
	MergeWindowRaw string `yaml:"merge_window" toml:"merge_window"`
	EchoTTLRaw     string `yaml:"echo_ttl" toml:"echo_ttl"`
}

// AccountConfig describes one chat account of the user
type AccountConfig struct {
	Driver      string   `yaml:"driver" toml:"driver" validate:"required,oneof=matrix memory"`
	ID          string   `yaml:"id" toml:"id" validate:"required"`
	Homeserver  string   `yaml:"homeserver" toml:"homeserver" validate:"omitempty,url"`
	AccessToken string   `yaml:"access_token" toml:"access_token"`
	DeviceID    string   `yaml:"device_id" toml:"device_id"`
	Contacts    []string `yaml:"contacts" toml:"contacts" validate:"dive,required"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"omitempty,oneof=text json"`
}

var validate = validator.New()

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(expandEnvVars(string(data)), strings.EqualFold(filepath.Ext(path), ".toml"))
}

// Parse decodes already-expanded configuration text, then applies defaults
// and validates the result.
func Parse(text string, isTOML bool) (*Config, error) {
	var cfg Config
	if isTOML {
		if _, err := toml.Decode(text, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// DefaultPath returns the config file location: COVEN_META_CONFIG if set,
// else $XDG_CONFIG_HOME/coven/meta.yaml, else ~/.config/coven/meta.yaml.
func DefaultPath() string {
	if p := os.Getenv("COVEN_META_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "coven", "meta.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "coven", "meta.yaml")
	}
	return filepath.Join(home, ".config", "coven", "meta.yaml")
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func applyDefaults(cfg *Config) {
	if cfg.Relay.QuotePrefix == "" {
		cfg.Relay.QuotePrefix = DefaultQuotePrefix
	}
	if cfg.Relay.MergeWindow == 0 {
		cfg.Relay.MergeWindow = DefaultMergeWindow
	}
	if cfg.Relay.EchoTTL == 0 {
		cfg.Relay.EchoTTL = DefaultEchoTTL
	}
	if cfg.Relay.EchoCacheSize == 0 {
		cfg.Relay.EchoCacheSize = DefaultEchoCacheSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	cfg.Database.Path = expandHome(cfg.Database.Path)
}

// Validate checks struct-level rules, then the cross-field rules tags cannot
// express. Returns an error describing the first failure encountered.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%s failed %q rule: %w", first.Namespace(), first.Tag(), err)
		}
		return err
	}

	if c.Relay.MergeWindow < 0 {
		return fmt.Errorf("relay.merge_window must not be negative")
	}
	if c.Relay.EchoTTL < 0 {
		return fmt.Errorf("relay.echo_ttl must not be negative")
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i, acc := range c.Accounts {
		key := acc.Driver + ":" + acc.ID
		if seen[key] {
			return fmt.Errorf("accounts[%d]: duplicate account %s", i, key)
		}
		seen[key] = true

		if acc.Driver != DriverMatrix {
			continue
		}
		if acc.Homeserver == "" {
			return fmt.Errorf("accounts[%d].homeserver is required for matrix accounts", i)
		}
		if u, err := url.Parse(acc.Homeserver); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("accounts[%d].homeserver must be an http or https URL", i)
		}
		if acc.AccessToken == "" {
			return fmt.Errorf("accounts[%d].access_token is required for matrix accounts", i)
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Relay.MergeWindowRaw != "" {
		cfg.Relay.MergeWindow, err = time.ParseDuration(cfg.Relay.MergeWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing merge_window %q: %w", cfg.Relay.MergeWindowRaw, err)
		}
	}

	if cfg.Relay.EchoTTLRaw != "" {
		cfg.Relay.EchoTTL, err = time.ParseDuration(cfg.Relay.EchoTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing echo_ttl %q: %w", cfg.Relay.EchoTTLRaw, err)
		}
	}

	return nil
}
