package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/calloutstack/agent/internal/extract"
	"github.com/obsidianstack/calloutstack/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultConfigDir         = ".obsidian"
	DefaultFetchTimeout      = 10 * time.Second
	DefaultMinCheckInterval  = time.Second
	DefaultHTTPPort          = 8080
	DefaultBroadcastInterval = 30 * time.Second
	DefaultAuthHeader        = "x-api-key"
)

// Config is the top-level calloutd configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Vault        VaultConfig        `yaml:"vault"`
	Builtin      BuiltinConfig      `yaml:"builtin"`
	Detection    DetectionConfig    `yaml:"detection"`
	Verification VerificationConfig `yaml:"verification"`
	Server       ServerConfig       `yaml:"server"`
	Callouts     CalloutsConfig     `yaml:"callouts"`
}

// VaultConfig locates the vault whose themes and snippets are tracked.
type VaultConfig struct {
	// Path is the vault root directory.
	Path string `yaml:"path"`

	// ConfigDir is the vault configuration directory, relative to Path.
	ConfigDir string `yaml:"config_dir"`
}

// BuiltinConfig says where the application stylesheet comes from.
type BuiltinConfig struct {
	// Styles are stylesheet files scanned first for callout definitions.
	Styles []string `yaml:"styles"`

	// URL is fetched when none of Styles defines callouts.
	URL string `yaml:"url"`

	// File is read when URL is empty and none of Styles defines callouts.
	File string `yaml:"file"`

	Timeout time.Duration `yaml:"timeout"`
}

// DetectionConfig toggles which sources are tracked.
type DetectionConfig struct {
	Builtin bool `yaml:"builtin"`
	Theme   bool `yaml:"theme"`
	Snippet bool `yaml:"snippet"`

	// IgnoreSnippets lists snippet names that are never tracked.
	IgnoreSnippets []string `yaml:"ignore_snippets"`

	// MinCheckInterval paces re-checks triggered by file changes.
	MinCheckInterval time.Duration `yaml:"min_check_interval"`
}

// VerificationConfig controls the cascade-based fallback resolver.
type VerificationConfig struct {
	Enabled bool `yaml:"enabled"`

	// ColorScheme is one of: system | light | dark. "system" follows the
	// vault's base theme.
	ColorScheme string `yaml:"color_scheme"`

	// View is one of: reading | source.
	View string `yaml:"view"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket hub and metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// BroadcastInterval is how often the full callout list is pushed to
	// WebSocket clients even when nothing changed.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig configures REST API authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the request header that carries the key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// CalloutsConfig holds user-defined callouts.
type CalloutsConfig struct {
	Custom []CustomCallout `yaml:"custom"`
}

// CustomCallout is a callout defined in configuration rather than CSS.
type CustomCallout struct {
	ID    string `yaml:"id"`
	Icon  string `yaml:"icon"`
	Color string `yaml:"color"`
}

// Properties returns the callout's display properties.
func (c CustomCallout) Properties() types.Properties {
	return types.Properties{Icon: c.Icon, Color: c.Color}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults and custom callout
// colors are normalised to "R, G, B".
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Vault: VaultConfig{ConfigDir: DefaultConfigDir},
		Builtin: BuiltinConfig{
			Timeout: DefaultFetchTimeout,
		},
		Detection: DetectionConfig{
			Builtin:          true,
			Theme:            true,
			Snippet:          true,
			MinCheckInterval: DefaultMinCheckInterval,
		},
		Verification: VerificationConfig{
			Enabled:     true,
			ColorScheme: "system",
			View:        "reading",
		},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			BroadcastInterval: DefaultBroadcastInterval,
			Auth:              AuthConfig{Mode: "none", Header: DefaultAuthHeader},
		},
	}
}

// validate checks required fields and enums, and normalises custom
// callouts in place.
func validate(cfg *Config) error {
	if cfg.Vault.Path == "" {
		return fmt.Errorf("vault.path is required")
	}
	if cfg.Builtin.Timeout <= 0 {
		return fmt.Errorf("builtin.timeout must be positive")
	}
	if cfg.Detection.MinCheckInterval < 0 {
		return fmt.Errorf("detection.min_check_interval must not be negative")
	}

	switch cfg.Verification.ColorScheme {
	case "system", "light", "dark":
	default:
		return fmt.Errorf("verification.color_scheme: unknown value %q", cfg.Verification.ColorScheme)
	}
	switch cfg.Verification.View {
	case "reading", "source":
	default:
		return fmt.Errorf("verification.view: unknown value %q", cfg.Verification.View)
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", cfg.Server.HTTPPort)
	}
	if cfg.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "none", "":
	case "apikey":
		if cfg.Server.Auth.KeyEnv == "" {
			return fmt.Errorf("server.auth: key_env is required for apikey mode")
		}
		if cfg.Server.Auth.Header == "" {
			cfg.Server.Auth.Header = DefaultAuthHeader
		}
	default:
		return fmt.Errorf("server.auth: unknown mode %q", cfg.Server.Auth.Mode)
	}

	seen := make(map[string]bool, len(cfg.Callouts.Custom))
	for i := range cfg.Callouts.Custom {
		c := &cfg.Callouts.Custom[i]
		if c.ID == "" {
			return fmt.Errorf("callouts.custom[%d]: id is required", i)
		}
		if strings.ContainsAny(c.ID, " \t\n\"'[]") {
			return fmt.Errorf("callouts.custom[%d] %q: id must not contain whitespace, quotes or brackets", i, c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("callouts.custom[%d] %q: duplicate id", i, c.ID)
		}
		seen[c.ID] = true

		if c.Icon == "" {
			c.Icon = types.DefaultIcon
		}
		color, err := normalizeColor(c.Color)
		if err != nil {
			return fmt.Errorf("callouts.custom[%d] %q: %w", i, c.ID, err)
		}
		c.Color = color
	}
	return nil
}

func normalizeColor(v string) (string, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return types.DefaultColor, nil
	case strings.HasPrefix(v, "var("):
		return v, nil
	}
	c, ok := extract.NormalizeColor(v)
	if !ok {
		return "", fmt.Errorf("color %q is not an R, G, B triple, hex, rgb() or hsl() value", v)
	}
	return c, nil
}
