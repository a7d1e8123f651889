package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/obsidianstack/calloutstack/agent/internal/watcher"
)

// DefaultConfigDir is the name of the vault configuration directory.
const DefaultConfigDir = ".obsidian"

// ErrNoBuiltinStyles is returned by LoadedStyles when no builtin stylesheet
// files are configured.
var ErrNoBuiltinStyles = errors.New("vault: no builtin stylesheets configured")

// appearance mirrors the fields of appearance.json this package reads.
type appearance struct {
	CSSTheme        string   `json:"cssTheme"`
	EnabledSnippets []string `json:"enabledCssSnippets"`

	// Theme is the base theme: "obsidian" (dark), "moonstone" (light)
	// or "system".
	Theme string `json:"theme"`
}

type manifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Vault is a read-only view of a vault's style sources.
type Vault struct {
	root      string
	configDir string
	builtin   []string
	scheme    string
}

// Option configures a Vault.
type Option func(*Vault)

// WithConfigDir overrides the configuration directory name.
func WithConfigDir(dir string) Option {
	return func(v *Vault) {
		if dir != "" {
			v.configDir = dir
		}
	}
}

// WithBuiltinStyles sets the files that make up the application stylesheet.
func WithBuiltinStyles(paths ...string) Option {
	return func(v *Vault) { v.builtin = append(v.builtin, paths...) }
}

// WithColorScheme fixes the color scheme instead of deriving it from the
// base theme. "system" or "" keep the derived value.
func WithColorScheme(scheme string) Option {
	return func(v *Vault) {
		if scheme == "light" || scheme == "dark" {
			v.scheme = scheme
		}
	}
}

// New returns a Vault rooted at root.
func New(root string, opts ...Option) *Vault {
	v := &Vault{root: root, configDir: DefaultConfigDir}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Root returns the vault root directory.
func (v *Vault) Root() string { return v.root }

func (v *Vault) configPath(elem ...string) string {
	return filepath.Join(append([]string{v.root, v.configDir}, elem...)...)
}

func (v *Vault) appearance() appearance {
	var a appearance
	b, err := os.ReadFile(v.configPath("appearance.json"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("vault: read appearance", "err", err)
		}
		return a
	}
	if err := json.Unmarshal(b, &a); err != nil {
		slog.Warn("vault: parse appearance", "err", err)
	}
	return a
}

// LoadedStyles returns the configured builtin stylesheet files that could
// be read.
func (v *Vault) LoadedStyles() ([]string, error) {
	if len(v.builtin) == 0 {
		return nil, ErrNoBuiltinStyles
	}
	var out []string
	var errs []error
	for _, p := range v.builtin {
		b, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, string(b))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("vault: read builtin styles: %w", errors.Join(errs...))
	}
	return out, nil
}

// ActiveTheme returns the configured community theme if its stylesheet
// exists.
func (v *Vault) ActiveTheme() (watcher.Theme, bool) {
	name := v.appearance().CSSTheme
	if name == "" {
		return watcher.Theme{}, false
	}
	if _, err := os.Stat(v.configPath("themes", name, "theme.css")); err != nil {
		return watcher.Theme{}, false
	}

	t := watcher.Theme{ID: name}
	b, err := os.ReadFile(v.configPath("themes", name, "manifest.json"))
	if err == nil {
		var m manifest
		if err := json.Unmarshal(b, &m); err != nil {
			slog.Warn("vault: parse theme manifest", "theme", name, "err", err)
		}
		t.Version = m.Version
	}
	return t, true
}

// ThemeText returns the stylesheet of theme id, or "" if it cannot be read.
func (v *Vault) ThemeText(id string) string {
	b, err := os.ReadFile(v.configPath("themes", id, "theme.css"))
	if err != nil {
		slog.Warn("vault: read theme", "theme", id, "err", err)
		return ""
	}
	return string(b)
}

// EnabledSnippets returns the enabled snippets that exist on disk, in the
// order appearance.json lists them.
func (v *Vault) EnabledSnippets() []watcher.Snippet {
	var out []watcher.Snippet
	for _, name := range v.appearance().EnabledSnippets {
		b, err := os.ReadFile(v.configPath("snippets", name+".css"))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("vault: read snippet", "snippet", name, "err", err)
			}
			continue
		}
		out = append(out, watcher.Snippet{Name: name, Text: string(b)})
	}
	return out
}

// ColorScheme returns the forced scheme, or "light" when the base theme is
// moonstone and "dark" otherwise.
func (v *Vault) ColorScheme() string {
	if v.scheme != "" {
		return v.scheme
	}
	if strings.EqualFold(v.appearance().Theme, "moonstone") {
		return "light"
	}
	return "dark"
}
