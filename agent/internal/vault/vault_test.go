package vault

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/obsidianstack/calloutstack/agent/internal/watcher"
)

// writeFile creates path (and its parents) under root with content.
func writeFile(t *testing.T, root, path, content string) {
	t.Helper()
	full := filepath.Join(root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestVault(t *testing.T) (string, *Vault) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, ".obsidian/appearance.json", `{
  "cssTheme": "Minimal",
  "enabledCssSnippets": ["recipes", "missing", "admonitions"],
  "theme": "moonstone"
}`)
	writeFile(t, root, ".obsidian/themes/Minimal/theme.css", `[data-callout="fancy"] {}`)
	writeFile(t, root, ".obsidian/themes/Minimal/manifest.json", `{"name": "Minimal", "version": "7.4.1"}`)
	writeFile(t, root, ".obsidian/snippets/recipes.css", `[data-callout="recipe"] {}`)
	writeFile(t, root, ".obsidian/snippets/admonitions.css", `[data-callout="ad"] {}`)
	writeFile(t, root, ".obsidian/snippets/disabled.css", `[data-callout="off"] {}`)
	writeFile(t, root, "app.css", `[data-callout="note"] {}`)
	return root, New(root, WithBuiltinStyles(filepath.Join(root, "app.css")))
}

func TestActiveTheme(t *testing.T) {
	_, v := newTestVault(t)
	theme, ok := v.ActiveTheme()
	if !ok {
		t.Fatal("no active theme")
	}
	if diff := cmp.Diff(watcher.Theme{ID: "Minimal", Version: "7.4.1"}, theme); diff != "" {
		t.Errorf("theme mismatch (-want +got):\n%s", diff)
	}
	if got := v.ThemeText("Minimal"); got != `[data-callout="fancy"] {}` {
		t.Errorf("ThemeText: got %q", got)
	}
}

func TestActiveTheme_MissingStylesheet(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".obsidian/appearance.json", `{"cssTheme": "Gone"}`)
	if _, ok := New(root).ActiveTheme(); ok {
		t.Error("theme without theme.css reported as active")
	}
}

func TestEnabledSnippets(t *testing.T) {
	_, v := newTestVault(t)
	want := []watcher.Snippet{
		{Name: "recipes", Text: `[data-callout="recipe"] {}`},
		{Name: "admonitions", Text: `[data-callout="ad"] {}`},
	}
	if diff := cmp.Diff(want, v.EnabledSnippets()); diff != "" {
		t.Errorf("snippets mismatch (-want +got):\n%s", diff)
	}
}

func TestNoAppearance(t *testing.T) {
	v := New(t.TempDir())
	if _, ok := v.ActiveTheme(); ok {
		t.Error("empty vault reported a theme")
	}
	if s := v.EnabledSnippets(); len(s) != 0 {
		t.Errorf("empty vault snippets: %v", s)
	}
	if _, err := v.LoadedStyles(); !errors.Is(err, ErrNoBuiltinStyles) {
		t.Errorf("LoadedStyles: got %v, want ErrNoBuiltinStyles", err)
	}
	if v.ColorScheme() != "dark" {
		t.Errorf("default scheme: %q", v.ColorScheme())
	}
}

func TestColorScheme(t *testing.T) {
	root, v := newTestVault(t)
	if v.ColorScheme() != "light" {
		t.Errorf("ColorScheme: got %q, want light", v.ColorScheme())
	}
	if got := New(root, WithColorScheme("dark")).ColorScheme(); got != "dark" {
		t.Errorf("forced scheme: got %q", got)
	}

	writeFile(t, root, ".obsidian/appearance.json", `{"cssTheme": "Minimal", "theme": "obsidian"}`)
	if v.ColorScheme() != "dark" {
		t.Errorf("ColorScheme after base theme change: got %q, want dark", v.ColorScheme())
	}
}

func TestLoadedStyles_PartialFailure(t *testing.T) {
	root, _ := newTestVault(t)
	v := New(root, WithBuiltinStyles(filepath.Join(root, "nope.css"), filepath.Join(root, "app.css")))
	styles, err := v.LoadedStyles()
	if err != nil {
		t.Fatalf("LoadedStyles: %v", err)
	}
	if len(styles) != 1 {
		t.Errorf("styles: got %d, want 1", len(styles))
	}

	v = New(root, WithBuiltinStyles(filepath.Join(root, "nope.css")))
	if _, err := v.LoadedStyles(); err == nil {
		t.Error("expected error when no builtin file is readable")
	}
}

func TestSubscribe(t *testing.T) {
	root, v := newTestVault(t)
	fired := make(chan struct{}, 16)
	unsubscribe := v.Subscribe(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	writeFile(t, root, ".obsidian/snippets/recipes.css", `[data-callout="recipe2"] {}`)

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("no notification after snippet write")
	}

	unsubscribe()
	unsubscribe()
}

func TestSubscribe_ThemeDirRenamedIn(t *testing.T) {
	root, v := newTestVault(t)
	writeFile(t, root, "staging/Fresh/theme.css", `[data-callout="fresh"] {}`)

	fired := make(chan struct{}, 16)
	unsubscribe := v.Subscribe(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	err := os.Rename(filepath.Join(root, "staging", "Fresh"), filepath.Join(root, ".obsidian", "themes", "Fresh"))
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("no notification after a theme directory was renamed in")
	}
}

func TestRelevant(t *testing.T) {
	for name, want := range map[string]bool{
		"a.css":      true,
		"b.JSON":     true,
		"notes.md":   false,
		"theme.css~": false,
		"workspace":  false,
	} {
		if got := relevant(name); got != want {
			t.Errorf("relevant(%q): got %v, want %v", name, got, want)
		}
	}
}
