package types

import (
	"fmt"
	"strings"
)

// CalloutID identifies a callout. Comparison is case-sensitive.
type CalloutID = string

// SourceKind is the kind of style source that can declare callouts.
type SourceKind string

const (
	KindBuiltin SourceKind = "builtin"
	KindTheme   SourceKind = "theme"
	KindSnippet SourceKind = "snippet"
	KindCustom  SourceKind = "custom"
)

// Default display values used when nothing declares an icon or a color.
const (
	DefaultColor = "var(--callout-default)"
	DefaultIcon  = "lucide-box"
)

// Source identifies where a callout is declared. Name holds the theme ID
// for KindTheme and the snippet name for KindSnippet; it is empty otherwise.
type Source struct {
	Kind SourceKind `json:"type"`
	Name string     `json:"name,omitempty"`
}

// BuiltinSource returns the source for the application's own stylesheet.
func BuiltinSource() Source { return Source{Kind: KindBuiltin} }

// ThemeSource returns the source for the theme with the given ID.
func ThemeSource(id string) Source { return Source{Kind: KindTheme, Name: id} }

// SnippetSource returns the source for the snippet with the given name.
func SnippetSource(name string) Source { return Source{Kind: KindSnippet, Name: name} }

// CustomSource returns the source for in-process custom callouts.
func CustomSource() Source { return Source{Kind: KindCustom} }

// Key encodes the source as a flat string. See the package documentation
// for the format.
func (s Source) Key() string {
	switch s.Kind {
	case KindBuiltin, KindCustom:
		return string(s.Kind)
	case KindTheme, KindSnippet:
		return string(s.Kind) + ":" + s.Name
	default:
		panic(fmt.Sprintf("types: source with unknown kind %q", s.Kind))
	}
}

// String implements fmt.Stringer.
func (s Source) String() string { return s.Key() }

// ParseSourceKey decodes a key produced by Source.Key.
// It panics if the key is not recognised.
func ParseSourceKey(key string) Source {
	switch key {
	case string(KindBuiltin):
		return BuiltinSource()
	case string(KindCustom):
		return CustomSource()
	}
	if name, ok := strings.CutPrefix(key, string(KindSnippet)+":"); ok {
		return SnippetSource(name)
	}
	if id, ok := strings.CutPrefix(key, string(KindTheme)+":"); ok {
		return ThemeSource(id)
	}
	panic(fmt.Sprintf("types: unknown source key %q", key))
}

// Properties are the display properties of a callout.
type Properties struct {
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// Callout is a resolved callout together with every source that declares it.
type Callout struct {
	ID      CalloutID `json:"id"`
	Icon    string    `json:"icon"`
	Color   string    `json:"color"`
	Sources []Source  `json:"sources"`
}
