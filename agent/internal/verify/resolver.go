package verify

import (
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/obsidianstack/calloutstack/agent/internal/extract"
	"github.com/obsidianstack/calloutstack/pkg/types"
)

// Host supplies the stylesheets and color scheme the resolver mirrors.
type Host interface {
	// StyleSheets returns the text of every host stylesheet in cascade order.
	StyleSheets() []string
	// ColorScheme returns "light" or "dark".
	ColorScheme() string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithViewType selects the markdown view to imitate. The default is the
// reading view.
func WithViewType(v ViewType) Option {
	return func(r *Resolver) {
		if v == ViewSource || v == ViewReading {
			r.view = v
		}
	}
}

// ReloadStats reports what ReloadStyles did to the isolated stylesheets.
type ReloadStats struct {
	Replaced int
	Appended int
	Removed  int
}

// Resolver answers property queries against an isolated document.
// All exported methods are safe for concurrent use.
type Resolver struct {
	mu     sync.Mutex
	host   Host
	view   ViewType
	scheme string
	tree   *tree

	// styles and sheets are parallel: sheets[i] is the parsed form of
	// the style node styles[i].
	styles []*html.Node
	sheets []*sheet
}

// New builds the isolated document and loads the host's current
// stylesheets into it.
func New(host Host, opts ...Option) *Resolver {
	r := &Resolver{host: host, view: ViewReading}
	for _, opt := range opts {
		opt(r)
	}
	r.scheme = normalizeScheme(host.ColorScheme())
	r.tree = buildTree(r.view, r.scheme)
	r.reloadLocked()
	return r
}

func normalizeScheme(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "light") {
		return "light"
	}
	return "dark"
}

// ReloadStyles re-reads the host color scheme and reconciles the isolated
// stylesheets with the host's list by position: differing entries are
// replaced, new ones appended and leftovers removed.
func (r *Resolver) ReloadStyles() ReloadStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tree == nil {
		return ReloadStats{}
	}
	return r.reloadLocked()
}

func (r *Resolver) reloadLocked() ReloadStats {
	var st ReloadStats

	r.scheme = normalizeScheme(r.host.ColorScheme())
	r.tree.setScheme(r.scheme)

	texts := r.host.StyleSheets()
	for i, text := range texts {
		if i < len(r.styles) {
			if styleText(r.styles[i]) != text {
				setStyleText(r.styles[i], text)
				r.sheets[i] = parseSheet(text)
				st.Replaced++
			}
			continue
		}
		n := newStyleNode(text)
		r.tree.head.AppendChild(n)
		r.styles = append(r.styles, n)
		r.sheets = append(r.sheets, parseSheet(text))
		st.Appended++
	}
	for len(r.styles) > len(texts) {
		last := len(r.styles) - 1
		r.tree.head.RemoveChild(r.styles[last])
		r.styles = r.styles[:last]
		r.sheets = r.sheets[:last]
		st.Removed++
	}
	return st
}

// Properties computes the icon and color of callout id. Values that cannot
// be resolved are returned empty. Colors are normalised to "R, G, B" when
// possible.
func (r *Resolver) Properties(id types.CalloutID) types.Properties {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tree == nil {
		return types.Properties{}
	}

	r.tree.setCallout(id)
	e := newEvaluator(r.sheets, r.scheme)

	icon, _ := e.value(r.tree.target, "--callout-icon")
	color, _ := e.value(r.tree.target, "--callout-color")

	icon = strings.Trim(strings.TrimSpace(icon), `"'`)
	color = strings.TrimSpace(color)
	if c, ok := extract.NormalizeColor(color); ok {
		color = c
	}
	return types.Properties{Icon: icon, Color: color}
}

// StyleCount returns the number of stylesheets in the isolated document.
func (r *Resolver) StyleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.styles)
}

// Unload discards the isolated document. Later queries return empty
// properties.
func (r *Resolver) Unload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree = nil
	r.styles = nil
	r.sheets = nil
}
