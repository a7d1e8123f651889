package watcher

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/obsidianstack/calloutstack/agent/internal/extract"
	"github.com/obsidianstack/calloutstack/pkg/types"
)

var (
	// ErrAlreadyWatching is returned by Watch while a previous live session
	// is still running.
	ErrAlreadyWatching = errors.New("watcher: already watching")

	// ErrNoNotifier is returned by Watch when the provider does not
	// implement Notifier.
	ErrNoNotifier = errors.New("watcher: provider has no change notifications")
)

// Theme identifies the active theme. A change of either field is a change
// of identity.
type Theme struct {
	ID      string
	Version string
}

// Snippet is an enabled CSS snippet.
type Snippet struct {
	Name string
	Text string
}

// Provider gives read access to the host's style sources.
type Provider interface {
	// LoadedStyles returns the text of every stylesheet already loaded by
	// the host. An error means the scan strategy is unavailable.
	LoadedStyles() ([]string, error)
	ActiveTheme() (Theme, bool)
	ThemeText(id string) string
	EnabledSnippets() []Snippet
}

// Fetcher retrieves the builtin stylesheet when it cannot be found among
// the loaded styles.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Notifier is implemented by providers that can report style changes.
type Notifier interface {
	Subscribe(fn func()) (unsubscribe func())
}

// FetchMethod records how the builtin stylesheet was obtained.
type FetchMethod string

const (
	MethodNone  FetchMethod = ""
	MethodScan  FetchMethod = "scan"
	MethodFetch FetchMethod = "fetch"
)

type builtinSlot struct {
	text   string
	method FetchMethod
}

type themeSlot struct {
	ok    bool
	theme Theme
	text  string
}

// Watcher tracks stylesheet snapshots and emits change events.
type Watcher struct {
	provider Provider
	fetcher  Fetcher
	limiter  *rate.Limiter

	// checkMu serialises checks and guards the snapshot fields.
	checkMu      sync.Mutex
	builtin      builtinSlot
	theme        themeSlot
	snippets     map[string]string
	snippetOrder []string

	subsMu    sync.Mutex
	nextID    uint64
	listeners map[EventKind][]listenerEntry

	watchMu  sync.Mutex
	watching bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithFetcher sets the fallback strategy for the builtin stylesheet.
func WithFetcher(f Fetcher) Option {
	return func(w *Watcher) { w.fetcher = f }
}

// WithMinInterval limits live-mode checks to one per d.
func WithMinInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// New creates a Watcher over p. The snapshot starts empty, so the first
// check reports every source as added.
func New(p Provider, opts ...Option) *Watcher {
	w := &Watcher{
		provider:  p,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		snippets:  make(map[string]string),
		listeners: make(map[EventKind][]listenerEntry),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CheckForChanges compares the provider's current state with the snapshot
// and emits events for every difference. If forceClear is set the snapshot
// is dropped first. It reports whether anything changed.
func (w *Watcher) CheckForChanges(ctx context.Context, forceClear bool) bool {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	w.emit(Event{Kind: EventCheckStarted})

	if forceClear {
		w.builtin = builtinSlot{}
		w.theme = themeSlot{}
		w.snippets = make(map[string]string)
		w.snippetOrder = nil
	}

	changed := w.checkBuiltin(ctx)
	changed = w.checkTheme() || changed
	changed = w.checkSnippets() || changed

	w.emit(Event{Kind: EventCheckComplete, AnyChanged: changed})
	return changed
}

// FetchMethod reports how the builtin stylesheet was last obtained.
func (w *Watcher) FetchMethod() FetchMethod {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()
	return w.builtin.method
}

// DescribeFetchMethod returns a human readable form of FetchMethod.
func (w *Watcher) DescribeFetchMethod() string {
	switch w.FetchMethod() {
	case MethodScan:
		return "found among loaded stylesheets"
	case MethodFetch:
		return "fetched from the application resources"
	default:
		return "not loaded"
	}
}

func (w *Watcher) checkBuiltin(ctx context.Context) bool {
	if w.builtin.method != MethodNone {
		return false
	}

	text, method, ok := w.loadBuiltin(ctx)
	if !ok {
		return false
	}
	w.builtin = builtinSlot{text: text, method: method}
	w.emitSheet(EventChange, Stylesheet{Kind: types.KindBuiltin, Text: text})
	return true
}

func (w *Watcher) loadBuiltin(ctx context.Context) (string, FetchMethod, bool) {
	styles, err := w.provider.LoadedStyles()
	if err != nil {
		slog.Debug("watcher: loaded styles unavailable", "err", err)
	}
	for _, s := range styles {
		if extract.HasHook(s) {
			return s, MethodScan, true
		}
	}

	if w.fetcher == nil {
		slog.Warn("watcher: builtin stylesheet not found and no fetcher configured")
		return "", MethodNone, false
	}
	text, err := w.fetcher.Fetch(ctx)
	if err != nil {
		slog.Warn("watcher: fetch builtin stylesheet failed", "err", err)
		return "", MethodNone, false
	}
	return text, MethodFetch, true
}

func (w *Watcher) checkTheme() bool {
	theme, ok := w.provider.ActiveTheme()
	prev := w.theme

	switch {
	case !ok && !prev.ok:
		return false

	case !ok:
		w.theme = themeSlot{}
		w.emitSheet(EventRemove, themeSheet(prev))
		return true

	case !prev.ok || prev.theme != theme:
		next := themeSlot{ok: true, theme: theme, text: w.provider.ThemeText(theme.ID)}
		if prev.ok {
			w.theme = themeSlot{}
			w.emitSheet(EventRemove, themeSheet(prev))
		}
		w.theme = next
		w.emitSheet(EventAdd, themeSheet(next))
		return true
	}

	text := w.provider.ThemeText(theme.ID)
	if text == prev.text {
		return false
	}
	w.theme.text = text
	w.emitSheet(EventChange, themeSheet(w.theme))
	return true
}

func themeSheet(s themeSlot) Stylesheet {
	return Stylesheet{Kind: types.KindTheme, Name: s.theme.ID, Text: s.text}
}

func (w *Watcher) checkSnippets() bool {
	current := w.provider.EnabledSnippets()
	changed := false

	for _, name := range slices.Clone(w.snippetOrder) {
		if slices.ContainsFunc(current, func(s Snippet) bool { return s.Name == name }) {
			continue
		}
		text := w.snippets[name]
		delete(w.snippets, name)
		w.snippetOrder = slices.DeleteFunc(w.snippetOrder, func(n string) bool { return n == name })
		w.emitSheet(EventRemove, Stylesheet{Kind: types.KindSnippet, Name: name, Text: text})
		changed = true
	}

	for _, s := range current {
		prev, known := w.snippets[s.Name]
		switch {
		case !known:
			w.snippets[s.Name] = s.Text
			w.snippetOrder = append(w.snippetOrder, s.Name)
			w.emitSheet(EventAdd, Stylesheet{Kind: types.KindSnippet, Name: s.Name, Text: s.Text})
			changed = true
		case prev != s.Text:
			w.snippets[s.Name] = s.Text
			w.emitSheet(EventChange, Stylesheet{Kind: types.KindSnippet, Name: s.Name, Text: s.Text})
			changed = true
		}
	}
	return changed
}

// Watch runs an initial check and then re-checks whenever the provider
// reports a change, until stop is called or ctx is cancelled. stop blocks
// until the current check, if any, has finished.
func (w *Watcher) Watch(ctx context.Context) (stop func(), err error) {
	n, ok := w.provider.(Notifier)
	if !ok {
		return nil, ErrNoNotifier
	}

	w.watchMu.Lock()
	if w.watching {
		w.watchMu.Unlock()
		return nil, ErrAlreadyWatching
	}
	w.watching = true
	w.watchMu.Unlock()

	// Subscribe before the initial check so that edits landing during it
	// queue a follow-up check.
	ctx, cancel := context.WithCancel(ctx)
	pending := make(chan struct{}, 1)
	unsubscribe := n.Subscribe(func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	})

	w.CheckForChanges(ctx, false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-pending:
				if err := w.limiter.Wait(ctx); err != nil {
					return
				}
				w.CheckForChanges(ctx, false)
			}
		}
	}()

	slog.Info("watcher: live mode started")

	var once sync.Once
	stop = func() {
		once.Do(func() {
			unsubscribe()
			cancel()
			<-done
			w.watchMu.Lock()
			w.watching = false
			w.watchMu.Unlock()
			slog.Info("watcher: live mode stopped")
		})
	}
	return stop, nil
}

// Watching reports whether a live session is active.
func (w *Watcher) Watching() bool {
	w.watchMu.Lock()
	defer w.watchMu.Unlock()
	return w.watching
}
