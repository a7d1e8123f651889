package detector

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/obsidianstack/calloutstack/agent/internal/config"
	"github.com/obsidianstack/calloutstack/agent/internal/extract"
	"github.com/obsidianstack/calloutstack/agent/internal/registry"
	"github.com/obsidianstack/calloutstack/agent/internal/verify"
	"github.com/obsidianstack/calloutstack/agent/internal/watcher"
	"github.com/obsidianstack/calloutstack/pkg/types"
)

// Settings select which sources are tracked.
type Settings struct {
	Builtin bool
	Theme   bool
	Snippet bool

	// IgnoreSnippets are snippet names that are never tracked.
	IgnoreSnippets []string
}

// SettingsFrom converts the detection section of the config.
func SettingsFrom(c config.DetectionConfig) Settings {
	return Settings{
		Builtin:        c.Builtin,
		Theme:          c.Theme,
		Snippet:        c.Snippet,
		IgnoreSnippets: slices.Clone(c.IgnoreSnippets),
	}
}

func (s Settings) tracks(sheet watcher.Stylesheet) bool {
	switch sheet.Kind {
	case types.KindBuiltin:
		return s.Builtin
	case types.KindTheme:
		return s.Theme
	case types.KindSnippet:
		return s.Snippet && !slices.Contains(s.IgnoreSnippets, sheet.Name)
	}
	return false
}

// DetectedCallout is a callout found in a theme or snippet that the
// application does not ship with.
type DetectedCallout struct {
	ID          types.CalloutID `json:"id"`
	Icon        string          `json:"icon"`
	Color       string          `json:"color"`
	IconDefault bool            `json:"icon_default"`
	Source      types.Source    `json:"source"`
}

// Warning reports selectors in a snippet that mention the callout hook but
// could not be parsed.
type Warning struct {
	Snippet   string `json:"snippet"`
	Malformed int    `json:"malformed"`
}

// Stats are counters exposed as metrics.
type Stats struct {
	Checks        uint64
	ChangedChecks uint64
	LastCheck     time.Time
	Generation    uint64
	Callouts      int
	BySource      map[types.SourceKind]int
	Detected      int
	Malformed     int
	StyleSheets   int
	FetchMethod   watcher.FetchMethod
}

// Option configures a Detector.
type Option func(*Detector)

// WithSettings sets the initial source toggles. All sources are tracked by
// default.
func WithSettings(s Settings) Option {
	return func(d *Detector) { d.settings = s }
}

// WithCustom sets the initial custom callouts.
func WithCustom(c []config.CustomCallout) Option {
	return func(d *Detector) { d.initialCustom = c }
}

// WithVerification enables the verification resolver. scheme is consulted
// on every reload for the current color scheme.
func WithVerification(scheme func() string, opts ...verify.Option) Option {
	return func(d *Detector) {
		d.scheme = scheme
		d.verifyOpts = opts
		d.verifyEnabled = true
	}
}

// trackedSheets are the stylesheet texts seen by the detector, kept in
// cascade order.
type trackedSheets struct {
	builtin      string
	hasBuiltin   bool
	themeID      string
	themeText    string
	hasTheme     bool
	snippets     map[string]string
	snippetOrder []string
}

func (t *trackedSheets) list() []watcher.Stylesheet {
	var out []watcher.Stylesheet
	if t.hasBuiltin {
		out = append(out, watcher.Stylesheet{Kind: types.KindBuiltin, Text: t.builtin})
	}
	if t.hasTheme {
		out = append(out, watcher.Stylesheet{Kind: types.KindTheme, Name: t.themeID, Text: t.themeText})
	}
	for _, name := range t.snippetOrder {
		out = append(out, watcher.Stylesheet{Kind: types.KindSnippet, Name: name, Text: t.snippets[name]})
	}
	return out
}

// Detector wires a Watcher to a Registry.
// All exported methods are safe for concurrent use.
type Detector struct {
	watcher  *watcher.Watcher
	registry *registry.Registry
	verifier *verify.Resolver
	subs     []*watcher.Subscription

	verifyEnabled bool
	verifyOpts    []verify.Option
	scheme        func() string
	initialCustom []config.CustomCallout

	mu            sync.RWMutex
	settings      Settings
	sheets        trackedSheets
	custom        map[types.CalloutID]types.Properties
	detected      []DetectedCallout
	warnings      []Warning
	checks        uint64
	changedChecks uint64
	lastCheck     time.Time
	lastScheme    string

	listenersMu sync.Mutex
	nextID      uint64
	listeners   map[uint64]func()

	now func() time.Time
}

// New creates a Detector over w and subscribes to its events.
func New(w *watcher.Watcher, opts ...Option) *Detector {
	d := &Detector{
		watcher:   w,
		settings:  Settings{Builtin: true, Theme: true, Snippet: true},
		sheets:    trackedSheets{snippets: make(map[string]string)},
		custom:    make(map[types.CalloutID]types.Properties),
		listeners: make(map[uint64]func()),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.registry = registry.New(d.resolveByID)
	if d.verifyEnabled {
		d.verifier = verify.New(host{d}, d.verifyOpts...)
		d.lastScheme = host{d}.ColorScheme()
	}

	d.subs = []*watcher.Subscription{
		w.On(watcher.EventAdd, d.onSheet),
		w.On(watcher.EventChange, d.onSheet),
		w.On(watcher.EventRemove, d.onRemove),
		w.On(watcher.EventCheckComplete, d.onCheckComplete),
	}

	if len(d.initialCustom) > 0 {
		d.SetCustom(d.initialCustom)
	}
	return d
}

// Registry returns the underlying registry.
func (d *Detector) Registry() *registry.Registry { return d.registry }

// Watcher returns the underlying watcher.
func (d *Detector) Watcher() *watcher.Watcher { return d.watcher }

// Close detaches the detector from the watcher and drops the verifier.
func (d *Detector) Close() {
	for _, s := range d.subs {
		s.Unsubscribe()
	}
	if d.verifier != nil {
		d.verifier.Unload()
	}
}

func (d *Detector) onSheet(ev watcher.Event) {
	sheet := ev.Sheet

	d.mu.Lock()
	if !d.settings.tracks(sheet) {
		d.mu.Unlock()
		return
	}
	switch sheet.Kind {
	case types.KindBuiltin:
		d.sheets.builtin, d.sheets.hasBuiltin = sheet.Text, true
	case types.KindTheme:
		d.sheets.themeID, d.sheets.themeText, d.sheets.hasTheme = sheet.Name, sheet.Text, true
	case types.KindSnippet:
		if _, ok := d.sheets.snippets[sheet.Name]; !ok {
			d.sheets.snippetOrder = append(d.sheets.snippetOrder, sheet.Name)
		}
		d.sheets.snippets[sheet.Name] = sheet.Text
	}
	d.mu.Unlock()
	d.syncVerifier()

	ids := extract.CalloutIDs(sheet.Text)
	switch sheet.Kind {
	case types.KindBuiltin:
		d.registry.Builtin.Set(ids)
	case types.KindTheme:
		d.registry.Theme.Set(sheet.Name, ids)
	case types.KindSnippet:
		d.registry.Snippets.Set(sheet.Name, ids)
	}
	slog.Debug("detector: stylesheet updated", "event", ev.Kind, "source", sheet.Source().Key(), "callouts", len(ids))
}

func (d *Detector) onRemove(ev watcher.Event) {
	d.forget(ev.Sheet.Source())
	slog.Debug("detector: stylesheet removed", "source", ev.Sheet.Source().Key())
}

// forget drops one source from the text cache and the registry.
func (d *Detector) forget(src types.Source) {
	d.mu.Lock()
	switch src.Kind {
	case types.KindBuiltin:
		d.sheets.builtin, d.sheets.hasBuiltin = "", false
	case types.KindTheme:
		if d.sheets.themeID == src.Name {
			d.sheets.themeID, d.sheets.themeText, d.sheets.hasTheme = "", "", false
		}
	case types.KindSnippet:
		delete(d.sheets.snippets, src.Name)
		d.sheets.snippetOrder = slices.DeleteFunc(d.sheets.snippetOrder, func(n string) bool { return n == src.Name })
	}
	d.mu.Unlock()
	d.syncVerifier()

	switch src.Kind {
	case types.KindBuiltin:
		d.registry.Builtin.Delete()
	case types.KindTheme:
		if id, ok := d.registry.Theme.Theme(); ok && id == src.Name {
			d.registry.Theme.Delete()
		}
	case types.KindSnippet:
		d.registry.Snippets.Delete(src.Name)
	}
}

func (d *Detector) onCheckComplete(ev watcher.Event) {
	var scheme string
	if d.verifier != nil {
		scheme = host{d}.ColorScheme()
	}

	d.mu.Lock()
	d.checks++
	d.lastCheck = d.now()
	if ev.AnyChanged {
		d.changedChecks++
	}
	schemeChanged := d.verifier != nil && scheme != d.lastScheme
	d.lastScheme = scheme
	d.mu.Unlock()

	if !ev.AnyChanged && !schemeChanged {
		return
	}
	if schemeChanged {
		slog.Info("detector: color scheme changed", "scheme", scheme)
		d.syncVerifier()
	}
	d.rebuild()
	d.invalidateVerified()
	d.notify()
}

// syncVerifier reconciles the verifier with the tracked stylesheets and the
// current color scheme. It runs before the registry is dirtied so that a
// concurrent Get never resolves a dirty record against old styles.
func (d *Detector) syncVerifier() {
	if d.verifier == nil {
		return
	}
	st := d.verifier.ReloadStyles()
	if st != (verify.ReloadStats{}) {
		slog.Debug("detector: verifier reloaded",
			"replaced", st.Replaced, "appended", st.Appended, "removed", st.Removed)
	}
}

// invalidateVerified marks every stylesheet-resolved record dirty. A
// verified value depends on the whole cascade, so an edit in one sheet can
// change callouts declared in another.
func (d *Detector) invalidateVerified() {
	if d.verifier == nil {
		return
	}
	d.mu.RLock()
	custom := make(map[types.CalloutID]bool, len(d.custom))
	for id := range d.custom {
		custom[id] = true
	}
	d.mu.RUnlock()

	d.registry.InvalidateWhere(func(id types.CalloutID) bool {
		return !custom[id] && !IsBuiltin(id)
	})
}

// rebuild recomputes the detected list and warnings from the tracked
// stylesheets. The verifier must already be in sync.
func (d *Detector) rebuild() {
	d.mu.RLock()
	sheets := d.sheets.list()
	d.mu.RUnlock()

	var (
		detected []DetectedCallout
		warnings []Warning
		seen     = make(map[types.CalloutID]bool)
	)
	collect := func(s watcher.Stylesheet) {
		for _, id := range extract.CalloutIDs(s.Text) {
			if seen[id] || IsBuiltin(id) {
				continue
			}
			seen[id] = true
			res := d.resolveDetected(s.Text, id)
			detected = append(detected, DetectedCallout{
				ID:          id,
				Icon:        res.Icon,
				Color:       res.Color,
				IconDefault: res.IconDefault,
				Source:      s.Source(),
			})
		}
	}

	for _, s := range sheets {
		if s.Kind != types.KindSnippet {
			continue
		}
		collect(s)
		if n := extract.MalformedCount(s.Text); n > 0 {
			warnings = append(warnings, Warning{Snippet: s.Name, Malformed: n})
			slog.Warn("detector: snippet has malformed callout selectors", "snippet", s.Name, "count", n)
		}
	}
	for _, s := range sheets {
		if s.Kind == types.KindTheme {
			collect(s)
		}
	}

	d.mu.Lock()
	d.detected = detected
	d.warnings = warnings
	d.mu.Unlock()
}

// resolveDetected applies the fast path to css and escalates to the
// verifier when the result is ambiguous. Non-empty verifier values win.
func (d *Detector) resolveDetected(css string, id types.CalloutID) extract.Result {
	res := extract.FastProperties(css, id)
	if d.verifier == nil || !extract.NeedsVerification(res.Color, res.IconDefault) {
		return res
	}

	v := d.verifier.Properties(id)
	if v.Color != "" {
		res.Color = v.Color
	}
	if v.Icon != "" {
		res.Icon = v.Icon
		res.IconDefault = res.IconDefault && v.Icon == types.DefaultIcon
	}
	return res
}

// resolveByID is the registry resolver. It is called with the registry
// lock held.
func (d *Detector) resolveByID(id types.CalloutID) types.Properties {
	if p, ok := BuiltinProperties(id); ok {
		return p
	}

	d.mu.RLock()
	custom, isCustom := d.custom[id]
	sheets := d.sheets.list()
	d.mu.RUnlock()

	if isCustom {
		return custom
	}
	for _, s := range sheets {
		if !slices.Contains(extract.CalloutIDs(s.Text), id) {
			continue
		}
		res := d.resolveDetected(s.Text, id)
		if res.Color != types.DefaultColor || !res.IconDefault {
			return res.Properties()
		}
	}
	return types.Properties{Icon: types.DefaultIcon, Color: types.DefaultColor}
}

// Check runs one incremental change check.
func (d *Detector) Check(ctx context.Context) bool {
	return d.watcher.CheckForChanges(ctx, false)
}

// Refresh forgets every tracked stylesheet and re-reads all sources.
func (d *Detector) Refresh(ctx context.Context) bool {
	d.clearSources(true, true, true)
	return d.watcher.CheckForChanges(ctx, true)
}

// Watch starts live mode on the watcher.
func (d *Detector) Watch(ctx context.Context) (stop func(), err error) {
	return d.watcher.Watch(ctx)
}

func (d *Detector) clearSources(builtin, theme, snippets bool) {
	d.mu.Lock()
	if builtin {
		d.sheets.builtin, d.sheets.hasBuiltin = "", false
	}
	if theme {
		d.sheets.themeID, d.sheets.themeText, d.sheets.hasTheme = "", "", false
	}
	if snippets {
		d.sheets.snippets = make(map[string]string)
		d.sheets.snippetOrder = nil
	}
	d.mu.Unlock()
	d.syncVerifier()

	if builtin {
		d.registry.Builtin.Delete()
	}
	if theme {
		d.registry.Theme.Delete()
	}
	if snippets {
		d.registry.Snippets.Clear()
	}
}

// SetSettings changes the source toggles. Newly disabled sources are
// dropped at once; newly enabled ones are picked up by a full refresh.
func (d *Detector) SetSettings(ctx context.Context, s Settings) {
	d.mu.Lock()
	old := d.settings
	d.settings = s
	var ignored []string
	for _, name := range s.IgnoreSnippets {
		if _, ok := d.sheets.snippets[name]; ok {
			ignored = append(ignored, name)
		}
	}
	d.mu.Unlock()

	d.clearSources(old.Builtin && !s.Builtin, old.Theme && !s.Theme, old.Snippet && !s.Snippet)
	for _, name := range ignored {
		d.forget(types.SnippetSource(name))
	}

	enabled := (!old.Builtin && s.Builtin) || (!old.Theme && s.Theme) || (!old.Snippet && s.Snippet)
	for _, name := range old.IgnoreSnippets {
		if !slices.Contains(s.IgnoreSnippets, name) {
			enabled = true
		}
	}
	if enabled {
		d.Refresh(ctx)
		return
	}
	d.rebuild()
	d.invalidateVerified()
	d.notify()
}

// SetCustom replaces the custom callouts. IDs whose icon or color changed
// are invalidated in the registry.
func (d *Detector) SetCustom(callouts []config.CustomCallout) {
	next := make(map[types.CalloutID]types.Properties, len(callouts))
	ids := make([]types.CalloutID, 0, len(callouts))
	for _, c := range callouts {
		next[c.ID] = c.Properties()
		ids = append(ids, c.ID)
	}

	d.mu.Lock()
	prev := d.custom
	d.custom = next
	d.mu.Unlock()

	before := d.registry.HasChanged()
	d.registry.Custom.Set(ids)
	for id, p := range next {
		if old, ok := prev[id]; ok && old != p {
			d.registry.Invalidate(id)
		}
	}
	if before() {
		d.notify()
	}
}

// Callouts returns every known callout with resolved properties.
func (d *Detector) Callouts() []types.Callout {
	return d.registry.Values()
}

// Callout returns one resolved callout.
func (d *Detector) Callout(id types.CalloutID) (types.Callout, bool) {
	return d.registry.Get(id)
}

// Detected returns the callouts found in themes and snippets that are not
// builtin, snippets first.
func (d *Detector) Detected() []DetectedCallout {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.detected)
}

// Warnings returns the malformed-selector counts per snippet.
func (d *Detector) Warnings() []Warning {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.warnings)
}

// SourceInfo describes one tracked source.
type SourceInfo struct {
	Source   types.Source      `json:"source"`
	Callouts []types.CalloutID `json:"callouts"`
}

// Sources lists every source that currently declares callouts, in
// cascade order followed by custom.
func (d *Detector) Sources() []SourceInfo {
	reg := d.registry
	var out []SourceInfo
	if ids := reg.Builtin.Keys(); len(ids) > 0 {
		out = append(out, SourceInfo{Source: types.BuiltinSource(), Callouts: ids})
	}
	if theme, ok := reg.Theme.Theme(); ok {
		out = append(out, SourceInfo{Source: types.ThemeSource(theme), Callouts: reg.Theme.Keys()})
	}
	for _, name := range reg.Snippets.Keys() {
		ids, _ := reg.Snippets.Get(name)
		out = append(out, SourceInfo{Source: types.SnippetSource(name), Callouts: ids})
	}
	if ids := reg.Custom.Keys(); len(ids) > 0 {
		out = append(out, SourceInfo{Source: types.CustomSource(), Callouts: ids})
	}
	return out
}

// Stats returns a snapshot of the detector counters.
func (d *Detector) Stats() Stats {
	reg := d.registry
	st := Stats{
		Generation: reg.Generation(),
		Callouts:   len(reg.Keys()),
		BySource: map[types.SourceKind]int{
			types.KindBuiltin: len(reg.Builtin.Keys()),
			types.KindTheme:   len(reg.Theme.Keys()),
			types.KindCustom:  len(reg.Custom.Keys()),
		},
		FetchMethod: d.watcher.FetchMethod(),
	}
	snippetIDs := 0
	for _, name := range reg.Snippets.Keys() {
		ids, _ := reg.Snippets.Get(name)
		snippetIDs += len(ids)
	}
	st.BySource[types.KindSnippet] = snippetIDs

	d.mu.RLock()
	defer d.mu.RUnlock()
	st.Checks = d.checks
	st.ChangedChecks = d.changedChecks
	st.LastCheck = d.lastCheck
	st.Detected = len(d.detected)
	for _, w := range d.warnings {
		st.Malformed += w.Malformed
	}
	st.StyleSheets = len(d.sheets.list())
	return st
}

// Subscribe registers fn to be called after every change to the callout
// set. fn runs on the goroutine that made the change.
func (d *Detector) Subscribe(fn func()) (unsubscribe func()) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	return func() {
		d.listenersMu.Lock()
		defer d.listenersMu.Unlock()
		delete(d.listeners, id)
	}
}

func (d *Detector) notify() {
	d.listenersMu.Lock()
	fns := make([]func(), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.listenersMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// host exposes the tracked stylesheets to the verifier.
type host struct{ d *Detector }

func (h host) StyleSheets() []string {
	h.d.mu.RLock()
	defer h.d.mu.RUnlock()
	var out []string
	for _, s := range h.d.sheets.list() {
		out = append(out, s.Text)
	}
	return out
}

func (h host) ColorScheme() string {
	if h.d.scheme == nil {
		return ""
	}
	return h.d.scheme()
}
