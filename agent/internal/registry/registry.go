package registry

import (
	"slices"
	"sync"

	"github.com/obsidianstack/calloutstack/pkg/types"
)

// Resolver computes display properties for a callout ID. It must always
// return a usable value, falling back to defaults when nothing is known.
type Resolver func(id types.CalloutID) types.Properties

// record is one entry in the central cache.
type record struct {
	id       types.CalloutID
	sources  []types.Source
	resolved types.Properties
	dirty    bool
}

func (r *record) attach(src types.Source) {
	key := src.Key()
	for _, s := range r.sources {
		if s.Key() == key {
			return
		}
	}
	r.sources = append(r.sources, src)
}

func (r *record) detach(src types.Source) {
	key := src.Key()
	r.sources = slices.DeleteFunc(r.sources, func(s types.Source) bool {
		return s.Key() == key
	})
}

func (r *record) callout() types.Callout {
	return types.Callout{
		ID:      r.id,
		Icon:    r.resolved.Icon,
		Color:   r.resolved.Color,
		Sources: slices.Clone(r.sources),
	}
}

// diff is the result of comparing two memberships of one source.
type diff struct {
	added   []types.CalloutID
	removed []types.CalloutID
	changed []types.CalloutID
}

func (d diff) empty() bool {
	return len(d.added) == 0 && len(d.removed) == 0 && len(d.changed) == 0
}

// computeDiff compares prev and next. IDs present in both are reported as
// changed because the text that declared them was replaced.
func computeDiff(prev, next []types.CalloutID) diff {
	var d diff
	for _, id := range next {
		if slices.Contains(prev, id) {
			d.changed = append(d.changed, id)
		} else {
			d.added = append(d.added, id)
		}
	}
	for _, id := range prev {
		if !slices.Contains(next, id) {
			d.removed = append(d.removed, id)
		}
	}
	return d
}

// dedupe returns ids without duplicates, keeping first occurrences.
func dedupe(ids []types.CalloutID) []types.CalloutID {
	out := make([]types.CalloutID, 0, len(ids))
	seen := make(map[types.CalloutID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Registry is the central callout cache.
type Registry struct {
	mu         sync.Mutex
	resolve    Resolver
	records    map[types.CalloutID]*record
	order      []types.CalloutID
	built      bool
	generation uint64

	Builtin  *BuiltinRegistry
	Theme    *ThemeRegistry
	Snippets *SnippetRegistry
	Custom   *CustomRegistry
}

// New creates an empty Registry that resolves properties with resolve.
func New(resolve Resolver) *Registry {
	r := &Registry{resolve: resolve}
	r.Builtin = &BuiltinRegistry{reg: r}
	r.Theme = &ThemeRegistry{reg: r}
	r.Snippets = &SnippetRegistry{reg: r, ids: make(map[string][]types.CalloutID)}
	r.Custom = &CustomRegistry{reg: r}
	return r
}

// Has reports whether any source currently declares id.
func (r *Registry) Has(id types.CalloutID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureBuilt()
	_, ok := r.records[id]
	return ok
}

// Keys returns every known callout ID in first-attribution order.
func (r *Registry) Keys() []types.CalloutID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureBuilt()
	return slices.Clone(r.order)
}

// Get returns the resolved callout for id. The resolver is called only if
// the record is dirty.
func (r *Registry) Get(id types.CalloutID) (types.Callout, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureBuilt()
	rec, ok := r.records[id]
	if !ok {
		return types.Callout{}, false
	}
	r.resolveRecord(rec)
	return rec.callout(), true
}

// Values resolves every dirty record and returns all callouts in Keys order.
func (r *Registry) Values() []types.Callout {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureBuilt()
	out := make([]types.Callout, 0, len(r.order))
	for _, id := range r.order {
		rec := r.records[id]
		r.resolveRecord(rec)
		out = append(out, rec.callout())
	}
	return out
}

// Invalidate marks id dirty without touching its attribution. It is a no-op
// for unknown IDs.
func (r *Registry) Invalidate(id types.CalloutID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureBuilt()
	rec, ok := r.records[id]
	if !ok {
		return
	}
	rec.dirty = true
	r.generation++
}

// InvalidateWhere marks every record whose ID satisfies match dirty. The
// generation advances once if anything was marked.
func (r *Registry) InvalidateWhere(match func(types.CalloutID) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureBuilt()
	marked := false
	for _, id := range r.order {
		if match(id) {
			r.records[id].dirty = true
			marked = true
		}
	}
	if marked {
		r.generation++
	}
}

// HasChanged returns a token that reports whether the registry has changed
// since the token was taken.
func (r *Registry) HasChanged() func() bool {
	r.mu.Lock()
	taken := r.generation
	r.mu.Unlock()
	return func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.generation != taken
	}
}

// Generation returns the current mutation counter.
func (r *Registry) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Reset drops the record cache. It is rebuilt from the sub-registries on
// the next query, with every record dirty.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.built = false
	r.records = nil
	r.order = nil
	r.generation++
}

// ensureBuilt unions all sub-registry memberships into the record cache.
// Caller must hold r.mu.
func (r *Registry) ensureBuilt() {
	if r.built {
		return
	}
	r.records = make(map[types.CalloutID]*record)
	r.order = nil
	r.built = true

	for _, id := range r.Builtin.ids {
		r.attach(id, types.BuiltinSource())
	}
	if r.Theme.active {
		src := types.ThemeSource(r.Theme.current)
		for _, id := range r.Theme.ids {
			r.attach(id, src)
		}
	}
	for _, name := range r.Snippets.names {
		src := types.SnippetSource(name)
		for _, id := range r.Snippets.ids[name] {
			r.attach(id, src)
		}
	}
	for _, id := range r.Custom.ids {
		r.attach(id, types.CustomSource())
	}
}

// apply is the callback every sub-registry invokes after diffing. Caller
// must hold r.mu.
func (r *Registry) apply(src types.Source, d diff) {
	r.generation++
	if !r.built {
		// The build will pick up the new membership.
		return
	}
	for _, id := range d.added {
		r.attach(id, src)
	}
	for _, id := range d.removed {
		r.detach(id, src)
	}
	for _, id := range d.changed {
		if rec, ok := r.records[id]; ok {
			rec.dirty = true
		}
	}
}

func (r *Registry) attach(id types.CalloutID, src types.Source) {
	rec, ok := r.records[id]
	if !ok {
		rec = &record{id: id}
		r.records[id] = rec
		r.order = append(r.order, id)
	}
	rec.attach(src)
	rec.dirty = true
}

func (r *Registry) detach(id types.CalloutID, src types.Source) {
	rec, ok := r.records[id]
	if !ok {
		return
	}
	rec.detach(src)
	if len(rec.sources) > 0 {
		rec.dirty = true
		return
	}
	delete(r.records, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
}

func (r *Registry) resolveRecord(rec *record) {
	if !rec.dirty {
		return
	}
	rec.resolved = r.resolve(rec.id)
	rec.dirty = false
}
