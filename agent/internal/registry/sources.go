package registry

import (
	"slices"

	"github.com/obsidianstack/calloutstack/pkg/types"
)

// BuiltinRegistry holds the IDs declared by the application stylesheet.
type BuiltinRegistry struct {
	reg *Registry
	ids []types.CalloutID
}

// Set replaces the builtin membership.
func (b *BuiltinRegistry) Set(ids []types.CalloutID) {
	b.reg.mu.Lock()
	defer b.reg.mu.Unlock()
	next := dedupe(ids)
	d := computeDiff(b.ids, next)
	b.ids = next
	b.reg.apply(types.BuiltinSource(), d)
}

// Get returns the builtin membership.
func (b *BuiltinRegistry) Get() []types.CalloutID {
	b.reg.mu.Lock()
	defer b.reg.mu.Unlock()
	return slices.Clone(b.ids)
}

// Keys is an alias of Get.
func (b *BuiltinRegistry) Keys() []types.CalloutID { return b.Get() }

// Delete removes every builtin ID.
func (b *BuiltinRegistry) Delete() {
	b.reg.mu.Lock()
	defer b.reg.mu.Unlock()
	d := diff{removed: b.ids}
	b.ids = nil
	b.reg.apply(types.BuiltinSource(), d)
}

// ThemeRegistry holds the IDs declared by the active theme. Only one theme
// is tracked at a time.
type ThemeRegistry struct {
	reg     *Registry
	active  bool
	current string
	ids     []types.CalloutID
}

// Set records ids as belonging to theme. When theme differs from the
// current theme, every old ID is removed under the old theme before the
// new IDs are added under the new one; the two memberships are never
// diffed against each other.
func (t *ThemeRegistry) Set(theme string, ids []types.CalloutID) {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	next := dedupe(ids)

	if t.active && t.current == theme {
		d := computeDiff(t.ids, next)
		t.ids = next
		t.reg.apply(types.ThemeSource(theme), d)
		return
	}

	if t.active {
		old := types.ThemeSource(t.current)
		removed := t.ids
		t.active, t.current, t.ids = false, "", nil
		t.reg.apply(old, diff{removed: removed})
	}
	t.active, t.current, t.ids = true, theme, next
	t.reg.apply(types.ThemeSource(theme), diff{added: next})
}

// Get returns the membership of the current theme.
func (t *ThemeRegistry) Get() []types.CalloutID {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	return slices.Clone(t.ids)
}

// Keys is an alias of Get.
func (t *ThemeRegistry) Keys() []types.CalloutID { return t.Get() }

// Theme returns the current theme ID.
func (t *ThemeRegistry) Theme() (string, bool) {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	return t.current, t.active
}

// Delete forgets the current theme and all of its IDs.
func (t *ThemeRegistry) Delete() {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	if !t.active {
		return
	}
	src := types.ThemeSource(t.current)
	removed := t.ids
	t.active, t.current, t.ids = false, "", nil
	t.reg.apply(src, diff{removed: removed})
}

// SnippetRegistry holds the IDs declared by each enabled snippet.
type SnippetRegistry struct {
	reg   *Registry
	names []string
	ids   map[string][]types.CalloutID
}

// Set replaces the membership of snippet name.
func (s *SnippetRegistry) Set(name string, ids []types.CalloutID) {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	prev, known := s.ids[name]
	if !known {
		s.names = append(s.names, name)
	}
	next := dedupe(ids)
	s.ids[name] = next
	s.reg.apply(types.SnippetSource(name), computeDiff(prev, next))
}

// Get returns the membership of snippet name.
func (s *SnippetRegistry) Get(name string) ([]types.CalloutID, bool) {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	ids, ok := s.ids[name]
	return slices.Clone(ids), ok
}

// Keys returns the snippet names in the order they were first set.
func (s *SnippetRegistry) Keys() []string {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	return slices.Clone(s.names)
}

// Delete removes snippet name. It reports whether the snippet was known.
func (s *SnippetRegistry) Delete(name string) bool {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	return s.deleteLocked(name)
}

// Clear removes every snippet.
func (s *SnippetRegistry) Clear() {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	for _, name := range slices.Clone(s.names) {
		s.deleteLocked(name)
	}
}

func (s *SnippetRegistry) deleteLocked(name string) bool {
	prev, ok := s.ids[name]
	if !ok {
		return false
	}
	delete(s.ids, name)
	if i := slices.Index(s.names, name); i >= 0 {
		s.names = slices.Delete(s.names, i, i+1)
	}
	s.reg.apply(types.SnippetSource(name), diff{removed: prev})
	return true
}

// CustomRegistry holds IDs defined outside any stylesheet.
type CustomRegistry struct {
	reg *Registry
	ids []types.CalloutID
}

// Add adds ids that are not already present.
func (c *CustomRegistry) Add(ids ...types.CalloutID) {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()
	var d diff
	for _, id := range dedupe(ids) {
		if !slices.Contains(c.ids, id) {
			c.ids = append(c.ids, id)
			d.added = append(d.added, id)
		}
	}
	if d.empty() {
		return
	}
	c.reg.apply(types.CustomSource(), d)
}

// Delete removes ids that are present.
func (c *CustomRegistry) Delete(ids ...types.CalloutID) {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()
	var d diff
	for _, id := range dedupe(ids) {
		if i := slices.Index(c.ids, id); i >= 0 {
			c.ids = slices.Delete(c.ids, i, i+1)
			d.removed = append(d.removed, id)
		}
	}
	if d.empty() {
		return
	}
	c.reg.apply(types.CustomSource(), d)
}

// Set replaces the custom membership. Unlike the stylesheet sources, IDs
// kept across the update are not marked dirty; use Registry.Invalidate
// when their settings change.
func (c *CustomRegistry) Set(ids []types.CalloutID) {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()
	next := dedupe(ids)
	d := computeDiff(c.ids, next)
	d.changed = nil
	c.ids = next
	if d.empty() {
		return
	}
	c.reg.apply(types.CustomSource(), d)
}

// Has reports whether id is a custom callout.
func (c *CustomRegistry) Has(id types.CalloutID) bool {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()
	return slices.Contains(c.ids, id)
}

// Keys returns the custom IDs in insertion order.
func (c *CustomRegistry) Keys() []types.CalloutID {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()
	return slices.Clone(c.ids)
}

// Clear removes every custom ID.
func (c *CustomRegistry) Clear() {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()
	if len(c.ids) == 0 {
		return
	}
	d := diff{removed: c.ids}
	c.ids = nil
	c.reg.apply(types.CustomSource(), d)
}
