package verify

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

type candidate struct {
	decl  declaration
	spec  cascadia.Specificity
	order int
}

// beats reports whether c takes precedence over prev in the cascade. Both
// come from the same origin, so only importance, specificity and order count.
func (c candidate) beats(prev candidate) bool {
	if c.decl.important != prev.decl.important {
		return c.decl.important
	}
	if c.spec != prev.spec {
		return prev.spec.Less(c.spec)
	}
	return c.order > prev.order
}

type computedValue struct {
	value string
	valid bool
}

// evaluator computes custom property values for nodes of one tree against
// a fixed list of rules. It is not safe for concurrent use and is discarded
// after each query.
type evaluator struct {
	rules     []*rule
	winners   map[*html.Node]map[string]candidate
	computed  map[*html.Node]map[string]computedValue
	resolving map[*html.Node]map[string]bool
}

func newEvaluator(sheets []*sheet, scheme string) *evaluator {
	e := &evaluator{
		winners:   make(map[*html.Node]map[string]candidate),
		computed:  make(map[*html.Node]map[string]computedValue),
		resolving: make(map[*html.Node]map[string]bool),
	}
	for _, s := range sheets {
		for _, r := range s.rules {
			if ruleApplies(r, scheme) {
				e.rules = append(e.rules, r)
			}
		}
	}
	return e
}

func ruleApplies(r *rule, scheme string) bool {
	for _, q := range r.media {
		if !mediaMatches(q, scheme) {
			return false
		}
	}
	return true
}

// winning returns the cascaded declaration for every property set on n.
func (e *evaluator) winning(n *html.Node) map[string]candidate {
	if w, ok := e.winners[n]; ok {
		return w
	}
	w := make(map[string]candidate)
	order := 0
	for _, r := range e.rules {
		spec, ok := bestMatch(r, n)
		if !ok {
			order += len(r.decls)
			continue
		}
		for _, d := range r.decls {
			order++
			c := candidate{decl: d, spec: spec, order: order}
			if prev, seen := w[d.name]; !seen || c.beats(prev) {
				w[d.name] = c
			}
		}
	}
	e.winners[n] = w
	return w
}

// bestMatch returns the highest specificity among the rule's selectors that
// match n.
func bestMatch(r *rule, n *html.Node) (cascadia.Specificity, bool) {
	var (
		best    cascadia.Specificity
		matched bool
	)
	for _, s := range r.selectors {
		if !s.sel.Match(n) {
			continue
		}
		if !matched || best.Less(s.spec) {
			best = s.spec
		}
		matched = true
	}
	return best, matched
}

// value returns the computed value of custom property name on n. The second
// result is false when the property is guaranteed-invalid: never set,
// explicitly initial, or part of a var() cycle.
func (e *evaluator) value(n *html.Node, name string) (string, bool) {
	if cv, ok := e.computed[n][name]; ok {
		return cv.value, cv.valid
	}
	if e.resolving[n][name] {
		return "", false
	}
	if e.resolving[n] == nil {
		e.resolving[n] = make(map[string]bool)
	}
	e.resolving[n][name] = true
	defer delete(e.resolving[n], name)

	var cv computedValue
	c, ok := e.winning(n)[name]
	switch {
	case !ok:
		cv.value, cv.valid = e.inherited(n, name)
	default:
		switch strings.ToLower(c.decl.value) {
		case "inherit", "unset":
			cv.value, cv.valid = e.inherited(n, name)
		case "initial":
		default:
			cv.value, cv.valid = e.substitute(n, c.decl.value)
		}
	}

	if e.computed[n] == nil {
		e.computed[n] = make(map[string]computedValue)
	}
	e.computed[n][name] = cv
	return cv.value, cv.valid
}

func (e *evaluator) inherited(n *html.Node, name string) (string, bool) {
	p := n.Parent
	if p == nil || p.Type != html.ElementNode {
		return "", false
	}
	return e.value(p, name)
}

// substitute replaces every var() reference in v as seen from n.
func (e *evaluator) substitute(n *html.Node, v string) (string, bool) {
	var b strings.Builder
	for {
		i := strings.Index(v, "var(")
		if i < 0 {
			b.WriteString(v)
			break
		}
		b.WriteString(v[:i])

		end := closingParen(v, i+len("var"))
		if end < 0 {
			return "", false
		}
		name, fallback, hasFallback := strings.Cut(v[i+len("var("):end], ",")
		val, ok := e.value(n, strings.TrimSpace(name))
		if !ok {
			if !hasFallback {
				return "", false
			}
			if val, ok = e.substitute(n, strings.TrimSpace(fallback)); !ok {
				return "", false
			}
		}
		b.WriteString(val)
		v = v[end+1:]
	}
	return strings.TrimSpace(b.String()), true
}

// closingParen returns the index of the parenthesis closing the one at open,
// or -1.
func closingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
