package verify

import (
	"io"
	"log/slog"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type selector struct {
	sel  cascadia.Sel
	spec cascadia.Specificity
}

type declaration struct {
	name      string
	value     string
	important bool
}

// rule is a style rule. media holds the queries of every enclosing @media
// block; all of them must match for the rule to apply.
type rule struct {
	selectors []selector
	decls     []declaration
	media     []string
}

// sheet is a parsed stylesheet with rules in source order.
type sheet struct {
	rules []*rule
}

// atFrame is one open block at-rule.
type atFrame struct {
	media string
	// skip is set for at-rules whose bodies are not style rules.
	skip bool
}

// nonStyleAtRules contain blocks that look like rulesets but are not.
var nonStyleAtRules = map[string]bool{
	"@keyframes":         true,
	"@-webkit-keyframes": true,
	"@font-face":         true,
	"@page":              true,
	"@counter-style":     true,
	"@property":          true,
}

// parseSheet parses text into rules. Unparseable selectors are dropped and
// parsing stops at the first fatal error, keeping what was read.
func parseSheet(text string) *sheet {
	p := css.NewParser(parse.NewInputString(text), false)
	s := &sheet{}

	var (
		pending []string
		current *rule
		frames  []atFrame
	)

	skipping := func() bool {
		for _, f := range frames {
			if f.skip {
				return true
			}
		}
		return false
	}

	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != nil && err != io.EOF {
				slog.Debug("verify: stylesheet parse stopped", "err", err)
			}
			return s

		case css.BeginAtRuleGrammar:
			name := strings.ToLower(string(data))
			f := atFrame{skip: nonStyleAtRules[name]}
			if name == "@media" {
				f.media = strings.TrimSpace(joinTokens(p.Values()))
			}
			frames = append(frames, f)

		case css.EndAtRuleGrammar:
			if n := len(frames); n > 0 {
				frames = frames[:n-1]
			}

		case css.QualifiedRuleGrammar:
			pending = append(pending, joinTokens(p.Values()))

		case css.BeginRulesetGrammar:
			pending = append(pending, joinTokens(p.Values()))
			if !skipping() {
				current = &rule{selectors: parseSelectors(pending), media: mediaOf(frames)}
			}
			pending = nil

		case css.EndRulesetGrammar:
			if current != nil && len(current.selectors) > 0 && len(current.decls) > 0 {
				s.rules = append(s.rules, current)
			}
			current = nil

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			if current == nil {
				continue
			}
			current.decls = append(current.decls, parseDeclaration(string(data), joinTokens(p.Values())))
		}
	}
}

func mediaOf(frames []atFrame) []string {
	var out []string
	for _, f := range frames {
		if f.media != "" {
			out = append(out, f.media)
		}
	}
	return out
}

func joinTokens(tokens []css.Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.Write(t.Data)
	}
	return b.String()
}

// parseSelectors compiles each selector of a rule, dropping those cascadia
// rejects and those that target pseudo-elements.
func parseSelectors(parts []string) []selector {
	var out []selector
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		group, err := cascadia.ParseGroup(part)
		if err != nil {
			continue
		}
		for _, sel := range group {
			if sel.PseudoElement() != "" {
				continue
			}
			out = append(out, selector{sel: sel, spec: sel.Specificity()})
		}
	}
	return out
}

func parseDeclaration(name, value string) declaration {
	d := declaration{name: name, value: strings.TrimSpace(value)}
	if !strings.HasPrefix(name, "--") {
		d.name = strings.ToLower(name)
	}
	if v, ok := cutImportant(d.value); ok {
		d.value, d.important = v, true
	}
	return d
}

// cutImportant strips a trailing !important, allowing whitespace around
// the bang.
func cutImportant(v string) (string, bool) {
	lower := strings.ToLower(v)
	if !strings.HasSuffix(lower, "important") {
		return v, false
	}
	rest := strings.TrimSpace(v[:len(v)-len("important")])
	if !strings.HasSuffix(rest, "!") {
		return v, false
	}
	return strings.TrimSpace(rest[:len(rest)-1]), true
}
