package extract

import (
	"regexp"
	"slices"
	"strings"

	"github.com/obsidianstack/calloutstack/pkg/types"
)

var (
	cssComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// ruleBlock matches an innermost selector { declarations } pair, so
	// rules nested inside at-rules are matched on their own.
	ruleBlock = regexp.MustCompile(`([^{}]*)\{([^{}]*)\}`)

	colorDecl = regexp.MustCompile(`--callout-color\s*:\s*([^;}]+)`)
	iconDecl  = regexp.MustCompile(`--callout-icon\s*:\s*([\w-]+)`)
)

// Result is the outcome of fast-path property extraction.
type Result struct {
	Color string
	Icon  string

	// IconDefault is true when no --callout-icon declaration was found, as
	// opposed to one that explicitly names the default icon.
	IconDefault bool
}

// Properties drops the diagnostic flag.
func (r Result) Properties() types.Properties {
	return types.Properties{Icon: r.Icon, Color: r.Color}
}

// FastProperties extracts the color and icon for id from the first rule
// block in css whose selector defines id. Missing values fall back to
// types.DefaultColor and types.DefaultIcon.
func FastProperties(css, id string) Result {
	res := Result{Color: types.DefaultColor, Icon: types.DefaultIcon, IconDefault: true}

	block, ok := findBlock(css, id)
	if !ok {
		return res
	}

	if m := colorDecl.FindAllStringSubmatch(block, -1); len(m) > 0 {
		res.Color = declaredColor(m[len(m)-1][1])
	}
	if m := iconDecl.FindAllStringSubmatch(block, -1); len(m) > 0 {
		res.Icon = m[len(m)-1][1]
		res.IconDefault = false
	}
	return res
}

// NeedsVerification reports whether a fast-path result should be checked
// against the verifier: either nothing was declared at all (the values may
// come from the cascade), or the color is still a var() reference.
func NeedsVerification(color string, iconDefault bool) bool {
	if color == types.DefaultColor && iconDefault {
		return true
	}
	return strings.Contains(color, "var(")
}

func findBlock(css, id string) (string, bool) {
	css = cssComment.ReplaceAllString(css, " ")
	for _, m := range ruleBlock.FindAllStringSubmatch(css, -1) {
		if slices.Contains(CalloutIDs(m[1]), id) {
			return m[2], true
		}
	}
	return "", false
}

func declaredColor(raw string) string {
	v := strings.TrimSpace(raw)
	v = strings.TrimSpace(strings.TrimSuffix(v, "!important"))
	if strings.Contains(v, "var(") {
		return v
	}
	if c, ok := NormalizeColor(v); ok {
		return c
	}
	return types.DefaultColor
}
