package extract

import (
	"regexp"
	"strings"
)

// hookName is the attribute every callout definition selects on.
const hookName = "data-callout"

var (
	// calloutSelector matches one [data-callout...] attribute selector and
	// captures everything between the attribute name and the closing bracket.
	calloutSelector = regexp.MustCompile(`(?i)\[data-callout([^\]]*)\]`)

	// looseSelector matches any mention that looks like a definition.
	looseSelector = regexp.MustCompile(`(?i)\[data-callout\s*\^?=`)

	doubleQuoted = regexp.MustCompile(`^"([^"]+)"(?:\s+[iIsS])?$`)
	singleQuoted = regexp.MustCompile(`^'([^']+)'(?:\s+[iIsS])?$`)
	unquoted     = regexp.MustCompile(`^([^\s"'\]]+)(?:\s+[iIsS])?$`)
)

// CalloutIDs returns the callout IDs defined by css in order of first
// occurrence. Duplicates are kept.
func CalloutIDs(css string) []string {
	var ids []string
	for _, m := range calloutSelector.FindAllStringSubmatch(css, -1) {
		if id, ok := parseAttribute(m[1]); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// HasHook reports whether css mentions the callout hook at all.
func HasHook(css string) bool {
	return strings.Contains(css, hookName)
}

// LooseCount counts every [data-callout=...] and [data-callout^=...] mention,
// whether or not it parses.
func LooseCount(css string) int {
	return len(looseSelector.FindAllStringIndex(css, -1))
}

// MalformedCount is the number of loose mentions that CalloutIDs rejected.
func MalformedCount(css string) int {
	n := LooseCount(css) - len(CalloutIDs(css))
	if n < 0 {
		return 0
	}
	return n
}

// parseAttribute extracts the ID from the part of an attribute selector that
// follows the attribute name, e.g. `^="note"` or `=tip i`.
func parseAttribute(rest string) (string, bool) {
	rest = strings.TrimLeft(rest, " \t\r\n\f")
	switch {
	case strings.HasPrefix(rest, "^="):
		rest = rest[2:]
	case strings.HasPrefix(rest, "="):
		rest = rest[1:]
	default:
		// Presence-only or a non-defining operator.
		return "", false
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}

	var m []string
	switch rest[0] {
	case '"':
		m = doubleQuoted.FindStringSubmatch(rest)
	case '\'':
		m = singleQuoted.FindStringSubmatch(rest)
	default:
		m = unquoted.FindStringSubmatch(rest)
	}
	if m == nil {
		return "", false
	}
	return m[1], true
}
