package verify

import (
	"regexp"
	"strings"
)

var colorSchemeFeature = regexp.MustCompile(`prefers-color-scheme\s*:\s*(dark|light)`)

// mediaMatches evaluates a media query list for a screen in the given color
// scheme. Features other than prefers-color-scheme are assumed to match.
func mediaMatches(query, scheme string) bool {
	for _, q := range strings.Split(strings.ToLower(query), ",") {
		if queryMatches(strings.TrimSpace(q), scheme) {
			return true
		}
	}
	return false
}

func queryMatches(q, scheme string) bool {
	negate := false
	if rest, ok := strings.CutPrefix(q, "not "); ok {
		negate, q = true, strings.TrimSpace(rest)
	}
	q = strings.TrimPrefix(q, "only ")

	ok := true
	switch {
	case strings.HasPrefix(q, "print"), strings.HasPrefix(q, "speech"):
		ok = false
	}
	if m := colorSchemeFeature.FindStringSubmatch(q); m != nil && m[1] != scheme {
		ok = false
	}
	return ok != negate
}
