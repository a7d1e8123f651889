package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

var (
	rgbTriple = regexp.MustCompile(`^(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})$`)
	rgbFunc   = regexp.MustCompile(`^rgba?\(\s*(\d{1,3})[\s,]+(\d{1,3})[\s,]+(\d{1,3})\s*(?:[,/][^)]*)?\)$`)
	hslFunc   = regexp.MustCompile(`^hsla?\(\s*([\d.]+)(?:deg)?[\s,]+([\d.]+)%[\s,]+([\d.]+)%\s*(?:[,/][^)]*)?\)$`)
)

// NormalizeColor converts a CSS color value to the "R, G, B" triple format
// callouts use. Accepted inputs are a bare triple, #rgb / #rrggbb, rgb(),
// rgba(), hsl() and hsla(). Alpha is discarded.
func NormalizeColor(value string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))

	if m := rgbTriple.FindStringSubmatch(v); m != nil {
		return triple(m[1], m[2], m[3])
	}
	if m := rgbFunc.FindStringSubmatch(v); m != nil {
		return triple(m[1], m[2], m[3])
	}
	if m := hslFunc.FindStringSubmatch(v); m != nil {
		h, _ := strconv.ParseFloat(m[1], 64)
		s, _ := strconv.ParseFloat(m[2], 64)
		l, _ := strconv.ParseFloat(m[3], 64)
		r, g, b := colorful.Hsl(h, s/100, l/100).Clamped().RGB255()
		return formatTriple(r, g, b), true
	}
	if strings.HasPrefix(v, "#") {
		c, err := colorful.Hex(v)
		if err != nil {
			return "", false
		}
		r, g, b := c.RGB255()
		return formatTriple(r, g, b), true
	}
	return "", false
}

// HexColor converts an "R, G, B" triple to #rrggbb.
func HexColor(rgb string) (string, bool) {
	m := rgbTriple.FindStringSubmatch(strings.TrimSpace(rgb))
	if m == nil {
		return "", false
	}
	var c [3]float64
	for i := range c {
		n, err := strconv.Atoi(m[i+1])
		if err != nil || n > 255 {
			return "", false
		}
		c[i] = float64(n) / 255
	}
	return colorful.Color{R: c[0], G: c[1], B: c[2]}.Hex(), true
}

func triple(rs, gs, bs string) (string, bool) {
	var c [3]uint8
	for i, s := range []string{rs, gs, bs} {
		n, err := strconv.Atoi(s)
		if err != nil || n > 255 {
			return "", false
		}
		c[i] = uint8(n)
	}
	return formatTriple(c[0], c[1], c[2]), true
}

func formatTriple(r, g, b uint8) string {
	return fmt.Sprintf("%d, %d, %d", r, g, b)
}
