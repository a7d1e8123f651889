package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/obsidianstack/calloutstack/pkg/types"
)

func TestCalloutIDs(t *testing.T) {
	tests := []struct {
		name string
		css  string
		want []string
	}{
		{"exact double quoted", `[data-callout="foo"] {}`, []string{"foo"}},
		{"prefix", `[data-callout^="foo"] {}`, []string{"foo"}},
		{"single quoted", `.callout[data-callout='bar'] {}`, []string{"bar"}},
		{"unquoted", `[data-callout=foo] {}`, []string{"foo"}},
		{"case flag", `[data-callout="foo" i] {}`, []string{"foo"}},
		{"contains operator", `[data-callout*="foo"] {}`, nil},
		{"word operator", `[data-callout~="foo"] {}`, nil},
		{"presence only", `[data-callout] {}`, nil},
		{"empty value", `[data-callout=""] {}`, nil},
		{"uppercase attribute", `[DATA-CALLOUT="loud"] {}`, []string{"loud"}},
		{"other attribute", `[data-callout-metadata="x"] {}`, nil},
		{
			"multiple in order with duplicates",
			`[data-callout="a"], [data-callout="b"] {} [data-callout="a"] {}`,
			[]string{"a", "b", "a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, CalloutIDs(tt.css)); diff != "" {
				t.Errorf("CalloutIDs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMalformedCount(t *testing.T) {
	css := `[data-callout="ok"] {} [data-callout="broken] {} [data-callout^=] {}`
	if got := LooseCount(css); got != 3 {
		t.Errorf("LooseCount: got %d, want 3", got)
	}
	if got := MalformedCount(css); got != 2 {
		t.Errorf("MalformedCount: got %d, want 2", got)
	}
	if got := MalformedCount(`[data-callout = "spaced"] {}`); got != 0 {
		t.Errorf("MalformedCount with spaces: got %d, want 0", got)
	}
}

func TestHasHook(t *testing.T) {
	if !HasHook(`.x[data-callout="a"]{}`) {
		t.Error("expected hook to be found")
	}
	if HasHook(`body { color: red; }`) {
		t.Error("expected no hook")
	}
}

func TestFastProperties(t *testing.T) {
	tests := []struct {
		name string
		css  string
		id   string
		want Result
	}{
		{
			name: "triple and icon",
			css:  `.callout[data-callout="foo"] { --callout-color: 1, 2, 3; --callout-icon: box; }`,
			id:   "foo",
			want: Result{Color: "1, 2, 3", Icon: "box"},
		},
		{
			name: "no rule for id",
			css:  `.callout[data-callout="bar"] { --callout-icon: box; }`,
			id:   "foo",
			want: Result{Color: types.DefaultColor, Icon: types.DefaultIcon, IconDefault: true},
		},
		{
			name: "var color kept verbatim",
			css:  `[data-callout="foo"] { --callout-color: var(--color-red-rgb); }`,
			id:   "foo",
			want: Result{Color: "var(--color-red-rgb)", Icon: types.DefaultIcon, IconDefault: true},
		},
		{
			name: "hex color normalised",
			css:  `[data-callout="foo"] { --callout-color: #ff8000 !important; --callout-icon: lucide-flame }`,
			id:   "foo",
			want: Result{Color: "255, 128, 0", Icon: "lucide-flame"},
		},
		{
			name: "unparseable color",
			css:  `[data-callout="foo"] { --callout-color: rebeccapurple; }`,
			id:   "foo",
			want: Result{Color: types.DefaultColor, Icon: types.DefaultIcon, IconDefault: true},
		},
		{
			name: "first matching block wins",
			css: `[data-callout="foo"] { --callout-icon: one; }
			      [data-callout="foo"] { --callout-icon: two; }`,
			id:   "foo",
			want: Result{Color: types.DefaultColor, Icon: "one"},
		},
		{
			name: "nested in media query",
			css:  `@media (min-width: 1px) { [data-callout="foo"] { --callout-icon: star; } }`,
			id:   "foo",
			want: Result{Color: types.DefaultColor, Icon: "star"},
		},
		{
			name: "comment with braces ignored",
			css:  `/* [data-callout="foo"] { --callout-icon: nope; } */ [data-callout="foo"] { --callout-icon: yes; }`,
			id:   "foo",
			want: Result{Color: types.DefaultColor, Icon: "yes"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FastProperties(tt.css, tt.id)); diff != "" {
				t.Errorf("FastProperties mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNeedsVerification(t *testing.T) {
	tests := []struct {
		color       string
		iconDefault bool
		want        bool
	}{
		{types.DefaultColor, true, true},
		{types.DefaultColor, false, true},
		{"var(--x)", false, true},
		{"1, 2, 3", true, false},
		{"1, 2, 3", false, false},
	}
	for _, tt := range tests {
		if got := NeedsVerification(tt.color, tt.iconDefault); got != tt.want {
			t.Errorf("NeedsVerification(%q, %v): got %v, want %v", tt.color, tt.iconDefault, got, tt.want)
		}
	}
}

func TestNormalizeColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1, 2, 3", "1, 2, 3", true},
		{"10,20,30", "10, 20, 30", true},
		{"#fff", "255, 255, 255", true},
		{"#000000", "0, 0, 0", true},
		{"rgb(8, 9, 10)", "8, 9, 10", true},
		{"rgba(8 9 10 / 0.5)", "8, 9, 10", true},
		{"hsl(0, 100%, 50%)", "255, 0, 0", true},
		{"300, 0, 0", "", false},
		{"#zzz", "", false},
		{"red", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeColor(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeColor(%q): got (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHexColor(t *testing.T) {
	if got, ok := HexColor("255, 128, 0"); !ok || got != "#ff8000" {
		t.Errorf("HexColor: got (%q, %v)", got, ok)
	}
	if _, ok := HexColor("var(--x)"); ok {
		t.Error("HexColor accepted a var() reference")
	}
}
