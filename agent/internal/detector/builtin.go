package detector

import "github.com/obsidianstack/calloutstack/pkg/types"

type builtinCallout struct {
	icon    string
	color   string
	aliases []string
}

var builtinCallouts = map[string]builtinCallout{
	"note":      {icon: "lucide-pencil", color: "var(--callout-default)"},
	"abstract":  {icon: "lucide-clipboard-list", color: "var(--callout-summary)", aliases: []string{"summary", "tldr"}},
	"info":      {icon: "lucide-info", color: "var(--callout-info)"},
	"todo":      {icon: "lucide-check-circle-2", color: "var(--callout-todo)"},
	"important": {icon: "lucide-flame", color: "var(--callout-important)"},
	"tip":       {icon: "lucide-flame", color: "var(--callout-tip)", aliases: []string{"hint"}},
	"success":   {icon: "lucide-check", color: "var(--callout-success)", aliases: []string{"check", "done"}},
	"question":  {icon: "lucide-help-circle", color: "var(--callout-question)", aliases: []string{"help", "faq"}},
	"warning":   {icon: "lucide-alert-triangle", color: "var(--callout-warning)", aliases: []string{"caution", "attention"}},
	"failure":   {icon: "lucide-x", color: "var(--callout-fail)", aliases: []string{"fail", "missing"}},
	"danger":    {icon: "lucide-zap", color: "var(--callout-error)", aliases: []string{"error"}},
	"bug":       {icon: "lucide-bug", color: "var(--callout-bug)"},
	"example":   {icon: "lucide-list", color: "var(--callout-example)"},
	"quote":     {icon: "lucide-quote", color: "var(--callout-quote)", aliases: []string{"cite"}},
}

// builtinByID indexes builtinCallouts by ID and alias.
var builtinByID = func() map[types.CalloutID]types.Properties {
	m := make(map[types.CalloutID]types.Properties)
	for id, c := range builtinCallouts {
		p := types.Properties{Icon: c.icon, Color: c.color}
		m[id] = p
		for _, alias := range c.aliases {
			m[alias] = p
		}
	}
	return m
}()

// BuiltinProperties returns the shipped properties of a builtin callout or
// one of its aliases.
func BuiltinProperties(id types.CalloutID) (types.Properties, bool) {
	p, ok := builtinByID[id]
	return p, ok
}

// IsBuiltin reports whether id is a builtin callout or alias.
func IsBuiltin(id types.CalloutID) bool {
	_, ok := builtinByID[id]
	return ok
}
