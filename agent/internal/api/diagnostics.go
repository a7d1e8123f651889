package api

import (
	"fmt"
	"strings"

	"github.com/obsidianstack/calloutstack/agent/internal/detector"
	"github.com/obsidianstack/calloutstack/pkg/types"
)

// DiagnosticHint is one human-readable insight about callout detection,
// shown next to the detected list.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional count associated with this hint.
	Value *int `json:"value,omitempty"`
}

// computeDiagnostics derives hints from the detector state.
// Hints are ordered: critical first, then warnings, then info.
func computeDiagnostics(st detector.Stats, detected []detector.DetectedCallout, warnings []detector.Warning) []DiagnosticHint {
	var hints []DiagnosticHint

	if st.Checks == 0 {
		return append(hints, DiagnosticHint{
			Key:   "warming_up",
			Level: "info",
			Title: "Warming up",
			Detail: "No stylesheet check has completed yet. " +
				"The callout list fills in after the first check.",
		})
	}

	// ── Builtin stylesheet ───────────────────────────────────────────────────
	if st.FetchMethod == "" && st.BySource[types.KindBuiltin] == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "builtin_missing",
			Level: "critical",
			Title: "No builtin callouts",
			Detail: "None of the configured application stylesheets declares a callout, " +
				"and no fallback URL or file produced one. " +
				"Check builtin.styles, builtin.url and builtin.file in the config.",
		})
	}

	// ── Malformed selectors ──────────────────────────────────────────────────
	for _, w := range warnings {
		v := w.Malformed
		hints = append(hints, DiagnosticHint{
			Key:   "malformed_" + w.Snippet,
			Level: "warning",
			Title: fmt.Sprintf("%d unreadable selectors", w.Malformed),
			Detail: fmt.Sprintf(
				"The snippet %q mentions data-callout in %d selectors that could not be read. "+
					"Only [data-callout=\"id\"] and [data-callout^=\"id\"] are understood; "+
					"other operators and unbalanced quotes are skipped.",
				w.Snippet, w.Malformed,
			),
			Value: &v,
		})
	}

	// ── Default icons ────────────────────────────────────────────────────────
	var bare []string
	for _, c := range detected {
		if c.IconDefault {
			bare = append(bare, c.ID)
		}
	}
	if len(bare) > 0 {
		v := len(bare)
		hints = append(hints, DiagnosticHint{
			Key:   "default_icon",
			Level: "info",
			Title: "Default icons",
			Detail: fmt.Sprintf(
				"These callouts do not set --callout-icon and fall back to %s: %s.",
				types.DefaultIcon, strings.Join(bare, ", "),
			),
			Value: &v,
		})
	}

	if len(hints) == 0 {
		v := st.Callouts
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: fmt.Sprintf("%d callouts tracked with no stylesheet problems.", st.Callouts),
			Value:  &v,
		})
	}

	return hints
}
