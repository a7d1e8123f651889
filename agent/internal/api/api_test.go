package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/obsidianstack/calloutstack/agent/internal/api"
	"github.com/obsidianstack/calloutstack/agent/internal/detector"
	"github.com/obsidianstack/calloutstack/agent/internal/watcher"
	"github.com/obsidianstack/calloutstack/pkg/types"
)

// --- test helpers -----------------------------------------------------------

type fakeDetector struct {
	callouts  []types.Callout
	detected  []detector.DetectedCallout
	warnings  []detector.Warning
	stats     detector.Stats
	refreshes int
}

func (f *fakeDetector) Callouts() []types.Callout { return f.callouts }

func (f *fakeDetector) Callout(id types.CalloutID) (types.Callout, bool) {
	for _, c := range f.callouts {
		if c.ID == id {
			return c, true
		}
	}
	return types.Callout{}, false
}

func (f *fakeDetector) Sources() []detector.SourceInfo {
	byKey := map[string]*detector.SourceInfo{}
	var out []*detector.SourceInfo
	for _, c := range f.callouts {
		for _, s := range c.Sources {
			info, ok := byKey[s.Key()]
			if !ok {
				info = &detector.SourceInfo{Source: s}
				byKey[s.Key()] = info
				out = append(out, info)
			}
			info.Callouts = append(info.Callouts, c.ID)
		}
	}
	res := make([]detector.SourceInfo, 0, len(out))
	for _, info := range out {
		res = append(res, *info)
	}
	return res
}

func (f *fakeDetector) Detected() []detector.DetectedCallout { return f.detected }
func (f *fakeDetector) Warnings() []detector.Warning { return f.warnings }
func (f *fakeDetector) Stats() detector.Stats { return f.stats }

func (f *fakeDetector) Refresh(context.Context) bool {
	f.refreshes++
	f.stats.Generation++
	return true
}

func newDetector() *fakeDetector {
	return &fakeDetector{
		callouts: []types.Callout{
			{ID: "note", Icon: "lucide-pencil", Color: "var(--callout-default)", Sources: []types.Source{types.BuiltinSource()}},
			{ID: "recipe", Icon: "lucide-chef-hat", Color: "255, 128, 0", Sources: []types.Source{types.SnippetSource("food")}},
			{ID: "fancy", Icon: "lucide-sparkles", Color: "120, 82, 238", Sources: []types.Source{types.ThemeSource("Minimal"), types.CustomSource()}},
		},
		detected: []detector.DetectedCallout{
			{ID: "recipe", Icon: "lucide-chef-hat", Color: "255, 128, 0", Source: types.SnippetSource("food")},
			{ID: "fancy", Icon: "lucide-sparkles", Color: "120, 82, 238", Source: types.ThemeSource("Minimal")},
		},
		stats: detector.Stats{
			Checks:      2,
			LastCheck:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Generation:  7,
			Callouts:    3,
			Detected:    2,
			FetchMethod: watcher.MethodScan,
			BySource: map[types.SourceKind]int{
				types.KindBuiltin: 1,
				types.KindTheme:   1,
				types.KindSnippet: 1,
				types.KindCustom:  1,
			},
		},
	}
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, http.MethodGet, path)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_Starting(t *testing.T) {
	h := api.New(&fakeDetector{})
	rr := get(t, h, "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)

	if resp.State != "starting" {
		t.Errorf("state: got %q, want starting", resp.State)
	}
	if resp.FetchMethod != "none" {
		t.Errorf("fetch_method: got %q, want none", resp.FetchMethod)
	}
	if resp.LastCheck != "" {
		t.Errorf("last_check: got %q, want empty", resp.LastCheck)
	}
}

func TestHealth_AfterCheck(t *testing.T) {
	h := api.New(newDetector())
	var resp api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &resp)

	want := api.HealthResponse{
		State:         "ok",
		CalloutCount:  3,
		DetectedCount: 2,
		SourceCount:   4,
		Generation:    7,
		Checks:        2,
		FetchMethod:   "scan",
		LastCheck:     "2024-05-01T12:00:00Z",
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("health (-want +got):\n%s", diff)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h := api.New(newDetector())
	rr := do(t, h, http.MethodPost, "/api/v1/health")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/callouts -------------------------------------------------------

func TestListCallouts(t *testing.T) {
	h := api.New(newDetector())
	var resp []api.CalloutResponse
	decode(t, get(t, h, "/api/v1/callouts"), &resp)

	if len(resp) != 3 {
		t.Fatalf("callouts: got %d, want 3", len(resp))
	}
	note := resp[0]
	if !note.Builtin || note.Hex != "" {
		t.Errorf("note: builtin=%v hex=%q, want builtin and no hex", note.Builtin, note.Hex)
	}
	recipe := resp[1]
	if recipe.Builtin {
		t.Error("recipe: reported as builtin")
	}
	if recipe.Hex != "#ff8000" {
		t.Errorf("recipe hex: got %q, want #ff8000", recipe.Hex)
	}
	if diff := cmp.Diff([]string{"theme:Minimal", "custom"}, resp[2].Sources); diff != "" {
		t.Errorf("fancy sources (-want +got):\n%s", diff)
	}
}

func TestListCallouts_SourceFilter(t *testing.T) {
	h := api.New(newDetector())
	tests := []struct {
		filter string
		want   []string
	}{
		{"snippet", []string{"recipe"}},
		{"snippet:food", []string{"recipe"}},
		{"snippet:other", []string{}},
		{"custom", []string{"fancy"}},
		{"builtin", []string{"note"}},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			var resp []api.CalloutResponse
			decode(t, get(t, h, "/api/v1/callouts?source="+tt.filter), &resp)
			got := []string{}
			for _, c := range resp {
				got = append(got, c.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListCallouts_Empty(t *testing.T) {
	h := api.New(&fakeDetector{})
	rr := get(t, h, "/api/v1/callouts")
	if body := rr.Body.String(); body != "[]\n" {
		t.Errorf("body: got %q, want empty array", body)
	}
}

func TestGetCallout_Found(t *testing.T) {
	h := api.New(newDetector())
	rr := get(t, h, "/api/v1/callouts/recipe")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.CalloutResponse
	decode(t, rr, &resp)
	if resp.ID != "recipe" || resp.Icon != "lucide-chef-hat" {
		t.Errorf("got %+v", resp)
	}
}

func TestGetCallout_NotFound(t *testing.T) {
	h := api.New(newDetector())
	rr := get(t, h, "/api/v1/callouts/nope")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] == "" {
		t.Error("missing error message")
	}
}

func TestGetCallout_EmptyID(t *testing.T) {
	h := api.New(newDetector())
	rr := get(t, h, "/api/v1/callouts/")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

// --- /api/v1/sources --------------------------------------------------------

func TestSources(t *testing.T) {
	h := api.New(newDetector())
	var resp []api.SourceResponse
	decode(t, get(t, h, "/api/v1/sources"), &resp)

	want := []api.SourceResponse{
		{Key: "builtin", Type: types.KindBuiltin, Callouts: []string{"note"}},
		{Key: "snippet:food", Type: types.KindSnippet, Name: "food", Callouts: []string{"recipe"}},
		{Key: "theme:Minimal", Type: types.KindTheme, Name: "Minimal", Callouts: []string{"fancy"}},
		{Key: "custom", Type: types.KindCustom, Callouts: []string{"fancy"}},
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}
}

// --- /api/v1/detected -------------------------------------------------------

func TestDetected_WithWarnings(t *testing.T) {
	det := newDetector()
	det.detected[0].IconDefault = true
	det.warnings = []detector.Warning{{Snippet: "broken", Malformed: 2}}
	h := api.New(det)

	var resp api.DetectedResponse
	decode(t, get(t, h, "/api/v1/detected"), &resp)

	if len(resp.Callouts) != 2 {
		t.Errorf("callouts: got %d, want 2", len(resp.Callouts))
	}
	if diff := cmp.Diff(det.warnings, resp.Warnings); diff != "" {
		t.Errorf("warnings (-want +got):\n%s", diff)
	}
	var keys []string
	for _, d := range resp.Diagnostics {
		keys = append(keys, d.Key)
	}
	if diff := cmp.Diff([]string{"malformed_broken", "default_icon"}, keys); diff != "" {
		t.Errorf("diagnostics (-want +got):\n%s", diff)
	}
}

func TestDetected_Empty(t *testing.T) {
	det := newDetector()
	det.detected = nil
	h := api.New(det)

	rr := get(t, h, "/api/v1/detected")
	var resp map[string]json.RawMessage
	decode(t, rr, &resp)
	if string(resp["callouts"]) != "[]" || string(resp["warnings"]) != "[]" {
		t.Errorf("want empty arrays, got callouts=%s warnings=%s", resp["callouts"], resp["warnings"])
	}
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeDetector)
		want  string
	}{
		{"warming up", func(f *fakeDetector) { f.stats.Checks = 0 }, "warming_up"},
		{"all clear", func(*fakeDetector) {}, "healthy"},
		{"builtin missing", func(f *fakeDetector) {
			f.stats.FetchMethod = watcher.MethodNone
			f.stats.BySource[types.KindBuiltin] = 0
		}, "builtin_missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := newDetector()
			tt.setup(det)
			var resp api.DetectedResponse
			decode(t, get(t, api.New(det), "/api/v1/detected"), &resp)
			if len(resp.Diagnostics) == 0 || resp.Diagnostics[0].Key != tt.want {
				t.Errorf("first diagnostic: got %+v, want key %q", resp.Diagnostics, tt.want)
			}
		})
	}
}

// --- /api/v1/snapshot and /api/v1/refresh -----------------------------------

func TestSnapshot(t *testing.T) {
	h := api.New(newDetector())
	var resp api.SnapshotResponse
	decode(t, get(t, h, "/api/v1/snapshot"), &resp)

	if resp.Generation != 7 {
		t.Errorf("generation: got %d, want 7", resp.Generation)
	}
	if len(resp.Callouts) != 3 || len(resp.Detected) != 2 {
		t.Errorf("got %d callouts, %d detected", len(resp.Callouts), len(resp.Detected))
	}
	if _, err := time.Parse(time.RFC3339, resp.GeneratedAt); err != nil {
		t.Errorf("generated_at: %v", err)
	}
}

func TestRefresh(t *testing.T) {
	det := newDetector()
	h := api.New(det)

	rr := do(t, h, http.MethodPost, "/api/v1/refresh")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.RefreshResponse
	decode(t, rr, &resp)
	if !resp.Changed || resp.Generation != 8 {
		t.Errorf("got %+v, want changed at generation 8", resp)
	}
	if det.refreshes != 1 {
		t.Errorf("refreshes: got %d, want 1", det.refreshes)
	}
}

func TestRefresh_MethodNotAllowed(t *testing.T) {
	det := newDetector()
	rr := get(t, api.New(det), "/api/v1/refresh")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
	if det.refreshes != 0 {
		t.Error("GET triggered a refresh")
	}
}

func TestContentTypeJSON(t *testing.T) {
	h := api.New(newDetector())
	for _, path := range []string{
		"/api/v1/health",
		"/api/v1/callouts",
		"/api/v1/callouts/note",
		"/api/v1/sources",
		"/api/v1/detected",
		"/api/v1/snapshot",
	} {
		rr := get(t, h, path)
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: Content-Type %q", path, ct)
		}
	}
}
