package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/obsidianstack/calloutstack/agent/internal/detector"
	"github.com/obsidianstack/calloutstack/agent/internal/extract"
	"github.com/obsidianstack/calloutstack/pkg/types"
)

// Detector is the read side of the callout detector plus the refresh trigger.
// *detector.Detector satisfies it.
type Detector interface {
	Callouts() []types.Callout
	Callout(id types.CalloutID) (types.Callout, bool)
	Sources() []detector.SourceInfo
	Detected() []detector.DetectedCallout
	Warnings() []detector.Warning
	Stats() detector.Stats
	Refresh(ctx context.Context) bool
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	det Detector
	mux *http.ServeMux
}

// New creates a Handler wired to det and registers all routes.
func New(det Detector) http.Handler {
	h := &Handler{det: det, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/callouts", h.listCallouts)
	h.mux.HandleFunc("/api/v1/callouts/", h.getCallout) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/sources", h.sources)
	h.mux.HandleFunc("/api/v1/detected", h.detected)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/refresh", h.refresh)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	st := h.det.Stats()
	resp := HealthResponse{
		State:         "starting",
		CalloutCount:  st.Callouts,
		DetectedCount: st.Detected,
		SourceCount:   len(h.det.Sources()),
		Generation:    st.Generation,
		Checks:        st.Checks,
		FetchMethod:   fetchMethod(st),
	}
	if st.Checks > 0 {
		resp.State = "ok"
		resp.LastCheck = st.LastCheck.UTC().Format(time.RFC3339)
	}
	jsonResp(w, http.StatusOK, resp)
}

// listCallouts returns GET /api/v1/callouts. The optional ?source= filter
// keeps callouts declared by the given source key ("theme:minimal") or
// kind ("snippet").
func (h *Handler) listCallouts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filter := r.URL.Query().Get("source")
	callouts := h.det.Callouts()
	out := make([]CalloutResponse, 0, len(callouts))
	for _, c := range callouts {
		if filter != "" && !declaredBy(c, filter) {
			continue
		}
		out = append(out, toCalloutResponse(c))
	}
	jsonResp(w, http.StatusOK, out)
}

// getCallout returns GET /api/v1/callouts/{id}.
func (h *Handler) getCallout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/callouts/")
	if id == "" {
		jsonErr(w, http.StatusBadRequest, "callout id required")
		return
	}

	c, ok := h.det.Callout(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "callout not found")
		return
	}
	jsonResp(w, http.StatusOK, toCalloutResponse(c))
}

// sources returns GET /api/v1/sources.
func (h *Handler) sources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	infos := h.det.Sources()
	out := make([]SourceResponse, 0, len(infos))
	for _, s := range infos {
		ids := s.Callouts
		if ids == nil {
			ids = []types.CalloutID{}
		}
		out = append(out, SourceResponse{
			Key:      s.Source.Key(),
			Type:     s.Source.Kind,
			Name:     s.Source.Name,
			Callouts: ids,
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// detected returns GET /api/v1/detected: theme and snippet callouts the
// application does not ship with, plus malformed-selector warnings.
func (h *Handler) detected(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := DetectedResponse{
		Callouts: h.det.Detected(),
		Warnings: h.det.Warnings(),
	}
	if resp.Callouts == nil {
		resp.Callouts = []detector.DetectedCallout{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []detector.Warning{}
	}
	resp.Diagnostics = computeDiagnostics(h.det.Stats(), resp.Callouts, resp.Warnings)
	jsonResp(w, http.StatusOK, resp)
}

// snapshot returns GET /api/v1/snapshot: the full callout list and the
// detected list in one document.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.det))
}

// refresh handles POST /api/v1/refresh: a full re-check that discards every
// cached stylesheet first.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	changed := h.det.Refresh(r.Context())
	jsonResp(w, http.StatusOK, RefreshResponse{
		Changed:    changed,
		Generation: h.det.Stats().Generation,
	})
}

// BuildSnapshot assembles the current snapshot document. The WebSocket hub
// uses it for every broadcast.
func BuildSnapshot(det Detector) SnapshotResponse {
	callouts := det.Callouts()
	resp := SnapshotResponse{
		Generation:  det.Stats().Generation,
		Callouts:    make([]CalloutResponse, 0, len(callouts)),
		Detected:    det.Detected(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, c := range callouts {
		resp.Callouts = append(resp.Callouts, toCalloutResponse(c))
	}
	if resp.Detected == nil {
		resp.Detected = []detector.DetectedCallout{}
	}
	return resp
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func toCalloutResponse(c types.Callout) CalloutResponse {
	resp := CalloutResponse{
		ID:      c.ID,
		Icon:    c.Icon,
		Color:   c.Color,
		Builtin: detector.IsBuiltin(c.ID),
		Sources: make([]string, 0, len(c.Sources)),
	}
	if hex, ok := extract.HexColor(c.Color); ok {
		resp.Hex = hex
	}
	for _, s := range c.Sources {
		resp.Sources = append(resp.Sources, s.Key())
	}
	return resp
}

// declaredBy reports whether c has a source matching filter, which is
// either a full source key or a bare kind.
func declaredBy(c types.Callout, filter string) bool {
	for _, s := range c.Sources {
		if s.Key() == filter || string(s.Kind) == filter {
			return true
		}
	}
	return false
}

func fetchMethod(st detector.Stats) string {
	if st.FetchMethod == "" {
		return "none"
	}
	return string(st.FetchMethod)
}
