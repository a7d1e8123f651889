package api

import (
	"github.com/obsidianstack/calloutstack/agent/internal/detector"
	"github.com/obsidianstack/calloutstack/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "ok" once a check has run and "starting" before that.
	State         string `json:"state"`
	CalloutCount  int    `json:"callout_count"`
	DetectedCount int    `json:"detected_count"`
	SourceCount   int    `json:"source_count"`
	Generation    uint64 `json:"generation"`
	Checks        uint64 `json:"checks"`
	FetchMethod   string `json:"fetch_method"`
	LastCheck     string `json:"last_check,omitempty"` // RFC3339
}

// CalloutResponse is one entry in GET /api/v1/callouts or
// GET /api/v1/callouts/{id}.
type CalloutResponse struct {
	ID      types.CalloutID `json:"id"`
	Icon    string          `json:"icon"`
	Color   string          `json:"color"`
	Hex     string          `json:"hex,omitempty"`
	Builtin bool            `json:"builtin"`
	Sources []string        `json:"sources"`
}

// DetectedResponse is the payload for GET /api/v1/detected.
type DetectedResponse struct {
	Callouts    []detector.DetectedCallout `json:"callouts"`
	Warnings    []detector.Warning         `json:"warnings"`
	Diagnostics []DiagnosticHint           `json:"diagnostics"`
}

// SourceResponse is one entry in GET /api/v1/sources.
type SourceResponse struct {
	Key      string            `json:"key"`
	Type     types.SourceKind  `json:"type"`
	Name     string            `json:"name,omitempty"`
	Callouts []types.CalloutID `json:"callouts"`
}

// RefreshResponse is the payload for POST /api/v1/refresh.
type RefreshResponse struct {
	Changed    bool   `json:"changed"`
	Generation uint64 `json:"generation"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data
// of every WebSocket message.
type SnapshotResponse struct {
	Generation  uint64                     `json:"generation"`
	Callouts    []CalloutResponse          `json:"callouts"`
	Detected    []detector.DetectedCallout `json:"detected"`
	GeneratedAt string                     `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
