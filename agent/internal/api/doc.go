// Package api implements the HTTP REST API for calloutd.
//
// New(detector) returns an http.Handler that serves:
//
//	GET  /api/v1/health          state, counts, generation, last check time
//	GET  /api/v1/callouts        every tracked callout ([]CalloutResponse); ?source= filters
//	GET  /api/v1/callouts/{id}   single callout; 404 if unknown
//	GET  /api/v1/sources         sources that currently declare callouts
//	GET  /api/v1/detected        theme/snippet callouts not shipped by the app, warnings, diagnostics
//	GET  /api/v1/snapshot        callouts + detected + generated_at
//	POST /api/v1/refresh         discard cached stylesheets and re-check
//
// All endpoints respond with Content-Type: application/json and return 405
// for the wrong method. Only refresh mutates state.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
