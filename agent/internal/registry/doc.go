// Package registry keeps the union of callout IDs declared by every style
// source, with per-ID source attribution and lazily resolved properties.
//
// # Sub-registries
//
// A Registry owns four sub-registries, one per source kind:
//
//	Builtin   the application's own stylesheet
//	Theme     the active theme (at most one at a time)
//	Snippets  enabled CSS snippets, keyed by name
//	Custom    IDs defined in configuration
//
// Each sub-registry stores its own membership and, on every update, diffs
// the new membership against the previous one. The diff is applied to the
// shared record cache:
//
//	added    the source is attributed to the record (created if needed)
//	removed  the source is detached; a record with no sources is deleted
//	changed  the record is marked dirty
//
// Every applied diff bumps a generation counter. HasChanged returns a cheap
// token over that counter.
//
// # Resolution
//
// Records are resolved on read. Get and Values call the Resolver for dirty
// records only, so between invalidations a record is resolved at most once.
// The Resolver runs with the registry lock held and must not call back into
// the Registry.
//
// All exported methods are safe for concurrent use.
package registry
