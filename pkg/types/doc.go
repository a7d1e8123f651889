// Package types defines the shared Go types used across the agent packages
// and the JSON API: callout identifiers, style sources and resolved callout
// properties.
//
// Source is a tagged variant (builtin | theme | snippet | custom) that
// round-trips through a flat string key:
//
//	builtin          builtin
//	custom           custom
//	theme:<id>       active theme <id>
//	snippet:<name>   enabled CSS snippet <name>
//
// ParseSourceKey panics on any other key; keys are produced only by
// Source.Key so an unknown key means an internal invariant was broken.
package types
