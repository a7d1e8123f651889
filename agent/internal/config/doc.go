// Package config loads and watches the calloutd configuration file.
//
// Top-level sections:
//   - vault: path and config_dir of the Obsidian vault to track
//   - builtin: application stylesheet files, plus a url or file fallback
//   - detection: builtin/theme/snippet toggles, ignore_snippets,
//     min_check_interval
//   - verification: enabled, color_scheme (system|light|dark),
//     view (reading|source)
//   - server: http_port, broadcast_interval, auth (apikey|none)
//   - callouts.custom: callouts defined by id, icon and color
//
// Load(path) reads the YAML file, applies defaults (all sources detected,
// verification on, port 8080, 30s broadcast), then validates required
// fields and enums. Custom callout colors may be written as an "R, G, B"
// triple, a hex value, rgb() or hsl(); they are stored as a triple. A
// missing icon or color falls back to the callout defaults.
//
// Watch(ctx, path, onChange) uses fsnotify on the file's directory and
// calls onChange with each successfully reloaded Config.
package config
