// Package metrics exposes detector counters in the Prometheus exposition
// format.
//
// Families(stats) builds the metric families directly with client_model
// types; there is no registry and no background collection, so every
// scrape reflects detector.Stats at that instant. Handler(statsFunc) is
// mounted at GET /metrics by calloutd.
//
// Exposed families (all prefixed calloutd_):
//
//	checks_total                   counter
//	changed_checks_total           counter
//	registry_generation            counter
//	callouts                       gauge
//	detected_callouts              gauge
//	malformed_selectors            gauge
//	stylesheets                    gauge
//	last_check_timestamp_seconds   gauge, absent before the first check
//	source_callouts{source}        gauge, one series per source kind
//	builtin_fetch_info{method}     gauge, always 1
package metrics
