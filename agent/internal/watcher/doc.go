// Package watcher detects changes to the stylesheets that can declare
// callouts and reports them as events.
//
// A Watcher keeps a snapshot of the last text it saw for each source: one
// slot for the builtin stylesheet, one for the active theme and one entry
// per enabled snippet. CheckForChanges compares the provider's current
// state against that snapshot, in the fixed order builtin, theme, snippets,
// and emits:
//
//	EventCheckStarted              before anything is read
//	EventAdd / EventChange / EventRemove  once per affected stylesheet
//	EventCheckComplete             after all three sources, with AnyChanged
//
// The watcher never parses stylesheet text. Listeners receive the raw text
// and derive callout IDs themselves.
//
// A change of theme identity (ID or version) is reported as a removal of
// the old theme followed by an addition of the new one, never as a change.
//
// The builtin stylesheet is located by scanning the provider's loaded
// styles for the callout hook, and otherwise by a Fetcher. If both fail the
// slot stays empty and is retried on the next check.
//
// # Live mode
//
// Watch subscribes to a provider that also implements Notifier and runs a
// check after each notification. Notifications that arrive while a check is
// pending are coalesced, and checks are paced by a rate limiter.
//
// Checks are serialised: concurrent callers of CheckForChanges wait for
// each other. Listeners run on the checking goroutine and must not call
// CheckForChanges or the stop function returned by Watch.
package watcher
