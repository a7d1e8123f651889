// Package detector keeps the callout registry in step with the watched
// stylesheets and resolves callout properties.
//
// A Detector listens to a watcher.Watcher. Every add or change event is run
// through extract.CalloutIDs and stored in the matching sub-registry; every
// remove event deletes it. When a check completes with changes, the
// verification resolver reloads its stylesheets, the detected-callout list
// and malformed-selector warnings are rebuilt, and subscribers are notified.
//
// Properties are resolved in this order:
//
//  1. the table of callouts the application ships with
//  2. callouts defined in configuration
//  3. each tracked stylesheet that defines the ID, in cascade order, using
//     the fast path and, when it is ambiguous, the verification resolver
//  4. the default icon and color
//
// Lock order: the registry may call into the detector while holding its
// own lock, so the detector never calls the registry or the verifier while
// holding d.mu.
package detector
