// Package ws implements the WebSocket hub for calloutd.
//
// Hub manages a set of connected clients and pushes the callout snapshot to
// all of them whenever the callout set changes, plus on a fixed interval so
// a client that missed a message catches up.
//
// New(detector, interval) creates a Hub.
// Hub.Notify() schedules a "changed" broadcast; wire it to
// detector.Subscribe.
// Hub.Run(ctx) runs the broadcast loop until ctx is cancelled, then closes
// all active connections.
// Hub.ServeHTTP upgrades an HTTP connection, sends the current snapshot
// immediately, then streams updates.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot" | "changed",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The hub is mounted at /ws/stream by calloutd.
package ws
