// Package feeds is the read API over the synchronized collections.
//
// Open builds one session per enabled feed: it checks the configured bearer token
// against the feed's required role, then wires a Reconciler, an HTTP snapshot loader
// and a WebSocket push channel together. Service runs the sessions and answers the
// handlers.
//
// # HTTP Endpoints
//
//   - GET /feeds : status of every feed.
//   - GET /feeds/:name : latest snapshot (supports ?offset= and ?limit=).
//   - GET /feeds/:name/entities/:id : one entity.
//   - POST /feeds/:name/resync : reload the full snapshot.
//   - POST /feeds/:name/archive : store the current snapshot.
//   - GET /feeds/:name/archives : stored snapshots, newest first.
//
// Snapshot reads answer 503 until the feed is ready. For a feed whose first load
// failed, the body carries the load error.
package feeds
