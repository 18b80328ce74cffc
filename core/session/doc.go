// Package session hosts a Reconciler for the lifetime of one feed subscription.
//
// A Session owns the only goroutine that calls Initialize and Apply. It handles the
// fetch-then-subscribe race: notifications that arrive while a snapshot load is in
// flight are decoded and buffered, then replayed in arrival order right after the
// snapshot is applied. The same path is used for resyncs, which happen after every
// push channel reconnect and on request.
//
// # States
//
//   - connecting: created, Run not started.
//   - loading: first snapshot load in flight; notifications are buffered.
//   - ready: collection initialized; notifications apply live.
//   - failed: the first snapshot load failed. Nothing is applied until a resync succeeds.
//   - closed: Run returned.
//
// A failed resync after a successful load keeps the last collection and records the
// error in Status.
//
// # Presentation
//
// Readers use the Publisher: Latest returns the newest immutable snapshot and
// Subscribe delivers each new one. A BATCH produces a single publication.
package session
