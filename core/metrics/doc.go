// Package metrics exposes reconciliation and session health as Prometheus collectors.
//
// The Recorder is passed to reconcile.WithRecorder for counters, to
// session.WithStateHook for the state gauge, and subscribed to each session's
// publisher for the collection size gauge. The /metrics route is mounted by the
// start command through fiber's net/http adaptor.
package metrics
