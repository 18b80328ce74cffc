// Package journal keeps a durable record of reconciliation anomalies.
//
// A Journal is a reconcile.Recorder. Anomaly enqueues onto a bounded channel and
// returns immediately; one writer goroutine inserts records in batches with
// CreateInBatches. When the queue is full the record is dropped and counted. Close
// drains the queue before returning.
//
// The journal is optional. The start command wires it only when database.enabled is
// set.
package journal
