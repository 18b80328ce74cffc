// Package reconcile keeps a local, ordered collection of entities consistent with a
// stream of change notifications.
//
// A Reconciler is first loaded with a full snapshot (Initialize) and then receives
// CREATE, UPDATE, DELETE and BATCH notifications (Apply) in delivery order. After
// every call it hands out an immutable Snapshot that readers may keep and share.
//
// # Policies
//
//   - CREATE for an id that already exists overwrites the entry in place (upsert).
//   - UPDATE merges fields shallowly; an UPDATE for an unknown id is inserted as new.
//   - DELETE for an absent id is a no-op.
//   - BATCH applies its items to one working copy and commits once.
//   - Unknown kinds and payloads without an id are skipped.
//
// Every resolved or skipped problem is logged and reported to the optional Recorder.
// Apply never returns an error for bad data. Calling Apply before Initialize is a
// programming error and panics.
//
// # Usage
//
//	r := reconcile.New("users", logger, reconcile.WithPlacement(reconcile.PlaceAppend))
//	snap := r.Initialize(entities)
//	snap = r.Apply(reconcile.Update(reconcile.Entity{"id": 1, "login": "x"}))
//	for _, e := range snap.Entities() {
//	    fmt.Println(e["login"])
//	}
package reconcile
