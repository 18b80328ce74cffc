package reconcile

import (
	"fmt"

	"go.uber.org/zap"
)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPlacement sets where newly created entities are inserted.
func WithPlacement(p Placement) Option {
	return func(r *Reconciler) {
		if p == PlacePrepend {
			r.placement = PlacePrepend
		} else {
			r.placement = PlaceAppend
		}
	}
}

// WithRecorder attaches an observability sink.
func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) {
		r.recorder = rec
	}
}

// Reconciler owns the in-memory collection of one feed and applies change
// notifications to it. It is not safe for concurrent use: the hosting session
// calls Initialize and Apply from a single goroutine, one message at a time.
type Reconciler struct {
	feed        string
	logger      *zap.Logger
	recorder    Recorder
	placement   Placement
	current     *Snapshot
	initialized bool
	stats       Stats
}

// New creates an empty, uninitialized reconciler for the named feed.
func New(feed string, logger *zap.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		feed:      feed,
		logger:    logger.With(zap.String("feed", feed)),
		placement: PlaceAppend,
		current:   emptySnapshot(),
		stats: Stats{
			Applied:   map[Kind]int{},
			Anomalies: map[AnomalyType]int{},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Feed returns the feed name.
func (r *Reconciler) Feed() string {
	return r.feed
}

// Initialized reports whether a snapshot has been loaded.
func (r *Reconciler) Initialized() bool {
	return r.initialized
}

// Current returns the latest snapshot.
func (r *Reconciler) Current() *Snapshot {
	return r.current
}

// Stats returns a copy of the running counters.
func (r *Reconciler) Stats() Stats {
	return r.stats.clone()
}

// Initialize replaces the whole collection with snapshot. A second call is a full
// resync, not a merge. Duplicate ids keep the first position and the last value.
// Entries without a usable id are dropped.
func (r *Reconciler) Initialize(snapshot []Entity) *Snapshot {
	w := &working{
		items: make([]Entity, 0, len(snapshot)),
		index: make(map[ID]int, len(snapshot)),
	}
	for i, e := range snapshot {
		id, ok := e.ID()
		if !ok {
			r.anomaly(Anomaly{Type: AnomalyMalformed, Detail: fmt.Sprintf("snapshot entry %d has no id", i)})
			continue
		}
		if pos, exists := w.lookup(id); exists {
			r.logger.Debug("Duplicate id in snapshot, keeping last value", zap.String("id", string(id)))
			w.items[pos] = e.clone()
			continue
		}
		w.items = append(w.items, e.clone())
		w.index[id] = len(w.items) - 1
	}

	r.current = w.commit(r.current.version + 1)
	r.initialized = true
	r.stats.Initializes++

	r.logger.Info("Collection initialized",
		zap.Int("entities", r.current.Len()),
		zap.Uint64("version", r.current.version),
	)
	return r.current
}

// Apply applies one notification and returns the resulting snapshot.
// A BATCH produces exactly one new version. Notifications that change nothing
// (unknown kind, DELETE of an absent id, malformed payloads) return the
// current snapshot unchanged.
//
// Apply panics with ErrNotInitialized if called before Initialize.
func (r *Reconciler) Apply(n Notification) *Snapshot {
	if !r.initialized {
		panic(ErrNotInitialized)
	}

	if !n.Kind.Known() {
		r.anomaly(Anomaly{Type: AnomalyUnknownKind, Kind: n.Kind, Detail: "notification ignored"})
		return r.current
	}

	w := r.current.edit()
	if n.Kind == KindBatch {
		for i, inner := range n.Batch {
			r.applyInner(w, inner, i)
		}
	} else {
		r.applyOne(w, n)
	}

	r.stats.Applied[n.Kind]++
	if r.recorder != nil {
		r.recorder.Applied(r.feed, n.Kind)
	}

	if !w.dirty {
		return r.current
	}
	r.current = w.commit(r.current.version + 1)
	return r.current
}

// applyInner applies one element of a BATCH. Nested batches and unknown kinds
// are skipped without failing the rest of the batch.
func (r *Reconciler) applyInner(w *working, n Notification, pos int) {
	switch {
	case n.Kind == KindBatch:
		r.anomaly(Anomaly{Type: AnomalyNestedBatch, Kind: n.Kind, Detail: fmt.Sprintf("batch item %d skipped", pos)})
	case !n.Kind.Known():
		r.anomaly(Anomaly{Type: AnomalyUnknownKind, Kind: n.Kind, Detail: fmt.Sprintf("batch item %d skipped", pos)})
	default:
		r.applyOne(w, n)
	}
}

func (r *Reconciler) applyOne(w *working, n Notification) {
	id, ok := n.Entity.ID()
	if !ok {
		r.anomaly(Anomaly{Type: AnomalyMalformed, Kind: n.Kind, Detail: "payload has no id"})
		return
	}

	switch n.Kind {
	case KindCreate:
		if i, exists := w.lookup(id); exists {
			r.anomaly(Anomaly{Type: AnomalyDuplicateCreate, Kind: n.Kind, ID: id, Detail: "existing entry overwritten"})
			w.replace(i, n.Entity.clone())
			return
		}
		w.insert(id, n.Entity.clone(), r.placement)

	case KindUpdate:
		if i, exists := w.lookup(id); exists {
			w.replace(i, w.items[i].merge(n.Entity))
			return
		}
		r.anomaly(Anomaly{Type: AnomalyUpdateMiss, Kind: n.Kind, ID: id, Detail: "inserted as new entry"})
		w.insert(id, n.Entity.clone(), r.placement)

	case KindDelete:
		if !w.remove(id) {
			r.logger.Debug("Delete for absent id", zap.String("id", string(id)))
		}
	}
}

func (r *Reconciler) anomaly(a Anomaly) {
	r.stats.Anomalies[a.Type]++
	r.logger.Warn("Reconcile anomaly",
		zap.String("type", string(a.Type)),
		zap.String("kind", string(a.Kind)),
		zap.String("id", string(a.ID)),
		zap.String("detail", a.Detail),
	)
	if r.recorder != nil {
		r.recorder.Anomaly(r.feed, a)
	}
}
