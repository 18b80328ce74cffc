package metrics

import (
	"livesync/core/reconcile"
	"livesync/core/session"

	"github.com/prometheus/client_golang/prometheus"
)

var states = []session.State{
	session.StateConnecting,
	session.StateLoading,
	session.StateReady,
	session.StateFailed,
	session.StateClosed,
}

// Recorder exports reconciliation counters to Prometheus.
// It implements reconcile.Recorder.
type Recorder struct {
	applied        *prometheus.CounterVec
	anomalies      *prometheus.CounterVec
	collectionSize *prometheus.GaugeVec
	sessionState   *prometheus.GaugeVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livesync_notifications_applied_total",
			Help: "Notifications applied by feed and kind",
		}, []string{"feed", "kind"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livesync_anomalies_total",
			Help: "Reconciliation anomalies by feed and type",
		}, []string{"feed", "type"}),
		collectionSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "livesync_collection_size",
			Help: "Entities in the latest snapshot by feed",
		}, []string{"feed"}),
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "livesync_session_state",
			Help: "1 for the current session state of each feed, 0 otherwise",
		}, []string{"feed", "state"}),
	}

	for _, c := range []prometheus.Collector{r.applied, r.anomalies, r.collectionSize, r.sessionState} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Applied counts one applied notification.
func (r *Recorder) Applied(feed string, kind reconcile.Kind) {
	r.applied.WithLabelValues(feed, string(kind)).Inc()
}

// Anomaly counts one anomaly.
func (r *Recorder) Anomaly(feed string, a reconcile.Anomaly) {
	r.anomalies.WithLabelValues(feed, string(a.Type)).Inc()
}

// Observe records the size of a published snapshot.
func (r *Recorder) Observe(feed string, snap *reconcile.Snapshot) {
	r.collectionSize.WithLabelValues(feed).Set(float64(snap.Len()))
}

// SetState marks state as the current one for feed. It matches session.WithStateHook.
func (r *Recorder) SetState(feed string, state session.State) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		r.sessionState.WithLabelValues(feed, string(s)).Set(v)
	}
}
