package metrics

import (
	"testing"

	"livesync/core/reconcile"
	"livesync/core/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	require.NoError(t, err)

	r := reconcile.New("users", nil, reconcile.WithRecorder(rec))
	r.Initialize([]reconcile.Entity{{"id": 1}})
	r.Apply(reconcile.Create(reconcile.Entity{"id": 1}))
	snap := r.Apply(reconcile.Create(reconcile.Entity{"id": 2}))
	rec.Observe("users", snap)
	rec.SetState("users", session.StateReady)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.applied.WithLabelValues("users", "CREATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.anomalies.WithLabelValues("users", "duplicate_create")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.collectionSize.WithLabelValues("users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.sessionState.WithLabelValues("users", "ready")))
	assert.Equal(t, 0.0, testutil.ToFloat64(rec.sessionState.WithLabelValues("users", "failed")))
}

func TestNewRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	assert.Error(t, err)
}
