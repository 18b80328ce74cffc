package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		want   ID
		wantOK bool
	}{
		{"Int", 42, "42", true},
		{"Int64", int64(42), "42", true},
		{"Float", float64(42), "42", true},
		{"JSONNumber", json.Number("9007199254740993"), "9007199254740993", true},
		{"String", "abc", "abc", true},
		{"StringTrimmed", " abc ", "abc", true},
		{"EmptyString", "", "", false},
		{"Nil", nil, "", false},
		{"Bool", true, "", false},
		{"Object", map[string]any{"id": 1}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseID(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshot_NilSafe(t *testing.T) {
	var s *Snapshot
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint64(0), s.Version())
	assert.False(t, s.Has("1"))
	assert.Empty(t, s.Entities())

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))
}

func TestSnapshot_MarshalJSON(t *testing.T) {
	r := New("news", nil)
	snap := r.Initialize([]Entity{
		{"id": "p1", "content": "hello"},
		{"id": "p2", "content": "world"},
	})

	b, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"p1","content":"hello"},{"id":"p2","content":"world"}]`, string(b))
}

func TestRecorders_FanOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	rs := Recorders{a, nil, b}

	rs.Applied("users", KindCreate)
	rs.Anomaly("users", Anomaly{Type: AnomalyUpdateMiss})

	assert.Equal(t, []Kind{KindCreate}, a.applied)
	assert.Equal(t, []Kind{KindCreate}, b.applied)
	assert.Len(t, b.anomalies, 1)
}
