package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"livesync/core/codec"
	"livesync/core/push"
	"livesync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	events chan push.Event
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan push.Event, 64)}
}

func (f *fakeSource) Events() <-chan push.Event { return f.events }

func (f *fakeSource) connect() { f.events <- push.Event{Type: push.EventConnected} }
func (f *fakeSource) send(msg string) {
	f.events <- push.Event{Type: push.EventMessage, Payload: []byte(msg)}
}
func (f *fakeSource) disconnect() { f.events <- push.Event{Type: push.EventDisconnected} }

type fakeLoader struct {
	calls     int32
	responses chan loadResult
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{responses: make(chan loadResult, 8)}
}

func (f *fakeLoader) FetchSnapshot(ctx context.Context) ([]reconcile.Entity, error) {
	atomic.AddInt32(&f.calls, 1)
	select {
	case r := <-f.responses:
		return r.entities, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeLoader) respond(entities []reconcile.Entity, err error) {
	f.responses <- loadResult{entities: entities, err: err}
}

type fakeArchiver struct {
	mu    sync.Mutex
	saved []*reconcile.Snapshot
}

func (f *fakeArchiver) Save(ctx context.Context, feed string, snap *reconcile.Snapshot) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, snap)
	return "snapshots/" + feed + "/1.json", nil
}

type harness struct {
	session *Session
	source  *fakeSource
	loader  *fakeLoader
	cancel  context.CancelFunc
	done    chan error
}

func startHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{source: newFakeSource(), loader: newFakeLoader(), done: make(chan error, 1)}
	r := reconcile.New("users", zap.NewNop())
	h.session = New(cfg, r, h.loader, h.source, zap.NewNop(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.session.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) waitState(t *testing.T, state State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.session.Status().State == state
	}, 2*time.Second, 5*time.Millisecond, "state %s not reached", state)
}

func TestSession_BuffersUntilSnapshotThenReplays(t *testing.T) {
	h := startHarness(t, Config{})
	h.waitState(t, StateLoading)

	h.source.connect()
	h.source.send(`{"type":"CREATE","data":{"id":2,"login":"user2"}}`)
	h.source.send(`{"type":"UPDATE","data":{"id":1,"login":"user1x"}}`)
	require.Eventually(t, func() bool { return h.session.Status().Buffered == 2 }, time.Second, 5*time.Millisecond)
	assert.Nil(t, h.session.Snapshot())

	h.loader.respond([]reconcile.Entity{{"id": 1, "login": "user1"}}, nil)
	h.waitState(t, StateReady)

	snap := h.session.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, []reconcile.ID{"1", "2"}, snap.IDs())
	e, _ := snap.Get("1")
	assert.Equal(t, "user1x", e["login"])
	assert.Equal(t, 0, h.session.Status().Buffered)
}

func TestSession_LiveNotificationsAfterReady(t *testing.T) {
	h := startHarness(t, Config{})
	h.source.connect()
	h.loader.respond([]reconcile.Entity{{"id": 1}, {"id": 2}}, nil)
	h.waitState(t, StateReady)

	h.source.send(`{"type":"DELETE","data":{"id":2}}`)
	h.source.send(`not json`)
	h.source.send(`{"type":"CREATE","data":{"id":3}}`)

	require.Eventually(t, func() bool {
		snap := h.session.Snapshot()
		return snap.Has("3") && !snap.Has("2")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, h.session.Snapshot().Len())
}

func TestSession_BatchPublishesOnce(t *testing.T) {
	h := startHarness(t, Config{})
	h.source.connect()
	h.loader.respond([]reconcile.Entity{{"id": 1}}, nil)
	h.waitState(t, StateReady)

	var published int32
	unsubscribe := h.session.Publisher().Subscribe(func(*reconcile.Snapshot) {
		atomic.AddInt32(&published, 1)
	})
	defer unsubscribe()

	h.source.send(`{"type":"BATCH","data":[{"type":"CREATE","data":{"id":2}},{"type":"DELETE","data":{"id":2}}]}`)
	// A trailing no-op delete proves the batch was processed without publishing again.
	h.source.send(`{"type":"DELETE","data":{"id":999}}`)
	h.source.send(`{"type":"CREATE","data":{"id":5}}`)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&published) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&published))
	assert.True(t, h.session.Snapshot().Has("5"))
	assert.False(t, h.session.Snapshot().Has("2"))
}

func TestSession_BatchWithBadItemAppliesTheRest(t *testing.T) {
	h := startHarness(t, Config{})
	h.source.connect()
	h.loader.respond([]reconcile.Entity{{"id": 1}}, nil)
	h.waitState(t, StateReady)

	h.source.send(`{"type":"BATCH","data":[
		{"type":"CREATE","data":{"id":2,"login":"user2"}},
		{"data":{"id":3}},
		{"type":"UPDATE","data":null},
		{"type":"UPDATE","data":{"id":1,"login":"user1x"}}
	]}`)

	require.Eventually(t, func() bool {
		return h.session.Snapshot().Has("2")
	}, time.Second, 5*time.Millisecond)
	snap := h.session.Snapshot()
	assert.Equal(t, []reconcile.ID{"1", "2"}, snap.IDs())
	e, _ := snap.Get("1")
	assert.Equal(t, "user1x", e["login"])

	st := h.session.Status()
	assert.Equal(t, 1, st.Stats.Anomalies[reconcile.AnomalyUnknownKind])
	assert.Equal(t, 1, st.Stats.Anomalies[reconcile.AnomalyMalformed])
}

func TestSession_EntityFormatAppliesAsCreate(t *testing.T) {
	h := startHarness(t, Config{Decode: codec.DecodeEntity})
	h.source.connect()
	h.loader.respond([]reconcile.Entity{{"id": 1}}, nil)
	h.waitState(t, StateReady)

	h.source.send(`{"id":2,"title":"hi"}`)
	require.Eventually(t, func() bool {
		return h.session.Snapshot().Has("2")
	}, time.Second, 5*time.Millisecond)
}

func TestSession_LoaderFailureNeverApplies(t *testing.T) {
	h := startHarness(t, Config{})
	h.source.connect()
	h.source.send(`{"type":"CREATE","data":{"id":9}}`)

	h.loader.respond(nil, errors.New("401 unauthorized"))
	h.waitState(t, StateFailed)

	st := h.session.Status()
	assert.Contains(t, st.Error, "401")
	assert.Nil(t, h.session.Snapshot())

	// Messages keep buffering while failed and are replayed on a successful resync.
	h.source.send(`{"type":"CREATE","data":{"id":10}}`)
	h.loader.respond([]reconcile.Entity{{"id": 1}}, nil)
	h.session.Resync()
	h.waitState(t, StateReady)

	assert.Equal(t, []reconcile.ID{"1", "9", "10"}, h.session.Snapshot().IDs())
	assert.Empty(t, h.session.Status().Error)
}

func TestSession_RetryIntervalReloads(t *testing.T) {
	h := startHarness(t, Config{RetryInterval: 20 * time.Millisecond})
	h.loader.respond(nil, errors.New("down"))
	h.loader.respond([]reconcile.Entity{{"id": 1}}, nil)

	h.waitState(t, StateReady)
	assert.Equal(t, int32(2), atomic.LoadInt32(&h.loader.calls))
}

func TestSession_ReconnectTriggersResync(t *testing.T) {
	h := startHarness(t, Config{})
	h.source.connect()
	h.loader.respond([]reconcile.Entity{{"id": 1}, {"id": 2}}, nil)
	h.waitState(t, StateReady)

	h.source.disconnect()
	h.source.connect()
	// Server state changed while we were away.
	h.loader.respond([]reconcile.Entity{{"id": 2}, {"id": 3}}, nil)

	require.Eventually(t, func() bool {
		return h.session.Status().Stats.Initializes == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []reconcile.ID{"2", "3"}, h.session.Snapshot().IDs())
	assert.Equal(t, int32(2), atomic.LoadInt32(&h.loader.calls))
}

func TestSession_FailedResyncKeepsLastSnapshot(t *testing.T) {
	h := startHarness(t, Config{})
	h.loader.respond([]reconcile.Entity{{"id": 1}}, nil)
	h.waitState(t, StateReady)

	h.loader.respond(nil, errors.New("timeout"))
	h.session.Resync()

	require.Eventually(t, func() bool { return h.session.Status().Error != "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateReady, h.session.Status().State)
	assert.True(t, h.session.Snapshot().Has("1"))
}

func TestSession_BufferOverflowDropsOldest(t *testing.T) {
	h := startHarness(t, Config{MaxBuffered: 2})
	h.source.send(`{"type":"CREATE","data":{"id":1}}`)
	h.source.send(`{"type":"CREATE","data":{"id":2}}`)
	h.source.send(`{"type":"CREATE","data":{"id":3}}`)
	require.Eventually(t, func() bool { return h.session.Status().Dropped == 1 }, time.Second, 5*time.Millisecond)

	h.loader.respond([]reconcile.Entity{}, nil)
	h.waitState(t, StateReady)
	assert.Equal(t, []reconcile.ID{"2", "3"}, h.session.Snapshot().IDs())
}

func TestSession_TeardownArchivesAndCloses(t *testing.T) {
	archiver := &fakeArchiver{}
	var states []State
	var mu sync.Mutex
	h := startHarness(t, Config{}, WithArchiver(archiver), WithStateHook(func(feed string, s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))
	h.loader.respond([]reconcile.Entity{{"id": 1}}, nil)
	h.waitState(t, StateReady)

	h.cancel()
	require.NoError(t, <-h.done)
	h.done <- nil // let cleanup finish

	assert.Equal(t, StateClosed, h.session.Status().State)
	archiver.mu.Lock()
	require.Len(t, archiver.saved, 1)
	assert.Equal(t, 1, archiver.saved[0].Len())
	archiver.mu.Unlock()

	mu.Lock()
	assert.Equal(t, []State{StateLoading, StateReady, StateClosed}, states)
	mu.Unlock()
}

func TestSession_SourceClosed(t *testing.T) {
	h := startHarness(t, Config{})
	close(h.source.events)

	err := <-h.done
	assert.ErrorIs(t, err, ErrSourceClosed)
	h.done <- err
}
