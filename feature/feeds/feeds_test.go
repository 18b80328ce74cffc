package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"livesync/core/push"
	"livesync/core/reconcile"
	"livesync/core/session"
	"livesync/feature/archive"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSource struct {
	events chan push.Event
}

func (s *stubSource) Events() <-chan push.Event { return s.events }

type stubLoader struct {
	entities []reconcile.Entity
	err      error
	block    bool
}

func (l *stubLoader) FetchSnapshot(ctx context.Context) ([]reconcile.Entity, error) {
	if l.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return l.entities, l.err
}

type stubArchives struct {
	saved []string
}

func (a *stubArchives) Save(ctx context.Context, feed string, snap *reconcile.Snapshot) (string, error) {
	key := "snapshots/" + feed + "/01J.json"
	a.saved = append(a.saved, key)
	return key, nil
}

func (a *stubArchives) List(ctx context.Context, feed string) ([]archive.Entry, error) {
	return []archive.Entry{{Key: "snapshots/" + feed + "/01J.json", Size: 42}}, nil
}

func newSession(name string, loader *stubLoader, opts ...reconcile.Option) (*session.Session, *stubSource) {
	src := &stubSource{events: make(chan push.Event, 16)}
	r := reconcile.New(name, zap.NewNop(), opts...)
	return session.New(session.Config{}, r, loader, src, zap.NewNop()), src
}

type fixture struct {
	app     *fiber.App
	service *Service
	users   *stubSource
}

func setupTestApp(t *testing.T, archives Archives) *fixture {
	t.Helper()
	users, usersSrc := newSession("users", &stubLoader{entities: []reconcile.Entity{
		{"id": 1, "login": "user1"},
		{"id": 2, "login": "user2"},
		{"id": 3, "login": "user3"},
	}})
	news, _ := newSession("news", &stubLoader{err: errors.New("snapshot fetch failed: status 401")})
	transactions, _ := newSession("transactions", &stubLoader{block: true})

	svc := NewService(zap.NewNop(), archives, users, news, transactions)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		return users.Status().State == session.StateReady && news.Status().State == session.StateFailed
	}, 2*time.Second, 5*time.Millisecond)

	app := fiber.New()
	feature := NewFeature(svc)
	require.True(t, feature.IsEnabled())
	require.NoError(t, feature.Load(app))
	return &fixture{app: app, service: svc, users: usersSrc}
}

func doRequest(t *testing.T, app *fiber.App, method, target string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func TestHandleList(t *testing.T) {
	f := setupTestApp(t, nil)

	resp, err := f.app.Test(httptest.NewRequest("GET", "/feeds", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var statuses []session.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statuses))
	require.Len(t, statuses, 3)
	assert.Equal(t, "users", statuses[0].Feed)
	assert.Equal(t, session.StateReady, statuses[0].State)
	assert.Equal(t, session.StateFailed, statuses[1].State)
}

func TestHandleSnapshot(t *testing.T) {
	f := setupTestApp(t, nil)

	t.Run("Ready", func(t *testing.T) {
		status, body := doRequest(t, f.app, "GET", "/feeds/users")
		assert.Equal(t, 200, status)
		assert.Equal(t, float64(3), body["total"])
		assert.Len(t, body["entities"], 3)
	})

	t.Run("Paged", func(t *testing.T) {
		status, body := doRequest(t, f.app, "GET", "/feeds/users?offset=1&limit=1")
		assert.Equal(t, 200, status)
		entities := body["entities"].([]any)
		require.Len(t, entities, 1)
		assert.Equal(t, "user2", entities[0].(map[string]any)["login"])
	})

	t.Run("Failed", func(t *testing.T) {
		status, body := doRequest(t, f.app, "GET", "/feeds/news")
		assert.Equal(t, 503, status)
		assert.Contains(t, body["error"], "401")
		assert.Equal(t, "failed", body["state"])
	})

	t.Run("Loading", func(t *testing.T) {
		status, body := doRequest(t, f.app, "GET", "/feeds/transactions")
		assert.Equal(t, 503, status)
		assert.Equal(t, ErrNotReady.Error(), body["error"])
		assert.Equal(t, "loading", body["state"])
	})

	t.Run("Unknown", func(t *testing.T) {
		status, _ := doRequest(t, f.app, "GET", "/feeds/bank")
		assert.Equal(t, 404, status)
	})
}

func TestHandleEntity(t *testing.T) {
	f := setupTestApp(t, nil)

	status, body := doRequest(t, f.app, "GET", "/feeds/users/entities/2")
	assert.Equal(t, 200, status)
	assert.Equal(t, "user2", body["login"])

	status, _ = doRequest(t, f.app, "GET", "/feeds/users/entities/99")
	assert.Equal(t, 404, status)
}

func TestHandleEntity_LiveUpdate(t *testing.T) {
	f := setupTestApp(t, nil)

	f.users.events <- push.Event{Type: push.EventMessage, Payload: []byte(`{"type":"UPDATE","data":{"id":"2","login":"renamed"}}`)}

	require.Eventually(t, func() bool {
		_, body := doRequest(t, f.app, "GET", "/feeds/users/entities/2")
		return body["login"] == "renamed"
	}, time.Second, 10*time.Millisecond)
}

func TestHandleResync(t *testing.T) {
	f := setupTestApp(t, nil)

	status, _ := doRequest(t, f.app, "POST", "/feeds/users/resync")
	assert.Equal(t, 202, status)

	require.Eventually(t, func() bool {
		sess, _ := f.service.Session("users")
		return sess.Status().Stats.Initializes == 2
	}, time.Second, 5*time.Millisecond)

	status, _ = doRequest(t, f.app, "POST", "/feeds/bank/resync")
	assert.Equal(t, 404, status)
}

func TestHandleArchive(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		f := setupTestApp(t, nil)
		status, _ := doRequest(t, f.app, "POST", "/feeds/users/archive")
		assert.Equal(t, 501, status)
		status, _ = doRequest(t, f.app, "GET", "/feeds/users/archives")
		assert.Equal(t, 501, status)
	})

	t.Run("Enabled", func(t *testing.T) {
		archives := &stubArchives{}
		f := setupTestApp(t, archives)

		status, body := doRequest(t, f.app, "POST", "/feeds/users/archive")
		assert.Equal(t, 201, status)
		assert.Equal(t, "snapshots/users/01J.json", body["key"])
		assert.Len(t, archives.saved, 1)

		status, _ = doRequest(t, f.app, "POST", "/feeds/transactions/archive")
		assert.Equal(t, 503, status)

		resp, err := f.app.Test(httptest.NewRequest("GET", "/feeds/users/archives", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		var entries []archive.Entry
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
		assert.Len(t, entries, 1)
	})
}

func TestService_RunStopsOnSourceClose(t *testing.T) {
	users, src := newSession("users", &stubLoader{entities: []reconcile.Entity{}})
	svc := NewService(zap.NewNop(), nil, users)

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()
	close(src.events)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, session.ErrSourceClosed)
		assert.Contains(t, err.Error(), "feed users")
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
