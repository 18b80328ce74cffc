package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"livesync/core/auth"
	"livesync/core/codec"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPLoader_FetchSnapshot(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"login":"user1"},{"id":2,"login":"user2"}]`))
	}))
	defer srv.Close()

	loader := NewHTTPLoader(Config{URL: srv.URL + "/api/users", PageSize: 1000000},
		auth.Credentials{Token: "tok"}, srv.Client(), zap.NewNop())

	entities, err := loader.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "user2", entities[1]["login"])
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "page=0&size=1000000", gotQuery)
}

func TestHTTPLoader_WrappedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"body":[{"id":"t1"}]}`))
	}))
	defer srv.Close()

	loader := NewHTTPLoader(Config{URL: srv.URL, ItemsField: "body"}, auth.Credentials{}, nil, zap.NewNop())
	entities, err := loader.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}

func TestHTTPLoader_Errors(t *testing.T) {
	t.Run("Status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}))
		defer srv.Close()

		loader := NewHTTPLoader(Config{URL: srv.URL}, auth.Credentials{}, nil, zap.NewNop())
		_, err := loader.FetchSnapshot(context.Background())

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusForbidden, statusErr.Code)
	})

	t.Run("BadBody", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":1}`))
		}))
		defer srv.Close()

		loader := NewHTTPLoader(Config{URL: srv.URL}, auth.Credentials{}, nil, zap.NewNop())
		_, err := loader.FetchSnapshot(context.Background())
		assert.ErrorIs(t, err, codec.ErrMalformed)
	})

	t.Run("Timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		loader := NewHTTPLoader(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}, auth.Credentials{}, nil, zap.NewNop())
		_, err := loader.FetchSnapshot(context.Background())
		assert.Error(t, err)
	})
}

func TestHTTPLoader_CoalescesConcurrentFetches(t *testing.T) {
	var hits int32
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-gate
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	loader := NewHTTPLoader(Config{URL: srv.URL}, auth.Credentials{}, nil, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := loader.FetchSnapshot(context.Background())
			assert.NoError(t, err)
		}()
	}

	// Let every goroutine join the in-flight call before releasing the server.
	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
