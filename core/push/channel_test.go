package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"livesync/core/auth"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextEvent(t *testing.T, ch *Channel) Event {
	t.Helper()
	select {
	case ev, ok := <-ch.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestChannel_DeliversMessagesInOrder(t *testing.T) {
	tokens := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CREATE","data":{"id":1}}`))
		conn.WriteMessage(websocket.BinaryMessage, []byte{})
		conn.WriteMessage(websocket.TextMessage, []byte(""))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"DELETE","data":{"id":1}}`))
		// Hold the connection until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	ch := Dial(context.Background(), Config{URL: wsURL(srv) + "/ws/users", TokenParam: "token"},
		auth.Credentials{Token: "secret"}, zap.NewNop())
	defer ch.Close()

	assert.Equal(t, EventConnected, nextEvent(t, ch).Type)

	first := nextEvent(t, ch)
	assert.Equal(t, EventMessage, first.Type)
	assert.Contains(t, string(first.Payload), "CREATE")

	second := nextEvent(t, ch)
	assert.Equal(t, EventMessage, second.Type)
	assert.Contains(t, string(second.Payload), "DELETE")

	assert.Equal(t, "secret", <-tokens)
}

func TestChannel_ReconnectsAfterDrop(t *testing.T) {
	var connects int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := atomic.AddInt32(&connects, 1)
		if n == 1 {
			// Drop the first connection right away.
			conn.Close()
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"UPDATE","data":{"id":1}}`))
		conn.ReadMessage()
	}))
	defer srv.Close()

	ch := Dial(context.Background(), Config{
		URL:          wsURL(srv),
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 20 * time.Millisecond,
	}, auth.Credentials{}, zap.NewNop())
	defer ch.Close()

	assert.Equal(t, EventConnected, nextEvent(t, ch).Type)
	assert.Equal(t, EventDisconnected, nextEvent(t, ch).Type)
	assert.Equal(t, EventConnected, nextEvent(t, ch).Type)
	assert.Equal(t, EventMessage, nextEvent(t, ch).Type)
}

func TestChannel_CloseStopsRetrying(t *testing.T) {
	// Nothing listens here, so every dial fails.
	ch := Dial(context.Background(), Config{
		URL:          "ws://127.0.0.1:1/ws",
		ReconnectMin: 10 * time.Millisecond,
	}, auth.Credentials{}, zap.NewNop())

	time.Sleep(30 * time.Millisecond)
	ch.Close()

	_, ok := <-ch.Events()
	assert.False(t, ok)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}
	cfg.setDefaults()
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 30*time.Second, cfg.ReconnectMax)
	assert.Equal(t, 256, cfg.BufferSize)
}
