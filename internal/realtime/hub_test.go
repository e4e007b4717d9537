package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, r.URL.Query().Get("user")); err != nil {
			t.Logf("upgrade failed: %v", err)
		}
	}))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPushReachesEveryConnectionOfUser(t *testing.T) {
	hub, url := startHub(t)

	a := dial(t, url+"?user=alice")
	b := dial(t, url+"?user=alice")
	dial(t, url+"?user=bob")

	require.Eventually(t, func() bool {
		return hub.Connections("alice") == 2 && hub.Connections("bob") == 1
	}, time.Second, 5*time.Millisecond)

	hub.Push("alice", "milestone", map[string]int{"threshold": 7})

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "milestone", msg.Type)
		assert.Equal(t, map[string]any{"threshold": float64(7)}, msg.Payload)
	}
}

func TestPublishToUnknownUser(t *testing.T) {
	hub := NewHub()
	assert.Equal(t, 0, hub.Publish("nobody", []byte(`{}`)))
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)

	conn := dial(t, url+"?user=alice")
	require.Eventually(t, func() bool { return hub.Connections("alice") == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Connections("alice") == 0 }, time.Second, 5*time.Millisecond)
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	c := &client{userID: "alice", send: make(chan []byte, 1)}
	hub.register(c)

	assert.Equal(t, 1, hub.Publish("alice", []byte("one")))
	assert.Equal(t, 0, hub.Publish("alice", []byte("two")))
	assert.Equal(t, 0, hub.Connections("alice"))

	_, open := <-c.send
	assert.True(t, open, "buffered message is still readable")
	_, open = <-c.send
	assert.False(t, open, "send channel is closed after the drop")
}
