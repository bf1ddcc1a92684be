package bus

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var envelope Envelope
	require.NoError(t, conn.ReadJSON(&envelope))
	return envelope
}

func TestConnectReceivesConnectionMessage(t *testing.T) {
	hub := NewHub(slog.Default())
	conn := dialTestHub(t, hub)

	envelope := readEnvelope(t, conn)
	assert.Equal(t, TypeConnection, envelope.Type)
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(slog.Default())
	first := dialTestHub(t, hub)
	second := dialTestHub(t, hub)

	// Drain the connection greetings.
	readEnvelope(t, first)
	readEnvelope(t, second)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 },
		2*time.Second, 10*time.Millisecond)

	hub.Broadcast(TypeActivationChanged, map[string]string{"state": "active"})

	for _, conn := range []*websocket.Conn{first, second} {
		envelope := readEnvelope(t, conn)
		assert.Equal(t, TypeActivationChanged, envelope.Type)
		data, ok := envelope.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "active", data["state"])
	}
}

func TestDisconnectedClientRemoved(t *testing.T) {
	hub := NewHub(slog.Default())
	conn := dialTestHub(t, hub)
	readEnvelope(t, conn)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestBroadcastWithNoClients(t *testing.T) {
	hub := NewHub(slog.Default())
	// Must not panic or block.
	hub.Broadcast(TypeActivationChanged, nil)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestClose(t *testing.T) {
	hub := NewHub(slog.Default())
	conn := dialTestHub(t, hub)
	readEnvelope(t, conn)

	hub.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}
