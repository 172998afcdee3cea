package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, r.URL.Query().Get("topic"))
	}))
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, topic string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + server.URL[4:] + "?topic=" + topic
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub, server := startHub(t)

	conn := dial(t, server, TopicReports)
	require.Eventually(t, func() bool { return hub.Subscribers(TopicReports) == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers(TopicReports) == 0 }, time.Second, 10*time.Millisecond)

	hub.mu.RLock()
	_, exists := hub.connections[TopicReports]
	hub.mu.RUnlock()
	assert.False(t, exists)
}

func TestHub_Broadcast(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server, TopicInvoices)
	require.Eventually(t, func() bool { return hub.Subscribers(TopicInvoices) == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(TopicInvoices, &Message{
		Type: "invoice_completed",
		Data: map[string]any{"invoice_no": "INV-1"},
	})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var received Message
	require.NoError(t, conn.ReadJSON(&received))

	assert.Equal(t, "invoice_completed", received.Type)
	assert.Equal(t, TopicInvoices, received.Topic)
	assert.False(t, received.SentAt.IsZero())
	assert.Equal(t, "INV-1", received.Data.(map[string]any)["invoice_no"])
}

func TestHub_MultipleConnections(t *testing.T) {
	hub, server := startHub(t)

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conns = append(conns, dial(t, server, TopicReminders))
	}
	require.Eventually(t, func() bool { return hub.Subscribers(TopicReminders) == 3 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(TopicReminders, &Message{Type: "reminder_queued"})

	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func(idx int, c *websocket.Conn) {
			defer wg.Done()
			c.SetReadDeadline(time.Now().Add(time.Second))
			var received Message
			if err := c.ReadJSON(&received); err != nil {
				t.Errorf("connection %d failed to read message: %v", idx, err)
				return
			}
			if received.Type != "reminder_queued" {
				t.Errorf("connection %d: expected type reminder_queued, got %q", idx, received.Type)
			}
		}(i, conn)
	}
	wg.Wait()
}

func TestHub_TopicsAreIsolated(t *testing.T) {
	hub, server := startHub(t)
	reports := dial(t, server, TopicReports)
	exports := dial(t, server, TopicExports)
	require.Eventually(t, func() bool {
		return hub.Subscribers(TopicReports) == 1 && hub.Subscribers(TopicExports) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(TopicReports, &Message{Type: "scan_report"})

	reports.SetReadDeadline(time.Now().Add(time.Second))
	var got Message
	require.NoError(t, reports.ReadJSON(&got))
	assert.Equal(t, "scan_report", got.Type)

	exports.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var other Message
	assert.Error(t, exports.ReadJSON(&other), "exports subscriber should not see report messages")
}

func TestHub_BroadcastQueueFull(t *testing.T) {
	hub := NewHub()
	hub.broadcast = make(chan *Message, 1)

	hub.broadcast <- &Message{Type: "fill"}
	hub.Broadcast(TopicReports, &Message{Type: "dropped"})

	msg := <-hub.broadcast
	assert.Equal(t, "fill", msg.Type)
	select {
	case extra := <-hub.broadcast:
		t.Fatalf("expected message to be dropped, got %q", extra.Type)
	default:
	}
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, TopicReports)
	}))
	defer server.Close()

	conn := dial(t, server, TopicReports)
	require.Eventually(t, func() bool { return hub.Subscribers(TopicReports) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	time.Sleep(100 * time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "expected connection to be closed after hub shutdown")
}
