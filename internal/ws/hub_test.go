package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waba-gateway/internal/models"
)

func startHub(t *testing.T, origin string) (*Hub, string) {
	t.Helper()
	log, _ := test.NewNullLogger()
	hub := NewHub(origin, log)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string, header http.Header) *websocket.Conn {
	t.Helper()
	before := hub.ClientCount()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == before+1 }, time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) WSEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event WSEvent
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestHub_BroadcastsToEveryClient(t *testing.T) {
	hub, url := startHub(t, "*")
	first := dial(t, hub, url, nil)
	second := dial(t, hub, url, nil)

	hub.NotifyMessage(models.Message{WaID: "wamid.1", Sender: "1555", Content: "hi"})

	for _, conn := range []*websocket.Conn{first, second} {
		event := readEvent(t, conn)
		assert.Equal(t, EventNewMessage, event.Type)
		data := event.Data.(map[string]interface{})
		assert.Equal(t, "hi", data["content"])
	}
}

func TestHub_TemplateStatusEvent(t *testing.T) {
	hub, url := startHub(t, "")
	conn := dial(t, hub, url, nil)

	hub.NotifyTemplateStatus(&models.Template{ID: "t-1", Name: "welcome", Status: models.StatusApproved, WhatsAppTemplateID: "wa-1"})

	event := readEvent(t, conn)
	assert.Equal(t, EventTemplateStatus, event.Type)
	data := event.Data.(map[string]interface{})
	assert.Equal(t, "APPROVED", data["status"])
	assert.Equal(t, "wa-1", data["whatsapp_template_id"])
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	hub, url := startHub(t, "*")
	conn := dial(t, hub, url, nil)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	_, url := startHub(t, "https://dashboard.example.com")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_BroadcastWithoutRunDoesNotBlock(t *testing.T) {
	log, _ := test.NewNullLogger()
	hub := NewHub("*", log)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.BroadcastEvent(EventNewMessage, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastEvent blocked")
	}
}
