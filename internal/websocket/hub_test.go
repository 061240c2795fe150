package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T, cfg *HubConfig) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, hub *Hub, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event map[string]interface{}
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestBroadcastDeliversEnabledEvents(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{BroadcastDetections: true})
	conn := dial(t, hub, srv, nil)

	hub.BroadcastEvent(Event{Type: EventTypeNavigation, Data: NavigationEvent{URL: "https://a.example"}})
	hub.BroadcastEvent(Event{Type: EventTypePIIDetection, Data: PIIDetectionEvent{
		Source:       "paste",
		Counts:       map[string]int{"Email": 1},
		TotalMatches: 1,
	}})

	event := readEvent(t, conn)
	assert.Equal(t, string(EventTypePIIDetection), event["type"], "navigation events are disabled")

	data := event["data"].(map[string]interface{})
	assert.Equal(t, "paste", data["source"])
	assert.Equal(t, float64(1), data["total_matches"])

	stats := hub.GetStats()
	assert.Equal(t, int64(1), stats.ActiveConnections)
	assert.Equal(t, int64(1), stats.TotalConnections)
}

func TestSubscriptionFilter(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{BroadcastDetections: true, BroadcastNavigation: true})
	conn := dial(t, hub, srv, nil)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", Data: SubscriptionRequest{
		Events: []EventType{EventTypePhishingDetection},
		Filter: &EventFilter{MinConfidence: 80},
	}}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	assert.Equal(t, string(EventTypePong), readEvent(t, conn)["type"])

	hub.BroadcastEvent(Event{Type: EventTypeNavigation, Data: NavigationEvent{Confidence: 99}})
	hub.BroadcastEvent(Event{Type: EventTypePhishingDetection, Data: PhishingDetectionEvent{URL: "https://low.example", Confidence: 50}})
	hub.BroadcastEvent(Event{Type: EventTypePhishingDetection, Data: PhishingDetectionEvent{URL: "https://high.example", Confidence: 90}})

	event := readEvent(t, conn)
	assert.Equal(t, string(EventTypePhishingDetection), event["type"])
	assert.Equal(t, "https://high.example", event["data"].(map[string]interface{})["url"])
}

func TestBasicAuth(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{Username: "admin", Password: "s3cret"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.SetBasicAuth("admin", "s3cret")
	dial(t, hub, srv, req.Header)
}

func TestMaxConnections(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{MaxConnections: 1})
	dial(t, hub, srv, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestApplyEventFilter(t *testing.T) {
	pii := Event{Type: EventTypePIIDetection, Data: PIIDetectionEvent{Counts: map[string]int{"SSN": 2}}}

	assert.True(t, applyEventFilter(&EventFilter{}, pii))
	assert.True(t, applyEventFilter(&EventFilter{Patterns: []string{"Email", "SSN"}}, pii))
	assert.False(t, applyEventFilter(&EventFilter{Patterns: []string{"Email"}}, pii))

	nav := Event{Type: EventTypeNavigation, Data: NavigationEvent{Confidence: 70}}
	assert.True(t, applyEventFilter(&EventFilter{MinConfidence: 70}, nav))
	assert.False(t, applyEventFilter(&EventFilter{MinConfidence: 71}, nav))
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub(&HubConfig{AllowedOrigins: []string{"chrome-extension://abc"}}, nil)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, hub.checkOrigin(r), "requests without origin are allowed")

	r.Header.Set("Origin", "chrome-extension://abc")
	assert.True(t, hub.checkOrigin(r))

	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, hub.checkOrigin(r))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:5555"
	assert.Equal(t, "10.0.0.5", ClientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.6")
	assert.Equal(t, "10.0.0.6", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(r))
}
