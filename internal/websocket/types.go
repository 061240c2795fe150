package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypePIIDetection is sent when a paste or upload carries sensitive data
	EventTypePIIDetection EventType = "pii_detection"
	// EventTypePhishingDetection is sent when a checked URL is classified as phishing
	EventTypePhishingDetection EventType = "phishing_detection"
	// EventTypeNavigation is sent for every analyzed navigation
	EventTypeNavigation EventType = "navigation_decision"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// PIIDetectionEvent reports match counts only; matched values never leave
// the process
type PIIDetectionEvent struct {
	RequestID    string         `json:"request_id"`
	Source       string         `json:"source"` // paste, file or scan
	Mode         string         `json:"mode"`
	Action       string         `json:"action"`
	Counts       map[string]int `json:"counts"`
	TotalMatches int            `json:"total_matches"`
	ProcessingMS float64        `json:"processing_ms"`
}

// PhishingDetectionEvent reports a URL classified as phishing
type PhishingDetectionEvent struct {
	RequestID     string  `json:"request_id"`
	URL           string  `json:"url"`
	Confidence    int     `json:"confidence"`
	PhishingScore float64 `json:"phishing_score"`
	Threshold     float64 `json:"threshold"`
}

// NavigationEvent reports a navigation guard decision
type NavigationEvent struct {
	TabID      int    `json:"tab_id"`
	URL        string `json:"url"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
	Confidence int    `json:"confidence"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	TotalDetections  int64  `json:"total_detections"`
	ActivePatterns   int    `json:"active_patterns"`
	ConnectedClients int    `json:"connected_clients"`
	DetectorVersion  string `json:"detector_version"`
	PrivacyMode      string `json:"privacy_mode"`
	NavigationMode   string `json:"navigation_mode"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows the events a subscribed client receives
type EventFilter struct {
	// MinConfidence drops phishing and navigation events below this confidence
	MinConfidence int `json:"min_confidence,omitempty"`
	// Patterns keeps only PII events that matched one of these pattern names
	Patterns []string `json:"patterns,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
