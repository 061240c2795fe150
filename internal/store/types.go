package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType classifies a stored detection event
type EventType string

const (
	EventPII        EventType = "pii_detection"
	EventPhishing   EventType = "phishing_detection"
	EventNavigation EventType = "navigation_decision"
)

// Event is one audited detection. It records pattern names and counts, never
// the matched text.
type Event struct {
	ID           string    `db:"id" json:"id"`
	Type         EventType `db:"type" json:"type"`
	RequestID    string    `db:"request_id" json:"request_id"`
	Source       string    `db:"source" json:"source"`
	Action       string    `db:"action" json:"action"`
	URL          string    `db:"url" json:"url,omitempty"`
	Score        float64   `db:"score" json:"score"`
	Confidence   int       `db:"confidence" json:"confidence"`
	TotalMatches int       `db:"total_matches" json:"total_matches"`
	Counts       Counts    `db:"counts" json:"counts,omitempty"`
	CreatedAtMS  int64     `db:"created_at" json:"-"`
	CreatedAt    time.Time `db:"-" json:"created_at"`
}

// Counts maps pattern name to match count and is stored as JSON text
type Counts map[string]int

// Value implements driver.Valuer
func (c Counts) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (c *Counts) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported counts column type %T", src)
	}
	return json.Unmarshal(data, c)
}

// Query filters Recent
type Query struct {
	Type  EventType
	Limit int
}

// Stats summarizes the stored events
type Stats struct {
	TotalEvents int64               `json:"total_events"`
	ByType      map[EventType]int64 `json:"by_type"`
	ByAction    map[string]int64    `json:"by_action"`
}

// Config contains database configuration
type Config struct {
	Driver          string        `yaml:"driver" mapstructure:"driver"`
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}
