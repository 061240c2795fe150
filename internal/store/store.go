package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS detection_events (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	request_id    TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL DEFAULT '',
	score         DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence    INTEGER NOT NULL DEFAULT 0,
	total_matches INTEGER NOT NULL DEFAULT 0,
	counts        TEXT NOT NULL DEFAULT '{}',
	created_at    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_detection_events_created ON detection_events (created_at);
`

const maxRecent = 500

// Store persists detection events in PostgreSQL or an embedded SQLite file
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewStore opens the database and creates the schema
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	driver := config.Driver
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}

	db, err := sqlx.Open(driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool. An in-memory SQLite database exists per
	// connection, so it is pinned to one.
	if driver == "sqlite" && strings.Contains(config.DSN, ":memory:") {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	store := &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Event store initialized successfully",
		zap.String("driver", driver),
		zap.String("dsn", maskDatabaseURL(config.DSN)),
		zap.Int("max_open_conns", config.MaxOpenConns))

	return store, nil
}

// initialize checks the connection and creates the schema
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// Insert stores an event, assigning its ID and timestamp when missing
func (s *Store) Insert(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	event.CreatedAtMS = event.CreatedAt.UnixMilli()

	query := s.db.Rebind(`
		INSERT INTO detection_events
			(id, type, request_id, source, action, url, score, confidence, total_matches, counts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		event.RequestID,
		event.Source,
		event.Action,
		event.URL,
		event.Score,
		event.Confidence,
		event.TotalMatches,
		event.Counts,
		event.CreatedAtMS,
	)
	if err != nil {
		s.logger.Error("Failed to insert event",
			zap.Error(err),
			zap.String("type", string(event.Type)))
		return fmt.Errorf("failed to insert event: %w", err)
	}

	s.logger.Debug("Event stored", zap.String("id", event.ID), zap.String("type", string(event.Type)))
	return nil
}

// Recent returns the newest events first
func (s *Store) Recent(ctx context.Context, q Query) ([]Event, error) {
	limit := q.Limit
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}

	query := `SELECT id, type, request_id, source, action, url, score, confidence, total_matches, counts, created_at
		FROM detection_events`
	var args []interface{}
	if q.Type != "" {
		query += " WHERE type = ?"
		args = append(args, string(q.Type))
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	var events []Event
	if err := s.db.SelectContext(ctx, &events, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	for i := range events {
		events[i].CreatedAt = time.UnixMilli(events[i].CreatedAtMS).UTC()
	}

	return events, nil
}

// GetStats returns event counts by type and action
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByType:   make(map[EventType]int64),
		ByAction: make(map[string]int64),
	}

	var rows []struct {
		Type   string `db:"type"`
		Action string `db:"action"`
		Count  int64  `db:"n"`
	}
	query := `SELECT type, action, COUNT(*) AS n FROM detection_events GROUP BY type, action`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get event stats: %w", err)
	}

	for _, row := range rows {
		stats.TotalEvents += row.Count
		stats.ByType[EventType(row.Type)] += row.Count
		stats.ByAction[row.Action] += row.Count
	}

	return stats, nil
}

// Prune deletes events older than the cutoff and returns how many were removed
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM detection_events WHERE created_at < ?`), olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL replaces the password in a connection URL
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}

	userPart := url[:at]
	scheme := strings.Index(userPart, "://")
	colon := strings.LastIndex(userPart, ":")
	if colon <= scheme+2 {
		return url
	}

	return userPart[:colon+1] + "***" + url[at:]
}
