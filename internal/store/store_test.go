package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(&Config{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	pii := &Event{
		Type:         EventPII,
		RequestID:    "req-1",
		Source:       "paste",
		Action:       "redact",
		TotalMatches: 3,
		Counts:       Counts{"Email": 2, "SSN": 1},
		CreatedAt:    base,
	}
	require.NoError(t, s.Insert(ctx, pii))
	assert.NotEmpty(t, pii.ID)

	require.NoError(t, s.Insert(ctx, &Event{
		Type:       EventPhishing,
		Action:     "block",
		URL:        "http://192.168.1.1/login",
		Score:      0.83,
		Confidence: 83,
		CreatedAt:  base.Add(time.Minute),
	}))

	events, err := s.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, EventPhishing, events[0].Type, "newest first")
	assert.Equal(t, 83, events[0].Confidence)
	assert.InDelta(t, 0.83, events[0].Score, 1e-9)
	assert.Equal(t, Counts{}, events[0].Counts)

	assert.Equal(t, pii.ID, events[1].ID)
	assert.Equal(t, Counts{"Email": 2, "SSN": 1}, events[1].Counts)
	assert.True(t, base.Equal(events[1].CreatedAt))

	filtered, err := s.Recent(ctx, Query{Type: EventPII, Limit: 10})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "req-1", filtered[0].RequestID)
}

func TestGetStatsAndPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, s.Insert(ctx, &Event{Type: EventPII, Action: "block", CreatedAt: old}))
	require.NoError(t, s.Insert(ctx, &Event{Type: EventPII, Action: "redact"}))
	require.NoError(t, s.Insert(ctx, &Event{Type: EventNavigation, Action: "block"}))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEvents)
	assert.Equal(t, int64(2), stats.ByType[EventPII])
	assert.Equal(t, int64(2), stats.ByAction["block"])

	removed, err := s.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	stats, err = s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalEvents)
}

func TestFileDatabaseSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	s, err := NewStore(&Config{Driver: "sqlite", DSN: path, MaxOpenConns: 2}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, &Event{Type: EventPII, Action: "allow"}))
	require.NoError(t, s.Close())

	s, err = NewStore(&Config{Driver: "sqlite", DSN: path}, nil)
	require.NoError(t, err)
	defer s.Close()

	events, err := s.Recent(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewStore(&Config{Driver: "oracle", DSN: "x"}, nil)
	assert.Error(t, err)
}

func TestMaskDatabaseURL(t *testing.T) {
	assert.Equal(t, "postgres://app:***@db:5432/shield", maskDatabaseURL("postgres://app:pw@db:5432/shield"))
	assert.Equal(t, "pasteshield.db", maskDatabaseURL("pasteshield.db"))
}
