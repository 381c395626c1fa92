package sink

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/grant-scraper/internal/model"
)

func newTestSQLiteSink(t *testing.T) *SQLiteSink {
	t.Helper()
	s, err := NewSQLiteSink(filepath.Join(t.TempDir(), "grants.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteSink_Upsert_Idempotent(t *testing.T) {
	s := newTestSQLiteSink(t)
	ctx := context.Background()

	grants := []model.Grant{
		testGrant(2001, model.SourceOTF, "Seed Grant"),
		testGrant(2002, model.SourceOTF, "Grow Grant"),
	}
	for range 3 {
		n, err := s.Upsert(ctx, grants)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	}

	updated := grants[0]
	updated.Title = "Seed Grant (updated)"
	updated.Deadline = nil
	_, err := s.Upsert(ctx, []model.Grant{updated})
	require.NoError(t, err)

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grants`).Scan(&count))
	assert.Equal(t, 2, count)

	var (
		title    string
		deadline sql.NullString
		amount   sql.NullFloat64
		active   bool
	)
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT title, deadline, amount, is_active FROM grants WHERE grant_id = ?`, 2001,
	).Scan(&title, &deadline, &amount, &active))
	assert.Equal(t, "Seed Grant (updated)", title)
	assert.False(t, deadline.Valid)
	assert.True(t, amount.Valid)
	assert.InDelta(t, 10000.0, amount.Float64, 0.001)
	assert.True(t, active)
}

func TestSQLiteSink_Upsert_Deadline(t *testing.T) {
	s := newTestSQLiteSink(t)
	ctx := context.Background()

	g := testGrant(1001, model.SourceKindred, "Kindred Cares Grant")
	g.SetDeadline("2024-02-01T00:00:00")
	_, err := s.Upsert(ctx, []model.Grant{g})
	require.NoError(t, err)

	var deadline string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT deadline FROM grants WHERE grant_id = 1001`).Scan(&deadline))
	assert.Equal(t, "2024-02-01", deadline)
}

func TestSQLiteSink_Upsert_Empty(t *testing.T) {
	s := newTestSQLiteSink(t)
	n, err := s.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteSink_Upsert_NoTable(t *testing.T) {
	s, err := NewSQLiteSink(filepath.Join(t.TempDir(), "grants.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Upsert(context.Background(), []model.Grant{testGrant(1, model.SourcePHAC, "A")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink: sqlite prepare upsert")
}

func TestSQLiteUpsertSQL(t *testing.T) {
	q := sqliteUpsertSQL()
	assert.Contains(t, q, "INSERT INTO grants (grant_id, source_id,")
	assert.Contains(t, q, "ON CONFLICT(grant_id) DO UPDATE SET source_id = excluded.source_id")
	assert.NotContains(t, q, "grant_id = excluded.grant_id")
}
