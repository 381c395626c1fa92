package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/grant-scraper/internal/db"
	"github.com/sells-group/grant-scraper/internal/model"
)

const sqliteGrantTable = `
CREATE TABLE IF NOT EXISTS grants (
	grant_id             INTEGER PRIMARY KEY,
	source_id            INTEGER NOT NULL,
	crawled_date         TEXT NOT NULL,
	title                TEXT NOT NULL DEFAULT '',
	description          TEXT NOT NULL DEFAULT '',
	funding_agency       TEXT NOT NULL DEFAULT '',
	amount               REAL,
	deadline             TEXT,
	eligibility_criteria TEXT NOT NULL DEFAULT '',
	application_url      TEXT NOT NULL DEFAULT '',
	last_updated         TEXT NOT NULL,
	is_active            INTEGER NOT NULL DEFAULT 0,
	assignee             TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_grants_source_id ON grants(source_id);
`

// SQLiteSink upserts grants into a local SQLite table named grants.
type SQLiteSink struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLiteSink opens the database at dsn and configures WAL mode.
func NewSQLiteSink(dsn string) (*SQLiteSink, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sink: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sink: exec %s", pragma)
		}
	}
	return &SQLiteSink{
		db:  conn,
		log: zap.L().With(zap.String("component", "sink.sqlite")),
	}, nil
}

// SetLogger replaces the sink's logger.
func (s *SQLiteSink) SetLogger(log *zap.Logger) {
	s.log = log.With(zap.String("component", "sink.sqlite"))
}

// Migrate creates the grants table if it does not exist.
func (s *SQLiteSink) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteGrantTable)
	return eris.Wrap(err, "sink: migrate sqlite")
}

// Upsert inserts or updates every grant by grant_id in one transaction.
func (s *SQLiteSink) Upsert(ctx context.Context, grants []model.Grant) (int64, error) {
	rows := normalizeAll(grants)
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sink: sqlite begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertSQL())
	if err != nil {
		return 0, eris.Wrap(err, "sink: sqlite prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var total int64
	for _, r := range rows {
		res, err := stmt.ExecContext(ctx,
			r.GrantID, r.SourceID, r.CrawledDate, r.Title, r.Description,
			r.FundingAgency, r.AmountValue(), r.DeadlineISO(), r.EligibilityCriteria,
			r.ApplicationURL, r.LastUpdated, r.IsActive, r.Assignee,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sink: sqlite upsert grant %d", r.GrantID)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sink: sqlite commit")
	}
	s.log.Info("upserted grants", zap.Int("rows", len(rows)), zap.Int64("affected", total))
	return total, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Warn("close sqlite", zap.Error(err))
	}
}

func sqliteUpsertSQL() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(db.GrantColumns)), ", ")
	var set []string
	for _, col := range db.GrantColumns {
		if col == db.GrantKey {
			continue
		}
		set = append(set, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	return fmt.Sprintf(
		"INSERT INTO grants (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		strings.Join(db.GrantColumns, ", "),
		placeholders,
		db.GrantKey,
		strings.Join(set, ", "),
	)
}
