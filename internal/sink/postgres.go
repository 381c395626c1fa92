package sink

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-scraper/internal/db"
	"github.com/sells-group/grant-scraper/internal/model"
)

// PostgresSink upserts grants into a Postgres table.
type PostgresSink struct {
	pool  db.Pool
	table string
	log   *zap.Logger
}

// NewPostgresSink wraps an open pool. The caller hands ownership of pool to
// the sink; Close releases it.
func NewPostgresSink(pool db.Pool, table string) *PostgresSink {
	return &PostgresSink{
		pool:  pool,
		table: table,
		log:   zap.L().With(zap.String("component", "sink.postgres"), zap.String("table", table)),
	}
}

// ConnectPostgres opens a pool for url, using key as the password when set.
func ConnectPostgres(ctx context.Context, url, key, table string) (*PostgresSink, error) {
	pool, err := db.Connect(ctx, url, key)
	if err != nil {
		return nil, eris.Wrap(err, "sink: connect postgres")
	}
	return NewPostgresSink(pool, table), nil
}

// SetLogger replaces the sink's logger.
func (s *PostgresSink) SetLogger(log *zap.Logger) {
	s.log = log.With(zap.String("component", "sink.postgres"), zap.String("table", s.table))
}

// Migrate creates the grant table if it does not exist.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, s.pool, s.table)
}

// Upsert inserts or updates every grant by grant_id in one transaction.
func (s *PostgresSink) Upsert(ctx context.Context, grants []model.Grant) (int64, error) {
	rows := normalizeAll(grants)
	if len(rows) == 0 {
		return 0, nil
	}
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = r.Values()
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        s.table,
		Columns:      db.GrantColumns,
		ConflictKeys: []string{db.GrantKey},
	}, values)
	if err != nil {
		return 0, eris.Wrapf(err, "sink: upsert %d grants", len(rows))
	}
	s.log.Info("upserted grants", zap.Int("rows", len(rows)), zap.Int64("affected", n))
	return n, nil
}

// Close releases the pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}
