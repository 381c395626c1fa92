package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// GrantColumns lists the remote grant table columns in row order.
var GrantColumns = []string{
	"grant_id",
	"source_id",
	"crawled_date",
	"title",
	"description",
	"funding_agency",
	"amount",
	"deadline",
	"eligibility_criteria",
	"application_url",
	"last_updated",
	"is_active",
	"assignee",
}

// GrantKey is the upsert conflict key.
const GrantKey = "grant_id"

const grantTableDDL = `CREATE TABLE IF NOT EXISTS %s (
	grant_id             INTEGER PRIMARY KEY,
	source_id            INTEGER NOT NULL,
	crawled_date         TEXT NOT NULL,
	title                TEXT NOT NULL DEFAULT '',
	description          TEXT NOT NULL DEFAULT '',
	funding_agency       TEXT NOT NULL DEFAULT '',
	amount               DOUBLE PRECISION,
	deadline             DATE,
	eligibility_criteria TEXT NOT NULL DEFAULT '',
	application_url      TEXT NOT NULL DEFAULT '',
	last_updated         TEXT NOT NULL,
	is_active            BOOLEAN NOT NULL DEFAULT FALSE,
	assignee             TEXT NOT NULL DEFAULT ''
)`

const grantIndexDDL = `CREATE INDEX IF NOT EXISTS %s ON %s (source_id)`

// Migrate creates the grant table and its source index if they do not exist.
func Migrate(ctx context.Context, pool Pool, table string) error {
	if table == "" {
		return eris.New("db: migrate: no table specified")
	}
	stmts := []string{
		fmt.Sprintf(grantTableDDL, sanitizeTable(table)),
		fmt.Sprintf(grantIndexDDL, pgx.Identifier{grantIndexName(table)}.Sanitize(), sanitizeTable(table)),
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "db: migrate %s", table)
		}
	}
	return nil
}

func grantIndexName(table string) string {
	return "idx_" + strings.ReplaceAll(table, ".", "_") + "_source_id"
}
