package db

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grantUpsertConfig() UpsertConfig {
	return UpsertConfig{
		Table:        "Grant",
		Columns:      []string{"grant_id", "title", "amount"},
		ConflictKeys: []string{"grant_id"},
	}
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, grantUpsertConfig(), nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  UpsertConfig
		want string
	}{
		{"no table", UpsertConfig{Columns: []string{"id"}, ConflictKeys: []string{"id"}}, "no table specified"},
		{"no columns", UpsertConfig{Table: "Grant", ConflictKeys: []string{"id"}}, "no columns specified"},
		{"no conflict keys", UpsertConfig{Table: "Grant", Columns: []string{"id", "name"}}, "no conflict keys specified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BulkUpsert(context.Background(), nil, tt.cfg, [][]any{{1, "a"}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := grantUpsertConfig()
	rows := [][]any{{1, "Seed Grant", 10000.0}, {2, "Grow Grant", 50000.0}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TEMP TABLE "_tmp_upsert_Grant" (LIKE "Grant" INCLUDING DEFAULTS) ON COMMIT DROP`)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_Grant"}, cfg.Columns).WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "Grant" ("grant_id", "title", "amount") SELECT "grant_id", "title", "amount" FROM "_tmp_upsert_Grant" ON CONFLICT ("grant_id") DO UPDATE SET "title" = EXCLUDED."title", "amount" = EXCLUDED."amount"`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, cfg, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := grantUpsertConfig()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_Grant"}, cfg.Columns).WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, cfg, [][]any{{1, "a", nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for Grant")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_BeginFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(fmt.Errorf("connection refused"))

	_, err = BulkUpsert(context.Background(), mock, grantUpsertConfig(), [][]any{{1, "a", nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL_ExplicitUpdateCols(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "public.Grant",
		Columns:      []string{"grant_id", "title", "assignee"},
		ConflictKeys: []string{"grant_id"},
		UpdateCols:   []string{"title"},
	}
	assert.Equal(t,
		`INSERT INTO "public"."Grant" ("grant_id", "title", "assignee") SELECT "grant_id", "title", "assignee" FROM "_tmp_upsert_public_Grant" ON CONFLICT ("grant_id") DO UPDATE SET "title" = EXCLUDED."title"`,
		upsertSQL(cfg))
}

func TestUpsertSQL_KeysOnly(t *testing.T) {
	cfg := UpsertConfig{Table: "Grant", Columns: []string{"grant_id"}, ConflictKeys: []string{"grant_id"}}
	assert.Contains(t, upsertSQL(cfg), `ON CONFLICT ("grant_id") DO NOTHING`)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Grant", `"Grant"`},
		{"public.Grant", `"public"."Grant"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"grant_id", "title", "is_active"`, quoteAndJoin([]string{"grant_id", "title", "is_active"}))
}
