package sink

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sells-group/grant-scraper/internal/model"
)

// Upserter pushes grants to a remote table keyed by grant_id.
type Upserter interface {
	Upsert(ctx context.Context, grants []model.Grant) (int64, error)
	Close()
}

// RemoteRow is a grant shaped for the remote table. Low-confidence flags are
// local-only and have no column.
type RemoteRow struct {
	GrantID             int32
	SourceID            int32
	CrawledDate         string
	Title               string
	Description         string
	FundingAgency       string
	Amount              pgtype.Float8
	Deadline            pgtype.Date
	EligibilityCriteria string
	ApplicationURL      string
	LastUpdated         string
	IsActive            bool
	Assignee            string
}

// Normalize converts g for the remote table. The deadline keeps its first ten
// characters and becomes null unless they form a valid date.
func Normalize(g model.Grant) RemoteRow {
	row := RemoteRow{
		GrantID:             int32(g.GrantID), //nolint:gosec // ids are small per-source ranges
		SourceID:            int32(g.SourceID),
		CrawledDate:         g.CrawledDate,
		Title:               g.Title,
		Description:         g.Description,
		FundingAgency:       g.FundingAgency,
		EligibilityCriteria: g.EligibilityCriteria,
		ApplicationURL:      g.ApplicationURL,
		LastUpdated:         g.LastUpdated,
		IsActive:            g.IsActive,
		Assignee:            g.Assignee,
	}
	if g.Amount != nil {
		row.Amount = pgtype.Float8{Float64: *g.Amount, Valid: true}
	}
	if g.Deadline != nil {
		d := *g.Deadline
		if len(d) > 10 {
			d = d[:10]
		}
		if t, err := time.Parse(model.DateLayout, d); err == nil {
			row.Deadline = pgtype.Date{Time: t, Valid: true}
		}
	}
	return row
}

// Values returns the row in db.GrantColumns order.
func (r RemoteRow) Values() []any {
	return []any{
		r.GrantID,
		r.SourceID,
		r.CrawledDate,
		r.Title,
		r.Description,
		r.FundingAgency,
		r.Amount,
		r.Deadline,
		r.EligibilityCriteria,
		r.ApplicationURL,
		r.LastUpdated,
		r.IsActive,
		r.Assignee,
	}
}

// DeadlineISO returns the deadline as YYYY-MM-DD, or nil when null.
func (r RemoteRow) DeadlineISO() any {
	if !r.Deadline.Valid {
		return nil
	}
	return r.Deadline.Time.Format(model.DateLayout)
}

// AmountValue returns the amount, or nil when null.
func (r RemoteRow) AmountValue() any {
	if !r.Amount.Valid {
		return nil
	}
	return r.Amount.Float64
}

// normalizeAll converts grants and drops earlier duplicates of the same id,
// keeping the last occurrence at the position of the first. A single upsert
// statement cannot touch one key twice.
func normalizeAll(grants []model.Grant) []RemoteRow {
	index := make(map[int32]int, len(grants))
	rows := make([]RemoteRow, 0, len(grants))
	for _, g := range grants {
		row := Normalize(g)
		if i, ok := index[row.GrantID]; ok {
			rows[i] = row
			continue
		}
		index[row.GrantID] = len(rows)
		rows = append(rows, row)
	}
	return rows
}
