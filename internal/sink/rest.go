package sink

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-scraper/internal/db"
	"github.com/sells-group/grant-scraper/internal/model"
)

// restTimeout bounds a single upsert request.
const restTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept in the error.
const maxErrorBody = 512

// restRow is the JSON body of one grant for the REST endpoint.
type restRow struct {
	GrantID             int32    `json:"grant_id"`
	SourceID            int32    `json:"source_id"`
	CrawledDate         string   `json:"crawled_date"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	FundingAgency       string   `json:"funding_agency"`
	Amount              *float64 `json:"amount"`
	Deadline            *string  `json:"deadline"`
	EligibilityCriteria string   `json:"eligibility_criteria"`
	ApplicationURL      string   `json:"application_url"`
	LastUpdated         string   `json:"last_updated"`
	IsActive            bool     `json:"is_active"`
	Assignee            string   `json:"assignee"`
}

func newRESTRow(r RemoteRow) restRow {
	row := restRow{
		GrantID:             r.GrantID,
		SourceID:            r.SourceID,
		CrawledDate:         r.CrawledDate,
		Title:               r.Title,
		Description:         r.Description,
		FundingAgency:       r.FundingAgency,
		EligibilityCriteria: r.EligibilityCriteria,
		ApplicationURL:      r.ApplicationURL,
		LastUpdated:         r.LastUpdated,
		IsActive:            r.IsActive,
		Assignee:            r.Assignee,
	}
	if r.Amount.Valid {
		v := r.Amount.Float64
		row.Amount = &v
	}
	if r.Deadline.Valid {
		d := r.Deadline.Time.Format(model.DateLayout)
		row.Deadline = &d
	}
	return row
}

// RESTSink upserts grants through a Supabase (PostgREST) table endpoint.
type RESTSink struct {
	client *resty.Client
	table  string
	log    *zap.Logger
}

// NewRESTSink targets {baseURL}/rest/v1/{table}, authenticating with key as
// both the apikey header and the bearer token.
func NewRESTSink(baseURL, key, table string) (*RESTSink, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, eris.Errorf("sink: rest url must be http(s)://host, got %q", baseURL)
	}
	if table == "" {
		return nil, eris.New("sink: rest table is required")
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/") + "/rest/v1")
	client.SetTimeout(restTimeout)
	client.SetHeader("Content-Type", "application/json")
	if key != "" {
		client.SetHeader("apikey", key)
		client.SetAuthToken(key)
	}

	return &RESTSink{
		client: client,
		table:  table,
		log:    zap.L().With(zap.String("component", "sink.rest"), zap.String("table", table)),
	}, nil
}

// SetLogger replaces the sink's logger.
func (s *RESTSink) SetLogger(log *zap.Logger) {
	s.log = log.With(zap.String("component", "sink.rest"), zap.String("table", s.table))
}

// Upsert posts every grant in one request, merging on grant_id.
func (s *RESTSink) Upsert(ctx context.Context, grants []model.Grant) (int64, error) {
	rows := normalizeAll(grants)
	if len(rows) == 0 {
		return 0, nil
	}
	body := make([]restRow, len(rows))
	for i, r := range rows {
		body[i] = newRESTRow(r)
	}

	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("on_conflict", db.GrantKey).
		SetHeader("Prefer", "resolution=merge-duplicates,return=minimal").
		SetBody(body).
		Post("/" + url.PathEscape(s.table))
	if err != nil {
		return 0, eris.Wrapf(err, "sink: rest upsert %d grants", len(rows))
	}
	if res.IsError() {
		msg := res.String()
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return 0, eris.Errorf("sink: rest upsert %d grants: status %d: %s", len(rows), res.StatusCode(), msg)
	}

	s.log.Info("upserted grants", zap.Int("rows", len(rows)), zap.Int("status", res.StatusCode()))
	return int64(len(rows)), nil
}

// Migrate reports that the table must exist already; the REST API cannot
// create tables.
func (s *RESTSink) Migrate(_ context.Context) error {
	return eris.Errorf("sink: rest endpoint cannot create tables; create %q in the Supabase SQL editor or use a postgres connection string", s.table)
}

// Close is a no-op.
func (s *RESTSink) Close() {}
