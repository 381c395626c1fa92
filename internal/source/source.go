// Package source implements the per-site grant extractors. Each extractor
// fetches its pages through a fetcher.Fetcher, pulls fields out of the HTML
// with the extract helpers, and returns normalized model.Grant records with
// ids taken from a fresh model.IDSequence.
package source

import (
	"bytes"
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-scraper/internal/fetcher"
	"github.com/sells-group/grant-scraper/internal/model"
)

// Source defines the interface each grant site extractor implements.
type Source interface {
	// Key returns the unique identifier used on the CLI and in config (e.g., "phac").
	Key() string

	// Descriptor returns the source's id, agency and grant_id base.
	Descriptor() model.Source

	// Scrape fetches the site and returns its grants. Problems with single
	// pages or fields degrade the record; an error means the source's entry
	// page could not be fetched or parsed.
	Scrape(ctx context.Context, f fetcher.Fetcher) ([]model.Grant, error)
}

// descriptor returns the model descriptor for a built-in source id.
func descriptor(id model.SourceID) model.Source {
	src, err := model.LookupSource(id)
	if err != nil {
		panic(err)
	}
	return src
}

// fetchDocument fetches url and parses it as HTML.
func fetchDocument(ctx context.Context, f fetcher.Fetcher, url string) (*goquery.Document, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "source: parse %s", url)
	}
	return doc, nil
}

// clock is embedded by extractors so tests can pin "now".
type clock struct {
	now func() time.Time
}

func (c clock) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// SetClock replaces the extractor's time source.
func (c *clock) SetClock(now func() time.Time) {
	c.now = now
}

// logging is embedded by extractors. A nil logger falls back to zap.L().
type logging struct {
	log *zap.Logger
}

func (l logging) logger() *zap.Logger {
	if l.log == nil {
		return zap.L()
	}
	return l.log
}

// SetLogger replaces the extractor's logger.
func (l *logging) SetLogger(log *zap.Logger) {
	l.log = log
}
