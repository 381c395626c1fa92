package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-scraper/internal/extract"
	"github.com/sells-group/grant-scraper/internal/fetcher"
	"github.com/sells-group/grant-scraper/internal/model"
)

// DefaultPHACURL is the Public Health Agency of Canada funding listing.
const DefaultPHACURL = "https://www.canada.ca/en/public-health/services/funding-opportunities/grant-contribution-funding-opportunities.html"

// Section labels looked up on PHAC detail pages.
const (
	phacOverview   = "Overview"
	phacObjectives = "Objectives"
	phacFunding    = "Funding"
	phacDuration   = "Duration"
	phacApplicants = "Applicants"
	phacHowToApply = "How to apply"
)

var phacLabels = []string{phacOverview, phacObjectives, phacFunding, phacDuration, phacApplicants, phacHowToApply}

var phacBlocks = []string{"p", "li", "ul", "ol"}

// Opportunity is one row of the PHAC listing table.
type Opportunity struct {
	Title  string
	URL    string
	Status string
}

// PHAC scrapes the listing table of open funding opportunities and then
// each opportunity's detail page.
type PHAC struct {
	clock
	logging
	listURL string
}

// NewPHAC creates the PHAC extractor. An empty listURL uses DefaultPHACURL.
func NewPHAC(listURL string) *PHAC {
	if listURL == "" {
		listURL = DefaultPHACURL
	}
	return &PHAC{listURL: listURL}
}

func (p *PHAC) Key() string              { return "phac" }
func (p *PHAC) Descriptor() model.Source { return descriptor(model.SourcePHAC) }

// Scrape fetches the listing and every open opportunity's detail page.
// Detail pages that cannot be fetched are skipped without consuming an id.
func (p *PHAC) Scrape(ctx context.Context, f fetcher.Fetcher) ([]model.Grant, error) {
	log := p.logger().With(zap.String("component", "source.phac"))
	src := p.Descriptor()

	doc, err := fetchDocument(ctx, f, p.listURL)
	if err != nil {
		return nil, eris.Wrap(err, "phac: fetch listing")
	}

	opps, err := p.Listings(doc)
	if err != nil {
		return nil, err
	}
	log.Info("found open funding opportunities", zap.Int("count", len(opps)))

	seq := model.NewIDSequence(src)
	var grants []model.Grant
	for i, opp := range opps {
		if err := ctx.Err(); err != nil {
			return grants, eris.Wrap(err, "phac: scrape interrupted")
		}

		log.Info("processing opportunity",
			zap.Int("n", i+1),
			zap.Int("of", len(opps)),
			zap.String("title", opp.Title),
		)

		detail, err := fetchDocument(ctx, f, opp.URL)
		if err != nil {
			log.Error("failed to fetch opportunity details",
				zap.String("title", opp.Title),
				zap.String("url", opp.URL),
				zap.Error(err),
			)
			continue
		}

		g := p.ParseDetail(detail, opp, seq.Next())
		log.Info("parsed grant", zap.String("title", g.Title), zap.Int("grant_id", g.GrantID))
		grants = append(grants, g)
	}

	log.Info("phac scrape complete", zap.Int("grants", len(grants)))
	return grants, nil
}

// Listings returns the open opportunities from the first table on the
// listing page, with links resolved against the listing URL. A page with no
// table yields no opportunities.
func (p *PHAC) Listings(doc *goquery.Document) ([]Opportunity, error) {
	base, err := url.Parse(p.listURL)
	if err != nil {
		return nil, eris.Wrapf(err, "phac: parse listing url %q", p.listURL)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		p.logger().Warn("no opportunities table found on the page",
			zap.String("component", "source.phac"),
			zap.String("url", p.listURL),
		)
		return nil, nil
	}

	var opps []Opportunity
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cols := row.Find("td")
		if i == 0 || cols.Length() < 2 {
			return
		}
		link := cols.First().Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		status := extract.Normalize(cols.Eq(1).Text())
		if !strings.EqualFold(status, "open") {
			return
		}
		opps = append(opps, Opportunity{
			Title:  extract.Normalize(link.Text()),
			URL:    base.ResolveReference(ref).String(),
			Status: status,
		})
	})
	return opps, nil
}

// ParseDetail builds a grant from an opportunity's detail page.
func (p *PHAC) ParseDetail(doc *goquery.Document, opp Opportunity, id int) model.Grant {
	g := model.NewGrant(p.Descriptor(), id, opp.URL, p.Now())
	g.Title = opp.Title
	g.IsActive = true

	h1 := doc.Find("h1").First()
	if t := extract.Normalize(h1.Text()); t != "" {
		g.Title = t
	}

	secs := extract.Sections(doc.Selection, phacLabels, extract.SectionOptions{Blocks: phacBlocks})

	desc := secs[phacOverview]
	if desc == "" && h1.Length() > 0 {
		if para := extract.NextElement(doc.Selection, h1, "p"); para != nil {
			desc = extract.Normalize(para.Text())
		}
	}
	g.Description = desc
	p.logger().Debug("sections not mapped to a grant field",
		zap.String("component", "source.phac"),
		zap.String("title", g.Title),
		zap.String("objectives", secs[phacObjectives]),
		zap.String("duration", secs[phacDuration]),
	)

	g.EligibilityCriteria = secs[phacApplicants]
	if v, ok := extract.ParseAmount(secs[phacFunding]); ok {
		g.SetAmount(v)
	}
	if d, ok := extract.ParseDeadline(secs[phacHowToApply]); ok {
		g.SetDeadline(d)
	}
	return g
}
