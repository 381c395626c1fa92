package source

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-scraper/internal/extract"
	"github.com/sells-group/grant-scraper/internal/fetcher"
	"github.com/sells-group/grant-scraper/internal/model"
)

// Live Ontario Trillium Foundation grant pages.
const (
	DefaultOTFSeedURL = "https://otf.ca/our-grants/community-investments-grants/seed-grant"
	DefaultOTFGrowURL = "https://otf.ca/our-grants/community-investments-grants/grow-grant"
)

// GrantType is one OTF grant stream and where to find it.
type GrantType struct {
	Name    string // also the grant title
	URL     string
	Heading string // phrase of the heading that introduces the description

	// FallbackMinimum is used when the page has no "Minimum $N" figure.
	FallbackMinimum float64
}

// OTFGrantTypes returns the Seed and Grow streams in scrape order. Empty URLs
// use the live pages.
func OTFGrantTypes(seedURL, growURL string) []GrantType {
	if seedURL == "" {
		seedURL = DefaultOTFSeedURL
	}
	if growURL == "" {
		growURL = DefaultOTFGrowURL
	}
	return []GrantType{
		{
			Name:            "Seed Grant",
			URL:             seedURL,
			Heading:         "Build capacity and prepare for future programming",
			FallbackMinimum: 10000,
		},
		{
			Name:            "Grow Grant",
			URL:             growURL,
			Heading:         "Scale up a program and service to benefit your community",
			FallbackMinimum: 50000,
		},
	}
}

const (
	otfInterested = "Interested applicants must:"
	otfOrgHeading = "Applicants must be one of the following:"

	allHeadings = "h1, h2, h3, h4, h5, h6"
)

// Phrases that identify the eligibility bullets on the page.
var otfKeyPhrases = []string{
	"deliver programs and services in one of four sectors: sports and recreation, arts and culture, environment, and human and social services.",
	"have a primary purpose, presence, and reputation for delivering community-based programs",
	"demonstrate the financial and organizational capacity to manage OTF funds",
	"demonstrate that it is the appropriate organization or community to carry out the proposed project",
}

var otfFallbackBullets = []string{
	"deliver programs and services in one of four sectors: sports and recreation, arts and culture, environment, and human and social services.",
	"have a primary purpose, presence, and reputation for delivering community-based programs and services with direct community benefit in one of OTF's 16 geographic catchment areas in Ontario.",
	"demonstrate the financial and organizational capacity to manage OTF funds, and deliver and complete the proposed project as per OTF's Financial Need and Health of Applicants policy.",
	"demonstrate that it is the appropriate organization or community to carry out the proposed project.",
}

var otfOrgTypes = []string{
	"Non-profit organizations",
	"Indigenous communities",
	"Municipalities, libraries and local services boards",
	"Collaboratives",
	"Religious entities",
}

var otfClosedIndicators = []string{"deadline has passed", "closed", "not accepting applications"}

var (
	amountAwarded = regexp.MustCompile(`(?i)AMOUNT AWARDED`)
	nextDeadline  = regexp.MustCompile(`(?i)NEXT DEADLINE`)
	periodFrom    = regexp.MustCompile(`(?i)grant application period is from`)
	periodStart   = regexp.MustCompile(`from\s+([A-Za-z]+ \d{1,2}, \d{4})`)
	mdyOnPage     = regexp.MustCompile(`[A-Za-z]+ \d{1,2}, \d{4}`)
)

// deadlineHolders are the tags that may carry the "NEXT DEADLINE" label.
var deadlineHolders = []string{"h3", "h4", "h5", "h6", "div", "span"}

// amountLevels is how far above the "AMOUNT AWARDED" text the amount block is searched.
const amountLevels = 5

// OTF scrapes the Ontario Trillium Foundation grant stream pages.
type OTF struct {
	clock
	logging
	types []GrantType
}

// NewOTF creates the OTF extractor for the given grant types.
func NewOTF(types []GrantType) *OTF {
	return &OTF{types: types}
}

func (o *OTF) Key() string              { return "otf" }
func (o *OTF) Descriptor() model.Source { return descriptor(model.SourceOTF) }

// Scrape fetches each grant type's page. A type whose page cannot be fetched
// is skipped; an error is returned only when no page could be fetched.
func (o *OTF) Scrape(ctx context.Context, f fetcher.Fetcher) ([]model.Grant, error) {
	log := o.logger().With(zap.String("component", "source.otf"))

	seq := model.NewIDSequence(o.Descriptor())
	var (
		grants []model.Grant
		errs   []error
	)
	for _, gt := range o.types {
		if err := ctx.Err(); err != nil {
			return grants, eris.Wrap(err, "otf: scrape interrupted")
		}

		log.Info("processing grant type", zap.String("type", gt.Name), zap.String("url", gt.URL))
		doc, err := fetchDocument(ctx, f, gt.URL)
		if err != nil {
			log.Error("failed to fetch grant page", zap.String("type", gt.Name), zap.Error(err))
			errs = append(errs, eris.Wrapf(err, "otf: fetch %s", gt.Name))
			continue
		}

		g := o.Parse(doc, gt, seq.Next())
		log.Info("parsed grant", zap.String("title", g.Title), zap.Int("grant_id", g.GrantID))
		grants = append(grants, g)
	}

	if len(grants) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	log.Info("otf scrape complete", zap.Int("grants", len(grants)))
	return grants, nil
}

// Parse builds the grant record for one grant type page.
func (o *OTF) Parse(doc *goquery.Document, gt GrantType, id int) model.Grant {
	log := o.logger().With(zap.String("component", "source.otf"), zap.String("type", gt.Name))
	now := o.Now()
	root := doc.Selection
	pageText := extract.PageText(root)

	g := model.NewGrant(o.Descriptor(), id, gt.URL, now)
	g.Title = gt.Name
	g.Description = otfDescription(root, gt.Heading)

	if v, ok := otfMinimumAmount(root); ok {
		g.SetAmount(v)
	} else {
		log.Warn("minimum amount not found, using fallback", zap.Float64("amount", gt.FallbackMinimum))
		g.SetAmount(gt.FallbackMinimum)
		g.Flag(model.FieldAmount)
	}

	g.SetDeadline(otfDeadline(root, pageText))

	elig, fallback := otfEligibility(root)
	g.EligibilityCriteria = elig
	if fallback {
		log.Warn("eligibility not found on page, using known criteria")
		g.Flag(model.FieldEligibility)
	}

	g.IsActive = otfActive(root, pageText, now)
	return g
}

func otfDescription(root *goquery.Selection, heading string) string {
	if heading != "" {
		h := root.Find(allHeadings).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return extract.ContainsFold(extract.Normalize(s.Text()), heading)
		}).First()
		if h.Length() > 0 {
			if p := extract.NextElement(root, h, "p"); p != nil {
				if text := extract.Normalize(p.Text()); text != "" {
					return text
				}
			}
		}
	}

	var desc string
	root.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if text := extract.Normalize(p.Text()); len(text) > 50 {
			desc = text
			return false
		}
		return true
	})
	return desc
}

func otfMinimumAmount(root *goquery.Selection) (float64, bool) {
	el := extract.FindText(root, amountAwarded)
	if el == nil {
		return 0, false
	}
	for range amountLevels - 1 {
		parent := el.Parent()
		if parent.Length() == 0 {
			break
		}
		el = parent
	}
	return extract.ParseMinimumAmount(extract.PageText(el))
}

func otfDeadline(root *goquery.Selection, pageText string) string {
	if label := extract.FindText(root, nextDeadline); label != nil && slices.Contains(deadlineHolders, goquery.NodeName(label)) {
		text := firstNonEmptySibling(label)
		if text == "" {
			text = firstNonEmptySibling(label.Parent())
		}
		if m := mdyOnPage.FindString(text); m != "" {
			if t, ok := extract.ParseMonthDayYear(m); ok {
				return t.Format(model.DateLayout)
			}
		}
	}

	if m := mdyOnPage.FindString(extract.Normalize(pageText)); m != "" {
		if t, ok := extract.ParseMonthDayYear(m); ok {
			return t.Format(model.DateLayout)
		}
	}
	return ""
}

func firstNonEmptySibling(s *goquery.Selection) string {
	for sib := s.Next(); sib.Length() > 0; sib = sib.Next() {
		if text := extract.Normalize(sib.Text()); text != "" {
			return text
		}
	}
	return ""
}

// otfEligibility renders the applicant requirements and organization types.
// fallback reports whether either list came from the built-in text.
func otfEligibility(root *goquery.Selection) (text string, fallback bool) {
	var bullets []string
	root.Find("li").Each(func(_ int, li *goquery.Selection) {
		t := extract.Normalize(li.Text())
		for _, phrase := range otfKeyPhrases {
			if extract.ContainsFold(t, phrase) {
				bullets = append(bullets, t)
				return
			}
		}
	})
	if len(bullets) == 0 {
		bullets = otfFallbackBullets
		fallback = true
	}

	var orgs []string
	for _, sel := range []string{"h1", "h2", "h3", "h4", "h5", "h6", "strong", "b"} {
		root.Find(sel).Each(func(_ int, h *goquery.Selection) {
			t := extract.Normalize(h.Text())
			for _, org := range otfOrgTypes {
				if extract.ContainsFold(t, org) {
					if !slices.Contains(orgs, org) {
						orgs = append(orgs, org)
					}
					return
				}
			}
		})
	}
	if len(orgs) == 0 {
		orgs = otfOrgTypes
		fallback = true
	}

	return extract.Bullets(otfInterested, bullets) + "\n" + extract.Bullets(otfOrgHeading, orgs), fallback
}

// otfActive is true once the stated application period has started, unless
// the page says applications are closed.
func otfActive(root *goquery.Selection, pageText string, now time.Time) bool {
	active := false
	if el := extract.FindText(root, periodFrom); el != nil {
		if m := periodStart.FindStringSubmatch(extract.Normalize(el.Text())); m != nil {
			if start, ok := extract.ParseMonthDayYear(m[1]); ok {
				active = !extract.StartOfDay(now).Before(start)
			}
		}
	}

	lower := strings.ToLower(pageText)
	for _, indicator := range otfClosedIndicators {
		if strings.Contains(lower, indicator) {
			return false
		}
	}
	return active
}
