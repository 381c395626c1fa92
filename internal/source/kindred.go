package source

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-scraper/internal/extract"
	"github.com/sells-group/grant-scraper/internal/fetcher"
	"github.com/sells-group/grant-scraper/internal/model"
)

// DefaultKindredURL is the Kindred Cares Grant page.
const DefaultKindredURL = "https://www.kindredfoundation.ca/community-support/kindred-cares-grant"

const (
	kindredTitle = "Kindred Cares Grant"
	kindredIntro = "In 2021, Kindred Foundation established the Kindred Cares Grant to:"

	kindredDefaultDescription = "The Kindred Cares Grant provides funding for programs, projects, operations and research in the area of hospice, palliative, and end-of-life care for children and adults with life-limiting conditions and their families."
)

var (
	kindredIntroRe = regexp.MustCompile(regexp.QuoteMeta(kindredIntro))
	bulletLine     = regexp.MustCompile(`[•■▪◦][ \t]+([^\n]+)`)

	opensDated         = regexp.MustCompile(`([A-Za-z]+ \d{1,2}, \d{4}):\s*Application window opens`)
	closesDated        = regexp.MustCompile(`([A-Za-z]+ \d{1,2}, \d{4})(?:.*?):\s*Application window closes`)
	opensYearless      = regexp.MustCompile(`([A-Za-z]+ \d{1,2})(?:\s+at\s+.*?)?:\s*Application window opens`)
	closesYearless     = regexp.MustCompile(`([A-Za-z]+ \d{1,2})(?:\s+at\s+.*?)?:\s*Application window closes`)
	closesAtTime       = regexp.MustCompile(`([A-Za-z]+ \d{1,2}, \d{4})\s*at\s*\d+(?:am|pm|AM|PM)\s*[A-Z]+\s*:\s*Application window closes`)
	windowOpensOnPage  = regexp.MustCompile(`[Aa]pplication\s+window\s+opens[:\s]*([A-Za-z]+ \d{1,2},? \d{4})`)
	windowClosesOnPage = regexp.MustCompile(`[Aa]pplication\s+window\s+closes[:\s]*([A-Za-z]+ \d{1,2},? \d{4})`)

	kindredPerGrant = []*regexp.Regexp{
		regexp.MustCompile(`(?i)maximum of \$(\d{1,3}(?:,\d{3})*) per grant`),
		regexp.MustCompile(`(?i)up to \$(\d{1,3}(?:,\d{3})*) per grant`),
		regexp.MustCompile(`(?i)grants? of \$(\d{1,3}(?:,\d{3})*)`),
	}

	eligibilityStart = regexp.MustCompile(`Eligibility|Who can apply`)
	nextLabel        = regexp.MustCompile(`\n\s*\n\s*\w+:`)

	yearInTitle = regexp.MustCompile(`\b(20\d{2})\b`)
	closedWord  = regexp.MustCompile(`\bCLOSED\b`)
)

// Dates is the application window. A zero time means the date was not found.
type Dates struct {
	Open  time.Time
	Close time.Time
}

// Kindred scrapes the single Kindred Cares Grant page.
type Kindred struct {
	clock
	logging
	url string
}

// NewKindred creates the Kindred extractor. An empty pageURL uses DefaultKindredURL.
func NewKindred(pageURL string) *Kindred {
	if pageURL == "" {
		pageURL = DefaultKindredURL
	}
	return &Kindred{url: pageURL}
}

func (k *Kindred) Key() string              { return "kindred" }
func (k *Kindred) Descriptor() model.Source { return descriptor(model.SourceKindred) }

// Scrape fetches the grant page and returns its single grant.
func (k *Kindred) Scrape(ctx context.Context, f fetcher.Fetcher) ([]model.Grant, error) {
	log := k.logger().With(zap.String("component", "source.kindred"))

	doc, err := fetchDocument(ctx, f, k.url)
	if err != nil {
		return nil, eris.Wrap(err, "kindred: fetch page")
	}

	seq := model.NewIDSequence(k.Descriptor())
	g := k.Parse(doc, seq.Next())

	log.Info("scraped grant",
		zap.String("title", g.Title),
		zap.Int("grant_id", g.GrantID),
		zap.Bool("is_active", g.IsActive),
	)
	return []model.Grant{g}, nil
}

// Parse builds the grant record from the page.
func (k *Kindred) Parse(doc *goquery.Document, id int) model.Grant {
	log := k.logger().With(zap.String("component", "source.kindred"))
	now := k.Now()
	root := doc.Selection
	pageText := extract.PageText(root)

	g := model.NewGrant(k.Descriptor(), id, k.url, now)

	g.Title = extract.Normalize(doc.Find("h1").First().Text())
	if g.Title == "" {
		g.Title = kindredTitle
	}

	g.Description = kindredDescription(root, pageText)
	if g.Description == "" {
		log.Warn("description not found on page, using default text")
		g.Description = kindredDefaultDescription
		g.Flag(model.FieldDescription)
	}

	dates := KindredDates(root, pageText, now)
	if !dates.Close.IsZero() {
		g.SetDeadline(dates.Close.Format(model.DateLayout))
	}

	perGrant, total := kindredAmounts(root, pageText)
	if perGrant > 0 {
		g.SetAmount(perGrant)
	}
	if total > 0 {
		log.Info("total program funding", zap.Float64("total_funding", total))
	}

	g.EligibilityCriteria = kindredEligibility(root, pageText)
	g.IsActive = decideActive(log, g.Title, pageText, dates, now)
	return g
}

func kindredDescription(root *goquery.Selection, pageText string) string {
	if el := extract.FindText(root, kindredIntroRe); el != nil {
		para := el.Closest("p")
		if para.Length() == 0 {
			para = el
		}
		var items []string
		para.Parent().Find("ul").Find("li").Each(func(_ int, li *goquery.Selection) {
			if t := extract.Normalize(li.Text()); t != "" {
				items = append(items, t)
			}
		})
		if len(items) > 0 {
			return strings.TrimSpace(extract.Bullets(kindredIntro, items))
		}
	}

	text := extract.Normalize(pageText)
	idx := strings.Index(text, kindredIntro)
	if idx < 0 {
		return ""
	}
	after := text[idx+len(kindredIntro):]
	var items []string
	for _, m := range bulletLine.FindAllStringSubmatch(after, 2) {
		if t := strings.TrimSpace(m[1]); t != "" {
			items = append(items, t)
		}
	}
	if len(items) == 0 {
		return ""
	}
	return strings.TrimSpace(extract.Bullets(kindredIntro, items))
}

// KindredDates reads the application window from the "Important Dates"
// section, falling back to year-less dates and then to the whole page.
func KindredDates(root *goquery.Selection, pageText string, now time.Time) Dates {
	var d Dates

	if text, ok := extract.Section(root, "Important Dates", extract.SectionOptions{}); ok {
		d.Open = matchMDY(opensDated, text)
		d.Close = matchMDY(closesDated, text)

		if d.Open.IsZero() && d.Close.IsZero() {
			d.Open = matchYearless(opensYearless, text, now)
			d.Close = matchYearless(closesYearless, text, now)
		}
		if d.Close.IsZero() {
			d.Close = matchMDY(closesAtTime, text)
		}
	}

	if d.Open.IsZero() && d.Close.IsZero() {
		d.Open = matchLooseDate(windowOpensOnPage, pageText)
		d.Close = matchLooseDate(windowClosesOnPage, pageText)
	}
	return d
}

func matchMDY(re *regexp.Regexp, text string) time.Time {
	if m := re.FindStringSubmatch(text); m != nil {
		if t, ok := extract.ParseMonthDayYear(m[1]); ok {
			return t
		}
	}
	return time.Time{}
}

func matchYearless(re *regexp.Regexp, text string, now time.Time) time.Time {
	if m := re.FindStringSubmatch(text); m != nil {
		if t, ok := extract.ResolveYearless(m[1], now); ok {
			return t
		}
	}
	return time.Time{}
}

func matchLooseDate(re *regexp.Regexp, text string) time.Time {
	m := re.FindStringSubmatch(extract.Normalize(text))
	if m == nil {
		return time.Time{}
	}
	iso, ok := extract.ParseDate(m[1])
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(extract.DateLayout, iso)
	if err != nil {
		return time.Time{}
	}
	return t
}

// kindredAmounts returns the per-grant maximum and the total program funding.
// Zero means not found.
func kindredAmounts(root *goquery.Selection, pageText string) (perGrant, total float64) {
	if text, ok := extract.Section(root, "Overall Information", extract.SectionOptions{}); ok {
		perGrant, _ = extract.ParsePerGrantAmount(text)
		total, _ = extract.ParseTotalFunding(text)
	}
	if perGrant == 0 {
		perGrant, _ = extract.FirstAmount(pageText, kindredPerGrant...)
	}
	return perGrant, total
}

func kindredEligibility(root *goquery.Selection, pageText string) string {
	text, _ := extract.Section(root, "Eligibility", extract.SectionOptions{
		Blocks: []string{"p", "ul", "ol", "li"},
	})
	if text != "" {
		return text
	}

	loc := eligibilityStart.FindStringIndex(pageText)
	if loc == nil {
		return ""
	}
	rest := pageText[loc[1]:]
	if end := nextLabel.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return extract.CollapseSpace(rest)
}

// DecideActive reports whether the grant is open on now's date. Signals are
// checked in order and the first that applies wins: "closed" in the title, a
// past year in the title, the word CLOSED on the page, then the application
// window. With no usable signal the grant is treated as inactive.
func DecideActive(title, pageText string, d Dates, now time.Time) bool {
	return decideActive(zap.NewNop(), title, pageText, d, now)
}

func decideActive(log *zap.Logger, title, pageText string, d Dates, now time.Time) bool {
	today := extract.StartOfDay(now)

	if extract.ContainsFold(title, "closed") {
		log.Info("grant inactive: title says closed")
		return false
	}
	if m := yearInTitle.FindStringSubmatch(title); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil && year < now.Year() {
			log.Info("grant inactive: title references past year", zap.Int("year", year))
			return false
		}
	}
	if closedWord.MatchString(pageText) {
		log.Info("grant inactive: CLOSED found on page")
		return false
	}

	switch {
	case !d.Open.IsZero() && !d.Close.IsZero():
		if today.Before(d.Open) {
			log.Info("grant inactive: before application window", zap.Time("open", d.Open))
			return false
		}
		if today.After(d.Close) {
			log.Info("grant inactive: after application window", zap.Time("close", d.Close))
			return false
		}
		log.Info("grant active: within application window")
		return true
	case !d.Close.IsZero() && today.After(d.Close):
		log.Info("grant inactive: after application close", zap.Time("close", d.Close))
		return false
	}

	log.Info("grant status undetermined, marking inactive")
	return false
}
