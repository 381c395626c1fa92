package extract

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultHeadings is the selector for headings that open and close a section.
const DefaultHeadings = "h1, h2, h3, h4"

// SectionOptions tunes how a section's text is gathered.
type SectionOptions struct {
	// Headings selects the elements that start and end sections. Default: DefaultHeadings.
	Headings string

	// Blocks restricts which sibling tags contribute text. Empty means all.
	Blocks []string

	// Separator joins the text of contributing siblings. Default: "\n".
	Separator string
}

func (o SectionOptions) withDefaults() SectionOptions {
	if o.Headings == "" {
		o.Headings = DefaultHeadings
	}
	if o.Separator == "" {
		o.Separator = "\n"
	}
	return o
}

// Sections maps each label to the text following the heading that contains it
// (case-insensitive), up to the next heading. A heading may satisfy several
// labels. When more than one heading matches a label, the last non-empty
// section wins. Labels with no matching heading are absent from the result.
func Sections(root *goquery.Selection, labels []string, opts SectionOptions) map[string]string {
	opts = opts.withDefaults()
	out := make(map[string]string, len(labels))

	root.Find(opts.Headings).Each(func(_ int, h *goquery.Selection) {
		heading := Normalize(h.Text())
		for _, label := range labels {
			if !ContainsFold(heading, label) {
				continue
			}
			text := FollowingText(h, opts)
			if prev, seen := out[label]; !seen || text != "" || prev == "" {
				out[label] = text
			}
		}
	})
	return out
}

// Section returns the text under the first heading containing label (case-sensitive,
// matching how single-section pages title their blocks).
func Section(root *goquery.Selection, label string, opts SectionOptions) (string, bool) {
	opts = opts.withDefaults()
	h := FindHeading(root, label, opts.Headings)
	if h == nil {
		return "", false
	}
	return FollowingText(h, opts), true
}

// FindHeading returns the first element matching selector whose text contains needle.
func FindHeading(root *goquery.Selection, needle, selector string) *goquery.Selection {
	if selector == "" {
		selector = DefaultHeadings
	}
	h := root.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(Normalize(s.Text()), needle)
	}).First()
	if h.Length() == 0 {
		return nil
	}
	return h
}

// FollowingText concatenates the text of h's following siblings until the next heading.
func FollowingText(h *goquery.Selection, opts SectionOptions) string {
	opts = opts.withDefaults()
	var parts []string
	for s := h.Next(); s.Length() > 0; s = s.Next() {
		if s.Is(opts.Headings) {
			break
		}
		if len(opts.Blocks) > 0 && !slices.Contains(opts.Blocks, goquery.NodeName(s)) {
			continue
		}
		if text := Normalize(s.Text()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, opts.Separator)
}
