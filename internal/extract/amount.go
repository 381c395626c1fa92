package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	amountPhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)up to \$\s*(\d[\d,]*(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)maximum of \$\s*(\d[\d,]*(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)total of \$\s*(\d[\d,]*(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)awarded \$\s*(\d[\d,]*(?:\.\d+)?)`),
	}
	anyDollar   = regexp.MustCompile(`\$\s*(\d[\d,]*(?:\.\d+)?)`)
	wordDollars = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(?:dollars|CAD)`)

	perGrant     = regexp.MustCompile(`(?i)maximum of \$(\d{1,3}(?:,\d{3})*) per grant`)
	totalFunding = regexp.MustCompile(`(?i)\$(\d{1,3}(?:,\d{3})*) in total funding`)
	minimum      = regexp.MustCompile(`(?i)Minimum\s+\$?(\d[\d,]*)`)
)

// ParseNumber strips thousands separators and parses the rest as a float.
func ParseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FirstAmount returns the number captured by the first pattern that matches.
// Each pattern must have one capture group around the digits. A zero amount
// ("$0") counts as no amount and later patterns are not tried.
func FirstAmount(text string, patterns ...*regexp.Regexp) (float64, bool) {
	if text == "" {
		return 0, false
	}
	text = Normalize(text)
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := ParseNumber(m[1]); ok {
				return v, v != 0
			}
		}
	}
	return 0, false
}

// ParseAmount extracts a funding amount from prose: a specific phrasing
// ("up to", "maximum of", "total of", "awarded"), else any dollar figure,
// else "N dollars" or "N CAD".
func ParseAmount(text string) (float64, bool) {
	patterns := append(append([]*regexp.Regexp{}, amountPhrases...), anyDollar, wordDollars)
	return FirstAmount(text, patterns...)
}

// ParsePerGrantAmount matches "maximum of $N per grant".
func ParsePerGrantAmount(text string) (float64, bool) {
	return FirstAmount(text, perGrant)
}

// ParseTotalFunding matches "$N in total funding".
func ParseTotalFunding(text string) (float64, bool) {
	return FirstAmount(text, totalFunding)
}

// ParseMinimumAmount matches "Minimum $N"; the dollar sign is optional.
func ParseMinimumAmount(text string) (float64, bool) {
	return FirstAmount(text, minimum)
}
