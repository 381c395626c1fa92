package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var spaceRun = regexp.MustCompile(`[ \t\r\f\v]+`)

// Normalize applies NFKC (turning non-breaking spaces into plain spaces) and trims.
func Normalize(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// CollapseSpace normalizes s and squeezes horizontal whitespace runs to one space.
// Newlines are kept so bulleted text stays on separate lines.
func CollapseSpace(s string) string {
	s = spaceRun.ReplaceAllString(Normalize(s), " ")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Bullets renders a heading line followed by "• item" lines.
func Bullets(heading string, items []string) string {
	var b strings.Builder
	if heading != "" {
		b.WriteString(heading)
		b.WriteString("\n")
	}
	for _, it := range items {
		b.WriteString("• ")
		b.WriteString(it)
		b.WriteString("\n")
	}
	return b.String()
}
