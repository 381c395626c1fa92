package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var skipText = map[string]bool{"script": true, "style": true, "noscript": true}

// FindText returns the element directly containing the first text node under
// root that matches re, or nil when none does. Script and style content is ignored.
func FindText(root *goquery.Selection, re *regexp.Regexp) *goquery.Selection {
	for _, n := range root.Nodes {
		found := findTextNode(n, re)
		if found == nil || found.Parent == nil {
			continue
		}
		if sel := root.FindNodes(found.Parent); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

func findTextNode(n *html.Node, re *regexp.Regexp) *html.Node {
	if n.Type == html.ElementNode && skipText[n.Data] {
		return nil
	}
	if n.Type == html.TextNode && re.MatchString(n.Data) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTextNode(c, re); found != nil {
			return found
		}
	}
	return nil
}

// NextElement returns the first element named tag that comes after from's
// first node in document order (its own descendants included), or nil.
// root must contain from.
func NextElement(root, from *goquery.Selection, tag string) *goquery.Selection {
	if from == nil || from.Length() == 0 {
		return nil
	}
	for n := nextInOrder(from.Nodes[0]); n != nil; n = nextInOrder(n) {
		if n.Type == html.ElementNode && n.Data == tag {
			if sel := root.FindNodes(n); sel.Length() > 0 {
				return sel
			}
			return nil
		}
	}
	return nil
}

// nextInOrder steps a pre-order traversal of the whole tree.
func nextInOrder(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

// PageText returns the document text with block boundaries kept as newlines.
func PageText(root *goquery.Selection) string {
	var b strings.Builder
	for _, n := range root.Nodes {
		writeText(&b, n)
	}
	return b.String()
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true, "section": true, "article": true, "header": true, "footer": true,
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if skipText[n.Data] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteString("\n")
	}
}
