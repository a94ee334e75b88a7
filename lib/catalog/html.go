package catalog

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
)

// StripHTML flattens an HTML fragment to its text content. Catalog
// descriptions arrive as markup, and the keyword filter and notification
// text both want plain words.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return compactWhitespace(fragment)
	}
	doc, err := htmlquery.Parse(strings.NewReader(fragment))
	if err != nil {
		return compactWhitespace(fragment)
	}
	return SelectText(doc, "//body")
}

func SelectText(n *html.Node, xpath string) string {
	node := htmlquery.FindOne(n, xpath)
	return digForText(node)
}

func digForText(n *html.Node) string {
	if n == nil {
		return ""
	}
	buf := new(bytes.Buffer)
	dig(n, buf)
	return compactWhitespace(buf.String())
}

func dig(n *html.Node, buf *bytes.Buffer) {
	if n == nil {
		return
	}
	switch {
	case n.Type == html.TextNode:
		buf.WriteString(n.Data)
	case n.Type == html.ElementNode && isBlock(n.Data):
		buf.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		dig(c, buf)
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "br", "li", "div", "ul", "ol", "tr", "h1", "h2", "h3", "h4":
		return true
	}
	return false
}

func compactWhitespace(s string) string {
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.Trim(s, " ")
	return s
}
