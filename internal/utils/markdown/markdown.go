package markdown

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

func parse(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript, template").Each(func(_ int, s *goquery.Selection) { s.Remove() })
	return doc, nil
}

// PlainText returns the text nodes of markup, each trimmed, one per line.
// Nothing is rewritten, so any quote from it is also a quote from the
// rendered document.
func PlainText(markup string) string {
	doc, err := parse(markup)
	if err != nil {
		return ""
	}
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Find("body").Nodes {
		walk(n)
	}
	return strings.Join(lines, "\n")
}

// ConvertHTMLToMarkdown converts markup to markdown. Unlike a page
// scrape, no content is dropped as boilerplate: every sentence of the
// document may be an answer.
func ConvertHTMLToMarkdown(markup string) string {
	doc, err := parse(markup)
	if err != nil {
		return ""
	}
	body, err := doc.Find("body").Html()
	if err != nil {
		return ""
	}
	conv := md.NewConverter("", true, nil)
	out, err := conv.ConvertString(body)
	if err != nil {
		return ""
	}
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
