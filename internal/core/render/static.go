package render

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"golang.org/x/net/html"
)

// Static renders markup without a browser. Scripts are not executed, so
// it only suits documents whose text is present in the markup itself.
type Static struct{}

func NewStatic() *Static { return &Static{} }

func (s *Static) Render(ctx context.Context, markup string) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, errors.Wrap(err, "parse markup")
	}
	var nodes []Node
	doc.Find("body *").Each(func(_ int, sel *goquery.Selection) {
		xpath := xpathOf(sel.Get(0))
		if xpath == "" {
			return
		}
		nodes = append(nodes, Node{NodeID: labelStudioPath(xpath), Text: sel.Text()})
	})
	return nodes, nil
}

// xpathOf mirrors the script run by the Playwright renderer: an element
// with an id is anchored on it, anything else is addressed by its
// position among same-tag siblings.
func xpathOf(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == "id" && a.Val != "" {
			return `//*[@id="` + a.Val + `"]`
		}
	}
	if n.Data == "body" {
		return bodyXPath
	}
	if n.Parent == nil {
		return ""
	}
	ix := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && sib.Data == n.Data {
			ix++
		}
	}
	parent := xpathOf(n.Parent)
	if parent == "" {
		return ""
	}
	return parent + "/" + n.Data + "[" + strconv.Itoa(ix) + "]"
}
