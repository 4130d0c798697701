package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// BlankURL is reported before the first navigation
const BlankURL = "about:blank"

// Page is a loaded document
type Page struct {
	url    *url.URL
	status int
	doc    *goquery.Document
}

func newPage(resp *response) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	doc.Url = resp.URL
	return &Page{url: resp.URL, status: resp.Status, doc: doc}, nil
}

// URL returns the final URL after redirects
func (p *Page) URL() string {
	return p.url.String()
}

// Status returns the HTTP status of the load
func (p *Page) Status() int {
	return p.status
}

// Title returns the document title with whitespace collapsed
func (p *Page) Title() string {
	return collapse(p.doc.Find("title").First().Text())
}

// HTML serializes the current DOM, including in-page modifications
func (p *Page) HTML() (string, error) {
	return goquery.OuterHtml(p.doc.Selection)
}

// SanitizedHTML serializes the DOM through the user-generated-content policy
func (p *Page) SanitizedHTML() (string, error) {
	raw, err := p.HTML()
	if err != nil {
		return "", err
	}
	return bluemonday.UGCPolicy().Sanitize(raw), nil
}

// query resolves a selector against the document in document order
func (p *Page) query(selector string) (*goquery.Selection, error) {
	sel := strings.TrimSpace(selector)
	if sel == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrInvalidSelector)
	}

	if expr, ok := xpathExpr(sel); ok {
		root := p.doc.Get(0)
		nodes, err := htmlquery.QueryAll(root, expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, selector, err)
		}
		elements := nodes[:0]
		for _, n := range nodes {
			if n.Type == html.ElementNode {
				elements = append(elements, n)
			}
		}
		return p.doc.FindNodes(elements...), nil
	}

	if _, err := cascadia.ParseGroup(sel); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, selector, err)
	}
	return p.doc.Find(sel), nil
}

// first returns the first matching element or ErrElementNotFound
func (p *Page) first(selector string) (*goquery.Selection, error) {
	matches, err := p.query(selector)
	if err != nil {
		return nil, err
	}
	if matches.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return matches.First(), nil
}

// resolve makes ref absolute against the page URL
func (p *Page) resolve(ref string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	base := p.url
	if b, ok := p.doc.Find("base[href]").First().Attr("href"); ok {
		if bu, err := url.Parse(b); err == nil {
			base = p.url.ResolveReference(bu)
		}
	}
	return base.ResolveReference(parsed), nil
}

func xpathExpr(selector string) (string, bool) {
	switch {
	case strings.HasPrefix(selector, "xpath="):
		return strings.TrimPrefix(selector, "xpath="), true
	case strings.HasPrefix(selector, "/"), strings.HasPrefix(selector, "("):
		return selector, true
	}
	return "", false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var skippedText = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true,
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "option": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// visibleText renders the text a user would see inside n
func visibleText(n *html.Node) string {
	if isHidden(n) {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skippedText[n.Data] || hiddenSelf(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteByte(' ')
		}
	}
	walk(n)
	return collapse(b.String())
}

// isHidden reports whether n or an ancestor is hidden from rendering
func isHidden(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && hiddenSelf(cur) {
			return true
		}
	}
	return false
}

func hiddenSelf(n *html.Node) bool {
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if n.Data == "input" {
		if t, _ := attr(n, "type"); strings.EqualFold(t, "hidden") {
			return true
		}
	}
	style, ok := attr(n, "style")
	if !ok {
		return false
	}
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}
