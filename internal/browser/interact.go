package browser

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// clickedAttr counts clicks on elements that have no default action
const clickedAttr = "data-sandbox-clicked"

// action is the default behavior a click or submit triggers
type action struct {
	method string
	target *url.URL
	form   url.Values
}

var textInputTypes = map[string]bool{
	"": true, "text": true, "search": true, "email": true, "url": true, "tel": true,
	"password": true, "number": true, "date": true, "datetime-local": true,
	"month": true, "week": true, "time": true, "color": true, "range": true,
}

var booleanAttrs = map[string]bool{
	"checked": true, "disabled": true, "selected": true, "readonly": true,
	"required": true, "multiple": true, "hidden": true, "autofocus": true,
	"novalidate": true, "open": true,
}

var urlAttrs = map[string]bool{"href": true, "src": true, "action": true, "formaction": true}

// checkInteractable rejects elements a user could not operate
func checkInteractable(n *html.Node) error {
	if isHidden(n) {
		return fmt.Errorf("%w: <%s> is not visible", ErrNotInteractable, n.Data)
	}
	if isDisabled(n) {
		return fmt.Errorf("%w: <%s> is disabled", ErrNotInteractable, n.Data)
	}
	return nil
}

func isDisabled(n *html.Node) bool {
	switch n.Data {
	case "button", "input", "select", "textarea", "option", "fieldset":
	default:
		return false
	}
	if _, ok := attr(n, "disabled"); ok {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "fieldset" {
			if _, ok := attr(p, "disabled"); ok {
				return true
			}
		}
	}
	return false
}

// click applies the default action of sel and returns a navigation if one follows
func (p *Page) click(sel *goquery.Selection) (*action, error) {
	n := sel.Get(0)
	if err := checkInteractable(n); err != nil {
		return nil, err
	}

	if anchor := closest(n, "a"); anchor != nil {
		if href, ok := attr(anchor, "href"); ok && navigable(href) {
			target, err := p.resolve(href)
			if err != nil {
				return nil, fmt.Errorf("%w: bad href %q", ErrNavigation, href)
			}
			if !sameDocument(p.url, target) {
				return &action{method: http.MethodGet, target: target}, nil
			}
		}
	}

	inputType := strings.ToLower(sel.AttrOr("type", ""))
	switch {
	case n.Data == "input" && inputType == "checkbox":
		toggleAttr(sel, "checked", !sel.Is("[checked]"))
	case n.Data == "input" && inputType == "radio":
		p.selectRadio(sel)
	case isSubmitter(n):
		if form := owningForm(p.doc, sel); form != nil {
			return p.submission(form, sel)
		}
	}

	count, _ := strconv.Atoi(sel.AttrOr(clickedAttr, "0"))
	sel.SetAttr(clickedAttr, strconv.Itoa(count+1))
	return nil, nil
}

// fill replaces the value of an editable element
func (p *Page) fill(sel *goquery.Selection, text string) error {
	n := sel.Get(0)
	if err := checkInteractable(n); err != nil {
		return err
	}
	if _, ok := attr(n, "readonly"); ok {
		return fmt.Errorf("%w: <%s> is read-only", ErrNotInteractable, n.Data)
	}

	switch n.Data {
	case "input":
		if !textInputTypes[strings.ToLower(sel.AttrOr("type", ""))] {
			return fmt.Errorf("%w: input type %q does not accept text", ErrNotInteractable, sel.AttrOr("type", ""))
		}
		sel.SetAttr("value", text)
	case "textarea":
		sel.SetText(text)
	case "select":
		return selectOption(sel, text)
	default:
		if !isEditable(n) {
			return fmt.Errorf("%w: <%s> is not editable", ErrNotInteractable, n.Data)
		}
		sel.SetText(text)
	}
	return nil
}

// attribute reads a property the way a browser reports it
func (p *Page) attribute(sel *goquery.Selection, name string) *string {
	name = strings.ToLower(strings.TrimSpace(name))
	n := sel.Get(0)

	if booleanAttrs[name] {
		if _, ok := attr(n, name); ok {
			v := "true"
			return &v
		}
		return nil
	}

	if name == "value" {
		switch n.Data {
		case "textarea":
			v := sel.Text()
			return &v
		case "select":
			if opt := selectedOptions(sel).First(); opt.Length() > 0 {
				v := optionValue(opt)
				return &v
			}
			return nil
		}
	}

	raw, ok := attr(n, name)
	if !ok {
		return nil
	}
	if urlAttrs[name] && navigable(raw) {
		if abs, err := p.resolve(raw); err == nil {
			v := abs.String()
			return &v
		}
	}
	return &raw
}

// submission builds the request a form submit sends
func (p *Page) submission(form, submitter *goquery.Selection) (*action, error) {
	method := strings.ToUpper(form.AttrOr("method", http.MethodGet))
	if submitter != nil {
		if m, ok := submitter.Attr("formmethod"); ok {
			method = strings.ToUpper(m)
		}
	}
	if method != http.MethodPost {
		method = http.MethodGet
	}

	actionRef := form.AttrOr("action", "")
	if submitter != nil {
		if a, ok := submitter.Attr("formaction"); ok {
			actionRef = a
		}
	}
	target := p.url
	if actionRef != "" {
		resolved, err := p.resolve(actionRef)
		if err != nil {
			return nil, fmt.Errorf("%w: bad form action %q", ErrNavigation, actionRef)
		}
		target = resolved
	}

	values := formValues(form, submitter)
	if method == http.MethodGet {
		u := *target
		u.RawQuery = values.Encode()
		u.Fragment = ""
		return &action{method: http.MethodGet, target: &u}, nil
	}
	return &action{method: http.MethodPost, target: target, form: values}, nil
}

// formValues collects the successful controls of a form
func formValues(form, submitter *goquery.Selection) url.Values {
	values := url.Values{}
	var submitNode *html.Node
	if submitter != nil {
		submitNode = submitter.Get(0)
	}

	form.Find("input, textarea, select, button").Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		name, ok := s.Attr("name")
		if !ok || name == "" || isDisabled(n) {
			return
		}
		switch n.Data {
		case "textarea":
			values.Add(name, s.Text())
		case "select":
			selectedOptions(s).Each(func(_ int, opt *goquery.Selection) {
				values.Add(name, optionValue(opt))
			})
		case "button":
			if n == submitNode {
				values.Add(name, s.AttrOr("value", ""))
			}
		case "input":
			switch strings.ToLower(s.AttrOr("type", "")) {
			case "checkbox", "radio":
				if s.Is("[checked]") {
					values.Add(name, s.AttrOr("value", "on"))
				}
			case "submit", "image", "button", "reset":
				if n == submitNode {
					values.Add(name, s.AttrOr("value", ""))
				}
			case "file":
			default:
				values.Add(name, s.AttrOr("value", ""))
			}
		}
	})
	return values
}

func (p *Page) selectRadio(sel *goquery.Selection) {
	name, hasName := sel.Attr("name")
	if hasName && name != "" {
		scope := p.doc.Selection
		if form := owningForm(p.doc, sel); form != nil {
			scope = form
		}
		scope.Find(`input[type="radio"]`).Each(func(_ int, s *goquery.Selection) {
			if s.AttrOr("name", "") == name {
				s.RemoveAttr("checked")
			}
		})
	}
	sel.SetAttr("checked", "")
}

func selectOption(sel *goquery.Selection, text string) error {
	var match *goquery.Selection
	sel.Find("option").EachWithBreak(func(_ int, opt *goquery.Selection) bool {
		if optionValue(opt) == text || collapse(opt.Text()) == text {
			match = opt
			return false
		}
		return true
	})
	if match == nil {
		return fmt.Errorf("%w: no option %q", ErrNotInteractable, text)
	}
	if _, multiple := sel.Attr("multiple"); !multiple {
		sel.Find("option").RemoveAttr("selected")
	}
	match.SetAttr("selected", "")
	return nil
}

func selectedOptions(sel *goquery.Selection) *goquery.Selection {
	selected := sel.Find("option[selected]")
	if selected.Length() > 0 {
		if _, multiple := sel.Attr("multiple"); multiple {
			return selected
		}
		return selected.First()
	}
	if _, multiple := sel.Attr("multiple"); multiple {
		return selected
	}
	return sel.Find("option").First()
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return collapse(opt.Text())
}

func toggleAttr(sel *goquery.Selection, name string, on bool) {
	if on {
		sel.SetAttr(name, "")
		return
	}
	sel.RemoveAttr(name)
}

func isSubmitter(n *html.Node) bool {
	t, _ := attr(n, "type")
	t = strings.ToLower(t)
	switch n.Data {
	case "button":
		return t == "" || t == "submit"
	case "input":
		return t == "submit" || t == "image"
	}
	return false
}

func isEditable(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if v, ok := attr(cur, "contenteditable"); ok {
			return !strings.EqualFold(v, "false")
		}
	}
	return false
}

// owningForm honors the form attribute before falling back to the nearest ancestor
func owningForm(doc *goquery.Document, sel *goquery.Selection) *goquery.Selection {
	if id, ok := sel.Attr("form"); ok && id != "" {
		form := doc.Find("form").FilterFunction(func(_ int, f *goquery.Selection) bool {
			return f.AttrOr("id", "") == id
		})
		if form.Length() > 0 {
			return form.First()
		}
	}
	form := sel.Closest("form")
	if form.Length() == 0 {
		return nil
	}
	return form
}

func closest(n *html.Node, tag string) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == tag {
			return cur
		}
	}
	return nil
}

func navigable(ref string) bool {
	ref = strings.TrimSpace(strings.ToLower(ref))
	if ref == "" || strings.HasPrefix(ref, "#") {
		return false
	}
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:", "vbscript:"} {
		if strings.HasPrefix(ref, scheme) {
			return false
		}
	}
	return true
}

// sameDocument reports a fragment-only change
func sameDocument(current, target *url.URL) bool {
	a, b := *current, *target
	a.Fragment, b.Fragment = "", ""
	return a.String() == b.String() && target.Fragment != ""
}
