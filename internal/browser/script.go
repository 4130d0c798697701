package browser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

const maxCallStack = 1024

// ScriptResult is the outcome of an evaluation
type ScriptResult struct {
	Value    interface{}
	Console  []string
	Duration time.Duration
}

// scriptRunner evaluates JavaScript against a page. A runtime is built per call
// so nothing leaks between evaluations or pages.
type scriptRunner struct {
	timeout time.Duration
}

func (r *scriptRunner) run(ctx context.Context, page *Page, script string) (*ScriptResult, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStack)

	result := &ScriptResult{Console: []string{}}
	start := time.Now()

	setupGlobals(vm, result)
	vm.Set("document", documentProxy(vm, page))
	vm.Set("location", locationProxy(vm, page))

	done := make(chan struct{})
	defer close(done)
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	go func() {
		select {
		case <-timer.C:
			vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := vm.RunString(script)
	result.Duration = time.Since(start)
	if err != nil {
		var exc *goja.Exception
		if errors.As(err, &exc) {
			return nil, fmt.Errorf("%w: %s", ErrScript, exc.Value().String())
		}
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}

	result.Value = jsonSafe(exportValue(val))
	return result, nil
}

func setupGlobals(vm *goja.Runtime, result *ScriptResult) {
	for _, name := range []string{"require", "process", "module", "exports"} {
		vm.Set(name, goja.Undefined())
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		prefix := level
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			result.Console = append(result.Console, prefix+": "+strings.Join(parts, " "))
			return goja.Undefined()
		})
	}
	vm.Set("console", console)

	// timers never fire; evaluation is synchronous
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	vm.Set("setTimeout", noop)
	vm.Set("setInterval", noop)
}

func documentProxy(vm *goja.Runtime, page *Page) *goja.Object {
	doc := vm.NewObject()
	_ = doc.Set("title", page.Title())
	_ = doc.Set("URL", page.URL())

	_ = doc.Set("querySelector", func(selector string) goja.Value {
		sel, err := page.query(selector)
		if err != nil {
			panic(vm.NewTypeError(err.Error()))
		}
		if sel.Length() == 0 {
			return goja.Null()
		}
		return elementProxy(vm, page, sel.First())
	})
	_ = doc.Set("querySelectorAll", func(selector string) goja.Value {
		sel, err := page.query(selector)
		if err != nil {
			panic(vm.NewTypeError(err.Error()))
		}
		items := make([]interface{}, 0, sel.Length())
		sel.Each(func(_ int, s *goquery.Selection) {
			items = append(items, elementProxy(vm, page, s))
		})
		return vm.NewArray(items...)
	})
	_ = doc.Set("getElementById", func(id string) goja.Value {
		sel := page.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("id", "") == id
		})
		if sel.Length() == 0 {
			return goja.Null()
		}
		return elementProxy(vm, page, sel.First())
	})

	if body := page.doc.Find("body").First(); body.Length() > 0 {
		_ = doc.Set("body", elementProxy(vm, page, body))
	}
	return doc
}

func locationProxy(vm *goja.Runtime, page *Page) *goja.Object {
	loc := vm.NewObject()
	_ = loc.Set("href", page.URL())
	_ = loc.Set("host", page.url.Host)
	_ = loc.Set("pathname", page.url.Path)
	return loc
}

// elementProxy exposes a live element; reads reflect the DOM at call time
func elementProxy(vm *goja.Runtime, page *Page, sel *goquery.Selection) *goja.Object {
	n := sel.Get(0)
	el := vm.NewObject()
	_ = el.Set("tagName", strings.ToUpper(n.Data))
	_ = el.Set("id", sel.AttrOr("id", ""))
	_ = el.Set("className", sel.AttrOr("class", ""))

	getter := func(fn func() interface{}) goja.Value {
		return vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(fn()) })
	}
	_ = el.DefineAccessorProperty("textContent", getter(func() interface{} { return sel.Text() }), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = el.DefineAccessorProperty("innerText", getter(func() interface{} { return visibleText(n) }), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = el.DefineAccessorProperty("innerHTML", getter(func() interface{} {
		h, _ := sel.Html()
		return h
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = el.DefineAccessorProperty("value", getter(func() interface{} {
		if v := page.attribute(sel, "value"); v != nil {
			return *v
		}
		return ""
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = el.Set("getAttribute", func(name string) goja.Value {
		if v, ok := attr(n, name); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = el.Set("setAttribute", func(name, value string) {
		sel.SetAttr(name, value)
	})
	_ = el.Set("removeAttribute", func(name string) {
		sel.RemoveAttr(name)
	})
	_ = el.Set("hasAttribute", func(name string) bool {
		_, ok := attr(n, name)
		return ok
	})
	_ = el.Set("querySelector", func(selector string) goja.Value {
		found := sel.Find(selector)
		if found.Length() == 0 {
			return goja.Null()
		}
		return elementProxy(vm, page, found.First())
	})
	_ = el.Set("remove", func() {
		sel.Remove()
	})
	_ = el.Set("appendHTML", func(markup string) {
		sel.AppendHtml(markup)
	})
	_ = el.Set("setText", func(text string) {
		sel.SetText(text)
	})
	_ = el.Set("setValue", func(text string) {
		if n.Data == "textarea" {
			sel.SetText(text)
			return
		}
		sel.SetAttr("value", text)
	})
	_ = el.Set("isVisible", func() bool {
		return !isHidden(n) && attachedTo(n, html.DocumentNode)
	})
	return el
}

func attachedTo(n *html.Node, root html.NodeType) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == root {
			return true
		}
	}
	return false
}

// exportValue mirrors goja's export but keeps element proxies readable
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	if obj, ok := val.(*goja.Object); ok {
		if tag := obj.Get("tagName"); tag != nil && !goja.IsUndefined(tag) && obj.Get("getAttribute") != nil {
			return map[string]interface{}{
				"tagName":     tag.String(),
				"id":          obj.Get("id").String(),
				"textContent": obj.Get("textContent").String(),
			}
		}
	}
	return val.Export()
}

// jsonSafe drops values encoding/json cannot represent
func jsonSafe(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			if isFunc(item) {
				continue
			}
			out[k] = jsonSafe(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(t))
		for _, item := range t {
			if isFunc(item) {
				out = append(out, nil)
				continue
			}
			out = append(out, jsonSafe(item))
		}
		return out
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	}
	if isFunc(v) {
		return nil
	}
	return v
}

func isFunc(v interface{}) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}
