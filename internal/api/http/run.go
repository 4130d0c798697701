package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/Jarvis/sandbox/pkg/protocol"
	"github.com/gin-gonic/gin"
)

// legacyTool handles one tool of the /run dispatch
type legacyTool func(h *Handlers, ctx context.Context, args runArgs) (*protocol.RunResponse, error)

var legacyTools = map[string]legacyTool{
	"open_page":             runOpenPage,
	"click":                 runClick,
	"extract_text":          runExtractText,
	"extract_all_text":      runExtractAllText,
	"get_page_title":        runPageTitle,
	"get_page_url":          runPageURL,
	"fill_input":            runFillInput,
	"wait_for_element":      runWaitForElement,
	"get_element_attribute": runGetAttribute,
	"evaluate":              runEvaluate,
}

// Run dispatches {tool, args} the way the launcher scripts call the sandbox
func (h *Handlers) Run(c *gin.Context) {
	var req protocol.RunRequest
	if !h.bind(c, &req) {
		return
	}
	tool, ok := legacyTools[req.Tool]
	if !ok {
		h.fail(c, invalidRequest(fmt.Sprintf("unknown tool: %s", req.Tool)))
		return
	}
	resp, err := tool(h, c.Request.Context(), runArgs(req.Args))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func runOpenPage(h *Handlers, ctx context.Context, args runArgs) (*protocol.RunResponse, error) {
	url, err := args.required("url")
	if err != nil {
		return nil, err
	}
	page, err := h.session.OpenPage(ctx, url)
	if err != nil {
		return nil, err
	}
	return &protocol.RunResponse{Result: "Opened " + page.URL, Title: page.Title}, nil
}

func runClick(h *Handlers, ctx context.Context, args runArgs) (*protocol.RunResponse, error) {
	selector, err := args.required("selector")
	if err != nil {
		return nil, err
	}
	if err := h.session.Click(ctx, selector); err != nil {
		return nil, err
	}
	return &protocol.RunResponse{Result: "Clicked " + selector}, nil
}

func runExtractText(h *Handlers, ctx context.Context, args runArgs) (*protocol.RunResponse, error) {
	selector, err := args.required("selector")
	if err != nil {
		return nil, err
	}
	text, err := h.session.Text(ctx, selector)
	if err != nil {
		return nil, err
	}
	return &protocol.RunResponse{Result: text}, nil
}

func runExtractAllText(h *Handlers, ctx context.Context, args runArgs) (*protocol.RunResponse, error) {
	selector, err := args.required("selector")
	if err != nil {
		return nil, err
	}
	texts, err := h.session.AllText(ctx, selector)
	if err != nil {
		return nil, err
	}
	return &protocol.RunResponse{Result: texts}, nil
}

func runPageTitle(h *Handlers, ctx context.Context, _ runArgs) (*protocol.RunResponse, error) {
	title, err := h.session.Title(ctx)
	if err != nil {
		return nil, err
	}
	return &protocol.RunResponse{Result: title}, nil
}

func runPageURL(h *Handlers, ctx context.Context, _ runArgs) (*protocol.RunResponse, error) {
	u, err := h.session.URL(ctx)
	if err != nil {
		return nil, err
	}
	return &protocol.RunResponse{Result: u}, nil
}

func runFillInput(h *Handlers, ctx context.Context, args runArgs) (*protocol.RunResponse, error) {
	selector, err := args.required("selector")
	if err != nil {
		return nil, err
	}
	text, err := args.text("text")
	if err != nil {
		return nil, err
	}
	if err := h.session.Fill(ctx, selector, text); err != nil {
		return nil, err
	}
	return &protocol.RunResponse{Result: fmt.Sprintf("Filled input %s with text", selector)}, nil
}

func runWaitForElement(h *Handlers, ctx context.Context, args runArgs) (*protocol.RunResponse, error) {
	selector, err := args.required("selector")
	if err != nil {
		return nil, err
	}
	timeout, err := args.number("timeout")
	if err != nil {
		return nil, err
	}
	found, err := h.session.WaitForElement(ctx, selector, seconds(timeout))
	if err != nil {
		return nil, err
	}
	if !found {
		return &protocol.RunResponse{Result: fmt.Sprintf("Element %s not found", selector)}, nil
	}
	return &protocol.RunResponse{Result: fmt.Sprintf("Element %s found", selector)}, nil
}

func runGetAttribute(h *Handlers, ctx context.Context, args runArgs) (*protocol.RunResponse, error) {
	selector, err := args.required("selector")
	if err != nil {
		return nil, err
	}
	name, err := args.required("attribute")
	if err != nil {
		return nil, err
	}
	value, err := h.session.Attribute(ctx, selector, name)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return &protocol.RunResponse{Result: nil}, nil
	}
	return &protocol.RunResponse{Result: *value}, nil
}

func runEvaluate(h *Handlers, ctx context.Context, args runArgs) (*protocol.RunResponse, error) {
	script, err := args.required("script")
	if err != nil {
		return nil, err
	}
	res, err := h.session.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	return &protocol.RunResponse{Result: res.Value}, nil
}

// runArgs are the loosely typed arguments of a /run call
type runArgs map[string]interface{}

func (a runArgs) text(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidRequest(fmt.Sprintf("%s must be a string", key))
	}
	return s, nil
}

func (a runArgs) required(key string) (string, error) {
	s, err := a.text(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", invalidRequest(key + " is required")
	}
	return s, nil
}

// number accepts JSON numbers and numeric strings; missing means zero
func (a runArgs) number(key string) (float64, error) {
	switch v := a[key].(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, invalidRequest(fmt.Sprintf("%s must be a number", key))
		}
		return f, nil
	default:
		return 0, invalidRequest(fmt.Sprintf("%s must be a number", key))
	}
}
