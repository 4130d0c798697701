package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/Jarvis/sandbox/pkg/protocol"
)

// Tool identifiers exposed to the host agent
const (
	ToolOpenPage       = "open_page_sandbox"
	ToolClick          = "click_sandbox"
	ToolExtractText    = "extract_text_sandbox"
	ToolExtractAllText = "extract_all_text_sandbox"
	ToolFillInput      = "fill_input_sandbox"
	ToolPageTitle      = "get_page_title_sandbox"
	ToolPageURL        = "get_page_url_sandbox"
	ToolWaitForElement = "wait_for_element_sandbox"
	ToolGetAttribute   = "get_element_attribute_sandbox"
	ToolEvaluate       = "evaluate_sandbox"
	ToolCheckHealth    = "check_sandbox_health"
	ToolReset          = "reset_sandbox"
)

// notFoundBeforeReset is the ElementNotFound streak that triggers a reset suggestion
const notFoundBeforeReset = 2

// Tool describes one callable tool
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter represents a tool parameter
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Result is the outcome of a tool call in the host's convention
type Result struct {
	Success    bool                   `json:"success"`
	Data       map[string]interface{} `json:"data,omitempty"`
	ErrorKind  protocol.ErrorKind     `json:"error_kind,omitempty"`
	Error      *string                `json:"error,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
}

// String renders the result as a short sentence for the host agent
func (r *Result) String() string {
	if r.Success {
		if msg, ok := r.Data["message"].(string); ok {
			return msg
		}
		return "ok"
	}
	msg := string(r.ErrorKind)
	if r.Error != nil {
		msg += ": " + *r.Error
	}
	if r.Suggestion != "" {
		msg += fmt.Sprintf(" (try %s)", r.Suggestion)
	}
	return msg
}

func success(data map[string]interface{}) *Result {
	return &Result{Success: true, Data: data}
}

func failure(err error) *Result {
	pe := protocol.AsError(err)
	msg := pe.Message
	if msg == "" {
		msg = string(pe.Kind)
	}
	return &Result{Success: false, ErrorKind: pe.Kind, Error: &msg}
}

var selectorParam = Parameter{Name: "selector", Type: "string", Description: "CSS selector (or XPath starting with /)", Required: true}

var tools = []Tool{
	{
		ID:          ToolOpenPage,
		Name:        "Open Page",
		Description: "Open a web page in the sandboxed browser.",
		Parameters:  []Parameter{{Name: "url", Type: "string", Description: "URL to open", Required: true}},
		Returns:     "object",
	},
	{
		ID:          ToolClick,
		Name:        "Click",
		Description: "Click an element in the sandboxed browser using a CSS selector.",
		Parameters:  []Parameter{selectorParam},
		Returns:     "object",
	},
	{
		ID:          ToolExtractText,
		Name:        "Extract Text",
		Description: "Extract the visible text of the first matching element.",
		Parameters:  []Parameter{selectorParam},
		Returns:     "string",
	},
	{
		ID:          ToolExtractAllText,
		Name:        "Extract All Text",
		Description: "Extract the visible text of every matching element.",
		Parameters:  []Parameter{selectorParam},
		Returns:     "array",
	},
	{
		ID:          ToolFillInput,
		Name:        "Fill Input",
		Description: "Fill an input field in the sandboxed browser.",
		Parameters: []Parameter{
			selectorParam,
			{Name: "text", Type: "string", Description: "Text to type", Required: true},
		},
		Returns: "object",
	},
	{
		ID:          ToolPageTitle,
		Name:        "Get Page Title",
		Description: "Get the title of the current page in the sandboxed browser.",
		Returns:     "string",
	},
	{
		ID:          ToolPageURL,
		Name:        "Get Page URL",
		Description: "Get the current URL in the sandboxed browser.",
		Returns:     "string",
	},
	{
		ID:          ToolWaitForElement,
		Name:        "Wait For Element",
		Description: "Wait for an element to appear. Use when elements load dynamically.",
		Parameters: []Parameter{
			selectorParam,
			{Name: "timeout", Type: "number", Description: "Maximum seconds to wait (default 10)", Required: false},
		},
		Returns: "boolean",
	},
	{
		ID:          ToolGetAttribute,
		Name:        "Get Element Attribute",
		Description: "Get an attribute value of an element (href, src, class, etc.).",
		Parameters: []Parameter{
			selectorParam,
			{Name: "attribute", Type: "string", Description: "Attribute name", Required: true},
		},
		Returns: "string",
	},
	{
		ID:          ToolEvaluate,
		Name:        "Evaluate Script",
		Description: "Run JavaScript against the current page and return its value.",
		Parameters:  []Parameter{{Name: "script", Type: "string", Description: "JavaScript source", Required: true}},
		Returns:     "object",
	},
	{
		ID:          ToolCheckHealth,
		Name:        "Check Sandbox Health",
		Description: "Check if the sandbox is running properly.",
		Returns:     "object",
	},
	{
		ID:          ToolReset,
		Name:        "Reset Sandbox",
		Description: "Reset the sandboxed browser session.",
		Returns:     "object",
	},
}

// Tools returns the tool definitions the client can execute
func (c *Client) Tools() []Tool {
	out := make([]Tool, len(tools))
	copy(out, tools)
	return out
}

// Execute runs one tool call. Failures are reported in the Result, never as
// a Go error, with a reset suggestion when the session looks stuck.
func (c *Client) Execute(ctx context.Context, toolID string, params map[string]interface{}) *Result {
	res := c.execute(ctx, normalizeTool(toolID), params)
	c.suggest(res)
	return res
}

func (c *Client) execute(ctx context.Context, toolID string, params map[string]interface{}) *Result {
	p := toolParams(params)

	switch toolID {
	case ToolOpenPage:
		url, err := p.required("url")
		if err != nil {
			return failure(err)
		}
		page, err := c.OpenPage(ctx, url)
		if err != nil {
			return failure(err)
		}
		return success(map[string]interface{}{
			"url": page.URL, "title": page.Title, "status": page.Status,
			"message": fmt.Sprintf("Opened %s (%s)", page.URL, page.Title),
		})

	case ToolClick:
		selector, err := p.required("selector")
		if err != nil {
			return failure(err)
		}
		if err := c.Click(ctx, selector); err != nil {
			return failure(err)
		}
		return success(map[string]interface{}{"selector": selector, "message": "Clicked " + selector})

	case ToolExtractText:
		selector, err := p.required("selector")
		if err != nil {
			return failure(err)
		}
		text, err := c.ExtractText(ctx, selector)
		if err != nil {
			return failure(err)
		}
		return success(map[string]interface{}{"text": text, "message": text})

	case ToolExtractAllText:
		selector, err := p.required("selector")
		if err != nil {
			return failure(err)
		}
		texts, err := c.ExtractAllText(ctx, selector)
		if err != nil {
			return failure(err)
		}
		return success(map[string]interface{}{"texts": texts, "message": strings.Join(texts, "\n")})

	case ToolFillInput:
		selector, err := p.required("selector")
		if err != nil {
			return failure(err)
		}
		text, err := p.text("text")
		if err != nil {
			return failure(err)
		}
		if err := c.Fill(ctx, selector, text); err != nil {
			return failure(err)
		}
		return success(map[string]interface{}{"selector": selector, "message": fmt.Sprintf("Filled input %s with text", selector)})

	case ToolPageTitle:
		title, err := c.Title(ctx)
		if err != nil {
			return failure(err)
		}
		return success(map[string]interface{}{"title": title, "message": title})

	case ToolPageURL:
		u, err := c.CurrentURL(ctx)
		if err != nil {
			return failure(err)
		}
		return success(map[string]interface{}{"url": u, "message": u})

	case ToolWaitForElement:
		selector, err := p.required("selector")
		if err != nil {
			return failure(err)
		}
		secs, err := p.number("timeout")
		if err != nil {
			return failure(err)
		}
		found, err := c.WaitForElement(ctx, selector, time.Duration(secs*float64(time.Second)))
		if err != nil {
			return failure(err)
		}
		msg := fmt.Sprintf("Element %s found", selector)
		if !found {
			msg = fmt.Sprintf("Element %s not found", selector)
		}
		return success(map[string]interface{}{"found": found, "message": msg})

	case ToolGetAttribute:
		selector, err := p.required("selector")
		if err != nil {
			return failure(err)
		}
		name, err := p.required("attribute")
		if err != nil {
			return failure(err)
		}
		value, err := c.Attribute(ctx, selector, name)
		if err != nil {
			return failure(err)
		}
		if value == nil {
			return success(map[string]interface{}{"value": nil, "message": fmt.Sprintf("%s has no %s attribute", selector, name)})
		}
		return success(map[string]interface{}{"value": *value, "message": *value})

	case ToolEvaluate:
		script, err := p.required("script")
		if err != nil {
			return failure(err)
		}
		out, err := c.Evaluate(ctx, script)
		if err != nil {
			return failure(err)
		}
		return success(map[string]interface{}{"value": out.Value, "console": out.Console, "message": fmt.Sprint(out.Value)})

	case ToolCheckHealth:
		ready, health, err := c.CheckHealth(ctx)
		if err != nil {
			return failure(err)
		}
		msg := "Sandbox is healthy and running"
		if !ready {
			msg = "Sandbox is " + health.Status
		}
		return success(map[string]interface{}{
			"ready": ready, "status": health.Status, "driver_active": health.DriverActive, "message": msg,
		})

	case ToolReset:
		if err := c.Reset(ctx); err != nil {
			return failure(err)
		}
		return success(map[string]interface{}{"message": "Sandbox reset successfully"})

	default:
		return failure(protocol.Errorf(protocol.KindSandboxError, "unknown tool: %s", toolID))
	}
}

// suggest tracks the ElementNotFound streak and attaches reset advice
func (c *Client) suggest(res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res.Success {
		c.notFound = 0
		return
	}
	switch res.ErrorKind {
	case protocol.KindDriverUnavailable:
		c.notFound = 0
		res.Suggestion = ToolReset
	case protocol.KindElementNotFound:
		c.notFound++
		if c.notFound >= notFoundBeforeReset {
			res.Suggestion = ToolReset
		}
	default:
		c.notFound = 0
	}
}

// normalizeTool accepts both the tool id and the bare endpoint name
func normalizeTool(id string) string {
	id = strings.TrimSpace(id)
	switch id {
	case "check_health", "health":
		return ToolCheckHealth
	case "reset":
		return ToolReset
	}
	for _, t := range tools {
		if t.ID == id || t.ID == id+"_sandbox" {
			return t.ID
		}
	}
	return id
}

// toolParams are loosely typed tool arguments from JSON, YAML or TOML
type toolParams map[string]interface{}

func (p toolParams) text(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", protocol.Errorf(protocol.KindSandboxError, "parameter %s must be a string", key)
	}
}

func (p toolParams) required(key string) (string, error) {
	s, err := p.text(key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", protocol.Errorf(protocol.KindSandboxError, "parameter %s is required", key)
	}
	return s, nil
}

// number reads a numeric parameter; missing means zero
func (p toolParams) number(key string) (float64, error) {
	switch v := p[key].(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, protocol.Errorf(protocol.KindSandboxError, "parameter %s must be a number", key)
		}
		return f, nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, protocol.Errorf(protocol.KindSandboxError, "parameter %s must be a number", key)
		}
		return f, nil
	default:
		return 0, protocol.Errorf(protocol.KindSandboxError, "parameter %s must be a number", key)
	}
}
