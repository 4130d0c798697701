package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Step is one tool call of a workflow
type Step struct {
	Tool string                 `json:"tool" yaml:"tool" toml:"tool"`
	Args map[string]interface{} `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
}

// Workflow is an ordered list of steps
type Workflow struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Steps []Step `json:"steps" yaml:"steps" toml:"steps"`
}

// Workflow file formats
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatJSON = "json"
)

// WorkflowResult reports how far a workflow got
type WorkflowResult struct {
	Results []*Result `json:"results"`
	// FailedStep is the index of the failing step, -1 when every step succeeded
	FailedStep int `json:"failed_step"`
}

// OK reports whether every step succeeded
func (r *WorkflowResult) OK() bool {
	return r.FailedStep < 0
}

// Last returns the result of the last executed step
func (r *WorkflowResult) Last() *Result {
	if len(r.Results) == 0 {
		return nil
	}
	return r.Results[len(r.Results)-1]
}

// Summary renders the outcome for the host agent
func (r *WorkflowResult) Summary(steps []Step) string {
	if r.OK() {
		if last := r.Last(); last != nil {
			return last.String()
		}
		return "Workflow had no steps"
	}
	tool := ""
	if r.FailedStep < len(steps) {
		tool = steps[r.FailedStep].Tool
	}
	return fmt.Sprintf("Workflow failed at step %d (%s): %s", r.FailedStep+1, tool, r.Last())
}

// RunWorkflow executes steps in order and stops at the first failure
func (c *Client) RunWorkflow(ctx context.Context, steps []Step) *WorkflowResult {
	out := &WorkflowResult{FailedStep: -1, Results: make([]*Result, 0, len(steps))}
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			out.Results = append(out.Results, failure(fmt.Errorf("workflow cancelled: %w", err)))
			out.FailedStep = i
			return out
		}
		res := c.Execute(ctx, step.Tool, step.Args)
		out.Results = append(out.Results, res)
		if !res.Success {
			out.FailedStep = i
			return out
		}
	}
	return out
}

// ParseWorkflow decodes a workflow in the given format
func ParseWorkflow(data []byte, format string) (*Workflow, error) {
	var wf Workflow
	var err error
	switch strings.ToLower(format) {
	case FormatYAML, "yml":
		err = yaml.Unmarshal(data, &wf)
	case FormatTOML:
		err = toml.Unmarshal(data, &wf)
	case FormatJSON:
		err = sonic.Unmarshal(data, &wf)
	default:
		return nil, fmt.Errorf("unsupported workflow format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s workflow: %w", format, err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// LoadWorkflow reads a workflow file; the extension selects the format
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	wf, err := ParseWorkflow(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if wf.Name == "" {
		wf.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return wf, nil
}

// Validate checks that every step names a known tool
func (w *Workflow) Validate() error {
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow has no steps")
	}
	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.ID] = true
	}
	for i, step := range w.Steps {
		if step.Tool == "" {
			return fmt.Errorf("step %d: tool is required", i+1)
		}
		if !known[normalizeTool(step.Tool)] {
			return fmt.Errorf("step %d: unknown tool %q", i+1, step.Tool)
		}
	}
	return nil
}
