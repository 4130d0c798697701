package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/GriffinCanCode/Jarvis/sandbox/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlWorkflow = `name: search
steps:
  - tool: open_page_sandbox
    args:
      url: "%s"
  - tool: fill_input
    args:
      selector: "#q"
      text: gophers
  - tool: click_sandbox
    args:
      selector: "#go"
  - tool: wait_for_element_sandbox
    args:
      selector: "#query"
      timeout: 2
  - tool: extract_text_sandbox
    args:
      selector: "#query"
`

const tomlWorkflow = `name = "title"

[[steps]]
tool = "open_page_sandbox"
[steps.args]
url = "https://example.com"

[[steps]]
tool = "wait_for_element_sandbox"
[steps.args]
selector = "h1"
timeout = 3
`

const jsonWorkflow = `{"steps":[{"tool":"get_page_title_sandbox"},{"tool":"reset"}]}`

func TestParseWorkflow(t *testing.T) {
	wf, err := ParseWorkflow([]byte(tomlWorkflow), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, "title", wf.Name)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "https://example.com", wf.Steps[0].Args["url"])
	secs, err := toolParams(wf.Steps[1].Args).number("timeout")
	require.NoError(t, err)
	assert.Equal(t, 3.0, secs)

	wf, err = ParseWorkflow([]byte(jsonWorkflow), FormatJSON)
	require.NoError(t, err)
	assert.Len(t, wf.Steps, 2)

	wf, err = ParseWorkflow([]byte(yamlWorkflow), "yml")
	require.NoError(t, err)
	assert.Equal(t, "search", wf.Name)
	assert.Len(t, wf.Steps, 5)
	secs, err = toolParams(wf.Steps[3].Args).number("timeout")
	require.NoError(t, err)
	assert.Equal(t, 2.0, secs)
}

func TestParseWorkflowErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
	}{
		{"unknown format", jsonWorkflow, "xml"},
		{"bad json", `{"steps":`, FormatJSON},
		{"no steps", `{"steps":[]}`, FormatJSON},
		{"missing tool", `{"steps":[{"args":{}}]}`, FormatJSON},
		{"unknown tool", `{"steps":[{"tool":"screenshot"}]}`, FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkflow([]byte(tt.data), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestLoadWorkflow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "morning.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonWorkflow), 0o644))

	wf, err := LoadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, "morning", wf.Name)

	_, err = LoadWorkflow(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestRunWorkflow(t *testing.T) {
	origin := newOrigin(t)
	c := newSandbox(t)

	wf, err := ParseWorkflow([]byte(fmt.Sprintf(yamlWorkflow, origin.URL)), FormatYAML)
	require.NoError(t, err)

	out := c.RunWorkflow(context.Background(), wf.Steps)
	require.True(t, out.OK(), out.Summary(wf.Steps))
	assert.Len(t, out.Results, 5)
	assert.Equal(t, "gophers", out.Summary(wf.Steps))
}

func TestRunWorkflowStopsAtFailure(t *testing.T) {
	origin := newOrigin(t)
	c := newSandbox(t)

	steps := []Step{
		{Tool: ToolOpenPage, Args: map[string]interface{}{"url": origin.URL}},
		{Tool: ToolClick, Args: map[string]interface{}{"selector": "#missing"}},
		{Tool: ToolPageTitle},
	}
	out := c.RunWorkflow(context.Background(), steps)

	assert.False(t, out.OK())
	assert.Equal(t, 1, out.FailedStep)
	assert.Len(t, out.Results, 2)
	assert.Equal(t, protocol.KindElementNotFound, out.Last().ErrorKind)
	assert.Contains(t, out.Summary(steps), "Workflow failed at step 2 (click_sandbox)")
}

func TestRunWorkflowCancelled(t *testing.T) {
	c := New(Config{URL: "http://127.0.0.1:1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := c.RunWorkflow(ctx, []Step{{Tool: ToolPageTitle}})
	assert.Equal(t, 0, out.FailedStep)
	assert.Contains(t, *out.Last().Error, "cancelled")
}
