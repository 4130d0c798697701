package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/Jarvis/sandbox/pkg/client"
	"github.com/spf13/cobra"
)

func newWorkflowCommand() *cobra.Command {
	workflowCommand := &cobra.Command{
		Use:   "workflow",
		Short: "Run multi-step workflows",
	}

	runCommand := &cobra.Command{
		Use:   "run FILE",
		Short: "Run a workflow file (.yaml, .toml or .json)",
		Long: `Run the steps of a workflow file in order, stopping at the first failure.

  name: search
  steps:
    - tool: open_page_sandbox
      args: {url: "https://example.com"}
    - tool: extract_text_sandbox
      args: {selector: h1}`,
		Args: cobra.ExactArgs(1),
		RunE: workflowRunAction,
	}
	runCommand.Flags().Duration("timeout", 0, "Abort the workflow after this long (0 = no limit)")
	runCommand.Flags().BoolP("verbose", "v", false, "Print every step result")

	workflowCommand.AddCommand(runCommand)
	return workflowCommand
}

func workflowRunAction(cmd *cobra.Command, args []string) error {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}

	wf, err := client.LoadWorkflow(args[0])
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, timeout)
	defer cancel()
	out := c.RunWorkflow(ctx, wf.Steps)

	if verbose {
		for i, res := range out.Results {
			mark := "ok"
			if !res.Success {
				mark = "FAILED"
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d. %s %s: %s\n", i+1, wf.Steps[i].Tool, mark, res)
		}
	}

	summary := out.Summary(wf.Steps)
	if !out.OK() {
		if jsonFormat, _ := cmd.Flags().GetBool("json"); jsonFormat {
			if err := printResult(cmd, out, ""); err != nil {
				return err
			}
		}
		return errors.New(summary)
	}
	return printResult(cmd, out, summary)
}

func contextWithTimeout(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
