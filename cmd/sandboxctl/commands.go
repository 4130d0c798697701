package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/Jarvis/sandbox/pkg/client"
	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

func newClient(cmd *cobra.Command) (*client.Client, error) {
	server, err := cmd.Flags().GetString("server")
	if err != nil {
		return nil, err
	}
	cfg, err := client.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.URL = server
	return client.New(cfg), nil
}

// runTool executes one tool and prints its result
func runTool(cmd *cobra.Command, tool string, params map[string]interface{}) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	res := c.Execute(cmd.Context(), tool, params)
	if !res.Success {
		if jsonFormat, _ := cmd.Flags().GetBool("json"); jsonFormat {
			if err := printResult(cmd, res, ""); err != nil {
				return err
			}
		}
		return errors.New(res.String())
	}
	return printResult(cmd, res, res.String())
}

func printResult(cmd *cobra.Command, v interface{}, text string) error {
	jsonFormat, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonFormat {
		b, err := sonic.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}
	fmt.Fprintln(out, text)
	return nil
}

func newHealthCommand() *cobra.Command {
	healthCommand := &cobra.Command{
		Use:   "health",
		Short: "Check if the sandbox is running properly",
		Args:  cobra.NoArgs,
		RunE:  healthAction,
	}
	healthCommand.Flags().Duration("wait", 0, "Poll until healthy for up to this long")
	return healthCommand
}

func healthAction(cmd *cobra.Command, _ []string) error {
	wait, err := cmd.Flags().GetDuration("wait")
	if err != nil {
		return err
	}
	if wait <= 0 {
		return runTool(cmd, client.ToolCheckHealth, nil)
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := contextWithTimeout(cmd, wait)
	defer cancel()
	health, err := c.WaitUntilHealthy(ctx, 500*time.Millisecond)
	if err != nil {
		return err
	}
	return printResult(cmd, health, "Sandbox is healthy and running")
}

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the sandboxed browser session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTool(cmd, client.ToolReset, nil)
		},
	}
}

func newOpenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open URL",
		Short: "Open a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, client.ToolOpenPage, map[string]interface{}{"url": args[0]})
		},
	}
}

func newClickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "click SELECTOR",
		Short: "Click the first element matching SELECTOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, client.ToolClick, map[string]interface{}{"selector": args[0]})
		},
	}
}

func newFillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fill SELECTOR TEXT",
		Short: "Replace the value of an input field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, client.ToolFillInput, map[string]interface{}{"selector": args[0], "text": args[1]})
		},
	}
}

func newTextCommand() *cobra.Command {
	textCommand := &cobra.Command{
		Use:   "text SELECTOR",
		Short: "Print the visible text of an element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}
			tool := client.ToolExtractText
			if all {
				tool = client.ToolExtractAllText
			}
			return runTool(cmd, tool, map[string]interface{}{"selector": args[0]})
		},
	}
	textCommand.Flags().BoolP("all", "a", false, "Print the text of every match")
	return textCommand
}

func newWaitCommand() *cobra.Command {
	waitCommand := &cobra.Command{
		Use:   "wait SELECTOR",
		Short: "Wait for an element to appear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return err
			}
			return runTool(cmd, client.ToolWaitForElement, map[string]interface{}{
				"selector": args[0],
				"timeout":  timeout.Seconds(),
			})
		},
	}
	waitCommand.Flags().Duration("timeout", 10*time.Second, "Maximum time to wait")
	return waitCommand
}

func newAttrCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "attr SELECTOR NAME",
		Short: "Print an attribute of an element",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, client.ToolGetAttribute, map[string]interface{}{"selector": args[0], "attribute": args[1]})
		},
	}
}

func newTitleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "title",
		Short: "Print the current page title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTool(cmd, client.ToolPageTitle, nil)
		},
	}
}

func newURLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the current page URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTool(cmd, client.ToolPageURL, nil)
		},
	}
}

func newEvalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "eval SCRIPT...",
		Short: "Evaluate JavaScript against the current page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, client.ToolEvaluate, map[string]interface{}{"script": strings.Join(args, " ")})
		},
	}
}

func newSourceCommand() *cobra.Command {
	sourceCommand := &cobra.Command{
		Use:   "source",
		Short: "Print the current page HTML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sanitize, err := cmd.Flags().GetBool("sanitize")
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			src, err := c.PageSource(cmd.Context(), sanitize)
			if err != nil {
				return err
			}
			return printResult(cmd, map[string]string{"html": src}, src)
		},
	}
	sourceCommand.Flags().Bool("sanitize", false, "Strip scripts and unsafe markup")
	return sourceCommand
}

func newToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to host agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defs := c.Tools()
			var b strings.Builder
			for _, t := range defs {
				params := make([]string, 0, len(t.Parameters))
				for _, p := range t.Parameters {
					name := p.Name
					if !p.Required {
						name = "[" + name + "]"
					}
					params = append(params, name)
				}
				fmt.Fprintf(&b, "%-32s %s\n", strings.TrimSpace(t.ID+" "+strings.Join(params, " ")), t.Description)
			}
			return printResult(cmd, defs, strings.TrimRight(b.String(), "\n"))
		},
	}
}
