package main

import (
	"fmt"
	"os"

	"github.com/GriffinCanCode/Jarvis/sandbox/pkg/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func newApp() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sandboxctl",
		Short: "Drive the Jarvis browser sandbox",
		Long: `sandboxctl calls a running sandbox server.

  sandboxctl health --wait 30s          Wait until the sandbox is ready
  sandboxctl open https://example.com   Open a page
  sandboxctl click "a.next"             Click an element
  sandboxctl text h1                    Print the text of an element
  sandboxctl workflow run steps.yaml    Run a workflow file`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("server", envOr("SANDBOX_URL", client.DefaultURL), "Sandbox server URL")
	rootCmd.PersistentFlags().Bool("json", false, "Print raw JSON results")

	rootCmd.AddCommand(
		newHealthCommand(),
		newResetCommand(),
		newOpenCommand(),
		newClickCommand(),
		newFillCommand(),
		newTextCommand(),
		newWaitCommand(),
		newAttrCommand(),
		newTitleCommand(),
		newURLCommand(),
		newEvalCommand(),
		newSourceCommand(),
		newToolsCommand(),
		newWorkflowCommand(),
	)
	return rootCmd
}

func main() {
	if err := newApp().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
