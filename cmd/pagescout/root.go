package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pagescout.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagescout",
		Short: "Discover and extract the About and Programs pages of websites",
		Long: `pagescout finds the informational subpages of each website in a list.

For every homepage and page type it searches the website's domain for a
candidate page, fetches it over plain HTTP and, when the server answers with
a bot challenge or an empty shell, escalates to a headless browser. When no
page is found the homepage text is used instead.

The results are exported as CSV (one row per website), JSON, Markdown or
plain text, and every run is kept in a local database for later comparison.

The search API credentials are read from PAGESCOUT_SEARCH_API_KEY and
PAGESCOUT_SEARCH_ENGINE_ID.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
