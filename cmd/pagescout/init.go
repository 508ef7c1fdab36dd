package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/pagescout/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/pagescout.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new pagescout configuration file",
		Long: `Initialize creates a new .pagescout configuration file in the current directory.

The generated file includes:
- The default About and Programs phrase sets
- Search rate and quota settings
- Fetch and browser escalation settings
- Documentation for all available options

Examples:
  # Create .pagescout in current directory
  pagescout init

  # Create config file at a specific path
  pagescout init -o ~/.config/pagescout/config.yaml

  # Force overwrite existing file
  pagescout init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/pagescout.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may hold search credentials, so it is owner-only.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure settings such as:")
	fmt.Fprintln(out, "  - Page types and their search phrases")
	fmt.Fprintln(out, "  - Search rate limit and daily quota")
	fmt.Fprintln(out, "  - Proxy, cookies and headers for direct fetches")
	fmt.Fprintf(out, "\nSet %s and %s before running pagescout.\n",
		config.EnvSearchAPIKey, config.EnvSearchEngineID)

	return nil
}
