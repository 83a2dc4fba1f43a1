// Package cmd provides the command-line interface of the job board service.
package cmd

import (
	"fmt"
	"os"

	"jobboard/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// CLI output formatters
var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags
var (
	configFile string
	noColor    bool
)

// NewRootCmd creates the jobboard command. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jobboard",
		Short: "REST job board backend",
		Long: `jobboard serves the job board REST API under /api/v1.

Settings come from a dotenv file (see --config) overlaid by environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultConfigFile, "Settings file in dotenv format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printWarning(cmd *cobra.Command, format string, args ...interface{}) {
	warningColor.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", fmt.Sprintf(format, args...))
}
