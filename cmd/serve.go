package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jobboard/bootstrap"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server on PORT.

The database connection is established in the background; the server
accepts requests before MongoDB is reachable. SIGINT and SIGTERM drain
in-flight requests and exit 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}
}

// runServe builds the application and blocks until it stops
func runServe(parent context.Context, path string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, bootstrap.Options{ConfigPath: path})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if _, err := app.Run(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
