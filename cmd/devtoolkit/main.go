// devtoolkit runs the dev-toolkit blogging server and its maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	devtoolkit "github.com/ankushjain358/dev-toolkit"
	"github.com/ankushjain358/dev-toolkit/views"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	addr      string
	staticDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "devtoolkit",
		Short: "Multi-member blogging server",
		Long: `devtoolkit serves a blogging site where members sign in through an
external identity provider, write Markdown posts and publish them.

Configuration is read from the environment (SITE_URL, DATABASE_PATH,
SESSION_SECRET, AUTH_TOKEN_SECRET, AUTH_CALLBACK_SECRET, STORAGE_DRIVER, ...).`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides ADDR)")
	cmd.Flags().StringVar(&staticDir, "static", "static", "Directory of static assets")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := devtoolkit.LoadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := devtoolkit.NewLogger(cfg.Log)
	app := devtoolkit.New(cfg, views.Default(cfg),
		devtoolkit.WithLogger(logger),
		devtoolkit.WithStaticDir(staticDir),
	)
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Server: close failed", "error", err.Error())
		}
	}()

	return app.Start(ctx)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and print the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := devtoolkit.LoadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := devtoolkit.NewStore(ctx, cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			v, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s: schema version %d\n", cfg.DatabasePath, v)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("devtoolkit %s\n", version)
		},
	}
}
