// storectl is the operator CLI: schema migrations, seed data, review
// moderation and payment support.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-ebook-store/internal/app"
	"github.com/imrishuroy/go-ebook-store/internal/config"
	"github.com/imrishuroy/go-ebook-store/internal/logging"
)

var Version = "dev"

// env is filled in before any subcommand runs.
type env struct {
	cfg     *config.Config
	logger  log.Logger
	verbose bool
}

func main() {
	e := &env{}
	rootCmd := &cobra.Command{
		Use:           "storectl",
		Short:         "Operate the ebook store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			e.cfg = cfg
			level := "warn"
			if e.verbose {
				level = "debug"
			}
			e.logger = logging.New(os.Stderr, "storectl", level)
			return nil
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(migrateCmd(e))
	rootCmd.AddCommand(seedCmd(e))
	rootCmd.AddCommand(reviewsCmd(e))
	rootCmd.AddCommand(paymentCmd(e))
	rootCmd.AddCommand(reconcileCmd(e))
	rootCmd.AddCommand(ordersCmd(e))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp opens every backing service for the duration of fn.
func (e *env) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
