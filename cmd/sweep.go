package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kiranaconnect/kirana/internal/config"
	"github.com/kiranaconnect/kirana/internal/logger"
	"github.com/kiranaconnect/kirana/internal/storage"
)

// NewSweepCmd returns the "sweep" subcommand that runs one abandoned-cart
// sweep and exits. Useful from an external cron.
func NewSweepCmd(cfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a single abandoned-cart sweep and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log := logger.New(cmd.ErrOrStderr(), cfg.SlogLevel())
			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			ctx, cancelSweep := context.WithTimeout(ctx, cfg.SweepInterval)
			defer cancelSweep()
			res, err := a.sweeper.Sweep(ctx, storage.SweepTriggerManual)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: scanned %d carts, notified %d, failures %d\n",
				res.RunID, res.CartsScanned, res.CartsNotified, res.Failures)
			return nil
		},
	}
}
