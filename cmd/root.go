// Package cmd holds the kirana command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiranaconnect/kirana/internal/build"
	"github.com/kiranaconnect/kirana/internal/config"
)

// NewRootCmd builds the command tree around an already loaded configuration.
func NewRootCmd(cfg *config.AppConfig) *cobra.Command {
	root := &cobra.Command{
		Use:           "kirana",
		Short:         "KiranaConnect cart reminder service",
		Long:          "Schedules AI-written reminder emails for items left in KiranaConnect carts.",
		Version:       build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(NewServeCmd(cfg))
	root.AddCommand(NewSweepCmd(cfg))
	return root
}

// Execute loads configuration from the environment and runs the root command.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := NewRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
