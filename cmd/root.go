package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/shopflow/app"
	"github.com/kilianp07/shopflow/config"
	"github.com/kilianp07/shopflow/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "shopflow",
	Short:         "Discrete-event shop floor dispatching and batch scheduling",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// newService loads the configuration and builds the service. The returned
// context is canceled on SIGINT or SIGTERM.
func newService(cmd *cobra.Command, tweak func(*config.Config)) (context.Context, *app.Service, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if tweak != nil {
		tweak(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, nil, nil, fmt.Errorf("invalid flags: %w", err)
		}
	}
	svc, err := app.New(cfg, app.Options{})
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	svc.ServeMetrics(ctx)
	cleanup := func() {
		stop()
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}
	return ctx, svc, cleanup, nil
}

// output returns stdout, or the file at path when set.
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
