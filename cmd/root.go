package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/offgrid-dt/app"
	"github.com/kilianp07/offgrid-dt/config"
	"github.com/kilianp07/offgrid-dt/infra/logger"
)

var (
	cfgPath string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "offgrid-dt",
	Short:         "Digital twin of an off-grid solar and battery household",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (defaults to the demo household)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "abort the run after this duration (0 disables)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// runContext is canceled on interrupt and after --timeout or the
// configured simulation timeout, whichever is set.
func runContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	d := timeout
	if d == 0 {
		d = cfg.Simulation.Timeout()
	}
	if d <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	return tctx, func() { cancel(); stop() }
}

func withService(cfg *config.Config, fn func(*app.Service) error) error {
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return fn(svc)
}
