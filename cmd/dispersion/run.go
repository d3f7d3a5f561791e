package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/dispersion/internal/config"
	"github.com/newthinker/dispersion/internal/panel"
	"github.com/newthinker/dispersion/internal/render"
	"github.com/newthinker/dispersion/internal/runconfig"
	"github.com/newthinker/dispersion/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runMode    string
	runBaseURL string
	runChart   string
	runPlain   bool
)

// runFlags maps flag names to the run parameter they edit.
var runFlags = []struct {
	flag  string
	field runconfig.Field
	usage string
}{
	{"start", runconfig.FieldStart, "start date YYYY-MM-DD"},
	{"end", runconfig.FieldEnd, "end date YYYY-MM-DD"},
	{"notional", runconfig.FieldTotalNotional, "total notional in dollars"},
	{"vega-hedge", runconfig.FieldVegaHedge, "vega hedge ratio"},
	{"symbols", runconfig.FieldSymbols, "comma-separated symbols (symbol modes)"},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backtest and print the panel",
	Long: `Run submits one backtest with the configured defaults and any
parameter flags, waits for the service, and prints the panel. Parameter
flags take the same raw input as the web form.`,
	RunE: runBacktest,
}

func init() {
	for _, f := range runFlags {
		runCmd.Flags().String(f.flag, "", f.usage)
	}
	runCmd.Flags().StringVar(&runMode, "mode", "", "request mode: weighted, symbols or symbols_minimal")
	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "backtest service base URL")
	runCmd.Flags().StringVar(&runChart, "chart", "", "write the PnL chart to this PNG file")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "print without colors or borders")

	rootCmd.AddCommand(runCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(func(c *config.Config) {
		if runMode != "" {
			c.Service.Mode = runMode
		}
		if runBaseURL != "" {
			c.Service.BaseURL = runBaseURL
		}
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	p, err := panel.New(transport.New(cfg.Service.BaseURL, cfg.Service.Timeout), panel.Options{
		Mode:    cfg.RequestMode(),
		Initial: cfg.RunDefaults(),
		Timeout: cfg.Service.Timeout,
		Locale:  cfg.Display.Locale,
		Logger:  log.Named("panel"),
	})
	if err != nil {
		return fmt.Errorf("creating panel: %w", err)
	}

	for _, f := range runFlags {
		if !cmd.Flags().Changed(f.flag) {
			continue
		}
		raw, _ := cmd.Flags().GetString(f.flag)
		if err := p.Edit(string(f.field), raw); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := p.Submit(ctx)

	styles := render.DefaultStyles()
	if runPlain {
		styles = render.PlainStyles()
	}
	state := p.Snapshot()
	if err := render.Panel(cmd.OutOrStdout(), state, styles); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	if runChart != "" {
		if err := writeChart(runChart, state); err != nil {
			if errors.Is(err, render.ErrNoSeries) {
				log.Warn("no PnL series to chart", zap.String("file", runChart))
				return nil
			}
			return err
		}
		log.Info("chart written", zap.String("file", runChart))
	}
	return nil
}

func writeChart(path string, state panel.State) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart file: %w", err)
	}
	if err := render.Chart(f, state.View); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
