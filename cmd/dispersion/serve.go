package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/dispersion/internal/api"
	"github.com/newthinker/dispersion/internal/metrics"
	"github.com/newthinker/dispersion/internal/panel"
	"github.com/newthinker/dispersion/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveTemplatesDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the backtest panel over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveTemplatesDir, "templates", "", "load page templates from this directory instead of the embedded ones")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return err
	}
	defer log.Sync()

	opts := panel.Options{
		Mode:    cfg.RequestMode(),
		Initial: cfg.RunDefaults(),
		Timeout: cfg.Service.Timeout,
		Locale:  cfg.Display.Locale,
		Logger:  log.Named("panel"),
	}
	var reg *metrics.Registry
	metricsPath := ""
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		opts.Metrics = reg
		metricsPath = cfg.Metrics.Path
	}

	p, err := panel.New(transport.New(cfg.Service.BaseURL, cfg.Service.Timeout), opts)
	if err != nil {
		return fmt.Errorf("creating panel: %w", err)
	}

	log.Info("starting dispersion panel",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("service", cfg.Service.BaseURL),
		zap.String("mode", cfg.Service.Mode),
	)

	server, err := api.NewServer(api.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		TemplatesDir: serveTemplatesDir,
		MetricsPath:  metricsPath,
	}, api.Dependencies{Panel: p, Metrics: reg}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
