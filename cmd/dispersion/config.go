package main

import (
	"fmt"

	"github.com/newthinker/dispersion/internal/config"
	"github.com/newthinker/dispersion/internal/logger"
	"go.uber.org/zap"
)

// loadConfig reads the config file, applies adjust, validates, and builds
// the logger the command should use.
func loadConfig(adjust func(*config.Config)) (*config.Config, *zap.Logger, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}

	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if adjust != nil {
		adjust(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	log, err := logger.New(debug, cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}
	return cfg, log, nil
}
