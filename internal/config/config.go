package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/dispersion/internal/core"
	"github.com/newthinker/dispersion/internal/request"
	"github.com/newthinker/dispersion/internal/result"
	"github.com/newthinker/dispersion/internal/runconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Display  DisplayConfig  `mapstructure:"display"`
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServiceConfig describes the remote backtest service.
type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Mode    string        `mapstructure:"mode"` // weighted | symbols | symbols_minimal
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultsConfig seeds the run parameters at session start. Values are
// strings so they go through the same coercion as form input.
type DefaultsConfig struct {
	Start         string `mapstructure:"start"`
	End           string `mapstructure:"end"`
	TotalNotional string `mapstructure:"total_notional"`
	VegaHedge     string `mapstructure:"vega_hedge"`
	Symbols       string `mapstructure:"symbols"`
}

type DisplayConfig struct {
	Locale string `mapstructure:"locale"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadEnvFile loads variables from a dotenv file so ${VAR} references
// and DISPERSION_* overrides can see them. A missing file is not an
// error. Variables already set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// Support environment variable overrides
	v.SetEnvPrefix("DISPERSION")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("service.base_url", d.Service.BaseURL)
	v.SetDefault("service.mode", d.Service.Mode)
	v.SetDefault("service.timeout", d.Service.Timeout)
	v.SetDefault("defaults.start", d.Defaults.Start)
	v.SetDefault("defaults.end", d.Defaults.End)
	v.SetDefault("defaults.total_notional", d.Defaults.TotalNotional)
	v.SetDefault("defaults.vega_hedge", d.Defaults.VegaHedge)
	v.SetDefault("defaults.symbols", d.Defaults.Symbols)
	v.SetDefault("display.locale", d.Display.Locale)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("log.level", d.Log.Level)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL: "http://localhost:8000",
			Mode:    string(request.ModeWeighted),
			Timeout: 60 * time.Second,
		},
		Defaults: DefaultsConfig{
			Start:         runconfig.DefaultStart,
			End:           runconfig.DefaultEnd,
			TotalNotional: "1000000",
			VegaHedge:     "0.02",
		},
		Display: DisplayConfig{
			Locale: result.LocaleISO,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5080,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors. Run parameters are never
// validated here; they are passed to the service as entered.
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("service.base_url is required"))
	}
	if !strings.HasPrefix(c.Service.BaseURL, "http://") && !strings.HasPrefix(c.Service.BaseURL, "https://") {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("service.base_url must be an http(s) URL, got %q", c.Service.BaseURL))
	}
	if _, err := request.ParseMode(c.Service.Mode); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if c.Service.Timeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("service.timeout must be positive, got %s", c.Service.Timeout))
	}

	if !result.KnownLocale(c.Display.Locale) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("display.locale must be one of %v, got %q", result.Locales(), c.Display.Locale))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path))
	}

	return nil
}

// RunDefaults converts the configured defaults into the session-start
// run configuration.
func (c *Config) RunDefaults() runconfig.RunConfig {
	return runconfig.Defaults().WithOverrides(runconfig.Overrides{
		Start:         c.Defaults.Start,
		End:           c.Defaults.End,
		TotalNotional: c.Defaults.TotalNotional,
		VegaHedge:     c.Defaults.VegaHedge,
		Symbols:       c.Defaults.Symbols,
	})
}

// RequestMode returns the parsed service mode. Call Validate first.
func (c *Config) RequestMode() request.Mode {
	m, err := request.ParseMode(c.Service.Mode)
	if err != nil {
		return request.ModeWeighted
	}
	return m
}
