// Package scenario parses scenario command flags and runs Lua scripts.
package scenario

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"time"

	entrypoint "github.com/seralith/wartable/internal/platform/cmd"
	"github.com/seralith/wartable/internal/tools/scenario"
)

// Config holds scenario command configuration.
type Config struct {
	Addr       string        `env:"WARTABLE_TABLE_URL"         envDefault:"http://localhost:8080"`
	CampaignID string        `env:"WARTABLE_SCENARIO_CAMPAIGN" envDefault:"demo"`
	Grant      string        `env:"WARTABLE_SCENARIO_GRANT"`
	UserID     string        `env:"WARTABLE_SCENARIO_USER"     envDefault:"scenario-gm"`
	Scenario   string        `env:"WARTABLE_SCENARIO_FILE"`
	Assertions bool          `env:"WARTABLE_SCENARIO_ASSERT"   envDefault:"true"`
	Verbose    bool          `env:"WARTABLE_SCENARIO_VERBOSE"`
	Timeout    time.Duration `env:"WARTABLE_SCENARIO_TIMEOUT"  envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "map authority base URL")
	fs.StringVar(&cfg.CampaignID, "campaign", cfg.CampaignID, "campaign to run against")
	fs.StringVar(&cfg.Grant, "grant", cfg.Grant, "GM table grant token")
	fs.StringVar(&cfg.UserID, "user", cfg.UserID, "user id the runner acts as")
	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario lua file")
	fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log expectations)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per step")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the scenario command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}

	mode := scenario.AssertionStrict
	if !cfg.Assertions {
		mode = scenario.AssertionLogOnly
	}

	logger := log.New(errOut, "", 0)
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceScenario, func(ctx context.Context) error {
		return scenario.RunFile(ctx, scenario.Config{
			Addr:       cfg.Addr,
			CampaignID: cfg.CampaignID,
			Grant:      cfg.Grant,
			UserID:     cfg.UserID,
			Timeout:    cfg.Timeout,
			Assertions: mode,
			Verbose:    cfg.Verbose,
			Logger:     logger,
		}, cfg.Scenario)
	})
}
