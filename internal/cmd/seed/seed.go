// Package seed parses seed command flags and runs the demo seeder.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	entrypoint "github.com/seralith/wartable/internal/platform/cmd"
	"github.com/seralith/wartable/internal/tools/seed"
)

// Config holds seed command configuration.
type Config struct {
	Addr       string `env:"WARTABLE_TABLE_URL"     envDefault:"http://localhost:8080"`
	CampaignID string `env:"WARTABLE_SEED_CAMPAIGN" envDefault:"demo"`
	Grant      string `env:"WARTABLE_SEED_GRANT"`
	UserID     string `env:"WARTABLE_SEED_USER"     envDefault:"seed-gm"`
	Scene      string
	List       bool
	Verbose    bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "map authority base URL")
	fs.StringVar(&cfg.CampaignID, "campaign", cfg.CampaignID, "campaign to seed")
	fs.StringVar(&cfg.Grant, "grant", cfg.Grant, "GM table grant token")
	fs.StringVar(&cfg.UserID, "user", cfg.UserID, "user id recorded on seeded content")
	fs.StringVar(&cfg.Scene, "scene", "", "run a single scene (default: all)")
	fs.BoolVar(&cfg.List, "list", false, "list available scenes")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	if cfg.List {
		fmt.Fprintln(out, "Available scenes:")
		for _, name := range seed.ListScenes() {
			fmt.Fprintf(out, "  %s\n", name)
		}
		return nil
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(ctx context.Context) error {
		seedCfg := seed.DefaultConfig()
		seedCfg.Addr = cfg.Addr
		seedCfg.CampaignID = cfg.CampaignID
		seedCfg.Grant = cfg.Grant
		seedCfg.UserID = cfg.UserID
		seedCfg.Scene = cfg.Scene
		seedCfg.Verbose = cfg.Verbose
		seedCfg.Logger = log.New(errOut, "", 0)
		return seed.Run(ctx, seedCfg)
	})
}
