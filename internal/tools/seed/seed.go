// Package seed populates a running map authority with demo content for
// local development, driving the same client sessions the UI uses.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/seralith/wartable/internal/client"
)

// Config controls seed execution.
type Config struct {
	Addr       string
	CampaignID string
	Grant      string
	UserID     string
	// Scene selects a single scene by name; empty runs all of them.
	Scene   string
	Verbose bool
	Logger  *log.Logger
	// Cards resolves token refIds into hover cards. Nil uses the demo deck.
	Cards CardSource
}

// DefaultConfig returns default seed configuration.
func DefaultConfig() Config {
	return Config{
		Addr:       "http://localhost:8080",
		CampaignID: "demo",
		UserID:     "seed-gm",
	}
}

// ListScenes returns the bundled scene names in execution order.
func ListScenes() []string {
	names := make([]string, 0, len(scenes))
	for _, sc := range scenes {
		names = append(names, sc.name)
	}
	return names
}

// Run seeds the configured scenes through the real HTTP client.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Addr == "" {
		return errors.New("authority address is required")
	}
	if cfg.Grant == "" {
		return errors.New("table grant is required")
	}
	authority := client.NewClient(cfg.Addr, cfg.CampaignID, cfg.Grant)
	return runWithAuthority(ctx, cfg, authority)
}

// runWithAuthority executes scenes against a pre-built authority so tests
// can target an in-process server.
func runWithAuthority(ctx context.Context, cfg Config, authority client.Authority) error {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	cards := cfg.Cards
	if cards == nil {
		cards = DemoCards()
	}

	run := scenes
	if cfg.Scene != "" {
		run = nil
		for _, sc := range scenes {
			if sc.name == cfg.Scene {
				run = []scene{sc}
				break
			}
		}
		if run == nil {
			return fmt.Errorf("unknown scene %q (available: %v)", cfg.Scene, ListScenes())
		}
	}

	session := client.NewSession(authority, cfg.UserID, true)
	if err := session.Join(ctx); err != nil {
		return fmt.Errorf("join table: %w", err)
	}

	for _, sc := range run {
		start := time.Now()
		if err := sc.build(ctx, session, cards); err != nil {
			return fmt.Errorf("scene %s: %w", sc.name, err)
		}
		if cfg.Verbose {
			logger.Printf("scene %s done (%s)", sc.name, time.Since(start))
		}
	}
	return nil
}
