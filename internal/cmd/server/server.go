// Package server parses server command flags and starts the map authority.
package server

import (
	"context"
	"flag"

	entrypoint "github.com/seralith/wartable/internal/platform/cmd"
	tableserver "github.com/seralith/wartable/internal/services/table/server"
)

// Config holds server command configuration.
type Config struct {
	Port int    `env:"WARTABLE_TABLE_PORT" envDefault:"8080"`
	Addr string `env:"WARTABLE_TABLE_ADDR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The map authority port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The map authority listen address (overrides -port)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the map authority service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(context.Context) error {
		if cfg.Addr != "" {
			return tableserver.RunWithAddr(ctx, cfg.Addr)
		}
		return tableserver.Run(ctx, cfg.Port)
	})
}
