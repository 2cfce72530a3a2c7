// Package server parses command configuration for the Teamspace server.
package server

import (
	"context"
	"flag"
	"strings"

	app "github.com/louisbranch/teamspace/internal/app/server"
)

// Config holds server command configuration.
type Config struct {
	HTTPAddr string
	GRPCPort int
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		HTTPAddr: envOrDefault(lookup, "TEAMSPACE_HTTP_ADDR", "localhost:8080"),
		GRPCPort: 8081,
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The HTTP server address")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The gRPC health server port")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the server.
func Run(ctx context.Context, cfg Config) error {
	return app.Run(ctx, cfg.HTTPAddr, cfg.GRPCPort)
}

func envOrDefault(lookup EnvLookup, key, fallback string) string {
	if lookup == nil {
		return fallback
	}
	if value, ok := lookup(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
